package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"guild-panel/internal/utils"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr string        `yaml:"http_addr"`
	LogLevel string        `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	Discord  DiscordConfig `yaml:"discord"`
	Session  SessionConfig `yaml:"session"`
	Storage  StorageConfig `yaml:"storage"`
	Audit    AuditConfig   `yaml:"audit"`
	Health   HealthConfig  `yaml:"health"`
}

type DiscordConfig struct {
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	RedirectURI        string `yaml:"redirect_uri"`
	APIURL             string `yaml:"api_url"`
	AuthorizeURL       string `yaml:"authorize_url"`
	BotToken           string `yaml:"bot_token"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
}

type SessionConfig struct {
	CookieName   string `yaml:"cookie_name"`
	TTLHours     int    `yaml:"ttl_hours"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

type StorageConfig struct {
	Backend      string `yaml:"backend"`
	SettingsFile string `yaml:"settings_file"`
	PrefixesFile string `yaml:"prefixes_file"`
	DatabaseURL  string `yaml:"database_url"`
}

type AuditConfig struct {
	QueueSize       int    `yaml:"queue_size"`
	FallbackChannel string `yaml:"fallback_channel"`
	EmbedColor      int    `yaml:"embed_color"`
}

type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr: ":8000",
		LogLevel: "info",
		LogFile:  LogFileConfig{MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 28, Compress: true},
		Discord: DiscordConfig{
			AuthorizeURL: "https://discord.com/oauth2/authorize",
		},
		Session: SessionConfig{CookieName: "session", TTLHours: 14 * 24},
		Storage: StorageConfig{Backend: BackendJSON},
		Audit:   AuditConfig{QueueSize: 64, EmbedColor: 0xFF0000},
		Health:  HealthConfig{Enabled: true},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file and the process environment, in that order of
// precedence (environment wins). path may be empty, in which case
// CONFIG_PATH or config.yaml is used.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if info, err := os.Stat(envFile); err == nil && !info.IsDir() {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.Storage.Backend = normalizeBackend(cfg.Storage.Backend)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	apiURL, err := utils.NormalizeBaseURL(cfg.Discord.APIURL)
	if err != nil {
		return Config{}, fmt.Errorf("DISCORD_API_URL: %w", err)
	}
	cfg.Discord.APIURL = apiURL

	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	require("DISCORD_CLIENT_ID", c.Discord.ClientID)
	require("DISCORD_CLIENT_SECRET", c.Discord.ClientSecret)
	require("DISCORD_REDIRECT_URI", c.Discord.RedirectURI)
	require("DISCORD_API_URL", c.Discord.APIURL)
	require("BOT_TOKEN", c.Discord.BotToken)
	switch c.Storage.Backend {
	case BackendPostgres:
		require("DATABASE_URL", c.Storage.DatabaseURL)
	default:
		require("SETTINGS_FILE", c.Storage.SettingsFile)
		require("PREFIXES_FILE", c.Storage.PrefixesFile)
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile.Path = envString("LOG_FILE", cfg.LogFile.Path)
	cfg.Discord.ClientID = envString("DISCORD_CLIENT_ID", cfg.Discord.ClientID)
	cfg.Discord.ClientSecret = envString("DISCORD_CLIENT_SECRET", cfg.Discord.ClientSecret)
	cfg.Discord.RedirectURI = envString("DISCORD_REDIRECT_URI", cfg.Discord.RedirectURI)
	cfg.Discord.APIURL = envString("DISCORD_API_URL", cfg.Discord.APIURL)
	cfg.Discord.AuthorizeURL = envString("DISCORD_AUTHORIZE_URL", cfg.Discord.AuthorizeURL)
	cfg.Discord.BotToken = envString("BOT_TOKEN", cfg.Discord.BotToken)
	cfg.Discord.HTTPTimeoutSeconds = envInt("HTTP_TIMEOUT_SECONDS", cfg.Discord.HTTPTimeoutSeconds)
	cfg.Session.CookieName = envString("SESSION_COOKIE_NAME", cfg.Session.CookieName)
	cfg.Session.TTLHours = envInt("SESSION_TTL_HOURS", cfg.Session.TTLHours)
	cfg.Session.CookieSecure = envBool("SESSION_COOKIE_SECURE", cfg.Session.CookieSecure)
	cfg.Storage.Backend = envString("STORE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.SettingsFile = envString("SETTINGS_FILE", cfg.Storage.SettingsFile)
	cfg.Storage.PrefixesFile = envString("PREFIXES_FILE", cfg.Storage.PrefixesFile)
	cfg.Storage.DatabaseURL = envString("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Audit.QueueSize = envInt("AUDIT_QUEUE_SIZE", cfg.Audit.QueueSize)
	cfg.Audit.FallbackChannel = envString("AUDIT_FALLBACK_CHANNEL", cfg.Audit.FallbackChannel)
	cfg.Audit.EmbedColor = envInt("AUDIT_EMBED_COLOR", cfg.Audit.EmbedColor)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
}

func BuildLogger(level string, file LogFileConfig) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "message"
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(os.Stdout), lvl),
	}
	if file.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeBackend(value string) string {
	switch strings.ToLower(value) {
	case BackendPostgres, "pg", "postgresql":
		return BackendPostgres
	default:
		return BackendJSON
	}
}
