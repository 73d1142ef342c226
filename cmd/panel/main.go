package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guild-panel/internal/audit"
	"guild-panel/internal/config"
	"guild-panel/internal/discord"
	"guild-panel/internal/permissions"
	"guild-panel/internal/session"
	"guild-panel/internal/settings"
	"guild-panel/internal/stats"
	"guild-panel/internal/storage"
	"guild-panel/internal/web"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to the YAML config file")
	addr := flag.String("addr", "", "listen address, overrides HTTP_ADDR")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	logger, err := config.BuildLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := openStore(cfg.Storage)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err), zap.String("backend", cfg.Storage.Backend))
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: time.Duration(cfg.Discord.HTTPTimeoutSeconds) * time.Second}
	discordClient := discord.NewClient(cfg.Discord.APIURL, cfg.Discord.BotToken, httpClient, logger)

	notifier := audit.NewNotifier(discordClient, logger, audit.Options{
		QueueSize:       cfg.Audit.QueueSize,
		EmbedColor:      cfg.Audit.EmbedColor,
		FallbackChannel: cfg.Audit.FallbackChannel,
	})
	notifier.Start()

	guard := permissions.NewGuard(discordClient, logger)
	server := web.NewServer(web.Deps{
		Config:   cfg,
		Sessions: session.NewManager(cfg.Session, logger),
		OAuth:    session.NewOAuth(cfg.Discord, httpClient),
		Discord:  discordClient,
		Guard:    guard,
		Settings: settings.NewSynchronizer(store, guard, discordClient, notifier, logger),
		Prefixes: settings.NewPrefixUpdater(store, logger),
		Store:    store,
		Stats:    stats.NewTracker(),
		Logger:   logger,
	})

	httpServer := server.HTTPServer()
	go func() {
		logger.Info("panel listening", zap.String("addr", httpServer.Addr), zap.String("backend", cfg.Storage.Backend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifier.Close(ctx)
	logger.Info("audit drained",
		zap.Int64("delivered", notifier.Delivered()),
		zap.Int64("failed", notifier.Failed()),
		zap.Int64("dropped", notifier.Dropped()),
	)
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Backend != config.BackendPostgres {
		return storage.NewJSONStore(cfg.SettingsFile, cfg.PrefixesFile), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
