package web

import (
	"context"
	"net/http"
	"time"

	"guild-panel/internal/config"
	"guild-panel/internal/permissions"
	"guild-panel/internal/session"
	"guild-panel/internal/settings"
	"guild-panel/internal/stats"
	"guild-panel/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type DiscordAPI interface {
	FetchUserInfo(ctx context.Context, accessToken string) (*discordgo.User, error)
	FetchUserGuilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error)
	FetchBotGuilds(ctx context.Context) ([]string, error)
	FetchGuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
}

type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

type Deps struct {
	Config   config.Config
	Sessions *session.Manager
	OAuth    Authenticator
	Discord  DiscordAPI
	Guard    *permissions.Guard
	Settings *settings.Synchronizer
	Prefixes *settings.PrefixUpdater
	Store    storage.Store
	Stats    *stats.Tracker
	Logger   *zap.Logger
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	oauth    Authenticator
	discord  DiscordAPI
	guard    *permissions.Guard
	settings *settings.Synchronizer
	prefixes *settings.PrefixUpdater
	store    storage.Store
	stats    *stats.Tracker
	logger   *zap.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      deps.Config,
		sessions: deps.Sessions,
		oauth:    deps.OAuth,
		discord:  deps.Discord,
		guard:    deps.Guard,
		settings: deps.Settings,
		prefixes: deps.Prefixes,
		store:    deps.Store,
		stats:    deps.Stats,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.RedirectSlashes,
		middleware.Recoverer,
	)

	router.Get("/", s.handleHome)
	router.Get("/login", s.handleLogin)
	router.Get("/auth", s.handleAuth)
	router.Get("/logout", s.handleLogout)
	router.Get("/dashboard", s.withSession(s.handleDashboard))
	router.Get("/stats", s.handleStats)
	router.Route("/guild/{id}", func(r chi.Router) {
		r.Get("/", s.handleGuild)
		r.Get("/channels", s.withSession(s.handleChannels))
		r.Post("/settings", s.withSession(s.handleUpdateSettings))
		r.Post("/prefix", s.withSession(s.handleUpdatePrefix))
	})
	if s.cfg.Health.Enabled {
		router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}

	return router
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
