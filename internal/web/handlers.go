package web

import (
	"net/http"
	"net/url"

	"guild-panel/internal/apperr"
	"guild-panel/internal/permissions"
	"guild-panel/internal/session"
	"guild-panel/internal/settings"
	"guild-panel/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxFormBytes = 1 << 20

type homeView struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	LoginURL    string `json:"login_url"`
}

type dashboardView struct {
	User            *discordgo.User            `json:"user"`
	ClientID        string                     `json:"client_id"`
	ManagedGuilds   []permissions.GuildSummary `json:"managed_guilds"`
	UnmanagedGuilds []permissions.GuildSummary `json:"unmanaged_guilds"`
}

type guildView struct {
	GuildID       string                `json:"guild_id"`
	CurrentPrefix string                `json:"current_prefix"`
	Settings      storage.GuildSettings `json:"settings"`
	Success       bool                  `json:"success"`
	NoChanges     bool                  `json:"no_changes"`
}

type channelsView struct {
	Channels []*discordgo.Channel `json:"channels"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.stats.RecordVisit()
	writeJSON(w, r, http.StatusOK, homeView{
		ClientID:    s.cfg.Discord.ClientID,
		RedirectURI: s.cfg.Discord.RedirectURI,
		LoginURL:    "/login",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	pending := s.sessions.Begin(w, r)
	http.Redirect(w, r, s.oauth.AuthCodeURL(pending.State), http.StatusTemporaryRedirect)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	// a callback without a pending session is let through; the code
	// exchange itself still has to succeed
	if pending, ok := s.sessions.Lookup(r); ok && pending.State != "" && pending.State != query.Get("state") {
		s.writeError(w, r, apperr.Auth("Invalid OAuth state", nil))
		return
	}

	token, err := s.oauth.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sessions.Establish(w, r, token)
	s.stats.RecordLogin()
	http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	user, err := s.discord.FetchUserInfo(r.Context(), sess.AccessToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		redirectHome(w, r)
		return
	}

	var (
		userGuilds []*discordgo.UserGuild
		botGuilds  []string
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		userGuilds, err = s.discord.FetchUserGuilds(ctx, sess.AccessToken)
		return err
	})
	g.Go(func() error {
		var err error
		botGuilds, err = s.discord.FetchBotGuilds(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, err)
		return
	}

	managed, unmanaged := permissions.Partition(userGuilds, botGuilds)
	writeJSON(w, r, http.StatusOK, dashboardView{
		User:            user,
		ClientID:        s.cfg.Discord.ClientID,
		ManagedGuilds:   managed,
		UnmanagedGuilds: unmanaged,
	})
}

func (s *Server) handleGuild(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "id")
	prefix, err := s.prefixes.Prefix(r.Context(), guildID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := storage.GetGuildSettings(r.Context(), s.store, guildID)
	if err != nil {
		s.writeError(w, r, apperr.Internal(err))
		return
	}
	query := r.URL.Query()
	writeJSON(w, r, http.StatusOK, guildView{
		GuildID:       guildID,
		CurrentPrefix: prefix,
		Settings:      record,
		Success:       query.Get("success") == "true",
		NoChanges:     query.Get("no_changes") == "true",
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request, sess session.Session) {
	guildID := chi.URLParam(r, "id")
	if err := s.guard.RequireAdministrator(r.Context(), sess.AccessToken, guildID); err != nil {
		s.writeError(w, r, err)
		return
	}
	channels, err := s.discord.FetchGuildChannels(r.Context(), guildID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("channels fetched", zap.String("guild_id", guildID), zap.Int("count", len(channels)))
	writeJSON(w, r, http.StatusOK, channelsView{Channels: channels})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, sess session.Session) {
	guildID := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, apperr.Validation("Invalid form"))
		return
	}

	user, err := s.discord.FetchUserInfo(r.Context(), sess.AccessToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		redirectHome(w, r)
		return
	}

	result, err := s.settings.Apply(r.Context(), guildID, settings.Actor{
		UserID:      user.ID,
		AccessToken: sess.AccessToken,
	}, settings.Form{
		ModChannelID:    r.PostForm.Get("mod_channel_id"),
		SystemChannelID: r.PostForm.Get("system_channel_id"),
		AdminIDs:        r.PostForm.Get("admin_ids"),
		ModIDs:          r.PostForm.Get("mod_ids"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flag := "no_changes"
	if result.Changed {
		flag = "success"
	}
	http.Redirect(w, r, guildURL(guildID, flag), http.StatusSeeOther)
}

func (s *Server) handleUpdatePrefix(w http.ResponseWriter, r *http.Request, sess session.Session) {
	guildID := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, apperr.Validation("Invalid form"))
		return
	}
	prefix := r.PostForm.Get("prefix")
	if prefix == "" {
		s.writeError(w, r, apperr.Validation("Prefix is required"))
		return
	}
	if err := s.guard.RequireAdministrator(r.Context(), sess.AccessToken, guildID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.prefixes.SetPrefix(r.Context(), guildID, prefix); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, guildURL(guildID, "success"), http.StatusSeeOther)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.stats.Snapshot())
}

func guildURL(guildID, flag string) string {
	return "/guild/" + url.PathEscape(guildID) + "?" + flag + "=true"
}

