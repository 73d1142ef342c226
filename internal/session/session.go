package session

import (
	"net/http"
	"sync"
	"time"

	"guild-panel/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Session struct {
	ID          string
	AccessToken string
	State       string
	CreatedAt   time.Time
}

func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const (
	// PendingTTL bounds how long a /login without a callback is remembered.
	PendingTTL = 10 * time.Minute
	// MaxPending caps unfinished logins; the oldest is dropped first.
	MaxPending = 1024

	sweepInterval = time.Minute
)

// Manager keeps sessions in process memory, keyed by the cookie value.
// Logins that have not completed the OAuth callback live in a separate,
// capped map with a short TTL. Handlers get copies.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	pending    map[string]*Session
	lastSweep  time.Time
	cookieName string
	ttl        time.Duration
	secure     bool
	clock      Clock
	logger     *zap.Logger
}

func NewManager(cfg config.SessionConfig, logger *zap.Logger) *Manager {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	name := cfg.CookieName
	if name == "" {
		name = "session"
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		pending:    make(map[string]*Session),
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.CookieSecure,
		clock:      realClock{},
		logger:     logger,
	}
}

func (m *Manager) WithClock(clock Clock) {
	m.clock = clock
}

// Begin replaces any session on the request with a pending one carrying a
// new OAuth state value.
func (m *Manager) Begin(w http.ResponseWriter, r *http.Request) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.sweepPendingLocked(now)
	m.maybeSweepLocked(now)
	if old, ok := m.cookieID(r); ok {
		delete(m.sessions, old)
		delete(m.pending, old)
	}
	for len(m.pending) >= MaxPending {
		m.evictOldestPendingLocked()
	}
	s := &Session{
		ID:        uuid.NewString(),
		State:     uuid.NewString(),
		CreatedAt: now,
	}
	m.pending[s.ID] = s
	m.setCookie(w, s.ID, PendingTTL)
	return *s
}

func (m *Manager) Lookup(r *http.Request) (Session, bool) {
	id, ok := m.cookieID(r)
	if !ok {
		return Session{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if s, ok := m.sessions[id]; ok {
		if now.Sub(s.CreatedAt) >= m.ttl {
			delete(m.sessions, id)
			return Session{}, false
		}
		return *s, true
	}
	if s, ok := m.pending[id]; ok {
		if now.Sub(s.CreatedAt) >= PendingTTL {
			delete(m.pending, id)
			return Session{}, false
		}
		return *s, true
	}
	return Session{}, false
}

// Establish stores accessToken in a new session, dropping the one the
// request carried so the pre-login id cannot be reused.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, accessToken string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.cookieID(r); ok {
		delete(m.sessions, old)
		delete(m.pending, old)
	}
	s := &Session{
		ID:          uuid.NewString(),
		AccessToken: accessToken,
		CreatedAt:   m.clock.Now(),
	}
	m.sessions[s.ID] = s
	m.setCookie(w, s.ID, m.ttl)
	m.logger.Debug("session established", zap.String("session_id", s.ID))
	return *s
}

func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if id, ok := m.cookieID(r); ok {
		m.mu.Lock()
		delete(m.sessions, id)
		delete(m.pending, id)
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Len counts authenticated and pending sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions) + len(m.pending)
}

func (m *Manager) cookieID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (m *Manager) setCookie(w http.ResponseWriter, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sweepPendingLocked(now time.Time) {
	for id, s := range m.pending {
		if now.Sub(s.CreatedAt) >= PendingTTL {
			delete(m.pending, id)
		}
	}
}

// maybeSweepLocked drops expired authenticated sessions at most once per
// sweepInterval.
func (m *Manager) maybeSweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for id, s := range m.sessions {
		if now.Sub(s.CreatedAt) >= m.ttl {
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) evictOldestPendingLocked() {
	var oldest *Session
	for _, s := range m.pending {
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.pending, oldest.ID)
	}
}
