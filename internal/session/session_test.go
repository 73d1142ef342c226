package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"guild-panel/internal/apperr"
	"guild-panel/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func testDiscordConfig(apiURL string) config.DiscordConfig {
	return config.DiscordConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:8000/auth",
		APIURL:       apiURL,
		AuthorizeURL: "https://discord.com/oauth2/authorize",
	}
}

func TestAuthCodeURL(t *testing.T) {
	oauth := NewOAuth(testDiscordConfig("https://discord.com/api/v10"), nil)

	parsed, err := url.Parse(oauth.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "discord.com", parsed.Host)
	assert.Equal(t, "/oauth2/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "client", query.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/auth", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "identify guilds", query.Get("scope"))
	assert.Equal(t, "state-1", query.Get("state"))
}

func TestExchangeSendsCredentialsInForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		assert.Equal(t, "http://localhost:8000/auth", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "identify guilds", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":604800,"refresh_token":"r"}`)
	}))
	defer server.Close()

	oauth := NewOAuth(testDiscordConfig(server.URL), server.Client())
	token, err := oauth.Exchange(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestExchangeFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{name: "rejected code", status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`, code: "bad"},
		{name: "missing token", status: http.StatusOK, body: `{"token_type":"Bearer"}`, code: "abc"},
		{name: "empty code", status: http.StatusOK, body: `{"access_token":"tok"}`, code: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer server.Close()

			oauth := NewOAuth(testDiscordConfig(server.URL), server.Client())
			_, err := oauth.Exchange(context.Background(), tc.code)
			require.Error(t, err)
			assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
		})
	}
}

func newTestManager() (*Manager, *fakeClock) {
	manager := NewManager(config.SessionConfig{CookieName: "session", TTLHours: 1}, zap.NewNop())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	manager.WithClock(clock)
	return manager, clock
}

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

func TestManagerLifecycle(t *testing.T) {
	manager, _ := newTestManager()

	begin := httptest.NewRecorder()
	pending := manager.Begin(begin, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.NotEmpty(t, pending.State)
	assert.False(t, pending.Authenticated())

	cookies := begin.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 600, cookies[0].MaxAge)

	found, ok := manager.Lookup(requestWithCookies(begin))
	require.True(t, ok)
	assert.Equal(t, pending.State, found.State)

	established := httptest.NewRecorder()
	session := manager.Establish(established, requestWithCookies(begin), "token")
	assert.True(t, session.Authenticated())
	assert.NotEqual(t, pending.ID, session.ID)
	assert.Equal(t, 3600, established.Result().Cookies()[0].MaxAge)

	_, ok = manager.Lookup(requestWithCookies(begin))
	assert.False(t, ok, "pre-login id must not survive")

	current, ok := manager.Lookup(requestWithCookies(established))
	require.True(t, ok)
	assert.Equal(t, "token", current.AccessToken)

	logout := httptest.NewRecorder()
	manager.Destroy(logout, requestWithCookies(established))
	_, ok = manager.Lookup(requestWithCookies(established))
	assert.False(t, ok)
	assert.Equal(t, 0, manager.Len())
}

func TestManagerExpiry(t *testing.T) {
	manager, clock := newTestManager()

	rec := httptest.NewRecorder()
	manager.Establish(rec, httptest.NewRequest(http.MethodGet, "/auth", nil), "token")

	clock.now = clock.now.Add(59 * time.Minute)
	_, ok := manager.Lookup(requestWithCookies(rec))
	assert.True(t, ok)

	clock.now = clock.now.Add(2 * time.Minute)
	_, ok = manager.Lookup(requestWithCookies(rec))
	assert.False(t, ok)
	assert.Equal(t, 0, manager.Len())
}

func TestLookupWithoutCookie(t *testing.T) {
	manager, _ := newTestManager()
	_, ok := manager.Lookup(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "forged"})
	_, ok = manager.Lookup(req)
	assert.False(t, ok)
}

func TestPendingLoginExpiresQuickly(t *testing.T) {
	manager, clock := newTestManager()

	rec := httptest.NewRecorder()
	manager.Begin(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	clock.now = clock.now.Add(PendingTTL - time.Second)
	_, ok := manager.Lookup(requestWithCookies(rec))
	assert.True(t, ok)

	clock.now = clock.now.Add(time.Second)
	_, ok = manager.Lookup(requestWithCookies(rec))
	assert.False(t, ok)
	assert.Equal(t, 0, manager.Len())
}

func TestPendingLoginsAreCapped(t *testing.T) {
	manager, clock := newTestManager()

	first := httptest.NewRecorder()
	manager.Begin(first, httptest.NewRequest(http.MethodGet, "/login", nil))
	authed := httptest.NewRecorder()
	manager.Establish(authed, httptest.NewRequest(http.MethodGet, "/auth", nil), "token")

	for i := 0; i < MaxPending+500; i++ {
		clock.now = clock.now.Add(time.Millisecond)
		manager.Begin(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	}

	assert.Equal(t, MaxPending+1, manager.Len())
	_, ok := manager.Lookup(requestWithCookies(first))
	assert.False(t, ok, "oldest pending login is evicted first")
	_, ok = manager.Lookup(requestWithCookies(authed))
	assert.True(t, ok, "authenticated sessions are never evicted by the cap")
}

func TestExpiredPendingSweptOnBegin(t *testing.T) {
	manager, clock := newTestManager()
	for i := 0; i < 10; i++ {
		manager.Begin(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	}
	clock.now = clock.now.Add(PendingTTL)
	manager.Begin(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, 1, manager.Len())
}
