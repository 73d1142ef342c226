package session

import (
	"context"
	"net/http"
	"strings"

	"guild-panel/internal/apperr"
	"guild-panel/internal/config"

	"golang.org/x/oauth2"
)

var scopes = []string{"identify", "guilds"}

// OAuth wraps the authorization-code flow against the configured provider.
// Refresh tokens are ignored.
type OAuth struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

func NewOAuth(discord config.DiscordConfig, httpClient *http.Client) *OAuth {
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     discord.ClientID,
			ClientSecret: discord.ClientSecret,
			RedirectURL:  discord.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   discord.AuthorizeURL,
				TokenURL:  strings.TrimRight(discord.APIURL, "/") + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

// Exchange trades code for an access token. Every failure, including a
// token response without access_token, is an auth error.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", apperr.Auth("Missing authorization code", nil)
	}
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	token, err := o.cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("scope", strings.Join(scopes, " ")))
	if err != nil {
		return "", apperr.Auth("Failed to get access token", err)
	}
	if token.AccessToken == "" {
		return "", apperr.Auth("Failed to get access token", nil)
	}
	return token.AccessToken, nil
}
