package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"guild-panel/internal/apperr"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Client issues single-attempt REST calls against the configured API base
// URL. Bot-token calls use the "Bot" scheme, user calls the OAuth "Bearer"
// scheme.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, botToken string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		botToken:   botToken,
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchUserInfo returns nil without error when the token is rejected, so
// callers can send the user back to login.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (*discordgo.User, error) {
	var user discordgo.User
	status, err := c.get(ctx, "/users/@me", bearer(accessToken), &user)
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch user info", err)
	}
	if status != http.StatusOK {
		c.logger.Debug("user info rejected", zap.Int("status", status))
		return nil, nil
	}
	return &user, nil
}

func (c *Client) FetchUserGuilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error) {
	var guilds []*discordgo.UserGuild
	status, err := c.get(ctx, "/users/@me/guilds", bearer(accessToken), &guilds)
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch user guilds", err)
	}
	if status != http.StatusOK {
		return nil, apperr.Upstream("Failed to fetch user guilds", fmt.Errorf("status %d", status))
	}
	return guilds, nil
}

// FetchBotGuilds returns the ids of the guilds the bot is a member of.
func (c *Client) FetchBotGuilds(ctx context.Context) ([]string, error) {
	var guilds []*discordgo.UserGuild
	status, err := c.get(ctx, "/users/@me/guilds", c.bot(), &guilds)
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch bot guilds", err)
	}
	if status != http.StatusOK {
		return nil, apperr.Upstream("Failed to fetch bot guilds", fmt.Errorf("status %d", status))
	}
	ids := make([]string, 0, len(guilds))
	for _, guild := range guilds {
		if guild != nil {
			ids = append(ids, guild.ID)
		}
	}
	return ids, nil
}

// FetchGuildChannels returns the guild's text channels only.
func (c *Client) FetchGuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	var channels []*discordgo.Channel
	status, err := c.get(ctx, "/guilds/"+guildID+"/channels", c.bot(), &channels)
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch guild channels", err)
	}
	if status != http.StatusOK {
		return nil, apperr.Upstream("Failed to fetch guild channels", fmt.Errorf("status %d", status))
	}
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel != nil && channel.Type == discordgo.ChannelTypeGuildText {
			text = append(text, channel)
		}
	}
	return text, nil
}

type messagePayload struct {
	Embeds []*discordgo.MessageEmbed `json:"embeds"`
}

func (c *Client) PostAuditMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	body, err := json.Marshal(messagePayload{Embeds: []*discordgo.MessageEmbed{embed}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/channels/"+channelID+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.bot())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post message to %s: status %d: %s", channelID, resp.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// get decodes the body into out only on 200 and returns the status code.
func (c *Client) get(ctx context.Context, path, authorization string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) bot() string {
	return "Bot " + c.botToken
}

func bearer(token string) string {
	return "Bearer " + token
}
