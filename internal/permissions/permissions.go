package permissions

import (
	"context"
	"slices"

	"guild-panel/internal/apperr"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// GuildSummary is the dashboard view of a guild the user administers.
type GuildSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// IsAdministrator reports whether guildID is in userGuilds with the
// administrator bit (0x8) set.
func IsAdministrator(userGuilds []*discordgo.UserGuild, guildID string) bool {
	for _, guild := range userGuilds {
		if guild == nil || guild.ID != guildID {
			continue
		}
		return hasAdmin(guild)
	}
	return false
}

// IsManaged reports whether the bot is a member of guildID. It is used for
// display bucketing only, never for authorization.
func IsManaged(guildID string, botGuildIDs []string) bool {
	return slices.Contains(botGuildIDs, guildID)
}

// Partition splits the guilds the user administers into those the bot
// already joined and those it did not, keeping the user's order.
func Partition(userGuilds []*discordgo.UserGuild, botGuildIDs []string) (managed, unmanaged []GuildSummary) {
	managed = []GuildSummary{}
	unmanaged = []GuildSummary{}
	bot := make(map[string]struct{}, len(botGuildIDs))
	for _, id := range botGuildIDs {
		bot[id] = struct{}{}
	}
	for _, guild := range userGuilds {
		if guild == nil || !hasAdmin(guild) {
			continue
		}
		summary := GuildSummary{ID: guild.ID, Name: guild.Name, Icon: guild.Icon}
		if _, ok := bot[guild.ID]; ok {
			managed = append(managed, summary)
		} else {
			unmanaged = append(unmanaged, summary)
		}
	}
	return managed, unmanaged
}

func hasAdmin(guild *discordgo.UserGuild) bool {
	return guild.Permissions&discordgo.PermissionAdministrator != 0
}

type GuildLister interface {
	FetchUserGuilds(ctx context.Context, accessToken string) ([]*discordgo.UserGuild, error)
}

// Guard checks administrator rights against the live guild list on every
// call; nothing is cached between requests.
type Guard struct {
	guilds GuildLister
	logger *zap.Logger
}

func NewGuard(guilds GuildLister, logger *zap.Logger) *Guard {
	return &Guard{guilds: guilds, logger: logger}
}

func (g *Guard) RequireAdministrator(ctx context.Context, accessToken, guildID string) error {
	userGuilds, err := g.guilds.FetchUserGuilds(ctx, accessToken)
	if err != nil {
		return err
	}
	if !IsAdministrator(userGuilds, guildID) {
		g.logger.Warn("administrator check failed", zap.String("guild_id", guildID))
		return apperr.Forbidden("You are not an administrator of this guild")
	}
	return nil
}
