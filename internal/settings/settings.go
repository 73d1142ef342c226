package settings

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"guild-panel/internal/apperr"
	"guild-panel/internal/audit"
	"guild-panel/internal/storage"
	"guild-panel/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type AdminGuard interface {
	RequireAdministrator(ctx context.Context, accessToken, guildID string) error
}

type ChannelLister interface {
	FetchGuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
}

type Auditor interface {
	Notify(entry audit.Entry) bool
}

// Actor is the authenticated user submitting a change.
type Actor struct {
	UserID      string
	AccessToken string
}

// Form carries the raw submitted values. Empty channel fields leave the
// stored channel untouched; the id lists are comma separated.
type Form struct {
	ModChannelID    string
	SystemChannelID string
	AdminIDs        string
	ModIDs          string
}

type Result struct {
	Changed     bool
	Description string
}

type Synchronizer struct {
	store    storage.Store
	guard    AdminGuard
	channels ChannelLister
	auditor  Auditor
	logger   *zap.Logger
	now      func() time.Time
}

func NewSynchronizer(store storage.Store, guard AdminGuard, channels ChannelLister, auditor Auditor, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:    store,
		guard:    guard,
		channels: channels,
		auditor:  auditor,
		logger:   logger,
		now:      time.Now,
	}
}

// Apply diffs form against the guild's stored record. Changed fields are
// written back in one save of the whole mapping and announced as a single
// audit entry. An identical submission writes nothing.
func (s *Synchronizer) Apply(ctx context.Context, guildID string, actor Actor, form Form) (Result, error) {
	if err := s.guard.RequireAdministrator(ctx, actor.AccessToken, guildID); err != nil {
		return Result{}, err
	}

	modChannel := strings.TrimSpace(form.ModChannelID)
	systemChannel := strings.TrimSpace(form.SystemChannelID)
	modChannelID, systemChannelID, err := s.validateChannels(ctx, guildID, modChannel, systemChannel)
	if err != nil {
		return Result{}, err
	}

	adminIDs := utils.ParseIDList(form.AdminIDs)
	modIDs := utils.ParseIDList(form.ModIDs)

	all, err := s.store.LoadSettings(ctx)
	if err != nil {
		return Result{}, apperr.Internal(fmt.Errorf("load settings: %w", err))
	}
	record, ok := all[guildID]
	if !ok {
		record = storage.DefaultGuildSettings()
	}

	var changes []string
	if modChannelID != nil && !sameID(record.ModChannelID, *modChannelID) {
		record.ModChannelID = modChannelID
		changes = append(changes, "Канал логов изменен на <#"+modChannel+">")
	}
	if systemChannelID != nil && !sameID(record.SystemChannelID, *systemChannelID) {
		record.SystemChannelID = systemChannelID
		changes = append(changes, "Системный канал изменен на <#"+systemChannel+">")
	}
	if !slices.Equal(adminIDs, record.Administrators) {
		record.Administrators = adminIDs
		changes = append(changes, "Список администраторов обновлен: "+mentions(adminIDs))
	}
	if !slices.Equal(modIDs, record.Moderators) {
		record.Moderators = modIDs
		changes = append(changes, "Список модераторов обновлен: "+mentions(modIDs))
	}

	if len(changes) == 0 {
		s.logger.Debug("settings unchanged", zap.String("guild_id", guildID))
		return Result{}, nil
	}

	all[guildID] = record
	if err := s.store.SaveSettings(ctx, all); err != nil {
		return Result{}, apperr.Internal(fmt.Errorf("save settings: %w", err))
	}

	description := strings.Join(changes, "\n")
	s.logger.Info("settings updated",
		zap.String("guild_id", guildID),
		zap.String("user_id", actor.UserID),
		zap.Int("changes", len(changes)),
	)

	entry := audit.Entry{
		GuildID:   guildID,
		UserID:    actor.UserID,
		Action:    description,
		CreatedAt: s.now(),
	}
	if record.ModChannelID != nil {
		entry.ChannelID = strconv.FormatInt(*record.ModChannelID, 10)
	}
	s.auditor.Notify(entry)

	return Result{Changed: true, Description: description}, nil
}

// validateChannels checks the supplied channel ids against the guild's
// text channels, fetched at most once.
func (s *Synchronizer) validateChannels(ctx context.Context, guildID, modChannel, systemChannel string) (*int64, *int64, error) {
	if modChannel == "" && systemChannel == "" {
		return nil, nil, nil
	}
	channels, err := s.channels.FetchGuildChannels(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[string]struct{}, len(channels))
	for _, channel := range channels {
		if channel != nil {
			known[channel.ID] = struct{}{}
		}
	}

	var modID, systemID *int64
	if modChannel != "" {
		id, ok := lookupChannel(known, modChannel)
		if !ok {
			return nil, nil, apperr.Validation("Invalid mod channel ID")
		}
		modID = &id
	}
	if systemChannel != "" {
		id, ok := lookupChannel(known, systemChannel)
		if !ok {
			return nil, nil, apperr.Validation("Invalid system channel ID")
		}
		systemID = &id
	}
	return modID, systemID, nil
}

func lookupChannel(known map[string]struct{}, channelID string) (int64, bool) {
	if _, ok := known[channelID]; !ok || !utils.IsNumeric(channelID) {
		return 0, false
	}
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func sameID(current *int64, next int64) bool {
	return current != nil && *current == next
}

func mentions(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, ", ")
}
