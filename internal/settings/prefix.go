package settings

import (
	"context"
	"fmt"

	"guild-panel/internal/apperr"
	"guild-panel/internal/storage"

	"go.uber.org/zap"
)

// PrefixUpdater stores command prefixes verbatim. A submission equal to the
// stored value is still written.
type PrefixUpdater struct {
	store  storage.Store
	logger *zap.Logger
}

func NewPrefixUpdater(store storage.Store, logger *zap.Logger) *PrefixUpdater {
	return &PrefixUpdater{store: store, logger: logger}
}

func (p *PrefixUpdater) SetPrefix(ctx context.Context, guildID, prefix string) error {
	if prefix == "" {
		return apperr.Validation("Prefix is required")
	}
	prefixes, err := p.store.LoadPrefixes(ctx)
	if err != nil {
		return apperr.Internal(fmt.Errorf("load prefixes: %w", err))
	}
	if prefixes == nil {
		prefixes = make(map[string]string)
	}
	prefixes[guildID] = prefix
	if err := p.store.SavePrefixes(ctx, prefixes); err != nil {
		return apperr.Internal(fmt.Errorf("save prefixes: %w", err))
	}
	p.logger.Info("prefix updated", zap.String("guild_id", guildID), zap.String("prefix", prefix))
	return nil
}

func (p *PrefixUpdater) Prefix(ctx context.Context, guildID string) (string, error) {
	prefix, err := storage.GetPrefix(ctx, p.store, guildID)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("load prefixes: %w", err))
	}
	return prefix, nil
}
