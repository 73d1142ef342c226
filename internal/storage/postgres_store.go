package storage

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps one JSONB document per guild. Saves replace the whole
// mapping inside a transaction, matching the file backend's semantics.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *PostgresStore) LoadSettings(ctx context.Context) (map[string]GuildSettings, error) {
	rows, err := s.pool.Query(ctx, `SELECT guild_id, data FROM guild_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guild settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]GuildSettings)
	for rows.Next() {
		var guildID string
		var data []byte
		if err := rows.Scan(&guildID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan guild settings: %w", err)
		}
		var record GuildSettings
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode settings for guild %s: %w", guildID, err)
		}
		settings[guildID] = record
	}
	return settings, rows.Err()
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings map[string]GuildSettings) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(settings))
		for guildID, record := range settings {
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to encode settings for guild %s: %w", guildID, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO guild_settings (guild_id, data, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (guild_id) DO UPDATE SET
					data = excluded.data,
					updated_at = excluded.updated_at
			`, guildID, data); err != nil {
				return fmt.Errorf("failed to upsert settings for guild %s: %w", guildID, err)
			}
			ids = append(ids, guildID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM guild_settings WHERE NOT (guild_id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("failed to prune guild settings: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) LoadPrefixes(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT guild_id, prefix FROM guild_prefixes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prefixes: %w", err)
	}
	defer rows.Close()

	prefixes := make(map[string]string)
	for rows.Next() {
		var guildID, prefix string
		if err := rows.Scan(&guildID, &prefix); err != nil {
			return nil, fmt.Errorf("failed to scan prefix: %w", err)
		}
		prefixes[guildID] = prefix
	}
	return prefixes, rows.Err()
}

func (s *PostgresStore) SavePrefixes(ctx context.Context, prefixes map[string]string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(prefixes))
		for guildID, prefix := range prefixes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO guild_prefixes (guild_id, prefix, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (guild_id) DO UPDATE SET
					prefix = excluded.prefix,
					updated_at = excluded.updated_at
			`, guildID, prefix); err != nil {
				return fmt.Errorf("failed to upsert prefix for guild %s: %w", guildID, err)
			}
			ids = append(ids, guildID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM guild_prefixes WHERE NOT (guild_id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("failed to prune prefixes: %w", err)
		}
		return nil
	})
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "already exists")
}
