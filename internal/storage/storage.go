package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"slices"
)

// DefaultPrefix is the command prefix of a guild with no stored prefix.
const DefaultPrefix = "r!"

// Store persists the two guild mappings. Both are read and written whole;
// there is no per-guild update and no locking across a load/save pair, so
// concurrent read-modify-write cycles are last-writer-wins.
type Store interface {
	LoadSettings(ctx context.Context) (map[string]GuildSettings, error)
	SaveSettings(ctx context.Context, settings map[string]GuildSettings) error
	LoadPrefixes(ctx context.Context) (map[string]string, error)
	SavePrefixes(ctx context.Context, prefixes map[string]string) error
	Close()
}

type GuildSettings struct {
	Administrators  []string          `json:"administrators"`
	Moderators      []string          `json:"moderators"`
	ModChannelID    *int64            `json:"mod_channel_id"`
	SystemChannelID *int64            `json:"system_channel_id"`
	EmbedMessageID  *int64            `json:"embed_message_id"`
	WarningTypes    []string          `json:"warning_types"`
	WarningLimits   map[string]int    `json:"warning_limits"`
	Warnings        []json.RawMessage `json:"warnings"`

	// Extra keeps keys written by the bot that the panel does not manage.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = []string{
	"administrators",
	"moderators",
	"mod_channel_id",
	"system_channel_id",
	"embed_message_id",
	"warning_types",
	"warning_limits",
	"warnings",
}

func DefaultGuildSettings() GuildSettings {
	return GuildSettings{
		Administrators: []string{},
		Moderators:     []string{},
		WarningTypes:   []string{},
		WarningLimits:  map[string]int{},
		Warnings:       []json.RawMessage{},
	}
}

func (s *GuildSettings) normalize() {
	if s.Administrators == nil {
		s.Administrators = []string{}
	}
	if s.Moderators == nil {
		s.Moderators = []string{}
	}
	if s.WarningTypes == nil {
		s.WarningTypes = []string{}
	}
	if s.WarningLimits == nil {
		s.WarningLimits = map[string]int{}
	}
	if s.Warnings == nil {
		s.Warnings = []json.RawMessage{}
	}
}

func (s GuildSettings) Clone() GuildSettings {
	out := GuildSettings{
		Administrators:  slices.Clone(s.Administrators),
		Moderators:      slices.Clone(s.Moderators),
		ModChannelID:    cloneID(s.ModChannelID),
		SystemChannelID: cloneID(s.SystemChannelID),
		EmbedMessageID:  cloneID(s.EmbedMessageID),
		WarningTypes:    slices.Clone(s.WarningTypes),
		WarningLimits:   maps.Clone(s.WarningLimits),
		Extra:           maps.Clone(s.Extra),
	}
	if s.Warnings != nil {
		out.Warnings = make([]json.RawMessage, len(s.Warnings))
		for i, w := range s.Warnings {
			out.Warnings[i] = slices.Clone(w)
		}
	}
	out.normalize()
	return out
}

func (s *GuildSettings) UnmarshalJSON(data []byte) error {
	type plain GuildSettings
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range knownKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		decoded.Extra = raw
	}
	*s = GuildSettings(decoded)
	s.normalize()
	return nil
}

func (s GuildSettings) MarshalJSON() ([]byte, error) {
	type plain GuildSettings
	s.normalize()
	data, err := marshalUnescaped(plain(s))
	if err != nil || len(s.Extra) == 0 {
		return data, err
	}
	merged := make(map[string]json.RawMessage, len(knownKeys)+len(s.Extra))
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range s.Extra {
		if _, known := merged[key]; !known {
			merged[key] = value
		}
	}
	return marshalUnescaped(merged)
}

// marshalUnescaped keeps mentions such as <@123> readable in the file.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// GetGuildSettings returns the stored record for guildID, or the default
// record when the guild has none.
func GetGuildSettings(ctx context.Context, store Store, guildID string) (GuildSettings, error) {
	all, err := store.LoadSettings(ctx)
	if err != nil {
		return GuildSettings{}, err
	}
	settings, ok := all[guildID]
	if !ok {
		return DefaultGuildSettings(), nil
	}
	return settings, nil
}

func GetPrefix(ctx context.Context, store Store, guildID string) (string, error) {
	prefixes, err := store.LoadPrefixes(ctx)
	if err != nil {
		return "", err
	}
	if prefix, ok := prefixes[guildID]; ok {
		return prefix, nil
	}
	return DefaultPrefix, nil
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
