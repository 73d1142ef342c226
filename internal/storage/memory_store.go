package storage

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is a process-local Store. It counts saves so callers can
// assert that a no-op update never reached persistence.
type MemoryStore struct {
	mu             sync.Mutex
	settings       map[string]GuildSettings
	prefixes       map[string]string
	settingsWrites int
	prefixWrites   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]GuildSettings),
		prefixes: make(map[string]string),
	}
}

func (s *MemoryStore) LoadSettings(ctx context.Context) (map[string]GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSettings(s.settings), nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, settings map[string]GuildSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = cloneSettings(settings)
	s.settingsWrites++
	return nil
}

func (s *MemoryStore) LoadPrefixes(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.prefixes), nil
}

func (s *MemoryStore) SavePrefixes(ctx context.Context, prefixes map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes = maps.Clone(prefixes)
	if s.prefixes == nil {
		s.prefixes = make(map[string]string)
	}
	s.prefixWrites++
	return nil
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) SettingsWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsWrites
}

func (s *MemoryStore) PrefixWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefixWrites
}

func cloneSettings(in map[string]GuildSettings) map[string]GuildSettings {
	out := make(map[string]GuildSettings, len(in))
	for id, settings := range in {
		out[id] = settings.Clone()
	}
	return out
}
