package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore keeps settings and prefixes in two JSON files, each read and
// written in full. The files are shared with the bot process.
type JSONStore struct {
	settings *jsonFile
	prefixes *jsonFile
}

func NewJSONStore(settingsPath, prefixesPath string) *JSONStore {
	return &JSONStore{
		settings: &jsonFile{path: settingsPath},
		prefixes: &jsonFile{path: prefixesPath},
	}
}

func (s *JSONStore) LoadSettings(ctx context.Context) (map[string]GuildSettings, error) {
	settings := make(map[string]GuildSettings)
	if err := s.settings.load(&settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *JSONStore) SaveSettings(ctx context.Context, settings map[string]GuildSettings) error {
	return s.settings.save(settings)
}

func (s *JSONStore) LoadPrefixes(ctx context.Context) (map[string]string, error) {
	prefixes := make(map[string]string)
	if err := s.prefixes.load(&prefixes); err != nil {
		return nil, err
	}
	return prefixes, nil
}

func (s *JSONStore) SavePrefixes(ctx context.Context, prefixes map[string]string) error {
	return s.prefixes.save(prefixes)
}

func (s *JSONStore) Close() {}

type jsonFile struct {
	path string
	mu   sync.RWMutex
}

// load leaves data untouched when the file does not exist or is empty.
func (f *jsonFile) load(data any) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, data); err != nil {
		return fmt.Errorf("decode %s: %w", f.path, err)
	}
	return nil
}

func (f *jsonFile) save(data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
