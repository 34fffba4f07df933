package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goversion "github.com/hashicorp/go-version"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// schemaMajor is the newest catalogue schema this build understands.
// Documents carrying a higher major are rejected rather than mangled.
const schemaMajor = 1

// Store owns the on-disk catalogue document. All reads and writes are
// serialized through one mutex; the document is small and a full rewrite
// per mutation is fine.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewStore creates a store over the given document path. An empty path
// selects the platform default under the user configuration directory.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigIO, err)
		}
		path = filepath.Join(base, "litreview", "config.toml")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigIO, err)
	}
	return &Store{path: abs, logger: logger}, nil
}

// Path returns the document's absolute path for display.
func (s *Store) Path() string {
	return s.path
}

// Load returns the catalogue. On first run, when no document exists, it
// seeds the default catalogue, writes it to disk, and returns it.
func (s *Store) Load() (AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.read()
	if errors.Is(err, ErrConfigMissing) {
		seed := DefaultConfig()
		if werr := s.write(seed); werr != nil {
			return AppConfig{}, werr
		}
		s.logger.Info("seeded default provider catalogue", zap.String("path", s.path))
		return seed, nil
	}
	if err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Save validates and atomically persists the catalogue.
func (s *Store) Save(cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cfg)
}

// SetDefault promotes the named provider to default.
func (s *Store) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := cfg.Providers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	cfg.Default = name
	return s.write(cfg)
}

var knownProviderKeys = map[string]bool{
	"type": true, "base_url": true, "api_key": true,
	"model": true, "context_window": true, "api_version": true,
}

var knownTopKeys = map[string]bool{
	"schema_version": true, "default": true, "providers": true,
}

func (s *Store) read() (AppConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return AppConfig{}, fmt.Errorf("%w: %s", ErrConfigMissing, s.path)
		}
		return AppConfig{}, fmt.Errorf("%w: %v", ErrConfigIO, err)
	}

	var cfg AppConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	if cfg.SchemaVersion != "" {
		v, err := goversion.NewVersion(cfg.SchemaVersion)
		if err != nil {
			return AppConfig{}, fmt.Errorf("%w: bad schema_version %q", ErrConfigInvalid, cfg.SchemaVersion)
		}
		if v.Segments()[0] > schemaMajor {
			return AppConfig{}, fmt.Errorf("%w: document schema %s is newer than this build supports", ErrConfigInvalid, cfg.SchemaVersion)
		}
	}

	// Decode a second time into a raw tree to pick up keys the typed
	// struct doesn't know about, so they survive the next save.
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err == nil {
		for k, v := range raw {
			if !knownTopKeys[k] {
				if cfg.Extra == nil {
					cfg.Extra = make(map[string]any)
				}
				cfg.Extra[k] = v
			}
		}
		if rawProviders, ok := raw["providers"].(map[string]any); ok {
			for name, rawRec := range rawProviders {
				recMap, ok := rawRec.(map[string]any)
				if !ok {
					continue
				}
				rec, ok := cfg.Providers[name]
				if !ok {
					continue
				}
				for k, v := range recMap {
					if !knownProviderKeys[k] {
						if rec.Extra == nil {
							rec.Extra = make(map[string]any)
						}
						rec.Extra[k] = v
					}
				}
				cfg.Providers[name] = rec
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// write marshals the catalogue, merging preserved unknown keys back into
// the document, and replaces the file with a write-rename.
func (s *Store) write(cfg AppConfig) error {
	doc := make(map[string]any, len(cfg.Extra)+3)
	for k, v := range cfg.Extra {
		doc[k] = v
	}
	if cfg.SchemaVersion != "" {
		doc["schema_version"] = cfg.SchemaVersion
	}
	doc["default"] = cfg.Default

	providers := make(map[string]any, len(cfg.Providers))
	for name, rec := range cfg.Providers {
		entry := make(map[string]any, len(rec.Extra)+6)
		for k, v := range rec.Extra {
			entry[k] = v
		}
		entry["type"] = string(rec.Kind)
		entry["base_url"] = rec.BaseURL
		entry["api_key"] = rec.APIKey
		entry["model"] = rec.Model
		if rec.ContextWindow != 0 {
			entry["context_window"] = rec.ContextWindow
		}
		if rec.APIVersion != "" {
			entry["api_version"] = rec.APIVersion
		}
		providers[name] = entry
	}
	doc["providers"] = providers

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrConfigIO, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrConfigIO, err)
	}
	// The document carries API keys verbatim, keep it private.
	_ = os.Chmod(tmpName, 0o600)
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrConfigIO, err)
	}
	return nil
}
