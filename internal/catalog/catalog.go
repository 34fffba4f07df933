package catalog

import (
	"errors"
	"fmt"
	"net/url"
)

// Kind is the wire-protocol family of a provider. DeepSeek, Moonshot,
// Ollama and other OpenAI-clone endpoints are KindOpenAI with a different
// base_url and model; they are not distinct kinds.
type Kind string

const (
	KindOpenAI Kind = "openai"
	KindClaude Kind = "claude"
	KindGemini Kind = "gemini"
)

// Valid reports whether k is one of the closed set of families.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAI, KindClaude, KindGemini:
		return true
	}
	return false
}

var (
	// ErrConfigMissing means no catalogue document exists on disk.
	ErrConfigMissing = errors.New("config document does not exist")
	// ErrConfigInvalid means the catalogue violates its invariants.
	ErrConfigInvalid = errors.New("config invalid")
	// ErrConfigIO wraps filesystem failures while reading or writing.
	ErrConfigIO = errors.New("config io error")
	// ErrInvalidRecord means a provider record handed to the dispatcher
	// failed validation before any network I/O.
	ErrInvalidRecord = errors.New("invalid provider config")
	// ErrUnknownProvider means a named provider is not in the catalogue.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderRecord is one entry in the catalogue. The on-disk and JSON field
// for Kind is "type" for compatibility with existing documents; the Go name
// is the internal choice.
type ProviderRecord struct {
	Kind          Kind   `toml:"type" json:"type"`
	BaseURL       string `toml:"base_url" json:"base_url"`
	APIKey        string `toml:"api_key" json:"api_key"`
	Model         string `toml:"model" json:"model"`
	ContextWindow int    `toml:"context_window,omitempty" json:"context_window,omitempty"`
	APIVersion    string `toml:"api_version,omitempty" json:"api_version,omitempty"`

	// Extra preserves unknown per-provider keys across a load/save cycle.
	Extra map[string]any `toml:"-" json:"-"`
}

// Validate checks the record's standalone invariants: an absolute
// HTTP/HTTPS base URL, a known kind, a model, and for Claude a non-empty
// api_version. An empty api_key is fine (Ollama-style local endpoints).
func (r ProviderRecord) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unsupported provider type %q", ErrInvalidRecord, string(r.Kind))
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base_url %q is not an absolute http(s) URL", ErrInvalidRecord, r.BaseURL)
	}
	if r.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRecord)
	}
	if r.Kind == KindClaude && r.APIVersion == "" {
		return fmt.Errorf("%w: claude providers require api_version", ErrInvalidRecord)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r ProviderRecord) Clone() ProviderRecord {
	out := r
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// AppConfig is the catalogue: a default provider name plus the named
// provider records.
type AppConfig struct {
	SchemaVersion string                    `toml:"schema_version,omitempty" json:"schema_version,omitempty"`
	Default       string                    `toml:"default" json:"default"`
	Providers     map[string]ProviderRecord `toml:"providers" json:"providers"`

	// Extra preserves unknown top-level keys across a load/save cycle.
	Extra map[string]any `toml:"-" json:"-"`
}

// Validate checks the catalogue invariants of the configuration surface.
func (c AppConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("%w: providers table is empty", ErrConfigInvalid)
	}
	if c.Default == "" {
		return fmt.Errorf("%w: default provider is not set", ErrConfigInvalid)
	}
	if _, ok := c.Providers[c.Default]; !ok {
		return fmt.Errorf("%w: default %q is not a configured provider", ErrConfigInvalid, c.Default)
	}
	for name, rec := range c.Providers {
		if name == "" {
			return fmt.Errorf("%w: provider names must be non-empty", ErrConfigInvalid)
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: provider %q: %v", ErrConfigInvalid, name, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the catalogue, including the provider
// records and both levels of Extra keys.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Providers = make(map[string]ProviderRecord, len(c.Providers))
	for name, rec := range c.Providers {
		out.Providers[name] = rec.Clone()
	}
	if c.Extra != nil {
		out.Extra = make(map[string]any, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ActiveRecord resolves the default provider into a flattened record for
// the UI, keeping the catalogue key as the display name.
type ActiveRecord struct {
	Provider string `json:"provider"`
	ProviderRecord
}

// Active returns the default provider's record.
func (c AppConfig) Active() (ActiveRecord, error) {
	rec, ok := c.Providers[c.Default]
	if !ok {
		return ActiveRecord{}, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Default)
	}
	return ActiveRecord{Provider: c.Default, ProviderRecord: rec.Clone()}, nil
}

// DefaultConfig seeds the catalogue a fresh installation starts with.
func DefaultConfig() AppConfig {
	return AppConfig{
		Default: "openai",
		Providers: map[string]ProviderRecord{
			"openai": {
				Kind:          KindOpenAI,
				BaseURL:       "https://api.openai.com/v1",
				Model:         "gpt-4o",
				ContextWindow: 128000,
			},
			"claude": {
				Kind:          KindClaude,
				BaseURL:       "https://api.anthropic.com",
				Model:         "claude-sonnet-4-20250514",
				ContextWindow: 200000,
				APIVersion:    "2023-06-01",
			},
			"gemini": {
				Kind:          KindGemini,
				BaseURL:       "https://generativelanguage.googleapis.com",
				Model:         "gemini-1.5-flash",
				ContextWindow: 1000000,
			},
		},
	}
}
