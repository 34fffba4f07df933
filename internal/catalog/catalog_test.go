package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRecord() ProviderRecord {
	return ProviderRecord{
		Kind:    KindOpenAI,
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "sk-test",
		Model:   "gpt-4o",
	}
}

func TestProviderRecordValidate(t *testing.T) {
	assert.NoError(t, validRecord().Validate())

	rec := validRecord()
	rec.Kind = "cohere"
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec = validRecord()
	rec.BaseURL = "not-a-url"
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec = validRecord()
	rec.BaseURL = "ftp://example.com"
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec = validRecord()
	rec.Model = ""
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	// Empty API key is allowed for local Ollama-style endpoints.
	rec = validRecord()
	rec.APIKey = ""
	assert.NoError(t, rec.Validate())
}

func TestClaudeRequiresAPIVersion(t *testing.T) {
	rec := ProviderRecord{
		Kind:    KindClaude,
		BaseURL: "https://api.anthropic.com",
		APIKey:  "sk-ant",
		Model:   "claude-sonnet-4-20250514",
	}
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec.APIVersion = "2023-06-01"
	assert.NoError(t, rec.Validate())
}

func TestAppConfigValidate(t *testing.T) {
	cfg := AppConfig{
		Default:   "main",
		Providers: map[string]ProviderRecord{"main": validRecord()},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Default = "missing"
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)

	cfg = AppConfig{Default: "main"}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)

	cfg = AppConfig{Providers: map[string]ProviderRecord{"main": validRecord()}}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestCloneIsDeep(t *testing.T) {
	cfg := AppConfig{
		Default: "main",
		Providers: map[string]ProviderRecord{
			"main": {
				Kind:    KindOpenAI,
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o",
				Extra:   map[string]any{"organization": "org-1"},
			},
		},
		Extra: map[string]any{"theme": "dark"},
	}

	clone := cfg.Clone()
	clone.Providers["main"] = ProviderRecord{Kind: KindGemini}
	clone.Extra["theme"] = "light"

	assert.Equal(t, KindOpenAI, cfg.Providers["main"].Kind)
	assert.Equal(t, "dark", cfg.Extra["theme"])
	assert.Equal(t, "org-1", cfg.Providers["main"].Extra["organization"])
}

func TestActive(t *testing.T) {
	cfg := DefaultConfig()
	active, err := cfg.Active()
	assert.NoError(t, err)
	assert.Equal(t, "openai", active.Provider)
	assert.Equal(t, KindOpenAI, active.Kind)
	assert.Equal(t, "gpt-4o", active.Model)

	cfg.Default = "nope"
	_, err = cfg.Active()
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Providers, 3)
	assert.Equal(t, "2023-06-01", cfg.Providers["claude"].APIVersion)
}
