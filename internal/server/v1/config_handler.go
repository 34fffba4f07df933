package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/server/validator"
	"github.com/bahayonghang/LitReview/internal/stream"
	"github.com/bahayonghang/LitReview/pkg/api"
)

type ConfigHandler struct {
	dispatcher *stream.Dispatcher
}

func NewConfigHandler(dispatcher *stream.Dispatcher) *ConfigHandler {
	return &ConfigHandler{dispatcher: dispatcher}
}

// Get returns the full provider catalogue, seeding the default document on
// first run.
//
// GET /api/v1/config
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.dispatcher.LoadConfig()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Save replaces the catalogue. Unknown keys a hand-edited document carries
// are invisible to the UI's JSON, so they are grafted back from the current
// document before writing.
//
// PUT /api/v1/config
func (h *ConfigHandler) Save(c *gin.Context) {
	var cfg catalog.AppConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validator.Parse(err)})
		return
	}

	if current, err := h.dispatcher.LoadConfig(); err == nil {
		if cfg.Extra == nil {
			cfg.Extra = current.Extra
		}
		for name, rec := range cfg.Providers {
			if rec.Extra == nil {
				if prev, ok := current.Providers[name]; ok {
					rec.Extra = prev.Extra
					cfg.Providers[name] = rec
				}
			}
		}
	}

	if err := h.dispatcher.SaveConfig(cfg); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDefault promotes a provider to default.
//
// PUT /api/v1/config/default
func (h *ConfigHandler) SetDefault(c *gin.Context) {
	var req api.SetDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validator.Parse(err)})
		return
	}

	if err := h.dispatcher.SetDefaultProvider(req.ProviderName); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Path reports where the catalogue document lives, for display.
//
// GET /api/v1/config/path
func (h *ConfigHandler) Path(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"path": h.dispatcher.ConfigPath()})
}

// Active flattens the default provider into one record.
//
// GET /api/v1/config/active
func (h *ConfigHandler) Active(c *gin.Context) {
	active, err := h.dispatcher.ActiveConfig()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, active)
}
