package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/server/validator"
	"github.com/bahayonghang/LitReview/internal/stream"
	"github.com/bahayonghang/LitReview/pkg/api"
)

// testConnectionTimeout bounds the whole connection probe; streams proper
// have no such ceiling.
const testConnectionTimeout = 30 * time.Second

type StreamHandler struct {
	dispatcher *stream.Dispatcher
}

func NewStreamHandler(dispatcher *stream.Dispatcher) *StreamHandler {
	return &StreamHandler{dispatcher: dispatcher}
}

// Start begins a streaming generation and returns the stream id at once;
// deltas arrive on the event channel.
//
// POST /api/v1/streams
func (h *StreamHandler) Start(c *gin.Context) {
	var req api.StartStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validator.Parse(err)})
		return
	}

	record := catalog.ProviderRecord{
		Kind:       catalog.Kind(req.ProviderType),
		BaseURL:    req.BaseURL,
		APIKey:     req.APIKey,
		Model:      req.Model,
		APIVersion: req.APIVersion,
	}
	prompts := api.PromptPair{User: req.Prompt, System: req.SystemPrompt}

	streamID, err := h.dispatcher.StartStream(record, prompts)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, api.StartStreamResponse{StreamID: streamID})
}

// Cancel tears a stream down. Idempotent; cancelling an unknown or already
// finished stream succeeds quietly.
//
// DELETE /api/v1/streams/:id
func (h *StreamHandler) Cancel(c *gin.Context) {
	h.dispatcher.CancelStream(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// Test probes a provider configuration end to end without touching the
// event channel.
//
// POST /api/v1/connection-test
func (h *StreamHandler) Test(c *gin.Context) {
	var req api.ConnectionTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validator.Parse(err)})
		return
	}

	record := catalog.ProviderRecord{
		Kind:       catalog.Kind(req.ProviderType),
		BaseURL:    req.BaseURL,
		APIKey:     req.APIKey,
		Model:      req.Model,
		APIVersion: req.APIVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), testConnectionTimeout)
	defer cancel()

	if err := h.dispatcher.TestConnection(ctx, record); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
