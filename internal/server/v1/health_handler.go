package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bahayonghang/LitReview/internal/stream"
)

type HealthHandler struct {
	startTime  time.Time
	dispatcher *stream.Dispatcher
}

func NewHealthHandler(dispatcher *stream.Dispatcher) *HealthHandler {
	return &HealthHandler{
		startTime:  time.Now(),
		dispatcher: dispatcher,
	}
}

// Health reports liveness plus how many streams are in flight.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"uptime":          time.Since(h.startTime).String(),
		"active_sessions": h.dispatcher.ActiveSessions(),
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}
