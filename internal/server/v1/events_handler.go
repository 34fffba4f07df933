package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bahayonghang/LitReview/internal/stream"
	"github.com/bahayonghang/LitReview/pkg/api"
)

// EventsHandler bridges the in-process llm-stream bus onto an SSE response
// so an out-of-process UI can subscribe.
type EventsHandler struct {
	bus *stream.Bus
}

func NewEventsHandler(bus *stream.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream subscribes the caller to normalized events. An optional
// ?stream_id= filters server-side; without it the client sub-dispatches.
//
// GET /api/v1/events
func (h *EventsHandler) Stream(c *gin.Context) {
	filter := c.Query("stream_id")

	sub, cancel := h.bus.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub:
			if !ok {
				return false
			}
			if filter != "" && ev.StreamID != filter {
				return true
			}
			data, err := json.Marshal(ev)
			if err != nil {
				return true
			}
			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", api.StreamChannel, data)
			if err != nil {
				return false
			}
			// The terminal event ends a filtered subscription.
			return !(filter != "" && ev.Done)
		case <-c.Request.Context().Done():
			return false
		}
	})
}
