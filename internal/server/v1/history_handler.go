package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bahayonghang/LitReview/internal/history"
)

type HistoryHandler struct {
	repo history.Repository
}

func NewHistoryHandler(repo history.Repository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// Recent lists the latest terminated streams, newest first.
//
// GET /api/v1/history?limit=50
func (h *HistoryHandler) Recent(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.repo.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
