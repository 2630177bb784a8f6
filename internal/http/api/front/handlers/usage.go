package handlers

import (
	"net/http"
	"time"

	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/usage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UsageHandler reports the caller's generation usage.
type UsageHandler struct {
	recorder *usage.Recorder
	now      func() time.Time
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(recorder *usage.Recorder) *UsageHandler {
	return &UsageHandler{recorder: recorder, now: time.Now}
}

// Monthly returns token and request totals for the current UTC month.
func (h *UsageHandler) Monthly(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	totals, errTotals := h.recorder.MonthlyTotals(c.Request.Context(), userID, h.now())
	if errTotals != nil {
		log.WithError(errTotals).WithField("user_id", userID).Error("usage: monthly totals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load usage failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": totals.Tokens, "count": totals.Count})
}
