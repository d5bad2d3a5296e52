package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-tracker-backend/internal/checker"
)

// RunCycle runs a check cycle immediately.
func (h *Handler) RunCycle(c *gin.Context) {
	summary, err := h.runner.RunCycle(c.Request.Context())
	if errors.Is(err, checker.ErrCycleRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check cycle failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": summary.String(), "summary": summary})
}

// GetLastCycle returns the summary of the most recent cycle.
func (h *Handler) GetLastCycle(c *gin.Context) {
	summary, ok := h.runner.LastSummary()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has completed yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": summary.String(), "summary": summary})
}
