package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"course-tracker-backend/internal/model"
	"course-tracker-backend/internal/store"
)

type createTrackerRequest struct {
	CourseTitle string `json:"course_title" binding:"required"`
	CenterID    int    `json:"center_id" binding:"required"`
	DaytimeID   int    `json:"daytime_id"`
	WeekdayID   int    `json:"weekday_id" binding:"required"`
}

// CreateTracker registers a new tracker query. It starts active, with an
// unknown status and no tracked course.
func (h *Handler) CreateTracker(c *gin.Context) {
	var req createTrackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	q := model.NewTrackerQuery(uuid.NewString(), req.CourseTitle, req.CenterID, req.DaytimeID, req.WeekdayID)
	if err := h.store.CreateTrackerQuery(c.Request.Context(), &q); err != nil {
		h.log.Error("failed to create tracker query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tracker query"})
		return
	}
	h.invalidate()

	c.JSON(http.StatusCreated, q)
}

// ListTrackers handles GET /api/trackers, optionally filtered by ?active=.
func (h *Handler) ListTrackers(c *gin.Context) {
	var active *bool
	if raw, ok := c.GetQuery("active"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active must be true or false"})
			return
		}
		active = &v
	}

	queries, err := h.store.ListTrackerQueries(c.Request.Context(), active)
	if err != nil {
		h.log.Error("failed to list tracker queries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve tracker queries"})
		return
	}
	if queries == nil {
		queries = []model.TrackerQuery{}
	}
	c.JSON(http.StatusOK, queries)
}

// GetTracker handles GET /api/trackers/:id.
func (h *Handler) GetTracker(c *gin.Context) {
	q, err := h.store.GetTrackerQuery(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrTrackerQueryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracker query not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to get tracker query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve tracker query"})
		return
	}
	c.JSON(http.StatusOK, q)
}
