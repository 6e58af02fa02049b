package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nuruplay/api/internal/gateway"
	"github.com/nuruplay/api/internal/leaderboard"
)

type LeaderboardHandler struct {
	agg *leaderboard.Aggregator
}

func NewLeaderboardHandler(agg *leaderboard.Aggregator) *LeaderboardHandler {
	return &LeaderboardHandler{agg: agg}
}

// Overview returns the combined leaderboard + statistics payload. It always
// answers 200: with every backend down the entries are empty and the
// statistics still come from the local store.
func (h *LeaderboardHandler) Overview(c *gin.Context) {
	assignmentID, ok := assignmentIDParam(c)
	if !ok {
		return
	}
	ctx := gateway.WithRequestID(c.Request.Context(), c.GetString("requestID"))
	c.JSON(http.StatusOK, h.agg.Overview(ctx, assignmentID))
}

func (h *LeaderboardHandler) Leaderboard(c *gin.Context) {
	assignmentID, ok := assignmentIDParam(c)
	if !ok {
		return
	}
	ctx := gateway.WithRequestID(c.Request.Context(), c.GetString("requestID"))
	c.JSON(http.StatusOK, h.agg.BuildLeaderboard(ctx, assignmentID))
}

func (h *LeaderboardHandler) Statistics(c *gin.Context) {
	assignmentID, ok := assignmentIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.agg.BuildStatistics(c.Request.Context(), assignmentID))
}

func (h *LeaderboardHandler) Performance(c *gin.Context) {
	assignmentID, ok := assignmentIDParam(c)
	if !ok {
		return
	}
	ctx := gateway.WithRequestID(c.Request.Context(), c.GetString("requestID"))
	report, err := h.agg.Performance(ctx, assignmentID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *LeaderboardHandler) ChildStats(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	ctx := gateway.WithRequestID(c.Request.Context(), c.GetString("requestID"))
	c.JSON(http.StatusOK, h.agg.ChildStats(ctx, childID))
}

func (h *LeaderboardHandler) RecentActivity(c *gin.Context) {
	childID, ok := childIDParam(c)
	if !ok {
		return
	}
	ctx := gateway.WithRequestID(c.Request.Context(), c.GetString("requestID"))
	c.JSON(http.StatusOK, h.agg.RecentActivity(ctx, childID))
}

func assignmentIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return 0, false
	}
	return id, true
}

func childIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("childId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid child id"})
		return 0, false
	}
	return id, true
}
