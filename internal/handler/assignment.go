package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nuruplay/api/internal/assignment"
	"github.com/nuruplay/api/internal/games"
)

type AssignmentHandler struct {
	svc *assignment.Service
}

func NewAssignmentHandler(svc *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{svc: svc}
}

type CreateAssignmentRequest struct {
	ChildIDs    []int64   `json:"childIds"`
	GradeLevel  string    `json:"gradeLevel"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Games       []string  `json:"selectedGames" binding:"required"`
	StartTime   time.Time `json:"startTime" binding:"required"`
	EndTime     time.Time `json:"endTime" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *AssignmentHandler) Create(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.svc.Create(c.Request.Context(), assignment.CreateInput{
		OwnerID:     c.GetInt64("ownerID"),
		OwnerType:   c.GetString("ownerType"),
		Kind:        req.Kind,
		GradeLevel:  req.GradeLevel,
		ChildIDs:    req.ChildIDs,
		Title:       req.Title,
		Description: req.Description,
		GameKeys:    req.Games,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, group)
}

func (h *AssignmentHandler) ListByOwner(c *gin.Context) {
	ownerID := c.GetInt64("ownerID")
	ownerType := c.GetString("ownerType")

	if childStr := c.Query("childId"); childStr != "" {
		childID, err := strconv.ParseInt(childStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid child id"})
			return
		}
		rows, err := h.svc.ListByOwnerAndChild(c.Request.Context(), ownerID, ownerType, childID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
			return
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	if key := c.Query("game"); key != "" {
		d, ok := games.ByKey(key)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown game key"})
			return
		}
		groups, err := h.svc.ListByOwnerAndGame(c.Request.Context(), ownerID, ownerType, d.Bit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
			return
		}
		c.JSON(http.StatusOK, groups)
		return
	}

	groups, err := h.svc.ListByOwner(c.Request.Context(), ownerID, ownerType, c.Query("kind"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *AssignmentHandler) ListByChild(c *gin.Context) {
	childID, err := strconv.ParseInt(c.Param("childId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid child id"})
		return
	}

	// Optional per-game filter, expressed as a game key.
	if key := c.Query("game"); key != "" {
		d, ok := games.ByKey(key)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown game key"})
			return
		}
		rows, err := h.svc.ListByChildAndGame(c.Request.Context(), childID, d.Bit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
			return
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	rows, err := h.svc.ListByChild(c.Request.Context(), childID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assignments"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *AssignmentHandler) Details(c *gin.Context) {
	assignmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	details, err := h.svc.Details(c.Request.Context(), assignmentID, c.GetInt64("ownerID"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("targetId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	row, err := h.svc.UpdateStatus(c.Request.Context(), targetID, req.Status)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *AssignmentHandler) Delete(c *gin.Context) {
	assignmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), assignmentID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Games lists the catalog and its bit mapping for clients building masks.
func (h *AssignmentHandler) Games(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"games":      games.AvailableKeys(),
		"bitMapping": games.BitMapping(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, assignment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assignment.ErrNoChildren),
		errors.Is(err, assignment.ErrNoKnownGames),
		errors.Is(err, assignment.ErrBadTimeWindow),
		errors.Is(err, assignment.ErrBadStatus),
		errors.Is(err, assignment.ErrAlreadyDone),
		errors.Is(err, assignment.ErrUnknownOwner),
		errors.Is(err, assignment.ErrMissingTargets):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
