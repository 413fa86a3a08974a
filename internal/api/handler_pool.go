package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/model"
)

type joinPoolRequest struct {
	StudentID       int64 `json:"student_id" binding:"required"`
	DesiredCapacity int   `json:"desired_capacity" binding:"required,min=2,max=6"`
}

// JoinPool handles POST /api/pool.
func (h *Handler) JoinPool(c *gin.Context) {
	var req joinPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.JoinPool(c.Request.Context(), req.StudentID, req.DesiredCapacity); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

// LeavePool handles DELETE /api/pool/:student_id. Idempotent.
func (h *Handler) LeavePool(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	if err := h.store.LeavePool(c.Request.Context(), studentID); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPool handles GET /api/pool?desired_capacity=N.
func (h *Handler) GetPool(c *gin.Context) {
	capacity, err := strconv.Atoi(c.DefaultQuery("desired_capacity", "2"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid desired_capacity"})
		return
	}

	entries, err := h.store.ListActivePool(c.Request.Context(), capacity)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

type profileRequest struct {
	SleepSchedule  string `json:"sleep_schedule"`
	Cleanliness    string `json:"cleanliness"`
	StudyHabits    string `json:"study_habits"`
	NoiseTolerance string `json:"noise_tolerance"`
	Lifestyle      string `json:"lifestyle"`
}

// PutProfile handles PUT /api/students/:student_id/profile.
func (h *Handler) PutProfile(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := model.CompatibilityProfile{
		StudentID:      studentID,
		SleepSchedule:  req.SleepSchedule,
		Cleanliness:    req.Cleanliness,
		StudyHabits:    req.StudyHabits,
		NoiseTolerance: req.NoiseTolerance,
		Lifestyle:      req.Lifestyle,
	}
	if err := h.store.UpsertProfile(c.Request.Context(), &profile); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}
