package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/matching"
	"hostel-allocation-backend/internal/model"
)

type runMatchingRequest struct {
	Capacity int `json:"capacity" binding:"required,min=2,max=6"`
}

// RunMatching handles POST /api/matching/run: one formation pass for the
// requested capacity. A scorer outage answers 503 and leaves the pool
// untouched; manual allocation keeps working regardless.
func (h *Handler) RunMatching(c *gin.Context) {
	var req runMatchingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.RunPass(c.Request.Context(), req.Capacity)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": "automated matching temporarily unavailable: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// PreviewMatches handles GET /api/matching/preview?student_id=N&top_k=K:
// the pairwise top-K compatibility ranking for one student against the
// active pool, without forming anything.
func (h *Handler) PreviewMatches(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.Query("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id is required"})
		return
	}
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "5"))

	ctx := c.Request.Context()
	target, err := h.store.GetStudent(ctx, studentID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	capacity, err := strconv.Atoi(c.DefaultQuery("desired_capacity", "2"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid desired_capacity"})
		return
	}
	entries, err := h.store.ListActivePool(ctx, capacity)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	candidateIDs := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if entry.StudentID != studentID {
			candidateIDs = append(candidateIDs, entry.StudentID)
		}
	}
	if len(candidateIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"matches": []any{}})
		return
	}

	candidates, err := h.store.GetStudents(ctx, candidateIDs)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	allIDs := append([]int64{studentID}, candidateIDs...)
	profiles, err := h.store.GetProfiles(ctx, allIDs)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	targetPayload := matching.Payloads([]model.Student{*target}, profiles)[0]
	candidatePayloads := matching.Payloads(candidates, profiles)

	matches, err := h.scorer.Match(ctx, targetPayload, candidatePayloads, topK)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": "automated matching temporarily unavailable: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
