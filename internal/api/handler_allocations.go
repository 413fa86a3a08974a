package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/allocation"
)

type placeHoldRequest struct {
	RoomID     int64   `json:"room_id" binding:"required"`
	StudentIDs []int64 `json:"student_ids" binding:"required,min=1"`
	GroupID    *string `json:"group_id"`
}

// PlaceHold handles POST /api/allocations/holds. Used both for manual
// admin placement and for binding a proposed roommate group to a room.
func (h *Handler) PlaceHold(c *gin.Context) {
	var req placeHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alloc, err := h.manager.PlaceHold(c.Request.Context(), allocation.HoldRequest{
		RoomID:     req.RoomID,
		StudentIDs: req.StudentIDs,
		GroupID:    req.GroupID,
	})
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, alloc)
}

// GetAllocation handles GET /api/allocations/:allocation_id.
func (h *Handler) GetAllocation(c *gin.Context) {
	alloc, err := h.store.GetAllocation(c.Request.Context(), c.Param("allocation_id"))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alloc)
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

// ReleaseAllocation handles POST /api/allocations/:allocation_id/release,
// the manual path for dropping an unpaid hold.
func (h *Handler) ReleaseAllocation(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "released"
	}

	alloc, err := h.manager.Release(c.Request.Context(), c.Param("allocation_id"), req.Reason)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alloc)
}

type paymentEventRequest struct {
	AllocationID string `json:"allocation_id" binding:"required"`
	Status       string `json:"status" binding:"required,oneof=confirmed failed"`
}

// PaymentEvent handles POST /api/payments/events, the payment subsystem's
// "payment confirmed/failed for hold X" callback.
func (h *Handler) PaymentEvent(c *gin.Context) {
	var req paymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.HandlePaymentEvent(c.Request.Context(), req.AllocationID, req.Status == "confirmed"); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
