package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type transferRequest struct {
	StudentID    int64 `json:"student_id" binding:"required"`
	TargetRoomID int64 `json:"target_room_id" binding:"required"`
}

// RequestTransfer handles POST /api/transfers: a hold on the target room
// that leaves the current seat in place until payment confirms the move.
func (h *Handler) RequestTransfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alloc, err := h.manager.RequestTransfer(c.Request.Context(), req.StudentID, req.TargetRoomID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, alloc)
}

// CancelTransfer handles POST /api/transfers/:allocation_id/cancel.
func (h *Handler) CancelTransfer(c *gin.Context) {
	if err := h.manager.CancelTransfer(c.Request.Context(), c.Param("allocation_id")); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type deallocateRequest struct {
	StudentID int64  `json:"student_id" binding:"required"`
	Reason    string `json:"reason"`
}

// Deallocate handles POST /api/deallocations.
func (h *Handler) Deallocate(c *gin.Context) {
	var req deallocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "deallocated"
	}

	if err := h.manager.Deallocate(c.Request.Context(), req.StudentID, req.Reason); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetWallet handles GET /api/wallets/:student_id: the running balance plus
// the ledger, newest entry first.
func (h *Handler) GetWallet(c *gin.Context) {
	studentID, err := parseID(c.Param("student_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}

	ctx := c.Request.Context()
	balance, err := h.store.WalletBalance(ctx, studentID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	entries, err := h.store.WalletEntries(ctx, studentID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "entries": entries})
}
