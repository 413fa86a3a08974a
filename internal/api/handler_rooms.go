package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

type createRoomRequest struct {
	RoomNumber      string         `json:"room_number" binding:"required"`
	Block           string         `json:"block"`
	Floor           int            `json:"floor"`
	RoomType        model.RoomType `json:"room_type" binding:"required,oneof=Single Double Triple Quad"`
	Gender          model.Gender   `json:"gender" binding:"required,oneof=Boys Girls"`
	Capacity        int            `json:"capacity" binding:"required,min=1,max=6"`
	PricePerStudent int64          `json:"price_per_student" binding:"min=0"`
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := model.Room{
		RoomNumber:        req.RoomNumber,
		Block:             req.Block,
		Floor:             req.Floor,
		RoomType:          req.RoomType,
		Gender:            req.Gender,
		Capacity:          req.Capacity,
		MaintenanceStatus: model.MaintenanceNone,
		PricePerStudent:   req.PricePerStudent,
	}
	if err := h.store.CreateRoom(c.Request.Context(), &room); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, room)
}

// GetRooms handles GET /api/rooms with optional gender/room_type/available
// filters.
func (h *Handler) GetRooms(c *gin.Context) {
	filter := store.RoomFilter{
		Gender:   model.Gender(c.Query("gender")),
		RoomType: model.RoomType(c.Query("room_type")),
	}
	if c.Query("available") == "true" {
		filter.OnlyAvailable = true
	}

	rooms, err := h.store.ListRooms(c.Request.Context(), filter)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetRoom handles GET /api/rooms/:room_id.
func (h *Handler) GetRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := h.store.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "free_seats": room.FreeSeats()})
}

type maintenanceRequest struct {
	Status model.MaintenanceStatus `json:"status" binding:"required,oneof=none under_maintenance blocked"`
}

// SetMaintenance handles PUT /api/rooms/:room_id/maintenance.
func (h *Handler) SetMaintenance(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetMaintenanceStatus(c.Request.Context(), roomID, req.Status); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
