package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"

	"hostel-allocation-backend/internal/allocation"
	"hostel-allocation-backend/internal/matching"
	"hostel-allocation-backend/internal/scorer"
	"hostel-allocation-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	manager *allocation.Manager
	engine  *matching.Engine
	scorer  *scorer.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, m *allocation.Manager, e *matching.Engine, sc *scorer.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		manager: m,
		engine:  e,
		scorer:  sc,
		webpush: webpushOptions,
	}
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// errStatus maps the engine's error taxonomy onto HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrRoomNotFound),
		errors.Is(err, store.ErrStudentNotFound),
		errors.Is(err, store.ErrAllocationNotFound),
		errors.Is(err, store.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCapacityExceeded),
		errors.Is(err, store.ErrGenderMismatch),
		errors.Is(err, store.ErrRoomUnavailable),
		errors.Is(err, store.ErrAlreadyAllocated),
		errors.Is(err, store.ErrInvalidAllocationState),
		errors.Is(err, store.ErrHoldExpired),
		errors.Is(err, store.ErrInvalidGroupState),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scorer.ErrScorerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
