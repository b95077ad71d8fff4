package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/internal/store"
)

type reservationResponse struct {
	lifecycle.Reservation
	Display lifecycle.Display `json:"display"`
}

// GetUserReservations handles GET /api/users/:user_id/reservations.
func (h *Handler) GetUserReservations(c *gin.Context) {
	reservations, err := h.store.ListUserReservations(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.log.Error("failed to list reservations", "userId", c.Param("user_id"), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reservations"})
		return
	}

	now := h.clock.Now()
	response := make([]reservationResponse, 0, len(reservations))
	for _, r := range reservations {
		response = append(response, reservationResponse{Reservation: r, Display: r.Describe(now)})
	}
	c.JSON(http.StatusOK, response)
}

type postStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PostReservationStatus handles POST /api/reservations/:reservation_id/status. An accepted
// transition is persisted and then reported to the transition callback.
func (h *Handler) PostReservationStatus(c *gin.Context) {
	var req postStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, ok := lifecycle.ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("reservation_id")
	current, err := h.store.GetReservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to load reservation", "reservationId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reservation"})
		return
	}

	updated, err := lifecycle.Transition(current, to)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	switch err := h.store.SaveReservationStatus(ctx, id, current.Status, updated.Status); {
	case errors.Is(err, store.ErrStatusChanged):
		c.JSON(http.StatusConflict, gin.H{"error": "reservation was modified concurrently, retry"})
		return
	case err != nil:
		h.log.Error("failed to save reservation status", "reservationId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reservation"})
		return
	}

	h.log.Info("reservation status changed", "reservationId", id, "from", current.Status, "to", updated.Status)
	h.onTransition([]lifecycle.Reservation{current}, []lifecycle.Reservation{updated})

	c.JSON(http.StatusOK, reservationResponse{Reservation: updated, Display: updated.Describe(h.clock.Now())})
}
