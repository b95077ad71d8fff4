package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"venue-booking-backend/internal/availability"
	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/internal/model"
	"venue-booking-backend/internal/reminder"
	"venue-booking-backend/internal/schedule"
	"venue-booking-backend/internal/store"
)

const (
	dateLayout    = "2006-01-02"
	maxPickerDays = 62
)

type venueStatusResponse struct {
	VenueID string `json:"venueId"`
	Name    string `json:"name"`
	availability.Status
	Schedule *schedule.WeeklySchedule `json:"schedule"`
}

// loadVenue resolves :venue_id and its parsed schedule, writing the error response itself.
func (h *Handler) loadVenue(c *gin.Context) (model.Venue, *schedule.WeeklySchedule, bool) {
	venue, err := h.store.GetVenue(c.Request.Context(), c.Param("venue_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "venue not found"})
		return model.Venue{}, nil, false
	}
	if err != nil {
		h.log.Error("failed to load venue", "venueId", c.Param("venue_id"), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve venue"})
		return model.Venue{}, nil, false
	}
	return venue, h.scheduleFor(venue.WorkingDays, venue.WorkingHours), true
}

// GetVenueStatus handles GET /api/venues/:venue_id/status.
func (h *Handler) GetVenueStatus(c *gin.Context) {
	venue, sched, ok := h.loadVenue(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, venueStatusResponse{
		VenueID:  venue.ID,
		Name:     venue.Name,
		Status:   availability.GetStatus(sched, h.clock.Now()),
		Schedule: sched,
	})
}

// GetVenueDays handles GET /api/venues/:venue_id/days?from=YYYY-MM-DD&n=14.
func (h *Handler) GetVenueDays(c *gin.Context) {
	now := h.clock.Now()
	from := now
	if raw := c.Query("from"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, now.Location())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' date. Use YYYY-MM-DD."})
			return
		}
		from = d
	}

	n := h.pickerDays
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxPickerDays {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'n'. Use 1-62."})
			return
		}
		n = v
	}

	_, sched, ok := h.loadVenue(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, availability.SelectableDays(sched, from, n))
}

// GetVenueSlots handles GET /api/venues/:venue_id/slots?date=YYYY-MM-DD.
func (h *Handler) GetVenueSlots(c *gin.Context) {
	now := h.clock.Now()
	date, err := time.ParseInLocation(dateLayout, c.Query("date"), now.Location())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date'. Use YYYY-MM-DD."})
		return
	}

	_, sched, ok := h.loadVenue(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":       date.Format(dateLayout),
		"selectable": availability.IsDaySelectable(sched, date),
		"slots":      availability.Slots(sched, date, now, h.slotStep),
	})
}

type checkReservationRequest struct {
	Date           string `json:"date" binding:"required"`
	Time           string `json:"time" binding:"required"`
	NumberOfPeople int    `json:"numberOfPeople"`
	Note           string `json:"note"`
}

// PostReservationCheck handles POST /api/venues/:venue_id/reservation-check. It runs the
// checks a booking form needs before handing a reservation to the upstream API: the day
// must be selectable, the slot enabled and the party size within the venue's capacity.
func (h *Handler) PostReservationCheck(c *gin.Context) {
	var req checkReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	now := h.clock.Now()
	date, err := time.ParseInLocation(dateLayout, req.Date, now.Location())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date'. Use YYYY-MM-DD."})
		return
	}
	tod, ok := schedule.ParseTimeOfDay(req.Time)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'time'. Use HH:MM."})
		return
	}

	venue, sched, ok := h.loadVenue(c)
	if !ok {
		return
	}

	if !availability.IsDaySelectable(sched, date) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "venue is closed on this day"})
		return
	}
	slot := availability.ClassifySlot(sched, date, tod, now)
	if slot.Disabled {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "slot is not available", "reason": slot.Reason})
		return
	}
	r := lifecycle.Reservation{
		PlaceID:         venue.ID,
		ReservationTime: slot.At(),
		NumberOfPeople:  req.NumberOfPeople,
		Note:            req.Note,
		Status:          lifecycle.StatusPending,
	}
	if err := r.Validate(venue.MaxPeople); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservationTime": r.ReservationTime,
		"reminder":        reminder.ComputeWindow(r.ReservationTime, now),
	})
}
