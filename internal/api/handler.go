package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"venue-booking-backend/internal/clock"
	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/internal/schedule"
	"venue-booking-backend/internal/store"
	"venue-booking-backend/pkg/logger"
)

// TransitionFunc is told about every accepted reservation status change.
type TransitionFunc func(old, next []lifecycle.Reservation)

// Options carries the optional dependencies of a Handler.
type Options struct {
	Webpush      *webpush.Options
	Clock        clock.Clock
	SlotStep     time.Duration
	PickerDays   int
	OnTransition TransitionFunc
	Logger       logger.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	db           *gorm.DB
	webpush      *webpush.Options
	clock        clock.Clock
	slotStep     time.Duration
	pickerDays   int
	onTransition TransitionFunc
	log          logger.Logger

	// Parsed schedules keyed by their source text.
	schedules *cache.Cache
}

// NewHandler creates a new API handler. db backs the push subscription endpoints.
func NewHandler(s store.Store, db *gorm.DB, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.SlotStep <= 0 {
		opts.SlotStep = 30 * time.Minute
	}
	if opts.PickerDays <= 0 {
		opts.PickerDays = 14
	}
	if opts.OnTransition == nil {
		opts.OnTransition = func(old, next []lifecycle.Reservation) {}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Handler{
		store:        s,
		db:           db,
		webpush:      opts.Webpush,
		clock:        opts.Clock,
		slotStep:     opts.SlotStep,
		pickerDays:   opts.PickerDays,
		onTransition: opts.OnTransition,
		log:          opts.Logger,
		schedules:    cache.New(time.Hour, 2*time.Hour),
	}
}

type cachedSchedule struct {
	schedule *schedule.WeeklySchedule
}

// scheduleFor parses the venue's schedule text, reusing earlier results for the same text.
func (h *Handler) scheduleFor(daysText, hoursText string) *schedule.WeeklySchedule {
	key := daysText + "\x00" + hoursText
	if v, ok := h.schedules.Get(key); ok {
		return v.(cachedSchedule).schedule
	}
	s := schedule.Build(daysText, hoursText)
	h.schedules.SetDefault(key, cachedSchedule{schedule: s})
	return s
}
