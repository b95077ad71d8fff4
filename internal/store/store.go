package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/internal/model"
	"venue-booking-backend/pkg/logger"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStatusChanged = errors.New("reservation status changed concurrently")
)

// Store defines the interface for all database operations.
type Store interface {
	UpsertVenues(ctx context.Context, items []ApiVenue) error
	UpsertReservations(ctx context.Context, items []ApiReservation) error
	GetVenue(ctx context.Context, id string) (model.Venue, error)
	GetReservation(ctx context.Context, id string) (lifecycle.Reservation, error)
	ListReservations(ctx context.Context) ([]lifecycle.Reservation, error)
	ListUserReservations(ctx context.Context, userID string) ([]lifecycle.Reservation, error)
	SaveReservationStatus(ctx context.Context, id string, from, to lifecycle.Status) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log logger.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log logger.Logger) Store {
	return &gormStore{db: db, log: log}
}

// UpsertVenues writes venue metadata, skipping rows whose content did not change.
func (s *gormStore) UpsertVenues(ctx context.Context, items []ApiVenue) error {
	existing, err := s.fetchAllVenues(ctx)
	if err != nil {
		s.log.Warn("could not pre-fetch venues", "error", err)
		existing = make(map[string]model.Venue)
	}

	var venuesToUpsert []model.Venue
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		venue, needsUpsert := prepareVenue(item, existing)
		if needsUpsert {
			venuesToUpsert = append(venuesToUpsert, venue)
		}
	}

	if len(venuesToUpsert) == 0 {
		return nil
	}
	s.log.Debug("batch upserting venues", "count", len(venuesToUpsert))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "working_days", "working_hours", "max_people", "updated_at"}),
		}).Create(&venuesToUpsert).Error
	})
}

// UpsertReservations writes reservations, skipping rows whose content did not change.
// Items without a parsed reservation time are dropped.
func (s *gormStore) UpsertReservations(ctx context.Context, items []ApiReservation) error {
	existing, err := s.fetchAllReservations(ctx)
	if err != nil {
		s.log.Warn("could not pre-fetch reservations", "error", err)
		existing = make(map[string]model.Reservation)
	}

	var toUpsert []model.Reservation
	for _, item := range items {
		if item.ID == "" || item.ReservationTimeParsed.IsZero() {
			s.log.Warn("skipping reservation without id or time", "reservationId", item.ID)
			continue
		}
		r, needsUpsert := prepareReservation(item, existing)
		if incoming := normalizeStatus(item.Status); r.Status != incoming {
			s.log.Warn("refusing upstream status regression", "reservationId", r.ID, "stored", r.Status, "upstream", incoming)
		}
		if needsUpsert {
			toUpsert = append(toUpsert, r)
		}
	}

	if len(toUpsert) == 0 {
		return nil
	}
	s.log.Debug("batch upserting reservations", "count", len(toUpsert))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"place_id", "user_id", "reservation_time", "number_of_people", "note", "status", "updated_at",
			}),
		}).Create(&toUpsert).Error
	})
}

func (s *gormStore) GetVenue(ctx context.Context, id string) (model.Venue, error) {
	var v model.Venue
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Venue{}, ErrNotFound
		}
		return model.Venue{}, fmt.Errorf("failed to get venue %s: %w", id, err)
	}
	return v, nil
}

func (s *gormStore) GetReservation(ctx context.Context, id string) (lifecycle.Reservation, error) {
	var r model.Reservation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lifecycle.Reservation{}, ErrNotFound
		}
		return lifecycle.Reservation{}, fmt.Errorf("failed to get reservation %s: %w", id, err)
	}
	return ToReservation(r), nil
}

// ListReservations returns every stored reservation, the snapshot handed to reminder reconciliation.
func (s *gormStore) ListReservations(ctx context.Context) ([]lifecycle.Reservation, error) {
	var rows []model.Reservation
	if err := s.db.WithContext(ctx).Order("reservation_time").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return toReservations(rows), nil
}

func (s *gormStore) ListUserReservations(ctx context.Context, userID string) ([]lifecycle.Reservation, error) {
	var rows []model.Reservation
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("reservation_time DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations of user %s: %w", userID, err)
	}
	return toReservations(rows), nil
}

// SaveReservationStatus moves a reservation from one status to another. The update only
// applies while the stored status still equals from.
func (s *gormStore) SaveReservationStatus(ctx context.Context, id string, from, to lifecycle.Status) error {
	res := s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return fmt.Errorf("failed to update status of reservation %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Reservation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check reservation %s: %w", id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStatusChanged
}

// ToReservation converts a stored row to the lifecycle type.
func ToReservation(r model.Reservation) lifecycle.Reservation {
	return lifecycle.Reservation{
		ID:              r.ID,
		PlaceID:         r.PlaceID,
		UserID:          r.UserID,
		ReservationTime: r.ReservationTime,
		NumberOfPeople:  r.NumberOfPeople,
		Note:            r.Note,
		Status:          lifecycle.Status(r.Status),
	}
}

func toReservations(rows []model.Reservation) []lifecycle.Reservation {
	out := make([]lifecycle.Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToReservation(r))
	}
	return out
}

func (s *gormStore) fetchAllVenues(ctx context.Context) (map[string]model.Venue, error) {
	var venues []model.Venue
	if err := s.db.WithContext(ctx).Find(&venues).Error; err != nil {
		return nil, err
	}
	m := make(map[string]model.Venue, len(venues))
	for _, v := range venues {
		m[v.ID] = v
	}
	return m, nil
}

func (s *gormStore) fetchAllReservations(ctx context.Context) (map[string]model.Reservation, error) {
	var rows []model.Reservation
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	m := make(map[string]model.Reservation, len(rows))
	for _, r := range rows {
		m[r.ID] = r
	}
	return m, nil
}

func prepareVenue(item ApiVenue, existing map[string]model.Venue) (model.Venue, bool) {
	v := model.Venue{
		ID:           string(item.ID),
		Name:         item.Name,
		WorkingDays:  deref(item.WorkingDays),
		WorkingHours: deref(item.WorkingHours),
		MaxPeople:    item.MaxPeople,
	}
	if old, ok := existing[v.ID]; ok {
		if old.Name == v.Name &&
			old.WorkingDays == v.WorkingDays &&
			old.WorkingHours == v.WorkingHours &&
			old.MaxPeople == v.MaxPeople {
			return v, false
		}
	}
	return v, true
}

func normalizeStatus(s string) string {
	if st, ok := lifecycle.ParseStatus(s); ok {
		return string(st)
	}
	return s
}

// prepareReservation builds the row to store for item. A status change the lifecycle does
// not allow from the stored status (e.g. CANCELLED back to APPROVED after a local
// cancellation) keeps the stored status.
func prepareReservation(item ApiReservation, existing map[string]model.Reservation) (model.Reservation, bool) {
	status := normalizeStatus(item.Status)
	if old, ok := existing[string(item.ID)]; ok && old.Status != status {
		if from, known := lifecycle.ParseStatus(old.Status); known && !lifecycle.CanTransition(from, lifecycle.Status(status)) {
			status = old.Status
		}
	}
	r := model.Reservation{
		ID:              string(item.ID),
		PlaceID:         string(item.PlaceID),
		UserID:          string(item.UserID),
		ReservationTime: item.ReservationTimeParsed,
		NumberOfPeople:  item.NumberOfPeople,
		Note:            deref(item.Note),
		Status:          status,
	}
	if old, ok := existing[r.ID]; ok {
		if old.PlaceID == r.PlaceID &&
			old.UserID == r.UserID &&
			old.ReservationTime.Equal(r.ReservationTime) &&
			old.NumberOfPeople == r.NumberOfPeople &&
			old.Note == r.Note &&
			old.Status == r.Status {
			return r, false
		}
	}
	return r, true
}
