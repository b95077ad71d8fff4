// Package poller mirrors venues and reservations from the upstream reservation API and
// hands every new reservation snapshot to the reminder scheduler.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"venue-booking-backend/config"
	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/internal/store"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

// Reconciler receives consecutive reservation snapshots.
type Reconciler interface {
	Submit(old, next []lifecycle.Reservation)
}

// Service orchestrates the polling process and uses a Store for persistence.
type Service struct {
	cfg     *config.PollerConfig
	store   store.Store
	client  *http.Client
	loc     *time.Location
	rec     Reconciler
	log     logger.Logger
	metrics *metrics.Metrics

	prev []lifecycle.Reservation
}

// NewService creates and initializes a new poller service.
func NewService(cfg *config.PollerConfig, loc *time.Location, st store.Store, rec Reconciler, log logger.Logger, m *metrics.Metrics) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy URL, polling without proxy", "proxy", cfg.HTTPProxy, "error", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		cfg:   cfg,
		store: st,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		loc:     loc,
		rec:     rec,
		log:     log,
		metrics: m,
	}
}

// Run starts the polling process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("poller is disabled, not starting")
		return
	}
	s.log.Info("starting poller", "interval", s.cfg.Interval)

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("poller shutting down")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// PollOnce performs a single round of fetching, persists the changes and submits the
// previous and current reservation snapshots for reminder reconciliation.
func (s *Service) PollOnce(ctx context.Context) {
	s.log.Debug("executing poll cycle")
	s.metrics.PollCycles.Inc()

	if s.cfg.Venues.URL != "" {
		venues, err := fetchAll[store.ApiVenue](ctx, s, s.cfg.Venues)
		if err != nil && len(venues) == 0 {
			s.log.Error("venue fetch failed", "error", err)
		} else if err := s.store.UpsertVenues(ctx, venues); err != nil {
			s.log.Error("failed to store venues", "error", err)
		}
	}

	reservations, err := fetchAll[store.ApiReservation](ctx, s, s.cfg.Reservations)
	if err != nil && len(reservations) == 0 {
		// Nothing retrieved; keep the last snapshot rather than treating everything as gone.
		s.log.Error("poll cycle aborted, no reservations retrieved", "error", err)
		return
	}

	for i := range reservations {
		parsed, err := s.parseTimestamp(reservations[i].ReservationTime)
		if err != nil {
			s.log.Warn("could not parse reservation time", "reservationId", reservations[i].ID, "error", err)
			continue
		}
		reservations[i].ReservationTimeParsed = parsed
	}

	if err := s.store.UpsertReservations(ctx, reservations); err != nil {
		s.log.Error("failed to store reservations", "error", err)
		return
	}

	current, err := s.store.ListReservations(ctx)
	if err != nil {
		s.log.Error("failed to load reservation snapshot", "error", err)
		return
	}
	s.rec.Submit(s.prev, current)
	s.prev = current

	s.log.Debug("poll cycle finished", "reservations", len(current))
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// parseTimestamp converts the API's timestamp string into a time.Time. Timestamps carrying
// an offset are taken as is; naive ones are read in the configured timezone.
func (s *Service) parseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, ts, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", ts)
}

// fetchAll pages through one endpoint. On a mid-way failure the items fetched so far are
// returned together with the error.
func fetchAll[T any](ctx context.Context, s *Service, rc config.RequestConfig) ([]T, error) {
	var all []T
	total := 1
	if rc.PageSize <= 0 {
		rc.PageSize = 100
	}
	for page := 1; (page-1)*rc.PageSize < total; page++ {
		resp, err := fetchPage[T](ctx, s.client, rc, page)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		all = append(all, resp.Data.Items...)
	}
	return all, nil
}

// fetchPage fetches a single page from the upstream API.
func fetchPage[T any](ctx context.Context, client *http.Client, rc config.RequestConfig, page int) (*ApiResponse[T], error) {
	payload := make(map[string]any)
	for k, v := range rc.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = rc.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range rc.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse[T]
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
