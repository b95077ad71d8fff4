package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"venue-booking-backend/internal/clock"
	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

// Options tunes a Scheduler.
type Options struct {
	// IOTimeout bounds every single call to the Store or KeyValue.
	IOTimeout time.Duration
	// Concurrency is the number of reservations processed in parallel within a pass.
	Concurrency int
}

// Scheduler reconciles reminders against reservation snapshots. Failures never leave the
// scheduler: they are logged, counted and retried on a later pass where that makes sense.
type Scheduler struct {
	store   Store
	kv      KeyValue
	clock   clock.Clock
	log     logger.Logger
	metrics *metrics.Metrics
	opts    Options

	locks keyedMutex

	// Reservations whose last ensure or remove failed, replayed on the next pass.
	retryMu sync.Mutex
	retry   map[string]actionKind

	mu      sync.Mutex
	queued  *pass
	running bool
	wg      sync.WaitGroup
}

// NewScheduler wires a scheduler. Zero options get a 10s timeout and 4 workers.
func NewScheduler(store Store, kv KeyValue, clk clock.Clock, log logger.Logger, m *metrics.Metrics, opts Options) *Scheduler {
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Scheduler{
		store:   store,
		kv:      kv,
		clock:   clk,
		log:     log,
		metrics: m,
		opts:    opts,
		locks:   keyedMutex{locks: make(map[string]*keyedLock)},
		retry:   make(map[string]actionKind),
	}
}

// Submit queues a reconciliation pass and returns immediately. Passes run one at a time in
// the background; a submission arriving while another is still queued is merged into it.
// In-flight passes are never cancelled.
func (s *Scheduler) Submit(old, next []lifecycle.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := pass{old: old, next: next}
	if s.queued != nil {
		p = s.queued.merge(p)
		s.log.Debug("merged reminder pass into queued one", "reservations", len(p.next))
	}
	s.queued = &p

	if !s.running {
		s.running = true
		s.wg.Add(1)
		go s.drain()
	}
}

// Wait blocks until no pass is running or queued.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) drain() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		p := s.queued
		s.queued = nil
		if p == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.Reconcile(context.Background(), p.old, p.next)
	}
}

// Reconcile creates and deletes reminders for the transitions between old and next and
// returns when every reservation has been handled.
func (s *Scheduler) Reconcile(ctx context.Context, old, next []lifecycle.Reservation) {
	start := time.Now()
	defer func() { s.metrics.ReconcileTime.Observe(time.Since(start).Seconds()) }()

	actions := s.withRetries(plan(old, next), next)
	if len(actions) == 0 {
		return
	}
	s.log.Info("reconciling reminders", "actions", len(actions), "firstLoad", len(old) == 0)

	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup
	for _, a := range actions {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.apply(ctx, a)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) apply(ctx context.Context, a action) {
	log := s.log.With("reservationId", a.reservation.ID, "action", a.kind.String())
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("reminder step panicked", "panic", fmt.Sprint(rec))
			s.metrics.ReminderFailures.WithLabelValues("panic").Inc()
		}
	}()

	unlock := s.locks.Lock(a.reservation.ID)
	defer unlock()

	switch a.kind {
	case actionEnsure:
		s.ensure(ctx, log, a.reservation)
	case actionRemove:
		s.remove(ctx, log, a.reservation)
	}
}

func (s *Scheduler) ensure(ctx context.Context, log logger.Logger, r lifecycle.Reservation) {
	key := Key(r.ID)

	var (
		found bool
		err   error
	)
	s.withTimeout(ctx, func(ctx context.Context) {
		_, found, err = s.kv.Get(ctx, key)
	})
	if err != nil {
		s.fail(log, "kv_get", err)
		s.markRetry(r.ID, actionEnsure)
		return
	}
	s.clearRetry(r.ID)
	if found {
		return
	}

	w := ComputeWindow(r.ReservationTime, s.clock.Now())
	if !w.Valid {
		log.Debug("reservation too close for a reminder", "reservationTime", r.ReservationTime)
		s.metrics.RemindersSkipped.WithLabelValues("too_close").Inc()
		return
	}

	var granted bool
	s.withTimeout(ctx, func(ctx context.Context) {
		granted, err = s.store.RequestPermission(ctx, r.UserID)
	})
	if err != nil {
		s.fail(log, "permission", err)
		s.markRetry(r.ID, actionEnsure)
		return
	}
	if !granted {
		log.Info("reminder permission not granted", "userId", r.UserID)
		s.metrics.RemindersSkipped.WithLabelValues("permission_denied").Inc()
		s.markRetry(r.ID, actionEnsure)
		return
	}

	var handle string
	s.withTimeout(ctx, func(ctx context.Context) {
		handle, err = s.store.CreateReminder(ctx, w, metadataFor(r))
	})
	if err != nil {
		s.fail(log, "create", err)
		s.markRetry(r.ID, actionEnsure)
		return
	}
	if handle == "" {
		log.Info("no reminder destination available", "userId", r.UserID)
		s.metrics.RemindersSkipped.WithLabelValues("no_destination").Inc()
		s.markRetry(r.ID, actionEnsure)
		return
	}

	s.withTimeout(ctx, func(ctx context.Context) {
		err = s.kv.Set(ctx, key, handle)
	})
	if err != nil {
		s.fail(log, "kv_set", err)
		s.markRetry(r.ID, actionEnsure)
		// Without the record the reminder could never be removed, and the next pass would
		// create a duplicate.
		s.withTimeout(ctx, func(ctx context.Context) {
			_, err = s.store.DeleteReminder(ctx, handle)
		})
		if err != nil {
			s.fail(log, "delete", err)
		}
		return
	}

	log.Info("reminder created", "handle", handle, "alarms", len(w.Alarms))
	s.metrics.RemindersCreated.Inc()
}

func (s *Scheduler) remove(ctx context.Context, log logger.Logger, r lifecycle.Reservation) {
	key := Key(r.ID)

	var (
		handle string
		found  bool
		err    error
	)
	s.withTimeout(ctx, func(ctx context.Context) {
		handle, found, err = s.kv.Get(ctx, key)
	})
	if err != nil {
		s.fail(log, "kv_get", err)
		s.markRetry(r.ID, actionRemove)
		return
	}
	s.clearRetry(r.ID)
	if !found {
		return
	}

	var existed bool
	s.withTimeout(ctx, func(ctx context.Context) {
		existed, err = s.store.DeleteReminder(ctx, handle)
	})
	if err != nil {
		// Removal is only triggered by a transition, so the record is dropped regardless.
		s.fail(log, "delete", err)
	} else if !existed {
		log.Warn("reminder already gone from destination", "handle", handle)
	}

	s.withTimeout(ctx, func(ctx context.Context) {
		err = s.kv.Remove(ctx, key)
	})
	if err != nil {
		s.fail(log, "kv_remove", err)
		s.markRetry(r.ID, actionRemove)
		return
	}

	log.Info("reminder deleted", "handle", handle, "status", r.Status)
	s.metrics.RemindersDeleted.Inc()
}

// withRetries adds the failed steps of earlier passes to actions. A step is replayed only
// while the reservation's status still calls for it; otherwise it is forgotten.
func (s *Scheduler) withRetries(actions []action, next []lifecycle.Reservation) []action {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	if len(s.retry) == 0 {
		return actions
	}

	planned := make(map[string]bool, len(actions))
	for _, a := range actions {
		planned[a.reservation.ID] = true
	}
	present := make(map[string]bool, len(next))
	for _, r := range next {
		present[r.ID] = true
		kind, ok := s.retry[r.ID]
		if !ok || planned[r.ID] {
			continue
		}
		switch {
		case kind == actionEnsure && r.Status == lifecycle.StatusApproved:
			actions = append(actions, action{kind: actionEnsure, reservation: r})
		case kind == actionRemove && (r.Status == lifecycle.StatusCancelled || r.Status == lifecycle.StatusRejected):
			actions = append(actions, action{kind: actionRemove, reservation: r})
		default:
			delete(s.retry, r.ID)
		}
	}
	for id := range s.retry {
		if !present[id] {
			delete(s.retry, id)
		}
	}
	return actions
}

func (s *Scheduler) markRetry(id string, kind actionKind) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	s.retry[id] = kind
}

func (s *Scheduler) clearRetry(id string) {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	delete(s.retry, id)
}

func (s *Scheduler) withTimeout(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.IOTimeout)
	defer cancel()
	fn(ctx)
}

func (s *Scheduler) fail(log logger.Logger, op string, err error) {
	log.Error("reminder operation failed", "operation", op, "error", err)
	s.metrics.ReminderFailures.WithLabelValues(op).Inc()
}

func metadataFor(r lifecycle.Reservation) Metadata {
	return Metadata{
		ReservationID:   r.ID,
		UserID:          r.UserID,
		PlaceID:         r.PlaceID,
		ReservationTime: r.ReservationTime,
		NumberOfPeople:  r.NumberOfPeople,
		Title:           fmt.Sprintf("Rezervasyon: %d kişi", r.NumberOfPeople),
		Notes:           r.Note,
	}
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes work on the same reservation id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
