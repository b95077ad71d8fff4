package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-booking-backend/internal/clock"
	"venue-booking-backend/internal/lifecycle"
	"venue-booking-backend/pkg/logger"
	"venue-booking-backend/pkg/metrics"
)

var now = time.Date(2024, time.May, 16, 12, 0, 0, 0, time.UTC)

// memKV is an in-memory KeyValue that counts writes.
type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	getErr error
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// fakeStore is a Store whose behaviour is controlled per test.
type fakeStore struct {
	mu        sync.Mutex
	granted   bool
	noHandle  bool
	failFor   map[string]bool
	created   map[string]Metadata
	windows   map[string]Window
	deleted   []string
	creates   int
	onCreate  func(meta Metadata)
	nextIndex int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		granted: true,
		failFor: make(map[string]bool),
		created: make(map[string]Metadata),
		windows: make(map[string]Window),
	}
}

func (f *fakeStore) RequestPermission(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted, nil
}

func (f *fakeStore) CreateReminder(ctx context.Context, w Window, meta Metadata) (string, error) {
	if f.onCreate != nil {
		f.onCreate(meta)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failFor[meta.ReservationID] {
		return "", errors.New("calendar unavailable")
	}
	if f.noHandle {
		return "", nil
	}
	f.nextIndex++
	handle := fmt.Sprintf("evt-%d", f.nextIndex)
	f.created[handle] = meta
	f.windows[handle] = w
	return handle, nil
}

func (f *fakeStore) DeleteReminder(ctx context.Context, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, handle)
	_, ok := f.created[handle]
	delete(f.created, handle)
	return ok, nil
}

func (f *fakeStore) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func newTestScheduler(store Store, kv KeyValue) *Scheduler {
	return NewScheduler(store, kv, clock.Fixed(now), logger.NewNop(),
		metrics.NewMetrics("test", prometheus.NewRegistry()), Options{IOTimeout: time.Second, Concurrency: 2})
}

func res(id string, status lifecycle.Status, in time.Duration) lifecycle.Reservation {
	return lifecycle.Reservation{
		ID:              id,
		PlaceID:         "place-1",
		UserID:          "user-1",
		ReservationTime: now.Add(in),
		NumberOfPeople:  2,
		Status:          status,
	}
}

func TestComputeWindow(t *testing.T) {
	w := ComputeWindow(now.Add(25*time.Minute), now)
	assert.False(t, w.Valid)
	assert.Empty(t, w.Alarms)

	w = ComputeWindow(now.Add(90*time.Minute), now)
	require.True(t, w.Valid)
	assert.Equal(t, []time.Time{now.Add(60 * time.Minute)}, w.Alarms)
	assert.Equal(t, now.Add(60*time.Minute), w.Start)
	assert.Equal(t, now.Add(90*time.Minute), w.End)
	assert.Equal(t, LateAlarm, w.StartOffset)

	w = ComputeWindow(now.Add(5*time.Hour), now)
	require.True(t, w.Valid)
	assert.Equal(t, []time.Time{now.Add(3 * time.Hour), now.Add(4*time.Hour + 30*time.Minute)}, w.Alarms)
	assert.Equal(t, now.Add(3*time.Hour), w.Start)
	assert.Equal(t, EarlyAlarm, w.StartOffset)

	w = ComputeWindow(now.Add(30*time.Minute), now)
	assert.True(t, w.Valid)
	assert.Len(t, w.Alarms, 1)

	w = ComputeWindow(now.Add(2*time.Hour), now)
	assert.True(t, w.Valid)
	assert.Len(t, w.Alarms, 2)

	assert.False(t, ComputeWindow(now.Add(-time.Hour), now).Valid)
}

func TestPlan(t *testing.T) {
	testCases := []struct {
		name     string
		old      []lifecycle.Reservation
		next     []lifecycle.Reservation
		expected map[string]actionKind
	}{
		{
			name:     "First load only schedules approved",
			next:     []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour), res("b", lifecycle.StatusPending, 5*time.Hour)},
			expected: map[string]actionKind{"a": actionEnsure},
		},
		{
			name:     "New approved reservation between polls",
			old:      []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)},
			next:     []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour), res("b", lifecycle.StatusApproved, 5*time.Hour)},
			expected: map[string]actionKind{"b": actionEnsure},
		},
		{
			name:     "Unchanged status",
			old:      []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)},
			next:     []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)},
			expected: map[string]actionKind{},
		},
		{
			name:     "Pending to approved",
			old:      []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)},
			next:     []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)},
			expected: map[string]actionKind{"a": actionEnsure},
		},
		{
			name: "Approved to cancelled and rejected",
			old: []lifecycle.Reservation{
				res("a", lifecycle.StatusApproved, 5*time.Hour),
				res("b", lifecycle.StatusApproved, 5*time.Hour),
			},
			next: []lifecycle.Reservation{
				res("a", lifecycle.StatusCancelled, 5*time.Hour),
				res("b", lifecycle.StatusRejected, 5*time.Hour),
			},
			expected: map[string]actionKind{"a": actionRemove, "b": actionRemove},
		},
		{
			name:     "Pending to cancelled needs nothing",
			old:      []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)},
			next:     []lifecycle.Reservation{res("a", lifecycle.StatusCancelled, 5*time.Hour)},
			expected: map[string]actionKind{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := make(map[string]actionKind)
			for _, a := range plan(tc.old, tc.next) {
				got[a.reservation.ID] = a.kind
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestReconcile_FirstLoadIsIdempotent(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	s := newTestScheduler(store, kv)

	list := []lifecycle.Reservation{
		res("a", lifecycle.StatusApproved, 5*time.Hour),
		res("b", lifecycle.StatusPending, 5*time.Hour),
		res("c", lifecycle.StatusApproved, 90*time.Minute),
	}
	s.Reconcile(context.Background(), nil, list)
	assert.Equal(t, 2, store.createCount())
	assert.Equal(t, 2, kv.sets)

	handle, ok, _ := kv.Get(context.Background(), "eventId_a")
	require.True(t, ok)
	assert.Len(t, store.windows[handle].Alarms, 2)
	handle, ok, _ = kv.Get(context.Background(), "eventId_c")
	require.True(t, ok)
	assert.Len(t, store.windows[handle].Alarms, 1)

	// A second first-load and an unchanged incremental pass write nothing.
	s.Reconcile(context.Background(), nil, list)
	s.Reconcile(context.Background(), list, list)
	assert.Equal(t, 2, store.createCount())
	assert.Equal(t, 2, kv.sets)
}

func TestReconcile_Transitions(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	s := newTestScheduler(store, kv)
	ctx := context.Background()

	pending := []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)}
	approved := []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)}
	cancelled := []lifecycle.Reservation{res("a", lifecycle.StatusCancelled, 5*time.Hour)}

	s.Reconcile(ctx, pending, approved)
	handle, ok, _ := kv.Get(ctx, Key("a"))
	require.True(t, ok)

	s.Reconcile(ctx, approved, cancelled)
	_, ok, _ = kv.Get(ctx, Key("a"))
	assert.False(t, ok, "record must be gone after the round trip")
	assert.Equal(t, []string{handle}, store.deleted)
}

func TestReconcile_RemoveWithoutRecordIsNoop(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	s := newTestScheduler(store, kv)

	s.Reconcile(context.Background(),
		[]lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)},
		[]lifecycle.Reservation{res("a", lifecycle.StatusRejected, 5*time.Hour)})
	assert.Empty(t, store.deleted)
}

func TestReconcile_TooCloseKeepsExistingRecord(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	s := newTestScheduler(store, kv)
	ctx := context.Background()

	s.Reconcile(ctx, nil, []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 20*time.Minute)})
	assert.Equal(t, 0, store.createCount())

	require.NoError(t, kv.Set(ctx, Key("b"), "evt-existing"))
	s.Reconcile(ctx, nil, []lifecycle.Reservation{res("b", lifecycle.StatusApproved, 20*time.Minute)})
	v, ok, _ := kv.Get(ctx, Key("b"))
	assert.True(t, ok)
	assert.Equal(t, "evt-existing", v)
	assert.Empty(t, store.deleted)
}

func TestReconcile_PermissionDeniedRetriesNextPass(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	store.granted = false
	s := newTestScheduler(store, kv)
	ctx := context.Background()
	pending := []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)}
	approved := []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)}

	s.Reconcile(ctx, nil, pending)
	s.Reconcile(ctx, pending, approved)
	_, ok, _ := kv.Get(ctx, Key("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, store.createCount())

	// Later passes see no status change but still owe the reminder.
	s.Reconcile(ctx, approved, approved)
	assert.Equal(t, 0, store.createCount())

	store.mu.Lock()
	store.granted = true
	store.mu.Unlock()
	s.Reconcile(ctx, approved, approved)
	_, ok, _ = kv.Get(ctx, Key("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, store.createCount())

	s.Reconcile(ctx, approved, approved)
	assert.Equal(t, 1, store.createCount(), "a created reminder is not retried")
}

func TestReconcile_CreateFailureRetriesNextPass(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	store.failFor["a"] = true
	s := newTestScheduler(store, kv)
	ctx := context.Background()
	pending := []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)}
	approved := []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)}

	s.Reconcile(ctx, pending, approved)
	assert.Equal(t, 1, store.createCount())

	store.mu.Lock()
	delete(store.failFor, "a")
	store.mu.Unlock()
	s.Reconcile(ctx, approved, approved)
	_, ok, _ := kv.Get(ctx, Key("a"))
	assert.True(t, ok)
	assert.Equal(t, 2, store.createCount())
}

func TestReconcile_RetryDroppedWhenNoLongerApproved(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	store.granted = false
	s := newTestScheduler(store, kv)
	ctx := context.Background()
	pending := []lifecycle.Reservation{res("a", lifecycle.StatusPending, 5*time.Hour)}
	approved := []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)}
	cancelled := []lifecycle.Reservation{res("a", lifecycle.StatusCancelled, 5*time.Hour)}

	s.Reconcile(ctx, pending, approved)
	s.Reconcile(ctx, approved, cancelled)

	store.mu.Lock()
	store.granted = true
	store.mu.Unlock()
	s.Reconcile(ctx, cancelled, cancelled)
	assert.Equal(t, 0, store.createCount())
	assert.Empty(t, s.retry)
}

func TestReconcile_RemoveRetriedAfterKVError(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	s := newTestScheduler(store, kv)
	ctx := context.Background()
	approved := []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)}
	cancelled := []lifecycle.Reservation{res("a", lifecycle.StatusCancelled, 5*time.Hour)}

	s.Reconcile(ctx, nil, approved)
	_, ok, _ := kv.Get(ctx, Key("a"))
	require.True(t, ok)

	kv.mu.Lock()
	kv.getErr = errors.New("kv offline")
	kv.mu.Unlock()
	s.Reconcile(ctx, approved, cancelled)
	assert.Empty(t, store.deleted)

	kv.mu.Lock()
	kv.getErr = nil
	kv.mu.Unlock()
	s.Reconcile(ctx, cancelled, cancelled)
	_, ok, _ = kv.Get(ctx, Key("a"))
	assert.False(t, ok)
	assert.Len(t, store.deleted, 1)
}

func TestReconcile_NoHandleIsNotPersisted(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	store.noHandle = true
	s := newTestScheduler(store, kv)

	s.Reconcile(context.Background(), nil, []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)})
	assert.Equal(t, 1, store.createCount())
	assert.Equal(t, 0, kv.sets)
}

func TestReconcile_FailureIsIsolated(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	store.failFor["b"] = true
	s := newTestScheduler(store, kv)
	ctx := context.Background()

	s.Reconcile(ctx, nil, []lifecycle.Reservation{
		res("a", lifecycle.StatusApproved, 5*time.Hour),
		res("b", lifecycle.StatusApproved, 5*time.Hour),
		res("c", lifecycle.StatusApproved, 5*time.Hour),
	})

	for id, want := range map[string]bool{"a": true, "b": false, "c": true} {
		_, ok, _ := kv.Get(ctx, Key(id))
		assert.Equal(t, want, ok, id)
	}
}

func TestReconcile_KVErrorIsSwallowed(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	kv.getErr = errors.New("disk full")
	s := newTestScheduler(store, kv)

	assert.NotPanics(t, func() {
		s.Reconcile(context.Background(), nil, []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)})
	})
	assert.Equal(t, 0, store.createCount())
}

func TestSubmit_MergesQueuedPasses(t *testing.T) {
	store, kv := newFakeStore(), newMemKV()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.onCreate = func(meta Metadata) {
		if meta.ReservationID == "a" {
			once.Do(func() { close(started) })
			<-release
		}
	}
	s := newTestScheduler(store, kv)

	s.Submit(nil, []lifecycle.Reservation{res("a", lifecycle.StatusApproved, 5*time.Hour)})
	<-started

	// Both arrive while the first pass is blocked: b is approved then cancelled before
	// anything ran for it, so it must never get a reminder.
	s.Submit(
		[]lifecycle.Reservation{res("b", lifecycle.StatusPending, 5*time.Hour)},
		[]lifecycle.Reservation{res("b", lifecycle.StatusApproved, 5*time.Hour)})
	s.Submit(
		[]lifecycle.Reservation{res("b", lifecycle.StatusApproved, 5*time.Hour)},
		[]lifecycle.Reservation{res("b", lifecycle.StatusCancelled, 5*time.Hour)})

	close(release)
	s.Wait()

	ctx := context.Background()
	_, ok, _ := kv.Get(ctx, Key("a"))
	assert.True(t, ok)
	_, ok, _ = kv.Get(ctx, Key("b"))
	assert.False(t, ok)
	assert.Equal(t, 1, store.createCount())
}

func TestPass_Merge(t *testing.T) {
	first := pass{
		old:  []lifecycle.Reservation{res("a", lifecycle.StatusPending, time.Hour)},
		next: []lifecycle.Reservation{res("a", lifecycle.StatusApproved, time.Hour), res("n", lifecycle.StatusApproved, time.Hour)},
	}
	later := pass{
		old:  []lifecycle.Reservation{res("a", lifecycle.StatusApproved, time.Hour), res("n", lifecycle.StatusApproved, time.Hour), res("z", lifecycle.StatusApproved, time.Hour)},
		next: []lifecycle.Reservation{res("a", lifecycle.StatusCancelled, time.Hour), res("z", lifecycle.StatusCancelled, time.Hour)},
	}

	merged := first.merge(later)
	oldStatus := make(map[string]lifecycle.Status)
	for _, r := range merged.old {
		oldStatus[r.ID] = r.Status
	}
	assert.Equal(t, map[string]lifecycle.Status{"a": lifecycle.StatusPending, "z": lifecycle.StatusApproved}, oldStatus)

	newStatus := make(map[string]lifecycle.Status)
	for _, r := range merged.next {
		newStatus[r.ID] = r.Status
	}
	assert.Equal(t, map[string]lifecycle.Status{
		"a": lifecycle.StatusCancelled,
		"n": lifecycle.StatusApproved,
		"z": lifecycle.StatusCancelled,
	}, newStatus)
}

func TestKeyedMutex(t *testing.T) {
	k := keyedMutex{locks: make(map[string]*keyedLock)}
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("same")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Empty(t, k.locks)
}
