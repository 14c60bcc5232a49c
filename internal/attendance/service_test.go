package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps records in memory keyed by (student, date).
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Record
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*Record)}
}

func key(studentID int, date string) string {
	return fmt.Sprintf("%d/%s", studentID, date)
}

func (f *fakeStore) CheckIn(_ context.Context, studentID, classID int, date, at string) (Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[key(studentID, date)]; ok {
		return *rec, false, nil
	}
	f.nextID++
	rec := &Record{ID: f.nextID, StudentID: studentID, ClassID: classID, Date: date, CheckIn: at}
	f.records[key(studentID, date)] = rec
	return *rec, true, nil
}

func (f *fakeStore) Get(_ context.Context, studentID int, date string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key(studentID, date)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) CheckOut(_ context.Context, studentID int, date string, guardianID int, at string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key(studentID, date)]
	if !ok || rec.CheckOut != nil {
		return false, nil
	}
	out := at
	gid := guardianID
	rec.CheckOut = &out
	rec.PickupGuardianID = &gid
	return true, nil
}

func (f *fakeStore) ListByClassDate(_ context.Context, classID int, date string) ([]Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Detail
	for _, rec := range f.records {
		if rec.ClassID != classID || rec.Date != date {
			continue
		}
		d := Detail{StudentName: "student", CheckIn: rec.CheckIn}
		if rec.CheckOut != nil {
			d.CheckOut = *rec.CheckOut
			d.GuardianName = "guardian"
			d.Relationship = "mother"
		}
		out = append(out, d)
	}
	return out, nil
}

// memLocker serializes per key with plain mutexes.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

type memUnlock struct{ m *sync.Mutex }

func (u memUnlock) Release(context.Context) error {
	u.m.Unlock()
	return nil
}

func (l *memLocker) Acquire(_ context.Context, key string, _ time.Duration) (Unlocker, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return memUnlock{m: m}, nil
}

func newTestService() (*Service, *fakeStore) {
	repo := newFakeStore()
	return NewService(repo, newMemLocker()), repo
}

func TestCheckInIdempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	first, msg, err := svc.CheckIn(ctx, 1, 2, "2026-03-02", "07:50:00")
	require.NoError(t, err)
	assert.Equal(t, "checked in", msg)

	second, msg, err := svc.CheckIn(ctx, 1, 2, "2026-03-02", "08:15:00")
	require.NoError(t, err)
	assert.Equal(t, MsgAlreadyCheckedIn, msg)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "07:50:00", second.CheckIn)
	assert.Len(t, repo.records, 1)
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.CheckOut(context.Background(), 1, "2026-03-02", 9, "16:05:00")
	assert.ErrorIs(t, err, ErrNotCheckedIn)
	assert.Empty(t, repo.records)
}

func TestCheckOutHappyThenConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.CheckIn(ctx, 1, 2, "2026-03-02", "07:50:00")
	require.NoError(t, err)

	rec, err := svc.CheckOut(ctx, 1, "2026-03-02", 9, "16:05:00")
	require.NoError(t, err)
	require.NotNil(t, rec.CheckOut)
	assert.Equal(t, "16:05:00", *rec.CheckOut)
	require.NotNil(t, rec.PickupGuardianID)
	assert.Equal(t, 9, *rec.PickupGuardianID)
	assert.Equal(t, "07:50:00", rec.CheckIn)

	_, err = svc.CheckOut(ctx, 1, "2026-03-02", 12, "16:06:00")
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)

	// The record is terminal: the losing attempt changed nothing.
	after, err := svc.Get(ctx, 1, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "16:05:00", *after.CheckOut)
	assert.Equal(t, 9, *after.PickupGuardianID)
}

func TestCheckOutExactlyOneOfConcurrent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.CheckIn(ctx, 3, 2, "2026-03-02", "07:45:00")
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(guardian int) {
			defer wg.Done()
			_, err := svc.CheckOut(ctx, 3, "2026-03-02", guardian, "16:05:00")
			results <- err
		}(i + 100)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyCheckedOut):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestRosterPlaceholders(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.CheckIn(ctx, 1, 2, "2026-03-02", "07:50:00")
	require.NoError(t, err)

	details, err := svc.Roster(ctx, 2, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "07:50:00", details[0].CheckIn)
	assert.Equal(t, Undetermined, details[0].CheckOut)
	assert.Equal(t, Undetermined, details[0].GuardianName)
	assert.Equal(t, Undetermined, details[0].Relationship)
}
