package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/metrics"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/store"
)

// Named state-conflict conditions; callers present these differently
// ("student hasn't arrived yet" vs "already picked up").
var (
	ErrNotCheckedIn      = errors.New("student not checked in today")
	ErrAlreadyCheckedOut = errors.New("student already picked up today")
)

// Undetermined is the roster placeholder for fields not yet set.
const Undetermined = "undetermined"

// MsgAlreadyCheckedIn is the informational status for an idempotent check-in.
const MsgAlreadyCheckedIn = "already checked in today"

// Store is the persistence surface the service needs.
type Store interface {
	CheckIn(ctx context.Context, studentID, classID int, date, at string) (Record, bool, error)
	Get(ctx context.Context, studentID int, date string) (*Record, error)
	CheckOut(ctx context.Context, studentID int, date string, guardianID int, at string) (bool, error)
	ListByClassDate(ctx context.Context, classID int, date string) ([]Detail, error)
}

// Unlocker releases an acquired mutex.
type Unlocker interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived mutexes keyed by (student, date).
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
}

// RedisLocker adapts store.Redis to the Locker interface.
type RedisLocker struct {
	R *store.Redis
}

func (l RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	return l.R.AcquireLock(ctx, key, ttl)
}

// Service is the per-(student, day) attendance state machine:
// NoRecord -> CheckedIn -> CheckedOut, with CheckedOut terminal for the day.
type Service struct {
	repo    Store
	locker  Locker
	lockTTL time.Duration
}

// NewService creates a service backed by a repository and a lock provider.
func NewService(repo Store, locker Locker) *Service {
	return &Service{repo: repo, locker: locker, lockTTL: 5 * time.Second}
}

// CheckIn records arrival. Calling it again for the same (student, day)
// returns the existing record with an informational message rather than an
// error.
func (s *Service) CheckIn(ctx context.Context, studentID, classID int, date, at string) (Record, string, error) {
	if studentID <= 0 || classID <= 0 {
		return Record{}, "", errors.New("student and class required")
	}
	rec, created, err := s.repo.CheckIn(ctx, studentID, classID, date, at)
	if err != nil {
		metrics.Checkins.WithLabelValues("error").Inc()
		return Record{}, "", err
	}
	if !created {
		metrics.Checkins.WithLabelValues("duplicate").Inc()
		return rec, MsgAlreadyCheckedIn, nil
	}
	metrics.Checkins.WithLabelValues("created").Inc()
	return rec, "checked in", nil
}

// CheckOut transitions the record to CheckedOut with the recognized guardian.
// The read-modify-write runs under a per-(student, date) mutex so that exactly
// one of any concurrent recognitions succeeds; losers observe
// ErrAlreadyCheckedOut. Lock contention itself is transient and surfaces as a
// plain error for the caller to resubmit.
func (s *Service) CheckOut(ctx context.Context, studentID int, date string, guardianID int, at string) (Record, error) {
	lock, err := s.locker.Acquire(ctx, lockKey(studentID, date), s.lockTTL)
	if err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return Record{}, fmt.Errorf("pickup for student %d in progress: %w", studentID, err)
		}
		return Record{}, err
	}
	defer lock.Release(ctx)

	rec, err := s.repo.Get(ctx, studentID, date)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, ErrNotCheckedIn
	}
	if rec.CheckOut != nil {
		return Record{}, ErrAlreadyCheckedOut
	}

	done, err := s.repo.CheckOut(ctx, studentID, date, guardianID, at)
	if err != nil {
		return Record{}, err
	}
	if !done {
		// Lost a race despite the lock (e.g. expired TTL); the record is
		// already terminal.
		return Record{}, ErrAlreadyCheckedOut
	}

	rec.CheckOut = &at
	rec.PickupGuardianID = &guardianID
	return *rec, nil
}

// Get returns the day's record for a student, nil when absent.
func (s *Service) Get(ctx context.Context, studentID int, date string) (*Record, error) {
	return s.repo.Get(ctx, studentID, date)
}

// Roster returns the class attendance detail for a day, with "undetermined"
// placeholders instead of nulls for records not yet picked up.
func (s *Service) Roster(ctx context.Context, classID int, date string) ([]Detail, error) {
	details, err := s.repo.ListByClassDate(ctx, classID, date)
	if err != nil {
		return nil, err
	}
	for i := range details {
		if details[i].CheckIn == "" {
			details[i].CheckIn = Undetermined
		}
		if details[i].CheckOut == "" {
			details[i].CheckOut = Undetermined
		}
		if details[i].GuardianName == "" {
			details[i].GuardianName = Undetermined
		}
		if details[i].Relationship == "" {
			details[i].Relationship = Undetermined
		}
	}
	return details, nil
}

func lockKey(studentID int, date string) string {
	return fmt.Sprintf("pickup:lock:%d:%s", studentID, date)
}
