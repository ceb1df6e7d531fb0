// Package jobs implements the asynchronous classification job: a store
// holding the single in-flight job and a worker that drives it to a
// terminal state.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/cybermed/agent/internal/logging"
)

// Status is the lifecycle state of a classification job.
type Status string

// Job statuses. Exactly one job may be non-idle at a time per process.
const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// Terminal reports whether the status admits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrAlreadyRunning is returned by TryStart while a job is in flight. It is
// user-actionable and must never be masked as a generic error.
var ErrAlreadyRunning = errors.New("a classification job is already running")

// Job is an immutable snapshot of the classification job state.
type Job struct {
	Status         Status    `json:"status"`
	TargetCount    int       `json:"target_count"`
	CompletedCount int       `json:"completed_count"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// Store is the single source of truth for the one allowed in-flight job.
// All transitions are serialized behind one mutex; Snapshot never blocks on
// worker progress.
type Store struct {
	mu     sync.Mutex
	job    Job
	logger logging.Logger
}

// NewStore creates an idle job store.
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		job:    Job{Status: StatusIdle},
		logger: logger,
	}
}

// TryStart atomically claims the store for a new job with the given resolved
// target count. It fails with ErrAlreadyRunning when a non-terminal,
// non-idle job exists, without mutating anything.
func (s *Store) TryStart(targetCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Status != StatusIdle && !s.job.Status.Terminal() {
		return ErrAlreadyRunning
	}

	s.job = Job{
		Status:      StatusInitializing,
		TargetCount: targetCount,
		CreatedAt:   time.Now().UTC(),
	}

	s.logger.Info("classification job started",
		logging.Int("target_count", targetCount),
	)
	return nil
}

// MarkRunning transitions an initializing job to in_progress. It is a no-op
// in any other state.
func (s *Store) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Status == StatusInitializing {
		s.job.Status = StatusInProgress
	}
}

// Advance records the outcome of one unit of work. A nil cause increments
// CompletedCount by n; a non-nil cause transitions the job to error and
// freezes it. Advances against a terminal job are logged no-ops so late
// worker callbacks can never corrupt a superseding job.
func (s *Store) Advance(n int, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Status.Terminal() || s.job.Status == StatusIdle {
		s.logger.Warn("advance on terminal job ignored",
			logging.String("status", string(s.job.Status)),
		)
		return
	}

	if cause != nil {
		s.job.Status = StatusError
		s.job.LastError = cause.Error()
		s.logger.Error("classification job failed",
			logging.Int("completed", s.job.CompletedCount),
			logging.Int("target", s.job.TargetCount),
			logging.Error(cause),
		)
		return
	}

	s.job.CompletedCount += n
	if s.job.CompletedCount > s.job.TargetCount {
		// CompletedCount never exceeds TargetCount.
		s.job.CompletedCount = s.job.TargetCount
	}
}

// MarkCompleted transitions a running job to completed. Terminal jobs are
// left untouched.
func (s *Store) MarkCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job.Status.Terminal() || s.job.Status == StatusIdle {
		return
	}

	s.job.Status = StatusCompleted
	s.logger.Info("classification job completed",
		logging.Int("completed", s.job.CompletedCount),
		logging.Int("target", s.job.TargetCount),
	)
}

// Snapshot returns a copy of the current job state.
func (s *Store) Snapshot() Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}
