package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cybermed/agent/internal/jobs"
	"github.com/cybermed/agent/internal/logging"
)

// State is the poller's user-visible lifecycle state.
type State string

// Poller states. A terminal state is held for the display window, then the
// poller returns to dormant and its progress is cleared.
const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateError     State = "error"
	StateDormant   State = "dormant"
)

// Default tuning. The interval is a display concern, not a correctness one.
const (
	DefaultInterval      = 2 * time.Second
	DefaultDisplayWindow = 3 * time.Second
)

// ProgressSource reads a job progress snapshot.
type ProgressSource interface {
	GetProgress(ctx context.Context) (*Progress, error)
}

// JobStarter starts a classification job.
type JobStarter interface {
	StartClassification(ctx context.Context, req StartRequest) (*StartResponse, error)
}

// Poller periodically reads job progress and tracks the state a UI should
// display. Polls are issued synchronously from a single loop, so there is
// never more than one in flight; ticks that fire during a slow poll are
// dropped by the ticker.
type Poller struct {
	source        ProgressSource
	interval      time.Duration
	displayWindow time.Duration
	logger        logging.Logger
	onUpdate      func(State, Progress)

	mu       sync.Mutex
	state    State
	progress Progress
	cancel   context.CancelFunc
	done     chan struct{}
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithDisplayWindow sets how long a terminal state stays displayed before
// the poller goes dormant.
func WithDisplayWindow(d time.Duration) PollerOption {
	return func(p *Poller) { p.displayWindow = d }
}

// WithUpdateFunc registers a callback invoked on every state or progress
// change. It is called from the poll loop; it must not block.
func WithUpdateFunc(fn func(State, Progress)) PollerOption {
	return func(p *Poller) { p.onUpdate = fn }
}

// NewPoller creates an idle poller over the given progress source.
func NewPoller(source ProgressSource, logger logging.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Poller{
		source:        source,
		interval:      DefaultInterval,
		displayWindow: DefaultDisplayWindow,
		logger:        logger,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the current state and displayed progress.
func (p *Poller) Snapshot() (State, Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.progress
}

// StartClassification starts a job through the given starter and, on
// acceptance, begins polling. It refuses while a poll loop is active so one
// UI cannot race itself; a server-side conflict still surfaces as
// jobs.ErrAlreadyRunning.
func (p *Poller) StartClassification(ctx context.Context, starter JobStarter, req StartRequest) (*StartResponse, error) {
	p.mu.Lock()
	if p.state == StatePolling {
		p.mu.Unlock()
		return nil, jobs.ErrAlreadyRunning
	}
	p.mu.Unlock()

	resp, err := starter.StartClassification(ctx, req)
	if err != nil {
		return nil, err
	}

	p.Start(ctx)
	return resp, nil
}

// Start begins the poll loop. It is a no-op while one is already active.
// Polling stops on its own when the job reaches a terminal state; cancel the
// context (navigation away) to stop early without touching server job state.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state == StatePolling {
		p.mu.Unlock()
		return
	}
	prevCancel := p.cancel
	prevDone := p.done
	p.mu.Unlock()

	// A previous loop may still be holding its display window. Drain it
	// first so its pending dormant transition cannot wipe the new run's
	// state and its cancel is not orphaned.
	if prevDone != nil {
		if prevCancel != nil {
			prevCancel()
		}
		<-prevDone
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePolling {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.setLocked(StatePolling, Progress{Status: "initializing"})

	go p.loop(loopCtx)
}

// Stop cancels the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel = nil
	p.setLocked(StateDormant, Progress{})
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	// Immediate first poll so the UI sees the initializing state without
	// waiting a full interval.
	if p.poll(ctx) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.poll(ctx) {
				return
			}
		}
	}
}

// poll reads progress once and reconciles local state. Returns true when
// the loop should stop.
func (p *Poller) poll(ctx context.Context) bool {
	progress, err := p.source.GetProgress(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true
		}
		// Transport failure is local only; the server job is unaffected.
		p.logger.Warn("progress poll failed", logging.Error(err))
		p.transition(StateError, Progress{Status: "error", Error: "progress unavailable, retry later"})
		p.holdThenClear(ctx)
		return true
	}

	if !progress.Terminal() {
		p.transition(StatePolling, *progress)
		return false
	}

	switch progress.Status {
	case "error":
		p.transition(StateError, *progress)
	default:
		p.transition(StateCompleted, *progress)
	}
	p.holdThenClear(ctx)
	return true
}

// holdThenClear keeps the terminal state visible for the display window and
// then clears it.
func (p *Poller) holdThenClear(ctx context.Context) {
	timer := time.NewTimer(p.displayWindow)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	p.transition(StateDormant, Progress{})
}

func (p *Poller) transition(state State, progress Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(state, progress)
}

func (p *Poller) setLocked(state State, progress Progress) {
	p.state = state
	p.progress = progress
	if p.onUpdate != nil {
		p.onUpdate(state, progress)
	}
}
