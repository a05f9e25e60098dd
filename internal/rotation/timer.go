package rotation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/clock"
)

// TimerState is the countdown state of the active slide
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerPaused
	TimerCompleted
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// PauseSource names where a pause or resume request came from.
// All sources drive the same single paused state.
type PauseSource string

const (
	SourceTabHidden    PauseSource = "tab-hidden"
	SourcePointerHover PauseSource = "pointer-hover"
	SourceFocusLost    PauseSource = "focus-lost"
	SourceAPI          PauseSource = "api"
)

// CompleteFunc is called when a slide's countdown ends
type CompleteFunc func(index int) Decision

// Timer runs the per-slide countdown. At most one advance is pending at any
// time; every scheduled callback carries a generation and is ignored once
// the generation moves on.
type Timer struct {
	mu       sync.Mutex
	clock    clock.Clock
	duration time.Duration
	progress Progress
	logger   *slog.Logger

	onComplete CompleteFunc
	onEnter    func(index int)

	state     TimerState
	index     int
	total     int
	remaining time.Duration
	startTime time.Time
	frozenAt  float64 // progress fraction captured at pause
	pending   clock.Timer
	gen       uint64
}

// NewTimer creates an idle timer for slides of the given duration
func NewTimer(clk clock.Clock, duration time.Duration, progress Progress, logger *slog.Logger) *Timer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timer{clock: clk, duration: duration, progress: progress, logger: logger}
}

// Configure sets the slide count, current index and callbacks.
// onEnter runs after an advance or manual navigation changes the index.
func (t *Timer) Configure(total, index int, onComplete CompleteFunc, onEnter func(int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.index = index
	t.onComplete = onComplete
	t.onEnter = onEnter
}

// Start restarts the countdown for the current slide
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

func (t *Timer) startLocked() {
	t.cancelLocked()
	t.remaining = t.duration
	t.startTime = t.clock.Now()
	t.state = TimerRunning
	t.frozenAt = 0
	if t.progress != nil {
		t.progress.Reset()
		t.progress.Animate(0, t.duration)
	}
	t.scheduleLocked(t.duration)
}

// Pause stops the countdown, keeping the time left. It is a no-op unless running.
func (t *Timer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerRunning {
		return false
	}
	t.cancelLocked()
	elapsed := t.clock.Now().Sub(t.startTime)
	t.remaining = max(0, t.duration-elapsed)
	t.state = TimerPaused
	if t.progress != nil {
		t.frozenAt = t.progress.Freeze()
	}
	return true
}

// Resume continues a paused countdown. It is a no-op unless paused.
func (t *Timer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TimerPaused {
		return false
	}
	now := t.clock.Now()
	t.startTime = now.Add(-(t.duration - t.remaining))
	t.state = TimerRunning
	if t.progress != nil {
		t.progress.Animate(t.frozenAt, t.remaining)
	}
	t.scheduleLocked(t.remaining)
	return true
}

// Stop cancels everything and returns to idle
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.state = TimerIdle
	t.remaining = 0
}

// Next shows the following slide and restarts the countdown
func (t *Timer) Next() bool { return t.step(1) }

// Prev shows the previous slide and restarts the countdown
func (t *Timer) Prev() bool { return t.step(-1) }

// Jump shows the slide at index and restarts the countdown
func (t *Timer) Jump(index int) bool {
	t.mu.Lock()
	if t.total == 0 || t.state == TimerIdle || index < 0 || index >= t.total {
		t.mu.Unlock()
		return false
	}
	t.index = index
	t.startLocked()
	enter := t.onEnter
	t.mu.Unlock()

	if enter != nil {
		enter(index)
	}
	return true
}

func (t *Timer) step(delta int) bool {
	t.mu.Lock()
	if t.total == 0 || t.state == TimerIdle {
		t.mu.Unlock()
		return false
	}
	idx := ((t.index+delta)%t.total + t.total) % t.total
	t.mu.Unlock()
	return t.Jump(idx)
}

func (t *Timer) scheduleLocked(d time.Duration) {
	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() { t.fire(gen) })
}

func (t *Timer) cancelLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// fire runs when the pending advance falls due
func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.remaining = 0
	t.state = TimerCompleted
	idx := t.index
	complete := t.onComplete
	t.mu.Unlock()

	decision := Advance
	if complete != nil {
		decision = complete(idx)
	}
	if decision != Advance {
		t.logger.Debug("slide advance cancelled", "index", idx)
		return
	}

	t.mu.Lock()
	// Someone stopped or restarted us from inside the callback
	if t.state != TimerCompleted || t.total == 0 {
		t.mu.Unlock()
		return
	}
	t.index = (t.index + 1) % t.total
	t.startLocked()
	next := t.index
	enter := t.onEnter
	t.mu.Unlock()

	if enter != nil {
		enter(next)
	}
}

// State returns the countdown state
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Index returns the active slide index
func (t *Timer) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Remaining returns the time left on the active slide
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		return max(0, t.duration-t.clock.Now().Sub(t.startTime))
	}
	return t.remaining
}

// Duration returns the per-slide duration
func (t *Timer) Duration() time.Duration { return t.duration }
