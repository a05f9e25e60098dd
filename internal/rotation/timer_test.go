package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/log"
)

type timerHarness struct {
	clock     *clock.Fake
	progress  *VirtualProgress
	timer     *Timer
	completed []int
	entered   []int
	decide    func(int) Decision
}

func newTimerHarness(total int, d time.Duration) *timerHarness {
	clk := clock.NewFake(epoch)
	h := &timerHarness{clock: clk, progress: NewVirtualProgress(clk)}
	h.timer = NewTimer(clk, d, h.progress, log.NullLogger())
	h.timer.Configure(total, 0, func(i int) Decision {
		h.completed = append(h.completed, i)
		if h.decide != nil {
			return h.decide(i)
		}
		return Advance
	}, func(i int) {
		h.entered = append(h.entered, i)
	})
	return h
}

func TestTimer_AdvancesAndWraps(t *testing.T) {
	h := newTimerHarness(3, time.Second)
	h.timer.Start()
	assert.Equal(t, TimerRunning, h.timer.State())

	h.clock.Advance(3 * time.Second)

	assert.Equal(t, []int{0, 1, 2}, h.completed)
	assert.Equal(t, []int{1, 2, 0}, h.entered)
	assert.Equal(t, 0, h.timer.Index())
	assert.Equal(t, 1, h.clock.Pending(), "exactly one pending advance")
}

func TestTimer_PauseKeepsRemaining(t *testing.T) {
	h := newTimerHarness(3, time.Second)
	h.timer.Start()

	h.clock.Advance(400 * time.Millisecond)
	require.True(t, h.timer.Pause())
	assert.Equal(t, TimerPaused, h.timer.State())
	assert.Equal(t, 600*time.Millisecond, h.timer.Remaining())
	assert.InDelta(t, 0.4, h.progress.Fraction(), 1e-9)

	h.clock.Advance(10 * time.Second)
	assert.Empty(t, h.completed, "nothing fires while paused")
	assert.Equal(t, 0, h.clock.Pending())

	require.True(t, h.timer.Resume())
	h.clock.Advance(599 * time.Millisecond)
	assert.Empty(t, h.completed)
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, []int{0}, h.completed)
}

func TestTimer_PauseResumeIdempotent(t *testing.T) {
	h := newTimerHarness(2, time.Second)
	assert.False(t, h.timer.Pause(), "idle timer cannot pause")
	assert.False(t, h.timer.Resume(), "idle timer cannot resume")

	h.timer.Start()
	assert.False(t, h.timer.Resume(), "running timer cannot resume")
	h.clock.Advance(200 * time.Millisecond)
	assert.True(t, h.timer.Pause())
	h.clock.Advance(200 * time.Millisecond)
	assert.False(t, h.timer.Pause())
	assert.Equal(t, 800*time.Millisecond, h.timer.Remaining())

	assert.True(t, h.timer.Resume())
	assert.False(t, h.timer.Resume())
	assert.Equal(t, 1, h.clock.Pending())
}

func TestTimer_NoDriftAcrossPauses(t *testing.T) {
	h := newTimerHarness(2, time.Second)
	h.timer.Start()

	var frozen float64
	for range 5 {
		h.clock.Advance(100 * time.Millisecond)
		require.True(t, h.timer.Pause())
		frozen = h.progress.Fraction()
		h.clock.Advance(time.Second)
		require.True(t, h.timer.Resume())
	}
	assert.InDelta(t, 0.5, frozen, 1e-9, "progress tracks running time only")
	assert.Equal(t, 500*time.Millisecond, h.timer.Remaining())

	h.clock.Advance(499 * time.Millisecond)
	assert.Empty(t, h.completed)
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, []int{0}, h.completed)
}

func TestTimer_RestartReplacesPendingAdvance(t *testing.T) {
	h := newTimerHarness(2, time.Second)
	h.timer.Start()
	h.clock.Advance(900 * time.Millisecond)
	h.timer.Start()

	assert.Equal(t, 1, h.clock.Pending())
	h.clock.Advance(900 * time.Millisecond)
	assert.Empty(t, h.completed, "first countdown was replaced")
	h.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, []int{0}, h.completed)
}

func TestTimer_CancelLeavesTimerCompleted(t *testing.T) {
	h := newTimerHarness(3, time.Second)
	h.decide = func(int) Decision { return CancelForRebuild }
	h.timer.Start()

	h.clock.Advance(5 * time.Second)

	assert.Equal(t, []int{0}, h.completed)
	assert.Empty(t, h.entered)
	assert.Equal(t, TimerCompleted, h.timer.State())
	assert.Equal(t, 0, h.timer.Index())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestTimer_StopIgnoresLateCallback(t *testing.T) {
	clk := clock.NewFake(epoch)
	tm := NewTimer(clk, time.Second, nil, log.NullLogger())
	calls := 0
	tm.Configure(2, 0, func(int) Decision { calls++; return Advance }, nil)

	tm.Start()
	gen := tm.gen
	tm.Stop()
	tm.fire(gen)

	assert.Zero(t, calls)
	assert.Equal(t, TimerIdle, tm.State())
	assert.Zero(t, tm.Remaining())
}

func TestTimer_ManualNavigation(t *testing.T) {
	h := newTimerHarness(3, time.Second)
	assert.False(t, h.timer.Next(), "idle timer does not navigate")

	h.timer.Start()
	h.clock.Advance(700 * time.Millisecond)
	require.True(t, h.timer.Prev())
	assert.Equal(t, 2, h.timer.Index())
	assert.Equal(t, time.Second, h.timer.Remaining(), "navigation restarts the countdown")

	require.True(t, h.timer.Next())
	assert.Equal(t, 0, h.timer.Index())
	assert.False(t, h.timer.Jump(7))
	require.True(t, h.timer.Jump(1))
	assert.Equal(t, []int{2, 0, 1}, h.entered)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestTimer_PausedNavigationResumesCountdown(t *testing.T) {
	h := newTimerHarness(3, time.Second)
	h.timer.Start()
	h.clock.Advance(300 * time.Millisecond)
	h.timer.Pause()

	require.True(t, h.timer.Next())
	assert.Equal(t, TimerRunning, h.timer.State())
	assert.InDelta(t, 0.0, h.progress.Fraction(), 1e-9)
}
