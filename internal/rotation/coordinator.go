package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/selector"
)

// State is the rotation lifecycle state
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateBuilding
	StateRotating
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateBuilding:
		return "building"
	case StateRotating:
		return "rotating"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// Rebuild reasons
const (
	ReasonCycleExpired = "cycle-expired"
	ReasonNavigation   = "navigation"
	ReasonRenderLost   = "render-lost"
	ReasonManual       = "manual"
)

// DefaultSettleDelay is the pause between teardown and reinit
const DefaultSettleDelay = 30 * time.Millisecond

// SlideSelector picks the items of a rotation
type SlideSelector interface {
	Select(ctx context.Context, session selector.Session) selector.Result
	ClearLoadCache()
}

// SelectionState counts the slides of the current load
type SelectionState struct {
	PlannedTotal int
	CreatedCount int
	SeenIDs      map[string]struct{}
}

// Options configures a Coordinator
type Options struct {
	Session       selector.Session
	SlideDuration time.Duration
	SettleDelay   time.Duration // negative disables the wait
	// Executor runs accepted rebuilds; nil runs each in a new goroutine
	Executor func(func())
}

// Snapshot is a point-in-time view of the rotation
type Snapshot struct {
	State          State
	TimerState     TimerState
	Index          int
	Remaining      time.Duration
	PlannedTotal   int
	CreatedCount   int
	CycleExpired   bool
	CycleStartedAt time.Time
	Items          []domain.MediaItem
	Paused         bool
	PauseSource    PauseSource
}

// Coordinator owns the rotation: it selects, builds, rotates and rebuilds
// slides on a Renderer.
type Coordinator struct {
	renderer Renderer
	selector SlideSelector
	bus      *Bus
	clock    clock.Clock
	timer    *Timer
	cycle    *CycleClock
	opts     Options
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	ctx         context.Context
	cancel      context.CancelFunc
	items       []domain.MediaItem
	selection   SelectionState
	unsubRender func()
	pauseSource PauseSource
	settle      clock.Timer
	closed      bool
	wg          sync.WaitGroup
}

// NewCoordinator wires a coordinator. bus may be nil.
func NewCoordinator(r Renderer, sel SlideSelector, bus *Bus, clk clock.Clock, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = NewBus()
	}
	if clk == nil {
		clk = clock.New()
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Executor == nil {
		opts.Executor = func(f func()) { go f() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		renderer: r,
		selector: sel,
		bus:      bus,
		clock:    clk,
		timer:    NewTimer(clk, opts.SlideDuration, r.Progress(), logger),
		cycle:    NewCycleClock(clk, opts.SlideDuration, logger),
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.cycle.OnExpire(func() { c.bus.Emit(EventCycleExpired{}) })
	return c
}

// Bus returns the event bus
func (c *Coordinator) Bus() *Bus { return c.bus }

// Start runs the initial load. It does nothing unless the coordinator is idle.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.renderer.Visible() {
		return domain.ErrNotVisible
	}

	c.mu.Lock()
	if c.closed || c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateSelecting
	c.mu.Unlock()

	var (
		slides int
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("initial load panicked: %v", r)
			}
		}()
		slides, err = c.populate(ctx)
	}()
	c.release(slides, err)
	if err != nil {
		c.logger.Error("initial load failed", "error", err)
	}
	return err
}

// RequestRebuild starts a rebuild unless one (or the initial load) is already
// in flight. It reports whether the request was accepted.
func (c *Coordinator) RequestRebuild(reason string) bool {
	c.mu.Lock()
	if c.closed || (c.state != StateRotating && c.state != StateIdle) {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("rebuild request ignored", "reason", reason, "state", state)
		return false
	}
	c.state = StateRebuilding
	c.pauseSource = ""
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("rebuild requested", "reason", reason)
	c.bus.Emit(EventRebuildStarted{Reason: reason})
	c.opts.Executor(func() { c.rebuild(reason) })
	return true
}

// rebuild tears down and schedules reinit after the settle delay
func (c *Coordinator) rebuild(reason string) {
	ok := false
	defer func() {
		if r := recover(); r != nil {
			c.finishRebuild(reason, 0, fmt.Errorf("teardown panicked: %v", r))
			return
		}
		if !ok {
			c.finishRebuild(reason, 0, context.Canceled)
		}
	}()

	c.teardown()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ok = true
	if c.opts.SettleDelay > 0 {
		c.settle = c.clock.AfterFunc(c.opts.SettleDelay, func() { c.reinit(reason) })
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.reinit(reason)
}

func (c *Coordinator) reinit(reason string) {
	var (
		slides int
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reinit panicked: %v", r)
		}
		c.finishRebuild(reason, slides, err)
	}()

	c.mu.Lock()
	c.settle = nil
	ctx := c.ctx
	c.mu.Unlock()

	if !c.renderer.Visible() {
		err = domain.ErrNotVisible
		return
	}
	c.setState(StateSelecting)
	slides, err = c.populate(ctx)
}

func (c *Coordinator) finishRebuild(reason string, slides int, err error) {
	c.release(slides, err)
	if err != nil {
		c.logger.Warn("rebuild finished without rotation", "reason", reason, "error", err)
	} else {
		c.logger.Info("rebuild finished", "reason", reason, "slides", slides)
	}
	c.bus.Emit(EventRebuildFinished{Reason: reason, Slides: slides, Err: err})
	c.wg.Done()
}

// release leaves the transitional states: Rotating when slides are up,
// otherwise Idle with everything torn down
func (c *Coordinator) release(slides int, err error) {
	if err != nil || slides == 0 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("teardown panicked", "panic", r)
				}
			}()
			c.teardown()
		}()
		c.setState(StateIdle)
		return
	}
	c.setState(StateRotating)
}

// populate selects and builds slides and starts the rotation
func (c *Coordinator) populate(ctx context.Context) (int, error) {
	res := c.selector.Select(ctx, c.opts.Session)
	c.bus.Emit(EventSelectionDone{Count: len(res.Items), Source: res.Source})
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(res.Items) == 0 {
		c.logger.Info("no items selected, rotation stays idle")
		return 0, nil
	}

	c.mu.Lock()
	c.state = StateBuilding
	c.items = nil
	c.selection = SelectionState{
		PlannedTotal: len(res.Items),
		SeenIDs:      make(map[string]struct{}, len(res.Items)),
	}
	c.mu.Unlock()
	c.cycle.SetPlannedTotal(len(res.Items))

	for _, item := range res.Items {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := c.renderer.CreateSlide(ctx, item); err != nil {
			c.logger.Warn("slide creation failed", "item", item.ID, "error", err)
			continue
		}
		c.slideCreated(item)
	}

	c.mu.Lock()
	created := c.selection.CreatedCount
	items := c.items
	c.mu.Unlock()
	if created == 0 {
		return 0, nil
	}
	c.bus.Emit(EventAllSlidesReady{Count: created})

	// Fewer slides than selected: the cycle covers the slides that exist
	if created < len(res.Items) {
		c.mu.Lock()
		c.selection.PlannedTotal = created
		c.mu.Unlock()
		c.cycle.SetPlannedTotal(created)
	}

	unsub := c.renderer.Subscribe(c.onRenderEvent)
	c.mu.Lock()
	c.unsubRender = unsub
	c.mu.Unlock()

	c.timer.Configure(created, 0, c.onSlideComplete, c.onSlideEntered)
	c.cycle.Start()
	c.renderer.ShowSlide(0)
	c.bus.Emit(EventSlideEntered{Index: 0, Item: items[0]})
	c.timer.Start()
	return created, nil
}

// slideCreated counts a created slide. Creations past the planned total are ignored.
func (c *Coordinator) slideCreated(item domain.MediaItem) {
	c.mu.Lock()
	if c.selection.CreatedCount >= c.selection.PlannedTotal {
		c.mu.Unlock()
		return
	}
	c.selection.CreatedCount++
	c.selection.SeenIDs[item.ID] = struct{}{}
	c.items = append(c.items, item)
	ev := EventSlideCreated{Created: c.selection.CreatedCount, Planned: c.selection.PlannedTotal}
	c.mu.Unlock()

	c.bus.Emit(ev)
}

// teardown removes the current rotation. Each step is independent.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	unsub := c.unsubRender
	c.unsubRender = nil
	c.mu.Unlock()

	c.renderer.StopAnimations()
	if unsub != nil {
		unsub()
	}
	c.timer.Stop()
	if p := c.renderer.Progress(); p != nil {
		p.Reset()
	}
	c.renderer.RemoveSlides()
	c.cycle.Clear()
	c.selector.ClearLoadCache()

	c.mu.Lock()
	c.items = nil
	c.selection = SelectionState{}
	c.pauseSource = ""
	c.mu.Unlock()
}

// onSlideComplete decides whether the finished slide advances or ends the cycle
func (c *Coordinator) onSlideComplete(index int) Decision {
	c.mu.Lock()
	last := c.selection.PlannedTotal - 1
	c.mu.Unlock()

	decision := Advance
	if index == last {
		// the deadline and this advance may fire in either order on a real clock
		expired := c.cycle.ConsumeExpired()
		if expired || c.cycle.Due() {
			decision = CancelForRebuild
		}
	}
	c.bus.Emit(EventSlideComplete{Index: index, Decision: decision})

	if decision == CancelForRebuild {
		c.RequestRebuild(ReasonCycleExpired)
	}
	return decision
}

func (c *Coordinator) onSlideEntered(index int) {
	c.mu.Lock()
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return
	}
	item := c.items[index]
	c.mu.Unlock()

	c.renderer.ShowSlide(index)
	c.bus.Emit(EventSlideEntered{Index: index, Item: item})
}

func (c *Coordinator) onRenderEvent(ev RenderEvent) {
	switch ev.Kind {
	case RenderLost:
		c.logger.Info("slides lost by renderer", "detail", ev.Detail)
		c.RequestRebuild(ReasonRenderLost)
	case RenderRestored:
		c.logger.Debug("renderer restored", "detail", ev.Detail)
	}
}

// NavigatedHome rebuilds the rotation when the home view is shown again
func (c *Coordinator) NavigatedHome() bool {
	return c.RequestRebuild(ReasonNavigation)
}

// NavigatedAway stops the rotation while the home view is hidden
func (c *Coordinator) NavigatedAway() {
	c.mu.Lock()
	if c.state != StateRotating {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	c.teardown()
	c.logger.Info("rotation stopped, home view hidden")
}

// Pause pauses the countdown on behalf of source
func (c *Coordinator) Pause(source PauseSource) bool {
	if !c.rotating() || !c.timer.Pause() {
		return false
	}
	c.mu.Lock()
	c.pauseSource = source
	c.mu.Unlock()

	c.logger.Debug("rotation paused", "source", source)
	c.bus.Emit(EventPaused{Source: source})
	return true
}

// Resume resumes the countdown on behalf of source
func (c *Coordinator) Resume(source PauseSource) bool {
	if !c.rotating() || !c.timer.Resume() {
		return false
	}
	c.mu.Lock()
	c.pauseSource = ""
	c.mu.Unlock()

	c.logger.Debug("rotation resumed", "source", source)
	c.bus.Emit(EventResumed{Source: source})
	return true
}

// Next shows the following slide
func (c *Coordinator) Next() bool {
	return c.rotating() && c.timer.Next()
}

// Prev shows the previous slide
func (c *Coordinator) Prev() bool {
	return c.rotating() && c.timer.Prev()
}

// Jump shows the slide at index
func (c *Coordinator) Jump(index int) bool {
	return c.rotating() && c.timer.Jump(index)
}

func (c *Coordinator) rotating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRotating
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selection returns a copy of the selection counters
func (c *Coordinator) Selection() SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{}, len(c.selection.SeenIDs))
	for id := range c.selection.SeenIDs {
		seen[id] = struct{}{}
	}
	return SelectionState{
		PlannedTotal: c.selection.PlannedTotal,
		CreatedCount: c.selection.CreatedCount,
		SeenIDs:      seen,
	}
}

// Snapshot returns the current rotation view
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		State:        c.state,
		PlannedTotal: c.selection.PlannedTotal,
		CreatedCount: c.selection.CreatedCount,
		Items:        append([]domain.MediaItem(nil), c.items...),
		PauseSource:  c.pauseSource,
	}
	c.mu.Unlock()

	s.TimerState = c.timer.State()
	s.Index = c.timer.Index()
	s.Remaining = c.timer.Remaining()
	s.Paused = s.TimerState == TimerPaused
	s.CycleExpired = c.cycle.Expired()
	s.CycleStartedAt = c.cycle.StartedAt()
	return s
}

// Wait blocks until accepted rebuilds have finished
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close tears the rotation down and rejects further requests
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	settle := c.settle
	c.settle = nil
	c.mu.Unlock()

	// A reinit still waiting for its settle delay will never run
	if settle != nil && settle.Stop() {
		c.finishRebuild("close", 0, context.Canceled)
	}
	c.teardown()
	c.setState(StateIdle)
}
