package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/selector"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// callLog records calls across fakes so tests can check ordering
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeProgress wraps VirtualProgress and logs resets
type fakeProgress struct {
	*VirtualProgress
	log *callLog
}

func (p *fakeProgress) Reset() {
	p.log.add("progress-reset")
	p.VirtualProgress.Reset()
}

// fakeRenderer implements Renderer in memory
type fakeRenderer struct {
	mu       sync.Mutex
	log      *callLog
	progress *fakeProgress

	visible  bool
	slides   []string
	shown    []int
	failOn   map[string]bool
	panicOn  string
	handlers map[int]func(RenderEvent)
	nextSub  int
}

func newFakeRenderer(clk clock.Clock, l *callLog) *fakeRenderer {
	return &fakeRenderer{
		log:      l,
		progress: &fakeProgress{VirtualProgress: NewVirtualProgress(clk), log: l},
		visible:  true,
		handlers: map[int]func(RenderEvent){},
	}
}

func (r *fakeRenderer) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

func (r *fakeRenderer) setVisible(v bool) {
	r.mu.Lock()
	r.visible = v
	r.mu.Unlock()
}

func (r *fakeRenderer) CreateSlide(ctx context.Context, item domain.MediaItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == r.panicOn {
		panic("renderer exploded")
	}
	if r.failOn[item.ID] {
		return fmt.Errorf("create %s: broken image", item.ID)
	}
	r.slides = append(r.slides, item.ID)
	return nil
}

func (r *fakeRenderer) ShowSlide(index int) {
	r.mu.Lock()
	r.shown = append(r.shown, index)
	r.mu.Unlock()
}

func (r *fakeRenderer) RemoveSlides() {
	r.log.add("remove-slides")
	r.mu.Lock()
	r.slides = nil
	r.mu.Unlock()
}

func (r *fakeRenderer) StopAnimations() {
	r.log.add("stop-animations")
}

func (r *fakeRenderer) Subscribe(fn func(RenderEvent)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.handlers[id] = fn
	r.mu.Unlock()

	return func() {
		r.log.add("unsubscribe")
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

func (r *fakeRenderer) Progress() Progress { return r.progress }

// lose simulates an external re-render that dropped the slides
func (r *fakeRenderer) lose() {
	r.mu.Lock()
	var hs []func(RenderEvent)
	for _, h := range r.handlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h(RenderEvent{Kind: RenderLost, Detail: "test"})
	}
}

func (r *fakeRenderer) slideCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slides)
}

func (r *fakeRenderer) subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

func (r *fakeRenderer) lastShown() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.shown) == 0 {
		return -1
	}
	return r.shown[len(r.shown)-1]
}

// fakeSelector hands out numbered items
type fakeSelector struct {
	mu     sync.Mutex
	log    *callLog
	count  int
	calls  int
	clears int

	SelectFunc func() []domain.MediaItem
}

func (s *fakeSelector) Select(ctx context.Context, session selector.Session) selector.Result {
	s.mu.Lock()
	s.calls++
	call := s.calls
	fn := s.SelectFunc
	n := s.count
	s.mu.Unlock()

	if fn != nil {
		items := fn()
		return selector.Result{Items: items, Source: selector.SourceQuery, Planned: len(items)}
	}
	items := make([]domain.MediaItem, n)
	for i := range items {
		items[i] = domain.MediaItem{ID: fmt.Sprintf("load%d-item%d", call, i), Name: fmt.Sprintf("Item %d", i), Type: domain.TypeMovie}
	}
	return selector.Result{Items: items, Source: selector.SourceQuery, Planned: n}
}

func (s *fakeSelector) ClearLoadCache() {
	if s.log != nil {
		s.log.add("clear-load-cache")
	}
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()
}

func (s *fakeSelector) selectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// eventRecorder collects bus events
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventName()
	}
	return out
}

func (r *eventRecorder) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

func (r *eventRecorder) rebuildReasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if ev, ok := e.(EventRebuildStarted); ok {
			out = append(out, ev.Reason)
		}
	}
	return out
}

// harness bundles a coordinator over fakes driven by a fake clock
type harness struct {
	clock    *clock.Fake
	log      *callLog
	renderer *fakeRenderer
	selector *fakeSelector
	events   *eventRecorder
	coord    *Coordinator
}

func syncExecutor(f func()) { f() }

func newHarness(slides int, duration time.Duration, opts ...func(*Options)) *harness {
	return newHarnessWithClock(clock.NewFake(epoch), nil, slides, duration, opts...)
}

// newHarnessWithClock drives the coordinator through coordClock when it is
// not nil; the renderer always uses clk
func newHarnessWithClock(clk *clock.Fake, coordClock clock.Clock, slides int, duration time.Duration, opts ...func(*Options)) *harness {
	if coordClock == nil {
		coordClock = clk
	}
	l := &callLog{}
	r := newFakeRenderer(clk, l)
	sel := &fakeSelector{log: l, count: slides}
	rec := &eventRecorder{}

	o := Options{
		Session:       selector.Session{UserID: "u1"},
		SlideDuration: duration,
		SettleDelay:   30 * time.Millisecond,
		Executor:      syncExecutor,
	}
	for _, fn := range opts {
		fn(&o)
	}

	bus := NewBus()
	bus.Subscribe(rec)
	c := NewCoordinator(r, sel, bus, coordClock, o, log.NullLogger())
	return &harness{clock: clk, log: l, renderer: r, selector: sel, events: rec, coord: c}
}

// lateClock delays timers of exactly d by lag, so a deadline fires after
// work scheduled for the same instant
type lateClock struct {
	*clock.Fake
	d   time.Duration
	lag time.Duration
}

func (c lateClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	if d == c.d {
		d += c.lag
	}
	return c.Fake.AfterFunc(d, f)
}
