package rotation

import (
	"sync"

	"github.com/mmcdole/marquee/internal/domain"
)

// Decision is the answer to a per-slide complete callback
type Decision int

const (
	// Advance moves to the next slide and restarts the countdown
	Advance Decision = iota
	// CancelForRebuild leaves the timer stopped; the caller owns what happens next
	CancelForRebuild
)

func (d Decision) String() string {
	if d == CancelForRebuild {
		return "cancel-for-rebuild"
	}
	return "advance"
}

// Event is a lifecycle signal emitted by the engine
type Event interface {
	EventName() string
}

type EventSelectionDone struct {
	Count  int
	Source string
}

type EventSlideCreated struct {
	Created int
	Planned int
}

type EventAllSlidesReady struct {
	Count int
}

type EventSlideEntered struct {
	Index int
	Item  domain.MediaItem
}

type EventSlideComplete struct {
	Index    int
	Decision Decision
}

type EventPaused struct {
	Source PauseSource
}

type EventResumed struct {
	Source PauseSource
}

type EventRebuildStarted struct {
	Reason string
}

type EventRebuildFinished struct {
	Reason string
	Slides int
	Err    error
}

type EventCycleExpired struct{}

func (EventSelectionDone) EventName() string   { return "selection-done" }
func (EventSlideCreated) EventName() string    { return "slide-created" }
func (EventAllSlidesReady) EventName() string  { return "all-slides-ready" }
func (EventSlideEntered) EventName() string    { return "slide-entered" }
func (EventSlideComplete) EventName() string   { return "slide-complete" }
func (EventPaused) EventName() string          { return "paused" }
func (EventResumed) EventName() string         { return "resumed" }
func (EventRebuildStarted) EventName() string  { return "rebuild-started" }
func (EventRebuildFinished) EventName() string { return "rebuild-finished" }
func (EventCycleExpired) EventName() string    { return "cycle-expired" }

// Listener receives events synchronously. It must not block.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Bus fans events out to listeners
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
		for i, x := range b.order {
			if x == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers e to every listener in subscription order
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		ls = append(ls, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnEvent(e)
	}
}
