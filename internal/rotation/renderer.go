package rotation

import (
	"context"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

// Renderer builds and shows the visual slides. The engine calls it outside its
// own locks, except Progress methods which the timer calls while holding its
// lock; those must not call back into the timer.
type Renderer interface {
	// Visible reports whether the home view that hosts the slides is shown
	Visible() bool

	// CreateSlide builds one slide for item. Slides are indexed in creation order.
	CreateSlide(ctx context.Context, item domain.MediaItem) error

	// ShowSlide makes the slide at index the active one
	ShowSlide(index int)

	// RemoveSlides drops every slide
	RemoveSlides()

	// StopAnimations halts running transitions
	StopAnimations()

	// Subscribe registers for render events until the returned func is called
	Subscribe(fn func(RenderEvent)) (unsubscribe func())

	// Progress is the visual countdown indicator
	Progress() Progress
}

// Progress is a visual indicator running from 0 to 1
type Progress interface {
	// Reset jumps back to 0 without animating
	Reset()
	// Animate runs from the fraction from to 1 over d
	Animate(from float64, d time.Duration)
	// Freeze stops the animation and returns the fraction actually rendered
	Freeze() float64
}

// RenderEventKind classifies renderer notifications
type RenderEventKind int

const (
	// RenderLost means the slides were removed by something other than the engine
	RenderLost RenderEventKind = iota
	// RenderRestored means the host view was rebuilt and is usable again
	RenderRestored
)

func (k RenderEventKind) String() string {
	switch k {
	case RenderLost:
		return "lost"
	case RenderRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// RenderEvent is sent by the renderer to its subscriber
type RenderEvent struct {
	Kind   RenderEventKind
	Detail string
}
