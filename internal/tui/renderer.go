package tui

import (
	"context"
	"sync"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/rotation"
)

// TerminalRenderer is the rotation surface behind the preview. The bubbletea
// model reads its state on every frame.
type TerminalRenderer struct {
	mu       sync.Mutex
	progress *rotation.VirtualProgress
	slides   []domain.MediaItem
	active   int
	visible  bool
}

// NewTerminalRenderer creates a visible, empty renderer
func NewTerminalRenderer(clk clock.Clock) *TerminalRenderer {
	return &TerminalRenderer{
		progress: rotation.NewVirtualProgress(clk),
		active:   -1,
		visible:  true,
	}
}

func (r *TerminalRenderer) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// SetVisible simulates leaving or returning to the home view
func (r *TerminalRenderer) SetVisible(v bool) {
	r.mu.Lock()
	r.visible = v
	r.mu.Unlock()
}

func (r *TerminalRenderer) CreateSlide(ctx context.Context, item domain.MediaItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.slides = append(r.slides, item)
	r.mu.Unlock()
	return nil
}

func (r *TerminalRenderer) ShowSlide(index int) {
	r.mu.Lock()
	if index >= 0 && index < len(r.slides) {
		r.active = index
	}
	r.mu.Unlock()
}

func (r *TerminalRenderer) RemoveSlides() {
	r.mu.Lock()
	r.slides = nil
	r.active = -1
	r.mu.Unlock()
}

// StopAnimations is a no-op; slide changes are drawn on the next frame
func (r *TerminalRenderer) StopAnimations() {}

// Subscribe never reports events: the preview owns its slides outright
func (r *TerminalRenderer) Subscribe(fn func(rotation.RenderEvent)) func() {
	return func() {}
}

func (r *TerminalRenderer) Progress() rotation.Progress { return r.progress }

// Fraction is the countdown bar position
func (r *TerminalRenderer) Fraction() float64 { return r.progress.Fraction() }

// Frame is what the preview draws
type Frame struct {
	Slides []domain.MediaItem
	Active int
}

// Frame copies the current slides
func (r *TerminalRenderer) Frame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Frame{Slides: append([]domain.MediaItem(nil), r.slides...), Active: r.active}
}
