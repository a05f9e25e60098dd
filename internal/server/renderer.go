package server

import (
	"context"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/rotation"
)

// Publisher sends a typed message to connected overlays
type Publisher interface {
	Publish(msgType string, payload any)
}

// SlidePayload describes one slide to an overlay
type SlidePayload struct {
	Index    int               `json:"index"`
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Year     int               `json:"year,omitempty"`
	Overview string            `json:"overview,omitempty"`
	Rating   float64           `json:"rating,omitempty"`
	Images   map[string]string `json:"images,omitempty"`
	Status   string            `json:"status"`
}

// ProgressPayload tells overlays how to draw the countdown bar
type ProgressPayload struct {
	From       float64 `json:"from"`
	DurationMs int64   `json:"durationMs"`
	Running    bool    `json:"running"`
}

// RemoteRenderer keeps the slide list for browser overlays. Overlays draw
// whatever it publishes; the engine treats it as the rendering surface.
type RemoteRenderer struct {
	mu       sync.Mutex
	pub      Publisher
	progress *remoteProgress
	slides   []domain.MediaItem
	active   int
	visible  bool
	subs     map[int]func(rotation.RenderEvent)
	nextSub  int
}

// NewRemoteRenderer creates a renderer that starts visible
func NewRemoteRenderer(clk clock.Clock, pub Publisher) *RemoteRenderer {
	return &RemoteRenderer{
		pub:      pub,
		progress: &remoteProgress{VirtualProgress: rotation.NewVirtualProgress(clk), pub: pub},
		visible:  true,
		subs:     make(map[int]func(rotation.RenderEvent)),
		active:   -1,
	}
}

func (r *RemoteRenderer) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// SetVisible records whether the overlay's host view is the home view
func (r *RemoteRenderer) SetVisible(v bool) {
	r.mu.Lock()
	r.visible = v
	r.mu.Unlock()
}

func (r *RemoteRenderer) CreateSlide(ctx context.Context, item domain.MediaItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.slides = append(r.slides, item)
	p := slidePayload(len(r.slides)-1, item)
	r.mu.Unlock()

	r.pub.Publish("slide-created", p)
	return nil
}

func (r *RemoteRenderer) ShowSlide(index int) {
	r.mu.Lock()
	if index < 0 || index >= len(r.slides) {
		r.mu.Unlock()
		return
	}
	r.active = index
	p := slidePayload(index, r.slides[index])
	r.mu.Unlock()

	r.pub.Publish("slide-shown", p)
}

func (r *RemoteRenderer) RemoveSlides() {
	r.mu.Lock()
	r.slides = nil
	r.active = -1
	r.mu.Unlock()

	r.pub.Publish("slides-removed", nil)
}

func (r *RemoteRenderer) StopAnimations() {
	r.pub.Publish("animations-stopped", nil)
}

func (r *RemoteRenderer) Subscribe(fn func(rotation.RenderEvent)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *RemoteRenderer) Progress() rotation.Progress { return r.progress }

// ReportLost tells the engine an overlay re-rendered and dropped its slides
func (r *RemoteRenderer) ReportLost(detail string) {
	r.notify(rotation.RenderEvent{Kind: rotation.RenderLost, Detail: detail})
}

func (r *RemoteRenderer) notify(ev rotation.RenderEvent) {
	r.mu.Lock()
	fns := make([]func(rotation.RenderEvent), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Slides returns the slides currently built, in order
func (r *RemoteRenderer) Slides() []SlidePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SlidePayload, len(r.slides))
	for i, it := range r.slides {
		out[i] = slidePayload(i, it)
	}
	return out
}

// Active returns the index of the shown slide, or -1
func (r *RemoteRenderer) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func slidePayload(index int, it domain.MediaItem) SlidePayload {
	return SlidePayload{
		Index:    index,
		ID:       it.ID,
		Name:     it.DisplayTitle(),
		Type:     it.Type,
		Year:     it.Year,
		Overview: it.Overview,
		Rating:   it.CommunityRating,
		Images:   it.ImageTags,
		Status:   it.WatchStatus().String(),
	}
}

// remoteProgress mirrors every progress change to overlays
type remoteProgress struct {
	*rotation.VirtualProgress
	pub Publisher
}

func (p *remoteProgress) Reset() {
	p.VirtualProgress.Reset()
	p.pub.Publish("progress", ProgressPayload{})
}

func (p *remoteProgress) Animate(from float64, d time.Duration) {
	p.VirtualProgress.Animate(from, d)
	p.pub.Publish("progress", ProgressPayload{From: from, DurationMs: d.Milliseconds(), Running: true})
}

func (p *remoteProgress) Freeze() float64 {
	f := p.VirtualProgress.Freeze()
	p.pub.Publish("progress", ProgressPayload{From: f})
	return f
}
