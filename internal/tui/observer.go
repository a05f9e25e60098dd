package tui

import "github.com/mmcdole/marquee/internal/rotation"

// ChannelObserver adapts rotation.Listener to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan<- rotation.Event
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- rotation.Event) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnEvent sends the event to the channel (non-blocking if full).
func (o *ChannelObserver) OnEvent(e rotation.Event) {
	select {
	case o.ch <- e:
	default: // Non-blocking if channel full
	}
}
