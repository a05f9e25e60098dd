package rotation

import (
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/clock"
)

// VirtualProgress tracks a progress bar that is drawn elsewhere (a browser
// overlay, a test). The rendered fraction is derived from the clock.
type VirtualProgress struct {
	mu      sync.Mutex
	clock   clock.Clock
	from    float64
	start   time.Time
	dur     time.Duration
	running bool
	frozen  float64
}

// NewVirtualProgress returns a progress at 0
func NewVirtualProgress(clk clock.Clock) *VirtualProgress {
	return &VirtualProgress{clock: clk}
}

func (p *VirtualProgress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.from = 0
	p.frozen = 0
}

func (p *VirtualProgress) Animate(from float64, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.from = clamp01(from)
	p.start = p.clock.Now()
	p.dur = d
	p.running = true
}

func (p *VirtualProgress) Freeze() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.fractionLocked()
	p.running = false
	p.frozen = f
	return f
}

// Fraction returns the position currently shown
func (p *VirtualProgress) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fractionLocked()
}

// Animating reports whether the bar is moving, and if so its current run
func (p *VirtualProgress) Animating() (from float64, remaining time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return p.frozen, 0, false
	}
	left := p.dur - p.clock.Now().Sub(p.start)
	return p.fractionLocked(), max(0, left), true
}

func (p *VirtualProgress) fractionLocked() float64 {
	if !p.running {
		return p.frozen
	}
	if p.dur <= 0 {
		return 1
	}
	elapsed := p.clock.Now().Sub(p.start)
	return clamp01(p.from + (1-p.from)*float64(elapsed)/float64(p.dur))
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
