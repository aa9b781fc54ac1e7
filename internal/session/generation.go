package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Generation orders the requests of one fetch flow. Only the holder of the
// most recently issued token may commit its response.
type Generation struct {
	n atomic.Uint64
}

func (g *Generation) Begin() uint64 {
	return g.n.Add(1)
}

func (g *Generation) Current(token uint64) bool {
	return g.n.Load() == token
}

// Debouncer runs only the last function triggered within the delay.
type Debouncer struct {
	Delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.Delay, fn)
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
