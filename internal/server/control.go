package server

import (
	"sync"

	"github.com/michaellans/Badger/internal/core"
)

type controlMode int

const (
	modeRunning controlMode = iota
	modePaused
	modeStopped
)

// controller turns control requests into the signals the driver polls.
// remaining counts the iterations left before an automatic pause; -1 means
// no limit.
type controller struct {
	mu        sync.Mutex
	cond      *sync.Cond
	mode      controlMode
	remaining int
}

func newController() *controller {
	c := &controller{remaining: -1}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// signal is the driver's ShouldContinue.
func (c *controller) signal() core.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case modeStopped:
		return core.Stop
	case modePaused:
		return core.Pause
	}
	if c.remaining == 0 {
		c.mode = modePaused
		c.remaining = -1
		return core.Pause
	}
	if c.remaining > 0 {
		c.remaining--
	}
	return core.Continue
}

func (c *controller) set(mode controlMode, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == modeStopped {
		return
	}
	c.mode = mode
	c.remaining = remaining
	c.cond.Broadcast()
}

func (c *controller) pause()     { c.set(modePaused, -1) }
func (c *controller) resume()    { c.set(modeRunning, -1) }
func (c *controller) step(n int) { c.set(modeRunning, n) }

func (c *controller) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = modeStopped
	c.cond.Broadcast()
}

// waitResume blocks while paused. It returns false once stopped.
func (c *controller) waitResume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.mode == modePaused {
		c.cond.Wait()
	}
	return c.mode != modeStopped
}
