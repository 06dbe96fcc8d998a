// Package countdown tracks the per-room hold countdown broadcast by the
// server. The server owns the clock; this coordinator only mirrors it,
// persists the last value so a reload shows the same remaining time, and
// reacts when it runs out. It never frees seats over the network itself.
package countdown

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/cinehall/seatlink/internal/resume"
)

type Coordinator struct {
	log   *zap.Logger
	cache *resume.Store

	mu      sync.Mutex
	current int
	running bool
	subs    map[string]chan int

	// onExpire fires once when a running countdown reaches zero. The session
	// uses it to clear its selection and ask the server for a fresh snapshot.
	onExpire func()
}

func New(log *zap.Logger, cache *resume.Store, onExpire func()) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		log:      log,
		cache:    cache,
		subs:     make(map[string]chan int),
		onExpire: onExpire,
	}
}

// Tick feeds one server countdown value in. The value is persisted before it
// is republished, and a transition to zero clears the persisted selection and
// stops the stream until the next positive tick (the next JoinRoom).
func (c *Coordinator) Tick(seconds int) {
	if seconds < 0 {
		seconds = 0
	}

	c.mu.Lock()
	if seconds > 0 {
		c.running = true
	} else if !c.running {
		c.mu.Unlock()
		return
	}

	c.current = seconds
	if c.cache != nil {
		if err := c.cache.Set(resume.KeyCountdown, strconv.Itoa(seconds)); err != nil {
			c.log.Warn("persisting countdown failed", zap.Error(err))
		}
	}
	c.publish(seconds)

	expired := seconds == 0
	if expired {
		c.running = false
		if c.cache != nil {
			if err := c.cache.Delete(resume.KeySelection); err != nil {
				c.log.Warn("clearing persisted selection failed", zap.Error(err))
			}
		}
	}
	onExpire := c.onExpire
	c.mu.Unlock()

	if expired {
		c.log.Info("hold countdown expired, selection released")
		if onExpire != nil {
			onExpire()
		}
	}
}

// Current returns the last seen value and whether the countdown is live.
func (c *Coordinator) Current() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.running
}

// Resume returns the persisted countdown from a previous run, for showing the
// remaining time right after a reload before the next server tick lands.
func (c *Coordinator) Resume() (int, bool) {
	if c.cache == nil {
		return 0, false
	}
	v, ok := c.cache.Get(resume.KeyCountdown)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Stop halts the stream without firing the expiry path, used on teardown.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.current = 0
}

// Subscribe registers a tick outbox. The channel must be buffered; slow
// subscribers are dropped.
func (c *Coordinator) Subscribe(id string, ch chan int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[id] = ch
}

func (c *Coordinator) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

func (c *Coordinator) publish(seconds int) {
	for id, ch := range c.subs {
		select {
		case ch <- seconds:
		default:
			close(ch)
			delete(c.subs, id)
		}
	}
}
