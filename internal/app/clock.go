package app

import (
	"sync"
	"time"
)

// FrameID identifies an outstanding frame request.
type FrameID uint64

// FrameClock is the "next frame" primitive the loop is driven by. Callbacks
// must never run synchronously inside Request.
type FrameClock interface {
	// Request schedules fn for the next frame.
	Request(fn func(now time.Time)) FrameID
	// Cancel drops a pending request. Unknown IDs are ignored.
	Cancel(id FrameID)
}

// QueueClock holds requests until Fire is called. Hosts with their own frame
// callback (such as a game loop's update) fire it once per frame.
type QueueClock struct {
	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]func(time.Time)
	order   []FrameID
}

// NewQueueClock creates an empty queue.
func NewQueueClock() *QueueClock {
	return &QueueClock{pending: make(map[FrameID]func(time.Time))}
}

func (c *QueueClock) Request(fn func(now time.Time)) FrameID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.pending[c.next] = fn
	c.order = append(c.order, c.next)
	return c.next
}

func (c *QueueClock) Cancel(id FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Pending returns how many requests are waiting.
func (c *QueueClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Fire runs every request pending at the time of the call, oldest first.
// Requests made by the callbacks wait for the next Fire. It returns how many
// callbacks ran.
func (c *QueueClock) Fire(now time.Time) int {
	c.mu.Lock()
	order := c.order
	c.order = nil
	fns := make([]func(time.Time), 0, len(order))
	for _, id := range order {
		if fn, ok := c.pending[id]; ok {
			fns = append(fns, fn)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}

// ManualClock is a QueueClock with its own notion of time, for tests.
type ManualClock struct {
	*QueueClock
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{QueueClock: NewQueueClock(), now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward by d and fires pending requests.
func (c *ManualClock) Advance(d time.Duration) int {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	return c.Fire(now)
}

// TickerClock fires pending requests from its own goroutine at a fixed
// interval. It drives the loop when there is no window.
type TickerClock struct {
	*QueueClock
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTickerClock starts a clock firing every interval.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	c := &TickerClock{
		QueueClock: NewQueueClock(),
		interval:   interval,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *TickerClock) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.Fire(now)
		}
	}
}

// Interval returns the firing period.
func (c *TickerClock) Interval() time.Duration {
	return c.interval
}

// Stop halts the clock. Pending requests never fire.
func (c *TickerClock) Stop() {
	c.once.Do(func() {
		close(c.stopCh)
		<-c.done
	})
}
