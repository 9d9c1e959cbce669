package plugin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/bloom/internal/store"
)

// DefaultQueueSize is how many events may wait for the dispatcher.
const DefaultQueueSize = 32

// HookSource returns the enabled hooks bound to an event.
type HookSource interface {
	ForEvent(event string) ([]*store.Hook, error)
}

// Result is the outcome of one hook run.
type Result struct {
	HookID   string
	Plugin   string
	Action   string
	Response *Response
	Err      error
}

type job struct {
	event   Event
	payload Payload
}

// Dispatcher runs hooks on its own goroutine. Emit never blocks: when the
// queue is full the event is dropped and counted.
type Dispatcher struct {
	hooks   HookSource
	plugins *Manager
	exec    *Executor

	mu     sync.RWMutex
	queue  chan job
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Uint64
	fired   atomic.Uint64
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(hooks HookSource, plugins *Manager, exec *Executor, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if exec == nil {
		exec = NewExecutor(DefaultTimeoutMs)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		hooks:   hooks,
		plugins: plugins,
		exec:    exec,
		queue:   make(chan job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues an event. It reports false when the event was dropped.
func (d *Dispatcher) Emit(ev Event, p Payload) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- job{event: ev, payload: p}:
		return true
	default:
		if d.dropped.Add(1) == 1 {
			log.Printf("[Plugin] queue full, dropping %s events", ev)
		}
		return false
	}
}

// Dropped counts events lost to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Fired counts hook runs that completed successfully.
func (d *Dispatcher) Fired() uint64 {
	return d.fired.Load()
}

// Close stops accepting events, abandons queued ones and waits for the
// running hook to finish or be killed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cancel()
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		if d.ctx.Err() != nil {
			continue
		}
		for _, r := range d.Dispatch(d.ctx, j.event, j.payload) {
			if r.Err != nil {
				log.Printf("[Plugin] %s hook %s/%s failed: %v", j.event, r.Plugin, r.Action, r.Err)
			}
		}
	}
}

// Dispatch runs every enabled hook for ev in order and waits for them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, p Payload) []Result {
	hooks, err := d.hooks.ForEvent(string(ev))
	if err != nil {
		log.Printf("[Plugin] load hooks for %s: %v", ev, err)
		return nil
	}

	results := make([]Result, 0, len(hooks))
	for _, h := range hooks {
		if ctx.Err() != nil {
			break
		}
		r := Result{HookID: h.ID, Plugin: h.PluginName, Action: h.ActionName}
		r.Response, r.Err = d.runHook(ctx, h, ev, p)
		if r.Err == nil {
			d.fired.Add(1)
		}
		results = append(results, r)
	}
	return results
}

func (d *Dispatcher) runHook(ctx context.Context, h *store.Hook, ev Event, p Payload) (*Response, error) {
	plugin, err := d.plugins.Get(h.PluginName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.PluginName, err)
	}
	if !plugin.Manifest.Handles(ev) {
		return nil, fmt.Errorf("%s does not handle %s events", h.PluginName, ev)
	}
	if !plugin.Manifest.HasAction(h.ActionName) {
		return nil, fmt.Errorf("%s has no action %q", h.PluginName, h.ActionName)
	}

	resp, err := d.exec.Execute(ctx, plugin, &Request{
		Action:  h.ActionName,
		Event:   ev,
		Config:  h.Config,
		Payload: p,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "plugin reported failure"
		}
		return resp, errors.New(msg)
	}
	return resp, nil
}
