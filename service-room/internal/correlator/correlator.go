package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"game-party/pkg/logger"
)

// ErrAwaitTimeout reports that no resolution arrived within the await window.
// A timeout proves nothing about whether the command eventually applied.
var ErrAwaitTimeout = errors.New("timed out waiting for command result")

type outcome struct {
	value interface{}
	err   error
}

// Pending is one unsettled request. It settles exactly once: by resolution,
// by timeout, or by context cancellation. Settlement is the only path that
// evicts it from the correlator's map.
type Pending struct {
	id         string
	done       chan outcome
	settleOnce sync.Once
	correlator *Correlator
}

// Correlator bridges a synchronous caller to an asynchronous completion that
// may happen on another instance. The caller registers a pending request,
// triggers the side effect that will eventually resolve it, and awaits.
type Correlator struct {
	pending sync.Map // request id -> *Pending
	timeout time.Duration
}

// New creates a correlator with the given default await timeout
func New(timeout time.Duration) *Correlator {
	return &Correlator{timeout: timeout}
}

// Register stores an unsettled pending request under id
func (c *Correlator) Register(id string) *Pending {
	p := &Pending{
		id:         id,
		done:       make(chan outcome, 1),
		correlator: c,
	}
	c.pending.Store(id, p)
	return p
}

// ResolveSuccess settles the pending request id with value. Unknown ids are
// logged and dropped: the caller either timed out already or a duplicate
// resolution arrived, both normal distributed-race outcomes.
func (c *Correlator) ResolveSuccess(id string, value interface{}) {
	c.settle(id, outcome{value: value})
}

// ResolveFailure settles the pending request id with err
func (c *Correlator) ResolveFailure(id string, err error) {
	c.settle(id, outcome{err: err})
}

func (c *Correlator) settle(id string, out outcome) {
	v, ok := c.pending.Load(id)
	if !ok {
		logger.Debugf("no pending request %s, dropping resolution", id)
		return
	}
	p := v.(*Pending)
	p.settleOnce.Do(func() {
		c.pending.Delete(id)
		p.done <- out
	})
}

// PendingCount returns the number of unsettled requests
func (c *Correlator) PendingCount() int {
	count := 0
	c.pending.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// ID returns the request id this pending request was registered under
func (p *Pending) ID() string {
	return p.id
}

// Await blocks until the request settles, the correlator's timeout elapses,
// or ctx is cancelled. A late resolution after timeout is discarded.
func (p *Pending) Await(ctx context.Context) (interface{}, error) {
	timer := time.NewTimer(p.correlator.timeout)
	defer timer.Stop()

	select {
	case out := <-p.done:
		return out.value, out.err
	case <-timer.C:
		p.expire()
		return nil, ErrAwaitTimeout
	case <-ctx.Done():
		p.expire()
		return nil, ctx.Err()
	}
}

// expire evicts the entry so an abandoned request cannot leak. A resolution
// that wins the race keeps the once and this becomes a no-op.
func (p *Pending) expire() {
	p.settleOnce.Do(func() {
		p.correlator.pending.Delete(p.id)
	})
}
