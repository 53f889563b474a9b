package search

import (
	"context"
	"sync"
)

// gate serializes turns of one session and tracks which turn is current.
// A superseding turn (a top-level action) cancels the in-flight turn and
// bumps the epoch, so the older turn's results are discarded.
// Exclusivity is per process; sessions shared across replicas need sticky routing.
type gate struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem    chan struct{}
	refs   int
	epoch  uint64
	seq    uint64
	owner  uint64
	cancel context.CancelFunc
}

type turn struct {
	ctx    context.Context
	cancel context.CancelFunc
	g      *gate
	id     string
	s      *slot
	epoch  uint64
	seq    uint64
}

func newGate() *gate {
	return &gate{slots: make(map[string]*slot)}
}

// enter waits until the session is free and starts a turn.
func (g *gate) enter(ctx context.Context, id string, supersede bool) (*turn, error) {
	g.mu.Lock()
	s, ok := g.slots[id]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		g.slots[id] = s
	}
	s.refs++
	if supersede {
		s.epoch++
		if s.cancel != nil {
			s.cancel()
		}
	}
	g.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		g.drop(id, s)
		return nil, ctx.Err()
	}

	tctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	s.seq++
	s.owner = s.seq
	s.cancel = cancel
	t := &turn{ctx: tctx, cancel: cancel, g: g, id: id, s: s, epoch: s.epoch, seq: s.seq}
	g.mu.Unlock()

	return t, nil
}

// current reports whether no superseding turn arrived since this one started.
func (t *turn) current() bool {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	return t.s.epoch == t.epoch
}

// leave ends the turn and frees the session for the next one.
func (t *turn) leave() {
	t.cancel()

	t.g.mu.Lock()
	if t.s.owner == t.seq {
		t.s.cancel = nil
	}
	t.g.mu.Unlock()

	<-t.s.sem
	t.g.drop(t.id, t.s)
}

func (g *gate) drop(id string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, id)
	}
}

// active returns the number of sessions with a queued or running turn.
func (g *gate) active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}
