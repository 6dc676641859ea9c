// Package eventsim provides the reference EventScheduler implementation the
// core package depends on through its minimal Scheduler interface: a
// priority-ordered, virtual-time, single-threaded discrete-event loop.
package eventsim

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("eventsim")

type event struct {
	id        uint64
	at        time.Time
	nodeID    string
	fn        func()
	cancelled bool
}

// Handle identifies a scheduled event so it can be cancelled.
type Handle struct {
	id uint64
	s  *Scheduler
}

// Cancel marks the event as cancelled; a no-op if it already ran.
func (h Handle) Cancel() {
	if h.s == nil {
		return
	}
	h.s.cancel(h.id)
}

// Scheduler is a priority-ordered event list backing the core.Scheduler
// interface, grounded on the reference's internal/sbi.EventScheduler and
// timectrl.TimeController: earliest-first ordering via binary-search
// insertion, but driven by virtual time advancing to the next due event
// rather than a wall-clock ticker.
type Scheduler struct {
	mu      sync.Mutex
	now     time.Time
	counter uint64
	events  []*event
	index   map[uint64]*event

	stopSet bool
	stopAt  time.Time
}

// NewScheduler constructs a scheduler whose virtual clock starts at start.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{now: start, index: make(map[uint64]*event)}
}

// Now returns the current virtual time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule fires fn at Now()+delay.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Handle {
	return s.scheduleAt(delay, "", fn)
}

// ScheduleWithContext behaves like Schedule but attaches a node-id context
// used for per-dispatch tracing spans.
func (s *Scheduler) ScheduleWithContext(nodeID string, delay time.Duration, fn func()) Handle {
	return s.scheduleAt(delay, nodeID, fn)
}

func (s *Scheduler) scheduleAt(delay time.Duration, nodeID string, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	ev := &event{id: s.counter, at: s.now.Add(delay), nodeID: nodeID, fn: fn}

	idx := sort.Search(len(s.events), func(i int) bool { return s.events[i].at.After(ev.at) })
	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
	s.index[ev.id] = ev

	return Handle{id: ev.id, s: s}
}

func (s *Scheduler) cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.index[id]; ok {
		ev.cancelled = true
		delete(s.index, id)
	}
}

// Stop requests that Run halt once virtual time would advance past at.
// Events already due at or before at still execute.
func (s *Scheduler) Stop(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopSet = true
	s.stopAt = at
}

// Pending reports how many events remain queued (cancelled events included
// until popped), for diagnostics and tests.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Scheduler) popNext() *event {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		delete(s.index, ev.id)
		if ev.cancelled {
			continue
		}
		if s.stopSet && ev.at.After(s.stopAt) {
			return nil
		}
		s.now = ev.at
		return ev
	}
	return nil
}

// Run drains due events in time order, advancing virtual time to each
// event's scheduled instant, until none remain or Stop's horizon is
// reached. All callbacks execute serially on the calling goroutine; no two
// overlap.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "eventsim.Run")
	defer span.End()

	for {
		ev := s.popNext()
		if ev == nil {
			return
		}
		if ev.nodeID == "" {
			ev.fn()
			continue
		}
		_, evSpan := tracer.Start(ctx, "eventsim.dispatch", oteltrace.WithAttributes(attribute.String("node_id", ev.nodeID)))
		ev.fn()
		evSpan.End()
	}
}
