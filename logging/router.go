package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Clock stamps events that arrive without a time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sink receives routed events on its own goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

const (
	defaultQueueSize   = 512
	minLaneSize        = 32
	maxLaneSize        = 1024
	maxRetryDelay      = 32 * time.Second
	defaultDropWarning = 5 * time.Second
)

// Router is the asynchronous Publisher behind the simulation. Publish never
// blocks the tick: a full queue drops the event and counts it. A dispatcher
// goroutine filters and decorates events, then hands each one to a lane per
// sink.
type Router struct {
	minSeverity Severity
	fields      map[string]any
	clock       Clock
	fallback    *log.Logger

	incoming  chan Event
	lanes     []*sinkLane
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	accepting atomic.Bool

	routed  atomic.Uint64
	dropped atomic.Uint64
	warn    dropThrottle
}

type RouterStats struct {
	EventsTotal  uint64      `json:"eventsTotal"`
	DroppedTotal uint64      `json:"droppedTotal"`
	Sinks        []SinkStats `json:"sinks,omitempty"`
}

// SinkStats reports one lane. Skipped counts events discarded while the sink
// was backing off after a failure.
type SinkStats struct {
	Name    string `json:"name"`
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Skipped uint64 `json:"skipped"`
	Dropped uint64 `json:"dropped"`
}

// NewRouter starts routing to sinks. Every name in cfg.EnabledSinks must be
// present in sinks; extra entries are routed as well. Lanes are ordered by
// name.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks map[string]Sink) (*Router, error) {
	for _, name := range cfg.EnabledSinks {
		if sinks[name] == nil {
			return nil, fmt.Errorf("logging: sink %q enabled but not provided", name)
		}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}

	queueSize := cfg.BufferSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	laneSize := min(max(queueSize, minLaneSize), maxLaneSize)

	r := &Router{
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
		clock:       clock,
		fallback:    fallback,
		incoming:    make(chan Event, queueSize),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
		warn:        dropThrottle{every: cfg.DropWarnInterval},
	}
	if r.warn.every <= 0 {
		r.warn.every = defaultDropWarning
	}

	names := make([]string, 0, len(sinks))
	for name, sink := range sinks {
		if sink != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		r.lanes = append(r.lanes, &sinkLane{
			name:     name,
			sink:     sinks[name],
			pending:  make(chan Event, laneSize),
			clock:    clock,
			fallback: fallback,
		})
	}

	r.accepting.Store(true)
	go r.dispatch()
	return r, nil
}

func (r *Router) dispatch() {
	var lanes sync.WaitGroup
	for _, lane := range r.lanes {
		lanes.Add(1)
		go func() {
			defer lanes.Done()
			lane.deliver()
		}()
	}

	defer close(r.stopped)
	for {
		select {
		case event := <-r.incoming:
			r.route(event)
		case <-r.stop:
			for len(r.incoming) > 0 {
				r.route(<-r.incoming)
			}
			for _, lane := range r.lanes {
				close(lane.pending)
			}
			lanes.Wait()
			return
		}
	}
}

func (r *Router) route(event Event) {
	if event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = decorate(event, r.fields)
	r.routed.Add(1)
	for _, lane := range r.lanes {
		lane.offer(event)
	}
}

// Publish queues event for routing. Events without a type and events
// published after Close are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || !r.accepting.Load() {
		return
	}
	select {
	case r.incoming <- event:
	default:
		r.dropped.Add(1)
		if r.warn.allow(time.Now()) {
			r.fallback.Printf("event queue full, dropping type=%s tick=%d", event.Type, event.Tick)
		}
	}
}

// Close stops accepting events, routes whatever is queued, waits for every
// lane to finish and closes the sinks. Only the first call does any work.
func (r *Router) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.accepting.Store(false)
		close(r.stop)
		select {
		case <-r.stopped:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
		for _, lane := range r.lanes {
			if cerr := lane.sink.Close(ctx); cerr != nil && err == nil {
				err = fmt.Errorf("close sink %s: %w", lane.name, cerr)
			}
		}
	})
	return err
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.routed.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	for _, lane := range r.lanes {
		stats.Sinks = append(stats.Sinks, lane.stats())
	}
	return stats
}

// Sink returns the sink registered under name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, lane := range r.lanes {
		if lane.name == name {
			return lane.sink
		}
	}
	return nil
}

// dropThrottle rate-limits the queue-full warning.
type dropThrottle struct {
	mu    sync.Mutex
	every time.Duration
	last  time.Time
}

func (d *dropThrottle) allow(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.last.IsZero() && now.Sub(d.last) < d.every {
		return false
	}
	d.last = now
	return true
}

// sinkLane feeds one sink. After a failed write the lane skips events until
// its retry time, doubling the pause on each consecutive failure.
type sinkLane struct {
	name     string
	sink     Sink
	pending  chan Event
	clock    Clock
	fallback *log.Logger

	streak  int
	retryAt time.Time

	written atomic.Uint64
	failed  atomic.Uint64
	skipped atomic.Uint64
	dropped atomic.Uint64
}

func (l *sinkLane) offer(event Event) {
	select {
	case l.pending <- CloneEvent(event):
	default:
		l.dropped.Add(1)
	}
}

func (l *sinkLane) deliver() {
	for event := range l.pending {
		now := l.clock.Now()
		if l.streak > 0 && now.Before(l.retryAt) {
			l.skipped.Add(1)
			continue
		}
		if err := l.sink.Write(event); err != nil {
			l.failed.Add(1)
			l.streak++
			delay := retryDelay(l.streak)
			l.retryAt = now.Add(delay)
			l.fallback.Printf("sink %s failed: %v (pausing %s)", l.name, err, delay)
			continue
		}
		l.written.Add(1)
		l.streak = 0
	}
}

func (l *sinkLane) stats() SinkStats {
	return SinkStats{
		Name:    l.name,
		Written: l.written.Load(),
		Failed:  l.failed.Load(),
		Skipped: l.skipped.Load(),
		Dropped: l.dropped.Load(),
	}
}

// retryDelay is 2s after the first failure, doubling up to maxRetryDelay.
func retryDelay(streak int) time.Duration {
	delay := time.Second << min(streak, 6)
	return min(delay, maxRetryDelay)
}
