// Package poller periodically fetches arrival predictions for every
// subscribed stop and keeps the latest snapshot per subscription.
package poller

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/transitwatch/transitwatch/pkg/client"
)

// TransitAPI is the subset of the API client the poller needs.
type TransitAPI interface {
	ListSubscriptions(ctx context.Context) ([]client.Subscription, error)
	Arrivals(ctx context.Context, routeID, stopID string) ([]client.Arrival, error)
}

// Gate reports whether the session is still allowed to make requests.
type Gate interface {
	Allow() bool
}

// Snapshot is the most recent arrival data for one subscription.
// Stale is set when the last fetch failed and the data shown is the
// previous successful result.
type Snapshot struct {
	Subscription client.Subscription
	Arrivals     []client.Arrival
	FetchedAt    time.Time
	Stale        bool
}

// Config contains configuration for the arrivals poller
type Config struct {
	// Schedule is a cron expression; descriptors like "@every 1m" are accepted
	Schedule string
	// RequestTimeout bounds each upstream fetch
	RequestTimeout time.Duration
}

// DefaultConfig returns the default poller configuration
func DefaultConfig() Config {
	return Config{
		Schedule:       "@every 1m",
		RequestTimeout: 30 * time.Second,
	}
}

// Poller drives the periodic fetch loop
type Poller struct {
	api      TransitAPI
	gate     Gate
	config   Config
	schedule cron.Schedule

	// Internal state
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex

	snapMu    sync.RWMutex
	snapshots map[string]Snapshot

	listenerMu sync.Mutex
	listeners  map[int]func([]Snapshot)
	nextID     int
}

// NewPoller creates a new arrivals poller. It returns an error when the
// schedule expression does not parse.
func NewPoller(api TransitAPI, gate Gate, config Config) (*Poller, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultConfig().Schedule
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", config.Schedule, err)
	}

	return &Poller{
		api:       api,
		gate:      gate,
		config:    config,
		schedule:  schedule,
		stopCh:    make(chan struct{}),
		snapshots: make(map[string]Snapshot),
		listeners: make(map[int]func([]Snapshot)),
	}, nil
}

// Start begins the poll loop
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	// A fresh channel per start, so the poller can be started again
	// after a stop
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, stopCh)

	log.Printf("[POLLER] Started with schedule %q", p.config.Schedule)
	return nil
}

// Stop gracefully stops the poller
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	p.mu.Unlock()

	close(stopCh)
	p.wg.Wait()
	log.Printf("[POLLER] Stopped")
}

// Subscribe registers a callback invoked after every poll cycle with the
// current snapshots. It returns a function that removes the listener.
func (p *Poller) Subscribe(fn func([]Snapshot)) func() {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.listenerMu.Lock()
		defer p.listenerMu.Unlock()
		delete(p.listeners, id)
	}
}

// Snapshots returns the current snapshots ordered by route then stop
func (p *Poller) Snapshots() []Snapshot {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()
	return p.sortedSnapshotsLocked()
}

// run is the main poll loop
func (p *Poller) run(ctx context.Context, stopCh <-chan struct{}) {
	defer p.wg.Done()

	// Poll immediately on start
	if !p.poll(ctx) {
		p.finish()
		return
	}

	for {
		next := p.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("[POLLER] Context cancelled, stopping")
			p.finish()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
			if !p.poll(ctx) {
				p.finish()
				return
			}
		}
	}
}

// finish marks the loop as stopped after it exits on its own, so a later
// Stop call does not close stopCh twice.
func (p *Poller) finish() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// poll runs one fetch cycle. It returns false when the session has ended
// and the loop should stop.
func (p *Poller) poll(ctx context.Context) bool {
	if !p.gate.Allow() {
		log.Printf("[POLLER] Session no longer authenticated, stopping")
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	subs, err := p.api.ListSubscriptions(fetchCtx)
	if err != nil {
		// Keep showing the previous snapshots, marked stale
		log.Printf("[POLLER] Failed to list subscriptions: %v", err)
		p.markAllStale()
		p.notify()
		return true
	}

	fresh := make(map[string]Snapshot, len(subs))
	for _, sub := range subs {
		arrivals, err := p.api.Arrivals(fetchCtx, sub.RouteID, sub.StopID)
		if err != nil {
			log.Printf("[POLLER] Failed to fetch arrivals for route %s stop %s: %v", sub.RouteID, sub.StopID, err)
			if prev, ok := p.previous(sub.ID); ok {
				prev.Stale = true
				prev.Subscription = sub
				fresh[sub.ID] = prev
			} else {
				fresh[sub.ID] = Snapshot{Subscription: sub, Stale: true}
			}
			continue
		}
		fresh[sub.ID] = Snapshot{
			Subscription: sub,
			Arrivals:     arrivals,
			FetchedAt:    time.Now(),
		}
	}

	// Snapshots for deleted subscriptions are dropped here
	p.snapMu.Lock()
	p.snapshots = fresh
	p.snapMu.Unlock()

	p.notify()
	return true
}

func (p *Poller) previous(subscriptionID string) (Snapshot, bool) {
	p.snapMu.RLock()
	defer p.snapMu.RUnlock()
	snap, ok := p.snapshots[subscriptionID]
	return snap, ok
}

func (p *Poller) markAllStale() {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	for id, snap := range p.snapshots {
		snap.Stale = true
		p.snapshots[id] = snap
	}
}

func (p *Poller) notify() {
	p.snapMu.RLock()
	snaps := p.sortedSnapshotsLocked()
	p.snapMu.RUnlock()

	p.listenerMu.Lock()
	fns := make([]func([]Snapshot), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenerMu.Unlock()

	for _, fn := range fns {
		fn(snaps)
	}
}

// sortedSnapshotsLocked copies the snapshot map into a stable-ordered
// slice. Callers must hold snapMu.
func (p *Poller) sortedSnapshotsLocked() []Snapshot {
	snaps := make([]Snapshot, 0, len(p.snapshots))
	for _, snap := range p.snapshots {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i].Subscription, snaps[j].Subscription
		if a.RouteID != b.RouteID {
			return a.RouteID < b.RouteID
		}
		return a.StopID < b.StopID
	})
	return snaps
}
