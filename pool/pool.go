// Package pool manages a set of provider configurations and picks one per
// request according to a load-balancing strategy. Entries carry live
// concurrency counts so strategies can steer traffic toward idle backends.
package pool

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/deepnoodle-ai/strand/log"
)

// ErrNoAvailableProvider indicates every entry is either disabled or at its
// concurrency cap.
var ErrNoAvailableProvider = errors.New("no available provider")

// DefaultWeight is the weight used by the weighted-random strategy for
// configs that do not set MaxConcurrent.
const DefaultWeight = 10

type entry struct {
	id      string
	config  Config
	running int
	enabled bool
}

// available reports whether the entry can accept another request.
func (e *entry) available() bool {
	if !e.enabled {
		return false
	}
	if e.config.MaxConcurrent > 0 && e.running >= e.config.MaxConcurrent {
		return false
	}
	return true
}

// Pool holds provider configs and selects among them. All methods are safe
// for concurrent use.
type Pool struct {
	mu       sync.Mutex
	strategy Strategy
	order    []string
	entries  map[string]*entry
	cursor   int
	rng      *rand.Rand
	logger   log.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithStrategy sets the default selection strategy.
func WithStrategy(s Strategy) Option {
	return func(p *Pool) { p.strategy = s }
}

// WithLogger sets the logger used for pool events.
func WithLogger(logger log.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithRandSource sets the random source used by the random and
// weighted-random strategies. Useful in tests.
func WithRandSource(src rand.Source) Option {
	return func(p *Pool) { p.rng = rand.New(src) }
}

// New creates an empty pool. The default strategy is round-robin.
func New(opts ...Option) *Pool {
	p := &Pool{
		strategy: StrategyRoundRobin,
		entries:  map[string]*entry{},
		logger:   log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}

// Add registers a config and returns its ID. Adding a config whose content
// hash already exists is a no-op returning the existing ID, so the same
// backend never appears twice.
func (p *Pool) Add(cfg Config) string {
	id := cfg.ID()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[id]; ok {
		return id
	}
	p.entries[id] = &entry{id: id, config: cfg, enabled: true}
	p.order = append(p.order, id)
	p.logger.Debug("provider added", "provider_id", id, "base_url", cfg.BaseURL)
	return id
}

// Remove deletes a config from the pool. Outstanding handles for the removed
// entry become inert: releasing them is a no-op.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[id]; !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	delete(p.entries, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Enable marks an entry as selectable.
func (p *Pool) Enable(id string) error {
	return p.setEnabled(id, true)
}

// Disable removes an entry from selection without deleting it. In-flight
// requests against the entry are unaffected.
func (p *Pool) Disable(id string) error {
	return p.setEnabled(id, false)
}

func (p *Pool) setEnabled(id string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	e.enabled = enabled
	return nil
}

// Len returns the number of registered configs, enabled or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Get selects an available entry and returns a handle for it. The handle
// holds one concurrency slot until released. An optional strategy argument
// overrides the pool default for this call only.
func (p *Pool) Get(strategy ...Strategy) (*Handle, error) {
	s := p.strategy
	if len(strategy) > 0 {
		s = strategy[0]
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var avail []*entry
	for _, id := range p.order {
		if e := p.entries[id]; e.available() {
			avail = append(avail, e)
		}
	}
	if len(avail) == 0 {
		return nil, ErrNoAvailableProvider
	}

	selected, err := p.selectEntry(s, avail)
	if err != nil {
		return nil, err
	}
	selected.running++
	return &Handle{
		ID:     selected.id,
		Config: selected.config,
		pool:   p,
	}, nil
}

// release returns the concurrency slot for the given entry. Entries removed
// from the pool are silently skipped; the count never drops below zero.
func (p *Pool) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return
	}
	if e.running > 0 {
		e.running--
	}
}

// Running returns the in-flight request count for an entry, or zero for an
// unknown ID.
func (p *Pool) Running(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		return e.running
	}
	return 0
}

// Handle is a leased concurrency slot against one config. Callers must call
// Release when the request completes, success or failure.
type Handle struct {
	ID     string
	Config Config

	pool        *Pool
	releaseOnce sync.Once
}

// Release returns the slot to the pool. Safe to call more than once; only
// the first call has an effect.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		h.pool.release(h.ID)
	})
}

// Disable pulls the handle's config out of selection without touching the
// handle's own slot, for callers that discover mid-request that the backend
// is unhealthy. A no-op if the entry was removed.
func (h *Handle) Disable() {
	_ = h.pool.setEnabled(h.ID, false)
}

// Enable returns the handle's config to selection. A no-op if the entry was
// removed.
func (h *Handle) Enable() {
	_ = h.pool.setEnabled(h.ID, true)
}
