// Package navigation drives one session through the step graph.
//
// A Navigator owns the current record and the history stack. Forward moves
// merge their patch and push the target as one unit: when a transition is
// rejected neither the record nor the history changes, and readers never see
// a step paired with a record from a different transition.
package navigation

import (
	"fmt"
	"sync"

	"github.com/kingrea/airway/internal/logbook"
	"github.com/kingrea/airway/internal/record"
	"github.com/kingrea/airway/internal/steps"
)

// Hook runs after a forward transition is accepted and before it becomes
// visible. Hooks must not call back into the Navigator.
type Hook func(from, to steps.StepID)

// Navigator is the stateful controller for one session.
type Navigator struct {
	mu      sync.RWMutex
	catalog *steps.Catalog
	store   *record.Store
	history []steps.StepID
	hooks   []Hook
	checked bool
	log     *logbook.Logbook
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithStore uses an existing record store instead of a fresh one.
func WithStore(store *record.Store) Option {
	return func(n *Navigator) {
		if store != nil {
			n.store = store
		}
	}
}

// WithBeforeStep registers a hook that runs before every step change, for
// example to close a transient overlay.
func WithBeforeStep(hook Hook) Option {
	return func(n *Navigator) {
		if hook != nil {
			n.hooks = append(n.hooks, hook)
		}
	}
}

// WithUnchecked disables successor validation; any target is accepted.
func WithUnchecked() Option {
	return func(n *Navigator) {
		n.checked = false
	}
}

// WithLogbook records transitions, rejections and resets.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(n *Navigator) {
		n.log = lb
	}
}

// New returns a navigator positioned at steps.Initial. A nil catalog selects
// the embedded one.
func New(catalog *steps.Catalog, opts ...Option) *Navigator {
	if catalog == nil {
		catalog = steps.Default()
	}
	n := &Navigator{
		catalog: catalog,
		store:   record.NewStore(),
		history: []steps.StepID{steps.Initial},
		checked: true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NavigateTo merges patch (if any) and moves to target. In checked mode the
// move must be a legal successor of the current step on the merged record;
// otherwise a *steps.TransitionError is returned and nothing changes.
func (n *Navigator) NavigateTo(target steps.StepID, patch *record.Patch) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	candidate := n.store.Record()
	if patch != nil {
		if err := patch.Validate(); err != nil {
			return fmt.Errorf("navigation: %w", err)
		}
		candidate = record.Merge(candidate, *patch)
	}
	return n.commit(target, candidate)
}

// NavigateNested is NavigateTo with a nested-path update.
func (n *Navigator) NavigateNested(target steps.StepID, nested record.NestedPatch) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.commit(target, record.MergeNested(n.store.Record(), nested))
}

func (n *Navigator) commit(target steps.StepID, candidate record.Record) error {
	from := n.current()
	if n.checked {
		if err := n.catalog.Allowed(from, target, candidate); err != nil {
			n.log.Warn("navigation rejected %s -> %s: %v", from, target, err)
			return err
		}
	} else if _, ok := n.catalog.Step(target); !ok {
		n.log.Warn("navigation to undeclared step %s", target)
	}
	for _, hook := range n.hooks {
		hook(from, target)
	}
	n.store.Replace(candidate)
	n.history = append(n.history, target)
	n.log.Info("navigate %s -> %s (depth %d)", from, target, len(n.history))
	return nil
}

// Apply merges patch into the record without moving, for in-step handlers.
func (n *Navigator) Apply(patch record.Patch) (record.Record, error) {
	if err := patch.Validate(); err != nil {
		return record.Record{}, fmt.Errorf("navigation: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.Merge(patch), nil
}

// ApplyNested merges a nested-path update without moving.
func (n *Navigator) ApplyNested(nested record.NestedPatch) record.Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.MergeNested(nested)
}

// GoBack pops the history. It is a no-op returning false when only the root
// entry remains. The record is never touched.
func (n *Navigator) GoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) <= 1 {
		return false
	}
	from := n.current()
	n.history = n.history[:len(n.history)-1]
	n.log.Info("back %s -> %s", from, n.current())
	return true
}

// Reset restores the default record and a history of [steps.Initial].
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.store.Reset()
	n.history = []steps.StepID{steps.Initial}
	n.log.Info("session reset")
}

// Current returns the current step.
func (n *Navigator) Current() steps.StepID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current()
}

func (n *Navigator) current() steps.StepID {
	return n.history[len(n.history)-1]
}

// History returns a copy of the history stack, root first.
func (n *Navigator) History() []steps.StepID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return cloneHistory(n.history)
}

// Record returns a copy of the current record.
func (n *Navigator) Record() record.Record {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.store.Record()
}

// Catalog returns the step graph the navigator validates against.
func (n *Navigator) Catalog() *steps.Catalog {
	return n.catalog
}

// Checked reports whether transitions are validated.
func (n *Navigator) Checked() bool {
	return n.checked
}

// Snapshot is a consistent view of the navigation state.
type Snapshot struct {
	Current steps.StepID   `json:"current"`
	History []steps.StepID `json:"history"`
	Record  record.Record  `json:"record"`
}

// Snapshot reads step, history and record under one lock.
func (n *Navigator) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Snapshot{
		Current: n.current(),
		History: cloneHistory(n.history),
		Record:  n.store.Record(),
	}
}

func cloneHistory(h []steps.StepID) []steps.StepID {
	out := make([]steps.StepID, len(h))
	copy(out, h)
	return out
}
