// Package registry holds the set of protocol adapters and selects
// candidates for a command based on their declared capabilities.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wayfinder-hq/wayfinder-router/pkg/adapters"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// ErrNoRoute means no registered adapter covers the command
var ErrNoRoute = errors.New("no protocol available for this command")

// Registry is the adapter registry. Selection is capability-driven with
// an operator-configured preference order per operation; adapters the
// operator has not ranked come after ranked ones in registration order.
type Registry struct {
	mu          sync.RWMutex
	order       []adapters.Adapter
	byName      map[string]adapters.Adapter
	preferences map[models.Operation][]string
}

// New creates a registry with the given per-operation preference order
func New(preferences map[models.Operation][]string) *Registry {
	if preferences == nil {
		preferences = make(map[models.Operation][]string)
	}
	return &Registry{
		byName:      make(map[string]adapters.Adapter),
		preferences: preferences,
	}
}

// Register adds an adapter. Names must be unique.
func (r *Registry) Register(adapter adapters.Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("adapter %s is already registered", name)
	}
	r.byName[name] = adapter
	r.order = append(r.order, adapter)
	return nil
}

// Get returns the adapter with the given name
func (r *Registry) Get(name string) (adapters.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.byName[name]
	return adapter, ok
}

// All returns every registered adapter in registration order
func (r *Registry) All() []adapters.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapters.Adapter, len(r.order))
	copy(out, r.order)
	return out
}

// rank returns the preference position of the adapter for the command.
// A protocol the user named explicitly outranks everything; after that
// comes the operator preference order, then unranked adapters in
// registration order.
func (r *Registry) rank(cmd *models.Command, name string) int {
	if cmd.Protocol != "" && cmd.Protocol == name {
		return -1
	}
	for i, preferred := range r.preferences[cmd.Operation] {
		if preferred == name {
			return i
		}
	}
	return len(r.preferences[cmd.Operation])
}

// Select returns the ordered candidate adapters whose capability covers
// the command. Returns ErrNoRoute when nothing covers it.
func (r *Registry) Select(cmd *models.Command) ([]adapters.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type candidate struct {
		adapter adapters.Adapter
		rank    int
		regPos  int
	}

	var candidates []candidate
	for pos, adapter := range r.order {
		if !adapter.Capability().Covers(cmd) {
			continue
		}
		candidates = append(candidates, candidate{
			adapter: adapter,
			rank:    r.rank(cmd, adapter.Name()),
			regPos:  pos,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s on chain %d", ErrNoRoute, cmd.Operation, cmd.SourceChain)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].regPos < candidates[j].regPos
	})

	out := make([]adapters.Adapter, len(candidates))
	for i, c := range candidates {
		out[i] = c.adapter
	}
	return out, nil
}
