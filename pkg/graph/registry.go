package graph

import (
	"errors"
	"sort"
	"sync"

	"github.com/lintang-b-s/waymatcher/pkg/util"
)

var ErrGraphNotFound = errors.New("graph not found")

// Registry. named graph stores.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register. add or replace the store under name.
func (r *Registry) Register(name string, store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = store
}

func (r *Registry) Get(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, util.WrapErrorf(ErrGraphNotFound, util.ErrNotFound, "graph %q", name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for n := range r.stores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
