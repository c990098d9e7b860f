package restriction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

type ruleKey struct {
	graph   string
	segment datastructure.SegmentID
}

// MemoryService. rules kept in a map, for tests and small deployments.
type MemoryService struct {
	mu     sync.RWMutex
	rules  map[ruleKey][]Rule
	nextID int64
}

func NewMemoryService() *MemoryService {
	return &MemoryService{rules: make(map[ruleKey][]Rule), nextID: 1}
}

func (m *MemoryService) AddRule(ctx context.Context, r Rule) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID
	m.nextID++
	k := ruleKey{r.GraphName, r.SegmentID}
	m.rules[k] = append(m.rules[k], r)
	return r.ID, nil
}

func (m *MemoryService) Rules(ctx context.Context, graphName string) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Rule, 0)
	for k, rules := range m.rules {
		if k.graph == graphName {
			out = append(out, rules...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryService) IsRestricted(ctx context.Context, graphName string, segmentID datastructure.SegmentID,
	forward bool, at time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules[ruleKey{graphName, segmentID}] {
		if r.Active(forward, at) {
			return true, nil
		}
	}
	return false, nil
}
