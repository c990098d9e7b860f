package graph

import (
	"context"
	"sort"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/spatialindex"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"go.uber.org/zap"
)

// MemoryStore. whole graph in memory, immutable after NewMemoryStore.
type MemoryStore struct {
	segments map[datastructure.SegmentID]*datastructure.WaySegment
	adj      adjacency
	rt       *spatialindex.Rtree
}

func NewMemoryStore(segments []*datastructure.WaySegment, log *zap.Logger) *MemoryStore {
	ms := &MemoryStore{
		segments: make(map[datastructure.SegmentID]*datastructure.WaySegment, len(segments)),
		adj:      make(adjacency),
		rt:       spatialindex.NewRtree(),
	}
	for _, s := range segments {
		if _, ok := ms.segments[s.GetID()]; ok {
			log.Warn("duplicate segment id, keeping the first one", zap.Int64("segment_id", int64(s.GetID())))
			continue
		}
		ms.segments[s.GetID()] = s
		ms.adj.add(s)
	}
	ms.adj.sort()
	ms.rt.Build(ms.Segments(), log)
	return ms
}

func (ms *MemoryStore) Len() int {
	return len(ms.segments)
}

// Segments. all segments in ascending id order.
func (ms *MemoryStore) Segments() []*datastructure.WaySegment {
	out := make([]*datastructure.WaySegment, 0, len(ms.segments))
	for _, s := range ms.segments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GetID() < out[j].GetID()
	})
	return out
}

func (ms *MemoryStore) SegmentByID(ctx context.Context, id datastructure.SegmentID) (*datastructure.WaySegment, error) {
	s, ok := ms.segments[id]
	if !ok {
		return nil, util.WrapErrorf(ErrSegmentNotFound, util.ErrNotFound, "segment %d", id)
	}
	return s, nil
}

func (ms *MemoryStore) SegmentsNear(ctx context.Context, c geo.Coordinate, radius float64) ([]*datastructure.WaySegment, error) {
	ids := ms.rt.SearchWithinRadius(c, radius)
	out := make([]*datastructure.WaySegment, 0, len(ids))
	for _, id := range ids {
		if util.StopConcurrentOperation(ctx) {
			return nil, ctx.Err()
		}
		s := ms.segments[id]
		if withinRadius(s, c, radius) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (ms *MemoryStore) EdgesFrom(ctx context.Context, node datastructure.NodeID) ([]Edge, error) {
	refs := ms.adj[node]
	out := make([]Edge, 0, len(refs))
	for _, r := range refs {
		out = append(out, Edge{Segment: ms.segments[r.segment], Direction: r.direction})
	}
	return out, nil
}
