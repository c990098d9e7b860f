package restriction

import (
	"context"
	"fmt"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

// Filter. edge predicate consulted by the matcher for every traversal.
type Filter struct {
	svc Service
}

func NewFilter(svc Service) *Filter {
	if svc == nil {
		svc = Unrestricted{}
	}
	return &Filter{svc: svc}
}

// TraversalDirection. direction of to when entered from the exit node of from traveled in fromDir.
// false if the two segments share no node there.
func TraversalDirection(from *datastructure.WaySegment, fromDir datastructure.Direction,
	to *datastructure.WaySegment) (datastructure.Direction, bool) {
	exit := from.ExitNode(fromDir)
	switch exit {
	case to.GetStartNode():
		return datastructure.FORWARD, true
	case to.GetEndNode():
		return datastructure.BACKWARD, true
	default:
		return datastructure.FORWARD, false
	}
}

// IsTraversable. can the matcher move from (from, fromDir) onto to at time at.
// returns the direction to is traversed in. on a service error the edge is reported as not traversable.
func (f *Filter) IsTraversable(ctx context.Context, graphName string, from *datastructure.WaySegment,
	fromDir datastructure.Direction, to *datastructure.WaySegment, at time.Time) (datastructure.Direction, bool, error) {
	dir, ok := TraversalDirection(from, fromDir, to)
	if !ok {
		return dir, false, nil
	}
	ok, err := f.IsSegmentTraversable(ctx, graphName, to, dir, at)
	return dir, ok, err
}

// IsTraversableAs. IsTraversable for a known direction of to, as listed by the graph store. a loop
// segment touches the exit node with both ends, so only the edge list can tell its two directions apart.
func (f *Filter) IsTraversableAs(ctx context.Context, graphName string, from *datastructure.WaySegment,
	fromDir datastructure.Direction, to *datastructure.WaySegment, toDir datastructure.Direction, at time.Time) (bool, error) {
	if to.EntryNode(toDir) != from.ExitNode(fromDir) {
		return false, nil
	}
	return f.IsSegmentTraversable(ctx, graphName, to, toDir, at)
}

// IsSegmentTraversable. seed check, no predecessor segment.
func (f *Filter) IsSegmentTraversable(ctx context.Context, graphName string, seg *datastructure.WaySegment,
	dir datastructure.Direction, at time.Time) (bool, error) {
	restricted, err := f.svc.IsRestricted(ctx, graphName, seg.GetID(), dir == datastructure.FORWARD, at)
	if err != nil {
		return false, fmt.Errorf("%w: segment %d %s: %w", ErrRestrictionUnavailable, seg.GetID(), dir, err)
	}
	return !restricted, nil
}
