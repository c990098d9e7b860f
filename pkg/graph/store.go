package graph

import (
	"context"
	"errors"
	"sort"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
)

var (
	ErrSegmentNotFound = errors.New("segment not found")
)

// Store. read-only road graph used by the matcher. implementations must be safe for concurrent readers
// and return results in ascending segment id order.
type Store interface {
	SegmentByID(ctx context.Context, id datastructure.SegmentID) (*datastructure.WaySegment, error)
	// SegmentsNear. segments whose geometry lies within radius (meter) of c.
	SegmentsNear(ctx context.Context, c geo.Coordinate, radius float64) ([]*datastructure.WaySegment, error)
	// EdgesFrom. every segment touching node, with the direction that leaves node.
	EdgesFrom(ctx context.Context, node datastructure.NodeID) ([]Edge, error)
}

type Edge struct {
	Segment   *datastructure.WaySegment
	Direction datastructure.Direction
}

// edgeRef. adjacency entry, segment resolved lazily by the store.
type edgeRef struct {
	segment   datastructure.SegmentID
	direction datastructure.Direction
}

type adjacency map[datastructure.NodeID][]edgeRef

func (a adjacency) add(s *datastructure.WaySegment) {
	a[s.GetStartNode()] = append(a[s.GetStartNode()], edgeRef{s.GetID(), datastructure.FORWARD})
	if s.GetEndNode() != s.GetStartNode() {
		a[s.GetEndNode()] = append(a[s.GetEndNode()], edgeRef{s.GetID(), datastructure.BACKWARD})
	} else {
		// closed loop, both directions leave the same node
		a[s.GetStartNode()] = append(a[s.GetStartNode()], edgeRef{s.GetID(), datastructure.BACKWARD})
	}
}

func (a adjacency) sort() {
	for _, refs := range a {
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].segment != refs[j].segment {
				return refs[i].segment < refs[j].segment
			}
			return refs[i].direction < refs[j].direction
		})
	}
}

func withinRadius(s *datastructure.WaySegment, c geo.Coordinate, radius float64) bool {
	return geo.ProjectToPolyline(s.GetGeometry(), c).Distance <= radius
}
