package costfunction

import (
	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

// Calculator. scoring model of the branch search. every term is independent, the matcher combines them
// with Reduce and never computes geometry costs itself.
type Calculator[T pkg.Cost] interface {
	// PseudoSkipPenalty. cost of a segment traversed without any matched point.
	PseudoSkipPenalty(seg *datastructure.WaySegment) T
	// RoutingSegmentsDistance. mismatch between the path length along previous and the track distance
	// between the points at both ends of it.
	RoutingSegmentsDistance(previous []datastructure.Candidate, track *datastructure.Track) T
	// EmptyEndSegmentsDistance. cost of trailing segments without matched points.
	EmptyEndSegmentsDistance(previous []datastructure.Candidate) T
	// SegmentPointsDistance. appends one weighted point-to-segment distance per matched point of c.
	SegmentPointsDistance(c *datastructure.Candidate, out *[]T)
	SwitchedFrcPenalty(seg, prev *datastructure.Candidate) T
	BikeAgainstOneWayPenalty(seg, prev *datastructure.Candidate) T
	BikeOnWalkwayPenalty(seg *datastructure.Candidate) T
	UnmatchedPointPenalty() T
	Reduce(terms ...T) T
	ToMeters(c T) float64
	Mode() pkg.RoutingMode
}
