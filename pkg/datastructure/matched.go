package datastructure

import (
	"github.com/lintang-b-s/waymatcher/pkg/geo"
)

// MatchedWaySegment. output unit, a segment annotated with the track points matched onto it.
type MatchedWaySegment struct {
	segment    *WaySegment
	direction  Direction
	points     []int
	distances  []float64
	firstPoint int
	lastPoint  int
}

func NewMatchedWaySegment(c Candidate) MatchedWaySegment {
	cl := c.clone()
	return MatchedWaySegment{
		segment:    cl.segment,
		direction:  cl.direction,
		points:     cl.points,
		distances:  cl.distances,
		firstPoint: cl.FirstPoint(),
		lastPoint:  cl.LastPoint(),
	}
}

func (m MatchedWaySegment) GetSegment() *WaySegment {
	return m.segment
}

func (m MatchedWaySegment) GetDirection() Direction {
	return m.direction
}

// GetPoints. matched track point indices, empty for pass-through segments.
func (m MatchedWaySegment) GetPoints() []int {
	out := make([]int, len(m.points))
	copy(out, m.points)
	return out
}

func (m MatchedWaySegment) GetDistances() []float64 {
	out := make([]float64, len(m.distances))
	copy(out, m.distances)
	return out
}

// GetFirstPoint. -1 if no point matched onto the segment.
func (m MatchedWaySegment) GetFirstPoint() int {
	return m.firstPoint
}

func (m MatchedWaySegment) GetLastPoint() int {
	return m.lastPoint
}

// MatchedBranch. one ranked path hypothesis. lower factor = better fit.
type MatchedBranch struct {
	segments      []MatchedWaySegment
	factor        float64
	cost          float64
	matchedPoints int
	unmatched     []int
	polyline      string
}

func NewMatchedBranch(candidates []Candidate, factor, cost float64, matchedPoints int, unmatched []int) MatchedBranch {
	segments := make([]MatchedWaySegment, 0, len(candidates))
	path := make([]geo.Coordinate, 0, 2*len(candidates))
	for _, c := range candidates {
		segments = append(segments, NewMatchedWaySegment(c))
		line := c.segment.DirectedGeometry(c.direction)
		if len(path) > 0 && len(line) > 0 && path[len(path)-1] == line[0] {
			line = line[1:]
		}
		path = append(path, line...)
	}
	um := make([]int, len(unmatched))
	copy(um, unmatched)
	return MatchedBranch{
		segments:      segments,
		factor:        factor,
		cost:          cost,
		matchedPoints: matchedPoints,
		unmatched:     um,
		polyline:      geo.PoylineFromCoords(path),
	}
}

func (m MatchedBranch) GetSegments() []MatchedWaySegment {
	return m.segments
}

func (m MatchedBranch) GetFactor() float64 {
	return m.factor
}

// GetCost. raw branch cost in meter before normalization.
func (m MatchedBranch) GetCost() float64 {
	return m.cost
}

func (m MatchedBranch) GetMatchedPoints() int {
	return m.matchedPoints
}

func (m MatchedBranch) GetUnmatched() []int {
	return m.unmatched
}

// GetPolyline. matched path geometry, google polyline precision 5.
func (m MatchedBranch) GetPolyline() string {
	return m.polyline
}

func (m MatchedBranch) SegmentIDs() []SegmentID {
	ids := make([]SegmentID, len(m.segments))
	for i, s := range m.segments {
		ids[i] = s.segment.GetID()
	}
	return ids
}
