package costfunction

import (
	"math"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

// Millimeter. fixed point cost, 1 unit = 1 mm.
type Millimeter int64

func MetersToMillimeter(m float64) Millimeter {
	return Millimeter(math.Round(m * 1000))
}

func (mm Millimeter) Meters() float64 {
	return float64(mm) / 1000
}

// Model. Calculator driven by a Profile. terms are computed in meter then converted to T.
type Model[T pkg.Cost] struct {
	profile    Profile
	fromMeters func(float64) T
	toMeters   func(T) float64
}

func NewModel[T pkg.Cost](profile Profile, fromMeters func(float64) T, toMeters func(T) float64) *Model[T] {
	return &Model[T]{profile: profile, fromMeters: fromMeters, toMeters: toMeters}
}

func NewMeterModel(profile Profile) *Model[float64] {
	return NewModel(profile,
		func(m float64) float64 { return m },
		func(c float64) float64 { return c })
}

func NewMillimeterModel(profile Profile) *Model[Millimeter] {
	return NewModel(profile, MetersToMillimeter, Millimeter.Meters)
}

func (m *Model[T]) Profile() Profile {
	return m.profile
}

func (m *Model[T]) Mode() pkg.RoutingMode {
	return m.profile.Mode
}

func (m *Model[T]) PseudoSkipPenalty(seg *datastructure.WaySegment) T {
	return m.fromMeters(m.profile.PseudoSkipBase + m.profile.PseudoSkipPerMeter*seg.Length())
}

// RoutingSegmentsDistance. previous runs from the candidate holding the earlier point to the candidate
// holding the later one. with a single candidate its last two points are compared.
func (m *Model[T]) RoutingSegmentsDistance(previous []datastructure.Candidate, track *datastructure.Track) T {
	if len(previous) == 0 {
		return 0
	}

	var (
		from, to int
		pathLen  float64
	)
	if len(previous) == 1 {
		c := previous[0]
		pts, offs := c.GetPoints(), c.GetOffsets()
		if len(pts) < 2 {
			return 0
		}
		from, to = pts[len(pts)-2], pts[len(pts)-1]
		pathLen = offs[len(offs)-1] - offs[len(offs)-2]
	} else {
		first, last := previous[0], previous[len(previous)-1]
		if !first.HasPoints() || !last.HasPoints() {
			return 0
		}
		from, to = first.LastPoint(), last.FirstPoint()
		pathLen = first.GetSegment().Length() - first.LastOffset()
		for i := 1; i < len(previous)-1; i++ {
			pathLen += previous[i].GetSegment().Length()
		}
		pathLen += last.FirstOffset()
	}

	trackDist := track.DistanceBetween(from, to)
	return m.fromMeters(m.profile.RoutingDistanceWeight * math.Abs(pathLen-trackDist))
}

func (m *Model[T]) EmptyEndSegmentsDistance(previous []datastructure.Candidate) T {
	total := 0.0
	for i := range previous {
		if previous[i].HasPoints() {
			continue
		}
		total += previous[i].GetSegment().Length()
	}
	return m.fromMeters(m.profile.EmptyEndPerMeter * total)
}

func (m *Model[T]) SegmentPointsDistance(c *datastructure.Candidate, out *[]T) {
	for _, d := range c.GetDistances() {
		*out = append(*out, m.fromMeters(m.profile.PointDistanceWeight*d))
	}
}

// SwitchedFrcPenalty. zero for a change of at most one class, unknown classes are never penalized.
func (m *Model[T]) SwitchedFrcPenalty(seg, prev *datastructure.Candidate) T {
	if prev == nil {
		return 0
	}
	a, b := seg.GetSegment().GetRoadClass(), prev.GetSegment().GetRoadClass()
	if a == pkg.UNKNOWN || b == pkg.UNKNOWN {
		return 0
	}
	diff := int(a) - int(b)
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return 0
	}
	return m.fromMeters(float64(diff-1) * m.profile.FrcSwitchPerClass)
}

// BikeAgainstOneWayPenalty. charged once when a bike enters a one-way segment against its direction
// without explicit contraflow access.
func (m *Model[T]) BikeAgainstOneWayPenalty(seg, prev *datastructure.Candidate) T {
	if m.profile.Mode != pkg.BIKE {
		return 0
	}
	s, dir := seg.GetSegment(), seg.GetDirection()
	if prev != nil && prev.GetSegment().GetID() == s.GetID() && prev.GetDirection() == dir {
		return 0
	}
	if !s.IsOneWayAgainst(dir) || s.AllowsBike(dir) {
		return 0
	}
	return m.fromMeters(m.profile.BikeAgainstOneWayBase + m.profile.BikeAgainstOneWayPerMeter*s.Length())
}

// BikeOnWalkwayPenalty. walkways with explicit bicycle access (cycleways, bicycle=yes) are free.
func (m *Model[T]) BikeOnWalkwayPenalty(seg *datastructure.Candidate) T {
	s := seg.GetSegment()
	if m.profile.Mode != pkg.BIKE || !s.IsWalkway() || s.AllowsBike(seg.GetDirection()) {
		return 0
	}
	return m.fromMeters(m.profile.BikeOnWalkway)
}

func (m *Model[T]) UnmatchedPointPenalty() T {
	return m.fromMeters(m.profile.UnmatchedPoint)
}

// Reduce. plain sum.
func (m *Model[T]) Reduce(terms ...T) T {
	var total T
	for _, t := range terms {
		total += t
	}
	return total
}

func (m *Model[T]) ToMeters(c T) float64 {
	return m.toMeters(c)
}
