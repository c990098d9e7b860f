package costfunction

import (
	"testing"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ~111.19 m along the equator
func equatorSegment(id int64, startLon float64, attr datastructure.WaySegmentAttributes) *datastructure.WaySegment {
	return datastructure.NewWaySegment(datastructure.SegmentID(id), datastructure.NodeID(id), datastructure.NodeID(id+1),
		[]geo.Coordinate{geo.NewCoordinate(0, startLon), geo.NewCoordinate(0, startLon+0.001)}, attr)
}

func candidateWith(seg *datastructure.WaySegment, dir datastructure.Direction, track *datastructure.Track,
	points ...int) datastructure.Candidate {
	c := datastructure.NewCandidate(seg, dir)
	for _, i := range points {
		c = c.WithPoint(i, seg.Project(track.At(i), dir))
	}
	return c
}

func TestPseudoSkipAndEmptyEnd(t *testing.T) {
	m := NewMeterModel(CarProfile())
	seg := equatorSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})

	assert.InDelta(t, 2.0+0.02*111.19, m.PseudoSkipPenalty(seg), 0.01)

	empty := datastructure.NewCandidate(seg, datastructure.FORWARD)
	assert.InDelta(t, 2*111.19, m.EmptyEndSegmentsDistance([]datastructure.Candidate{empty, empty}), 0.02)
}

func TestSegmentPointsDistance(t *testing.T) {
	seg := equatorSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	track, err := datastructure.NewTrack([]datastructure.Point{
		datastructure.NewPoint(0.00002, 0.0002, t0),  // ~2.2 m north
		datastructure.NewPoint(-0.00003, 0.0006, t0), // ~3.3 m south
	})
	require.NoError(t, err)
	c := candidateWith(seg, datastructure.FORWARD, track, 0, 1)

	meters := make([]float64, 0)
	NewMeterModel(CarProfile()).SegmentPointsDistance(&c, &meters)
	require.Len(t, meters, 2)
	assert.InDelta(t, 2.22, meters[0], 0.05)
	assert.InDelta(t, 3.34, meters[1], 0.05)

	mm := make([]Millimeter, 0)
	NewMillimeterModel(CarProfile()).SegmentPointsDistance(&c, &mm)
	require.Len(t, mm, 2)
	assert.InDelta(t, 2224, int64(mm[0]), 50)
}

func TestRoutingSegmentsDistance(t *testing.T) {
	m := NewMeterModel(CarProfile())
	a := equatorSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})
	b := equatorSegment(2, 0.001, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})
	c := equatorSegment(3, 0.002, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})

	track, err := datastructure.NewTrack([]datastructure.Point{
		datastructure.NewPoint(0, 0.0005, time.Time{}),
		datastructure.NewPoint(0, 0.0008, time.Time{}),
		datastructure.NewPoint(0, 0.0025, time.Time{}),
	})
	require.NoError(t, err)

	testCases := []struct {
		name     string
		previous []datastructure.Candidate
		want     float64
	}{
		{
			name:     "same segment, path matches track",
			previous: []datastructure.Candidate{candidateWith(a, datastructure.FORWARD, track, 0, 1)},
			want:     0,
		},
		{
			name: "through a pass-through segment along the track",
			previous: []datastructure.Candidate{
				candidateWith(a, datastructure.FORWARD, track, 1),
				datastructure.NewCandidate(b, datastructure.FORWARD),
				candidateWith(c, datastructure.FORWARD, track, 2),
			},
			want: 0,
		},
		{
			name:     "single point, nothing to compare",
			previous: []datastructure.Candidate{candidateWith(a, datastructure.FORWARD, track, 0)},
			want:     0,
		},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.RoutingSegmentsDistance(tt.previous, track), 0.05)
		})
	}

	// a detour: u-turn at the end of a then back on a reversed copy adds twice the overshoot
	back := datastructure.NewWaySegment(9, 2, 1,
		[]geo.Coordinate{geo.NewCoordinate(0, 0.001), geo.NewCoordinate(0, 0)},
		datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})
	detour := []datastructure.Candidate{
		candidateWith(a, datastructure.FORWARD, track, 0),
		candidateWith(back, datastructure.FORWARD, track, 1),
	}
	// path: 55.6 (rest of a) + 22.2 (0.001-0.0008 on back) = 77.8, track 33.4
	assert.InDelta(t, 0.5*(77.84-33.36), m.RoutingSegmentsDistance(detour, track), 0.1)
}

func TestSwitchedFrcPenalty(t *testing.T) {
	m := NewMeterModel(CarProfile())
	mk := func(rc pkg.RoadClass) datastructure.Candidate {
		return datastructure.NewCandidate(equatorSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: rc}),
			datastructure.FORWARD)
	}
	testCases := []struct {
		name     string
		from, to pkg.RoadClass
		want     float64
	}{
		{"same class", pkg.RESIDENTIAL, pkg.RESIDENTIAL, 0},
		{"adjacent class", pkg.PRIMARY, pkg.SECONDARY, 0},
		{"motorway to path", pkg.MOTORWAY, pkg.PATH, 9 * 4.0},
		{"path to tertiary", pkg.PATH, pkg.TERTIARY, 5 * 4.0},
		{"unknown", pkg.UNKNOWN, pkg.MOTORWAY, 0},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			prev, seg := mk(tt.from), mk(tt.to)
			assert.InDelta(t, tt.want, m.SwitchedFrcPenalty(&seg, &prev), 1e-9)
		})
	}
	seg := mk(pkg.PATH)
	assert.Zero(t, m.SwitchedFrcPenalty(&seg, nil))
}

func TestBikePenalties(t *testing.T) {
	oneWay := equatorSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL,
		OneWay: datastructure.ONEWAY_FORWARD})
	contraflow := equatorSegment(2, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL,
		OneWay: datastructure.ONEWAY_FORWARD, BikeBackward: true})
	walkway := equatorSegment(3, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.PATH, Walkway: true})
	cycleway := equatorSegment(4, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.PATH, Walkway: true,
		BikeForward: true, BikeBackward: true})

	bike := NewMeterModel(BikeProfile())
	car := NewMeterModel(CarProfile())

	against := datastructure.NewCandidate(oneWay, datastructure.BACKWARD)
	with := datastructure.NewCandidate(oneWay, datastructure.FORWARD)
	allowed := datastructure.NewCandidate(contraflow, datastructure.BACKWARD)
	walk := datastructure.NewCandidate(walkway, datastructure.FORWARD)

	assert.InDelta(t, 25.0+0.5*111.19, bike.BikeAgainstOneWayPenalty(&against, nil), 0.01)
	assert.Zero(t, bike.BikeAgainstOneWayPenalty(&against, &against))
	assert.Zero(t, bike.BikeAgainstOneWayPenalty(&with, nil))
	assert.Zero(t, bike.BikeAgainstOneWayPenalty(&allowed, nil))
	assert.Zero(t, car.BikeAgainstOneWayPenalty(&against, nil))

	assert.Equal(t, 10.0, bike.BikeOnWalkwayPenalty(&walk))
	assert.Zero(t, car.BikeOnWalkwayPenalty(&walk))
	assert.Zero(t, bike.BikeOnWalkwayPenalty(&with))
	cycle := datastructure.NewCandidate(cycleway, datastructure.BACKWARD)
	assert.Zero(t, bike.BikeOnWalkwayPenalty(&cycle))
}

func TestReduceAndUnits(t *testing.T) {
	m := NewMillimeterModel(CarProfile())
	assert.Equal(t, Millimeter(60000), m.UnmatchedPointPenalty())
	assert.Equal(t, Millimeter(6), m.Reduce(1, 2, 3))
	assert.Equal(t, 1.5, m.ToMeters(1500))
	assert.Equal(t, Millimeter(1235), MetersToMillimeter(1.2346))

	_, err := ProfileFor(pkg.RoutingMode(42))
	assert.ErrorIs(t, err, pkg.ErrInvalidRoutingMode)
	p, err := ProfileFor(pkg.BIKE)
	require.NoError(t, err)
	assert.Equal(t, pkg.BIKE, p.Mode)
}
