package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/costfunction"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/lintang-b-s/waymatcher/pkg/restriction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var t0 = time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)

// eastSegment. segment on the equator from node id (lon startLon) to node id+1, 0.001 degree (~111 m) long.
func eastSegment(id int64, startLon float64, attr datastructure.WaySegmentAttributes) *datastructure.WaySegment {
	return datastructure.NewWaySegment(datastructure.SegmentID(id), datastructure.NodeID(id), datastructure.NodeID(id+1),
		[]geo.Coordinate{geo.NewCoordinate(0, startLon), geo.NewCoordinate(0, startLon+0.001)}, attr)
}

func residential() datastructure.WaySegmentAttributes {
	return datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL}
}

func newTrack(t *testing.T, coords ...[2]float64) *datastructure.Track {
	t.Helper()
	pts := make([]datastructure.Point, len(coords))
	for i, c := range coords {
		pts[i] = datastructure.NewPoint(c[0], c[1], t0.Add(time.Duration(i)*10*time.Second))
	}
	tr, err := datastructure.NewTrack(pts)
	require.NoError(t, err)
	return tr
}

func carMatcher(svc restriction.Service) *Matcher[float64] {
	return NewMatcher[float64](DefaultConfig(), costfunction.NewMeterModel(costfunction.CarProfile()),
		restriction.NewFilter(svc), zap.NewNop())
}

func match(t *testing.T, m *Matcher[float64], store graph.Store, track *datastructure.Track) *Result {
	t.Helper()
	res, err := m.Match(context.Background(), MatchInput{GraphName: "test", Store: store, Track: track})
	require.NoError(t, err)
	return res
}

func TestTwoPointsOnOneWayResidential(t *testing.T) {
	s := eastSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL,
		OneWay: datastructure.ONEWAY_FORWARD})
	store := graph.NewMemoryStore([]*datastructure.WaySegment{s}, zap.NewNop())
	track := newTrack(t, [2]float64{0.00002, 0.0002}, [2]float64{-0.00003, 0.0006})

	res := match(t, carMatcher(nil), store, track)

	require.Len(t, res.Branches, 1)
	best := res.Branches[0]
	assert.Equal(t, []datastructure.SegmentID{1}, best.SegmentIDs())
	require.Len(t, best.GetSegments(), 1)
	assert.Equal(t, []int{0, 1}, best.GetSegments()[0].GetPoints())
	assert.Equal(t, datastructure.FORWARD, best.GetSegments()[0].GetDirection())
	assert.Equal(t, 2, best.GetMatchedPoints())
	// 2.22 m + 3.34 m plus a small routing mismatch
	assert.InDelta(t, 5.56, best.GetFactor(), 0.5)
	assert.Empty(t, res.Warnings)
}

func TestBoundaryTracks(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name        string
		graphName   string
		restrictAll bool
		track       [][2]float64
		wantSeeds   int
		wantEmpty   bool
	}{
		{"single point yields seeds only", "test", false, [][2]float64{{0.00001, 0.0005}}, 2, false},
		{"every nearby segment restricted", "test", true, [][2]float64{{0, 0.0005}, {0, 0.0015}}, 0, true},
		{"rules of another graph do not apply", "other", true, [][2]float64{{0, 0.0005}, {0, 0.0015}}, 2, false},
		{"no segment within the snap radius", "test", false, [][2]float64{{0.01, 0.01}, {0.01, 0.011}}, 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			segments := []*datastructure.WaySegment{eastSegment(1, 0, residential()), eastSegment(2, 0.001, residential())}
			store := graph.NewMemoryStore(segments, zap.NewNop())
			svc := restriction.NewMemoryService()
			if tc.restrictAll {
				for _, s := range segments {
					_, err := svc.AddRule(ctx, restriction.Rule{GraphName: "test", SegmentID: s.GetID()})
					require.NoError(t, err)
				}
			}

			res, err := carMatcher(svc).Match(ctx, MatchInput{GraphName: tc.graphName, Store: store,
				Track: newTrack(t, tc.track...)})
			require.NoError(t, err)
			assert.Equal(t, tc.wantSeeds, res.Stats.Seeds)
			assert.Equal(t, tc.wantEmpty, len(res.Branches) == 0)
			assert.Empty(t, res.Warnings)

			if len(tc.track) == 1 {
				assert.Zero(t, res.Stats.Extensions)
				require.Len(t, res.Branches, 2)
				for _, b := range res.Branches {
					require.Len(t, b.GetSegments(), 1)
					assert.Equal(t, []int{0}, b.GetSegments()[0].GetPoints())
				}
				assert.Equal(t, res.Branches[0].GetFactor(), res.Branches[1].GetFactor())
				// equal cost, same segment: forward sorts first
				assert.Equal(t, datastructure.FORWARD, res.Branches[0].GetSegments()[0].GetDirection())
			}
		})
	}
}

func TestRestrictionWindowFollowsReferenceTime(t *testing.T) {
	ctx := context.Background()
	segments := []*datastructure.WaySegment{eastSegment(1, 0, residential()), eastSegment(2, 0.001, residential())}
	store := graph.NewMemoryStore(segments, zap.NewNop())
	svc := restriction.NewMemoryService()
	_, err := svc.AddRule(ctx, restriction.Rule{GraphName: "test", SegmentID: 2,
		From: t0.Add(-time.Hour), Until: t0.Add(time.Hour)})
	require.NoError(t, err)

	timed := newTrack(t, [2]float64{0, 0.0002}, [2]float64{0, 0.0008}, [2]float64{0, 0.0015})
	untimed, err := datastructure.NewTrack([]datastructure.Point{
		datastructure.NewPoint(0, 0.0002, time.Time{}),
		datastructure.NewPoint(0, 0.0008, time.Time{}),
		datastructure.NewPoint(0, 0.0015, time.Time{}),
	})
	require.NoError(t, err)

	testCases := []struct {
		name         string
		track        *datastructure.Track
		refTime      time.Time
		wantSegment2 bool
	}{
		{"first timestamp inside the window", timed, time.Time{}, false},
		{"reference time inside the window", timed, t0.Add(30 * time.Minute), false},
		{"reference time after the window", timed, t0.Add(2 * time.Hour), true},
		{"reference time before the window", timed, t0.Add(-2 * time.Hour), true},
		{"no timestamps: permanent rules only", untimed, time.Time{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := carMatcher(svc).Match(ctx, MatchInput{GraphName: "test", Store: store, Track: tc.track,
				ReferenceTime: tc.refTime})
			require.NoError(t, err)
			require.NotEmpty(t, res.Branches)
			if tc.wantSegment2 {
				assert.Equal(t, []datastructure.SegmentID{1, 2}, res.Branches[0].SegmentIDs())
				assert.Empty(t, res.Branches[0].GetUnmatched())
				return
			}
			for _, b := range res.Branches {
				assert.NotContains(t, b.SegmentIDs(), datastructure.SegmentID(2))
			}
		})
	}
}

func TestMoveThroughPassThroughSegment(t *testing.T) {
	segments := []*datastructure.WaySegment{
		eastSegment(1, 0, residential()),
		eastSegment(2, 0.001, residential()),
		eastSegment(3, 0.002, residential()),
		// side street north from node 2
		datastructure.NewWaySegment(10, 2, 20,
			[]geo.Coordinate{geo.NewCoordinate(0, 0.001), geo.NewCoordinate(0.001, 0.001)}, residential()),
	}
	store := graph.NewMemoryStore(segments, zap.NewNop())
	track := newTrack(t,
		[2]float64{0.00001, 0.0003},
		[2]float64{-0.00001, 0.0007},
		[2]float64{0.00002, 0.0025},
		[2]float64{0.00001, 0.0028},
	)

	res := match(t, carMatcher(nil), store, track)
	require.NotEmpty(t, res.Branches)
	best := res.Branches[0]
	assert.Equal(t, []datastructure.SegmentID{1, 2, 3}, best.SegmentIDs())
	segs := best.GetSegments()
	assert.Equal(t, []int{0, 1}, segs[0].GetPoints())
	assert.Empty(t, segs[1].GetPoints())
	assert.Equal(t, -1, segs[1].GetFirstPoint())
	assert.Equal(t, []int{2, 3}, segs[2].GetPoints())
	assert.Equal(t, 4, best.GetMatchedPoints())
	assert.True(t, res.Stats.Extensions > 0)

	path, err := geo.CoordsFromPolyline(best.GetPolyline())
	require.NoError(t, err)
	assert.Len(t, path, 4)
}

func gridStore() graph.Store {
	// 3x3 grid of two-way streets, 0.001 degree spacing, node id = 10*row + col + 1
	segments := make([]*datastructure.WaySegment, 0)
	id := int64(100)
	node := func(r, c int) datastructure.NodeID { return datastructure.NodeID(10*r + c + 1) }
	coord := func(r, c int) geo.Coordinate { return geo.NewCoordinate(float64(r)*0.001, float64(c)*0.001) }
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rc := pkg.RESIDENTIAL
			if r == 1 {
				rc = pkg.PRIMARY
			}
			if c+1 < 3 {
				segments = append(segments, datastructure.NewWaySegment(datastructure.SegmentID(id), node(r, c),
					node(r, c+1), []geo.Coordinate{coord(r, c), coord(r, c+1)},
					datastructure.WaySegmentAttributes{RoadClass: rc}))
				id++
			}
			if r+1 < 3 {
				segments = append(segments, datastructure.NewWaySegment(datastructure.SegmentID(id), node(r, c),
					node(r+1, c), []geo.Coordinate{coord(r, c), coord(r+1, c)}, residential()))
				id++
			}
		}
	}
	return graph.NewMemoryStore(segments, zap.NewNop())
}

func gridTrack(t *testing.T) *datastructure.Track {
	return newTrack(t,
		[2]float64{0.00003, 0.0002},
		[2]float64{-0.00002, 0.0006},
		[2]float64{0.00001, 0.0009},
		[2]float64{0.0004, 0.00102},
		[2]float64{0.0004, 0.00102},
		[2]float64{0.0008, 0.00098},
		[2]float64{0.00102, 0.0014},
		[2]float64{0.00098, 0.0018},
	)
}

func TestIdempotentAndOrdered(t *testing.T) {
	store := gridStore()
	m := carMatcher(nil)
	first := match(t, m, store, gridTrack(t))
	second := match(t, m, store, gridTrack(t))

	require.NotEmpty(t, first.Branches)
	require.Equal(t, len(first.Branches), len(second.Branches))
	for i := range first.Branches {
		a, b := first.Branches[i], second.Branches[i]
		assert.Equal(t, a.SegmentIDs(), b.SegmentIDs())
		assert.Equal(t, a.GetFactor(), b.GetFactor())
		assert.Equal(t, a.GetPolyline(), b.GetPolyline())
		assert.Equal(t, a.GetUnmatched(), b.GetUnmatched())
	}

	for i := 1; i < len(first.Branches); i++ {
		assert.LessOrEqual(t, first.Branches[i-1].GetFactor(), first.Branches[i].GetFactor())
	}

	// east along row 0, north on column 1, east on row 1
	assert.Equal(t, 8, first.Branches[0].GetMatchedPoints())
}

func TestMonotonicConsumption(t *testing.T) {
	res := match(t, carMatcher(nil), gridStore(), gridTrack(t))
	require.NotEmpty(t, res.Branches)
	for _, b := range res.Branches {
		last := -1
		for _, seg := range b.GetSegments() {
			for _, p := range seg.GetPoints() {
				assert.Greater(t, p, last)
				last = p
			}
		}
		for _, u := range b.GetUnmatched() {
			for _, seg := range b.GetSegments() {
				assert.NotContains(t, seg.GetPoints(), u)
			}
		}
	}
}

func TestBikeAgainstOneWay(t *testing.T) {
	oneWay := eastSegment(1, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL,
		OneWay: datastructure.ONEWAY_FORWARD})
	store := graph.NewMemoryStore([]*datastructure.WaySegment{oneWay}, zap.NewNop())
	// riding west, against the one-way
	track := newTrack(t, [2]float64{0.00001, 0.0008}, [2]float64{0.00001, 0.0004}, [2]float64{0.00001, 0.0001})

	bikeModel := costfunction.NewMeterModel(costfunction.BikeProfile())
	bike := NewMatcher[float64](DefaultConfig(), bikeModel, nil, zap.NewNop())
	bikeRes := match(t, bike, store, track)
	require.NotEmpty(t, bikeRes.Branches)
	best := bikeRes.Branches[0]
	assert.Equal(t, datastructure.BACKWARD, best.GetSegments()[0].GetDirection())
	penalty := 25.0 + 0.5*oneWay.Length()
	assert.GreaterOrEqual(t, best.GetCost(), penalty)
	assert.Less(t, best.GetCost(), penalty+5)

	carRes := match(t, carMatcher(nil), store, track)
	for _, b := range carRes.Branches {
		for _, seg := range b.GetSegments() {
			assert.Equal(t, datastructure.FORWARD, seg.GetDirection())
		}
		assert.Less(t, b.GetCost(), penalty+2*60)
	}
}

func TestFixedPointCostMatchesFloat(t *testing.T) {
	store := gridStore()
	floatRes := match(t, carMatcher(nil), store, gridTrack(t))

	mm := NewMatcher[costfunction.Millimeter](DefaultConfig(),
		costfunction.NewMillimeterModel(costfunction.CarProfile()), nil, zap.NewNop())
	mmRes, err := mm.Match(context.Background(), MatchInput{GraphName: "test", Store: store, Track: gridTrack(t)})
	require.NoError(t, err)

	require.NotEmpty(t, mmRes.Branches)
	assert.Equal(t, floatRes.Branches[0].SegmentIDs(), mmRes.Branches[0].SegmentIDs())
	assert.InDelta(t, floatRes.Branches[0].GetFactor(), mmRes.Branches[0].GetFactor(), 0.1)
}

func TestDuplicatePoints(t *testing.T) {
	store := graph.NewMemoryStore([]*datastructure.WaySegment{eastSegment(1, 0, residential()),
		eastSegment(2, 0.001, residential())}, zap.NewNop())
	track := newTrack(t,
		[2]float64{0, 0.0009},
		[2]float64{0, 0.0009},
		[2]float64{0, 0.0009},
		[2]float64{0, 0.0013},
	)
	res := match(t, carMatcher(nil), store, track)
	require.NotEmpty(t, res.Branches)
	best := res.Branches[0]
	assert.Equal(t, []datastructure.SegmentID{1, 2}, best.SegmentIDs())
	assert.Equal(t, []int{0, 1, 2}, best.GetSegments()[0].GetPoints())
	assert.Equal(t, 4, best.GetMatchedPoints())
}

type failingService struct{}

func (failingService) IsRestricted(ctx context.Context, graphName string, segmentID datastructure.SegmentID,
	forward bool, at time.Time) (bool, error) {
	return false, errors.New("timeout talking to restriction service")
}

func TestRestrictionServiceErrorFailsClosed(t *testing.T) {
	store := graph.NewMemoryStore([]*datastructure.WaySegment{eastSegment(1, 0, residential())}, zap.NewNop())
	track := newTrack(t, [2]float64{0, 0.0005})
	res := match(t, carMatcher(failingService{}), store, track)
	assert.Empty(t, res.Branches)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], restriction.ErrRestrictionUnavailable.Error())
}

func TestInvalidGeometryIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	broken := datastructure.NewWaySegment(50, 2, 51, []geo.Coordinate{geo.NewCoordinate(0, 0.001)}, residential())
	store := graph.NewMemoryStore([]*datastructure.WaySegment{eastSegment(1, 0, residential()),
		eastSegment(2, 0.001, residential()), broken}, zap.NewNop())
	m := NewMatcher[float64](DefaultConfig(), costfunction.NewMeterModel(costfunction.CarProfile()), nil,
		zap.New(core))

	res := match(t, m, store, newTrack(t, [2]float64{0, 0.0005}, [2]float64{0, 0.0015}))
	require.NotEmpty(t, res.Branches)
	assert.Equal(t, []datastructure.SegmentID{1, 2}, res.Branches[0].SegmentIDs())
	assert.Equal(t, 1, logs.FilterMessage("skipping segment with invalid geometry").Len())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := carMatcher(nil).Match(ctx, MatchInput{GraphName: "test", Store: gridStore(), Track: gridTrack(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOvershootPaysEmptyEnd(t *testing.T) {
	east := eastSegment(1, 0, residential())
	// the only way on from node 2 turns north
	north := datastructure.NewWaySegment(2, 2, 3,
		[]geo.Coordinate{geo.NewCoordinate(0, 0.001), geo.NewCoordinate(0.001, 0.001)}, residential())
	store := graph.NewMemoryStore([]*datastructure.WaySegment{east, north}, zap.NewNop())
	// last fix ~67 m east of node 2, away from both segments
	track := newTrack(t, [2]float64{0, 0.0002}, [2]float64{0, 0.0006}, [2]float64{0, 0.0016})

	cfg := DefaultConfig()
	cfg.MaxResults = 0
	m := NewMatcher[float64](cfg, costfunction.NewMeterModel(costfunction.CarProfile()), nil, zap.NewNop())
	res := match(t, m, store, track)

	var stopped, drifted *datastructure.MatchedBranch
	for i := range res.Branches {
		b := &res.Branches[i]
		switch {
		case assert.ObjectsAreEqual([]datastructure.SegmentID{1}, b.SegmentIDs()) && b.GetMatchedPoints() == 2:
			stopped = b
		case assert.ObjectsAreEqual([]datastructure.SegmentID{1, 2}, b.SegmentIDs()):
			drifted = b
		}
	}
	require.NotNil(t, stopped)
	require.NotNil(t, drifted)
	assert.Equal(t, []int{2}, stopped.GetUnmatched())
	assert.Equal(t, []int{2}, drifted.GetUnmatched())
	assert.Empty(t, drifted.GetSegments()[1].GetPoints())

	// pseudo skip plus the empty end over the whole north segment, same class so no frc switch
	wantExtra := 2.0 + 0.02*north.Length() + 1.0*north.Length()
	assert.InDelta(t, wantExtra, drifted.GetCost()-stopped.GetCost(), 1e-6)
	assert.Less(t, stopped.GetFactor(), drifted.GetFactor())
}

func TestFixPastSegmentEndLeftUnmatched(t *testing.T) {
	segments := []*datastructure.WaySegment{eastSegment(1, 0, residential()), eastSegment(2, 0.001, residential())}
	store := graph.NewMemoryStore(segments, zap.NewNop())
	// the middle fix is far north of node 2, the next one back on segment 2
	track := newTrack(t, [2]float64{0, 0.0005}, [2]float64{0.001, 0.0011}, [2]float64{0, 0.0018})

	res := match(t, carMatcher(nil), store, track)
	require.NotEmpty(t, res.Branches)
	best := res.Branches[0]
	assert.Equal(t, []datastructure.SegmentID{1, 2}, best.SegmentIDs())
	assert.Equal(t, []int{1}, best.GetUnmatched())
	assert.Equal(t, []int{2}, best.GetSegments()[1].GetPoints())
}

func TestPrune(t *testing.T) {
	primary := eastSegment(7, 0, datastructure.WaySegmentAttributes{RoadClass: pkg.PRIMARY})
	resA := eastSegment(3, 0.001, residential())
	resB := eastSegment(5, 0.002, residential())

	type want struct {
		id   datastructure.SegmentID
		dir  datastructure.Direction
		cost float64
	}
	fwd, bwd := datastructure.FORWARD, datastructure.BACKWARD
	branch := func(seg *datastructure.WaySegment, dir datastructure.Direction, cost float64) *datastructure.Branch[float64] {
		return datastructure.NewBranch[float64](datastructure.NewCandidate(seg, dir), cost, nil)
	}

	testCases := []struct {
		name     string
		beam     int
		children []*datastructure.Branch[float64]
		want     []want
	}{
		{
			name:     "equal cost: higher road class, then lower segment id",
			beam:     8,
			children: []*datastructure.Branch[float64]{branch(resB, fwd, 10), branch(resA, fwd, 10), branch(primary, fwd, 10)},
			want:     []want{{7, fwd, 10}, {3, fwd, 10}, {5, fwd, 10}},
		},
		{
			name:     "same segment and direction within tolerance keeps the cheaper",
			beam:     8,
			children: []*datastructure.Branch[float64]{branch(resA, fwd, 14), branch(resA, fwd, 10), branch(resA, bwd, 12)},
			want:     []want{{3, fwd, 10}, {3, bwd, 12}},
		},
		{
			name:     "same segment beyond tolerance keeps both",
			beam:     8,
			children: []*datastructure.Branch[float64]{branch(resA, fwd, 16), branch(resA, fwd, 10)},
			want:     []want{{3, fwd, 10}, {3, fwd, 16}},
		},
		{
			name: "beam width cut",
			beam: 2,
			children: []*datastructure.Branch[float64]{branch(resB, fwd, 3), branch(resA, fwd, 2),
				branch(primary, fwd, 1), branch(resB, bwd, 4)},
			want: []want{{7, fwd, 1}, {3, fwd, 2}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BeamWidth = tc.beam
			s := &search[float64]{m: NewMatcher[float64](cfg, costfunction.NewMeterModel(costfunction.CarProfile()),
				nil, zap.NewNop())}

			kept := s.prune(tc.children)
			got := make([]want, len(kept))
			for i, b := range kept {
				got[i] = want{b.Last().GetSegment().GetID(), b.Last().GetDirection(), b.GetCost()}
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.BeamWidth = 0
	assert.Error(t, bad.Validate())
	bad = DefaultConfig()
	bad.HeadingTolerance = 200
	assert.Error(t, bad.Validate())
}
