package spatialindex

import (
	"testing"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func seg(id int64, coords ...geo.Coordinate) *datastructure.WaySegment {
	return datastructure.NewWaySegment(datastructure.SegmentID(id), datastructure.NodeID(id*10),
		datastructure.NodeID(id*10+1), coords, datastructure.WaySegmentAttributes{RoadClass: pkg.RESIDENTIAL})
}

func TestSearchWithinRadius(t *testing.T) {
	rt := NewRtree()
	rt.Build([]*datastructure.WaySegment{
		seg(3, geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 0.001)),
		seg(1, geo.NewCoordinate(0.0001, 0), geo.NewCoordinate(0.0001, 0.001)),
		seg(2, geo.NewCoordinate(1, 1), geo.NewCoordinate(1, 1.001)),
		seg(4, geo.NewCoordinate(1, 1)),
	}, zap.NewNop())

	assert.Equal(t, 3, rt.Len())

	testCases := []struct {
		name   string
		q      geo.Coordinate
		radius float64
		want   []datastructure.SegmentID
	}{
		{
			name:   "two parallel segments, sorted by id",
			q:      geo.NewCoordinate(0.00005, 0.0005),
			radius: 20,
			want:   []datastructure.SegmentID{1, 3},
		},
		{
			name:   "far segment",
			q:      geo.NewCoordinate(1, 1.0005),
			radius: 5,
			want:   []datastructure.SegmentID{2},
		},
		{
			name:   "nothing nearby",
			q:      geo.NewCoordinate(-5, -5),
			radius: 50,
			want:   []datastructure.SegmentID{},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := rt.SearchWithinRadius(tt.q, tt.radius)
			assert.Equal(t, tt.want, got)
		})
	}
}
