package spatialindex

import (
	"math"
	"sort"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// Rtree. segment ids keyed by the bounding box of the segment geometry.
// read-only after Build, safe for concurrent Search calls.
type Rtree struct {
	tr *rtree.RTreeG[datastructure.SegmentID]
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[datastructure.SegmentID]
	return &Rtree{
		tr: &tr,
	}
}

// Build. index every segment, segments with fewer than 2 points are skipped.
func (rt *Rtree) Build(segments []*datastructure.WaySegment, log *zap.Logger) {
	log.Info("Building R-tree spatial index...", zap.Int("segments", len(segments)))
	for i, s := range segments {
		if len(segments) >= 10 && i%(len(segments)/10) == 0 {
			log.Debug("Building R-tree spatial index...",
				zap.Float64("progress", 100*float64(i)/float64(len(segments))))
		}
		rt.Insert(s)
	}
	log.Info("R-tree spatial index built.")
}

func (rt *Rtree) Insert(s *datastructure.WaySegment) {
	min, max, ok := segmentBounds(s.GetGeometry())
	if !ok {
		return
	}
	rt.tr.Insert(min, max, s.GetID())
}

func (rt *Rtree) Len() int {
	return rt.tr.Len()
}

// SearchWithinRadius. ids of all segments whose bounding box intersects the box around q
// with half side radius (meter). ascending id order, caller filters by exact distance.
func (rt *Rtree) SearchWithinRadius(q geo.Coordinate, radius float64) []datastructure.SegmentID {
	lower, upper := geo.BoundingBoxAround(q, radius)

	results := make([]datastructure.SegmentID, 0, 16)
	rt.tr.Search(lower, upper,
		func(min, max [2]float64, data datastructure.SegmentID) bool {
			results = append(results, data)
			return true
		})
	sort.Slice(results, func(i, j int) bool {
		return results[i] < results[j]
	})
	return results
}

func segmentBounds(line []geo.Coordinate) ([2]float64, [2]float64, bool) {
	if len(line) < 2 {
		return [2]float64{}, [2]float64{}, false
	}
	min := [2]float64{math.Inf(1), math.Inf(1)}
	max := [2]float64{math.Inf(-1), math.Inf(-1)}
	for _, c := range line {
		min[0] = math.Min(min[0], c.Lon)
		min[1] = math.Min(min[1], c.Lat)
		max[0] = math.Max(max[0], c.Lon)
		max[1] = math.Max(max[1], c.Lat)
	}
	return min, max, true
}
