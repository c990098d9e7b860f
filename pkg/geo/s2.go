package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

func toS2(c Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

func ProjectPointToLineCoord(pointA Coordinate, pointB Coordinate,
	snap Coordinate) Coordinate {
	projection := s2.Project(toS2(snap), toS2(pointA), toS2(pointB))
	projectLatLng := s2.LatLngFromPoint(projection)
	return NewCoordinate(projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees())
}

// PolylineProjection. closest point of a polyline to a query point.
type PolylineProjection struct {
	Point    Coordinate
	Distance float64 // meter, query point to Point
	Offset   float64 // meter, from the first vertex of the polyline to Point
	Index    int     // index of the polyline leg containing Point
}

// ProjectToPolyline. project snap onto every leg of line and keep the closest one.
// on equal distance the earlier leg wins.
func ProjectToPolyline(line []Coordinate, snap Coordinate) PolylineProjection {
	best := PolylineProjection{Distance: math.Inf(1)}
	if len(line) == 0 {
		return best
	}
	if len(line) == 1 {
		return PolylineProjection{Point: line[0], Distance: HaversineMeters(line[0], snap)}
	}

	walked := 0.0
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		legLength := HaversineMeters(a, b)
		var p Coordinate
		if legLength == 0 {
			p = a
		} else {
			p = ProjectPointToLineCoord(a, b, snap)
		}
		d := HaversineMeters(p, snap)
		if d < best.Distance {
			best = PolylineProjection{
				Point:    p,
				Distance: d,
				Offset:   walked + math.Min(HaversineMeters(a, p), legLength),
				Index:    i,
			}
		}
		walked += legLength
	}
	return best
}

// PolylineLength. length of line in meter
func PolylineLength(line []Coordinate) float64 {
	length := 0.0
	for i := 0; i+1 < len(line); i++ {
		length += HaversineMeters(line[i], line[i+1])
	}
	return length
}
