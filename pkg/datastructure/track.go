package datastructure

import (
	"errors"
	"math"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/geo"
)

var (
	ErrEmptyTrack        = errors.New("track must contain at least one point")
	ErrInvalidCoordinate = errors.New("track point has an invalid coordinate")
	ErrTimestampOrder    = errors.New("track timestamps must be non-decreasing")
)

// Point. a positional fix. zero time = no timestamp, NaN speed/heading = absent.
type Point struct {
	lat     float64
	lon     float64
	time    time.Time
	speed   float64 // meter/second
	heading float64 // degree
}

func NewPoint(lat, lon float64, t time.Time) Point {
	return Point{
		lat:     lat,
		lon:     lon,
		time:    t,
		speed:   math.NaN(),
		heading: math.NaN(),
	}
}

func NewPointWithMotion(lat, lon float64, t time.Time, speed, heading float64) Point {
	return Point{
		lat:     lat,
		lon:     lon,
		time:    t,
		speed:   speed,
		heading: heading,
	}
}

func (p Point) Lat() float64 {
	return p.lat
}

func (p Point) Lon() float64 {
	return p.lon
}

func (p Point) Time() time.Time {
	return p.time
}

func (p Point) HasTime() bool {
	return !p.time.IsZero()
}

func (p Point) Speed() (float64, bool) {
	return p.speed, !math.IsNaN(p.speed)
}

func (p Point) Heading() (float64, bool) {
	return p.heading, !math.IsNaN(p.heading)
}

func (p Point) Coordinate() geo.Coordinate {
	return geo.NewCoordinate(p.lat, p.lon)
}

// Track. ordered, non empty sequence of points. read-only once built.
type Track struct {
	points []Point
}

func NewTrack(points []Point) (*Track, error) {
	if len(points) == 0 {
		return nil, ErrEmptyTrack
	}
	var last time.Time
	for _, p := range points {
		if !p.Coordinate().Valid() {
			return nil, ErrInvalidCoordinate
		}
		if !p.HasTime() {
			continue
		}
		if p.time.Before(last) {
			return nil, ErrTimestampOrder
		}
		last = p.time
	}
	owned := make([]Point, len(points))
	copy(owned, points)
	return &Track{points: owned}, nil
}

func (t *Track) Len() int {
	return len(t.points)
}

func (t *Track) At(i int) Point {
	return t.points[i]
}

// ReferenceTime. timestamp of the first point that has one, zero time otherwise.
func (t *Track) ReferenceTime() time.Time {
	for _, p := range t.points {
		if p.HasTime() {
			return p.time
		}
	}
	return time.Time{}
}

// DistanceBetween. length in meter of the track legs from point i to point j (i <= j).
func (t *Track) DistanceBetween(i, j int) float64 {
	dist := 0.0
	for k := i; k < j; k++ {
		dist += geo.HaversineMeters(t.points[k].Coordinate(), t.points[k+1].Coordinate())
	}
	return dist
}

func (t *Track) Length() float64 {
	return t.DistanceBetween(0, len(t.points)-1)
}
