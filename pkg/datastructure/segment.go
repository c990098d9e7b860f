package datastructure

import (
	"errors"
	"fmt"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/util"
)

// NodeID. road graph vertices carry no payload beyond their id.
type NodeID int64

type SegmentID int64

var ErrInvalidGeometry = errors.New("invalid segment geometry")

type Direction uint8

const (
	FORWARD  Direction = iota // start node -> end node
	BACKWARD                  // end node -> start node
)

func (d Direction) Opposite() Direction {
	if d == FORWARD {
		return BACKWARD
	}
	return FORWARD
}

func (d Direction) String() string {
	if d == FORWARD {
		return "forward"
	}
	return "backward"
}

type OneWay uint8

const (
	ONEWAY_NONE     OneWay = iota
	ONEWAY_FORWARD         // oneway=yes
	ONEWAY_BACKWARD        // oneway=-1
)

// WaySegment. directed-capable road graph edge, geometry runs from start node to end node.
// immutable after NewWaySegment.
type WaySegment struct {
	id           SegmentID
	geometry     []geo.Coordinate
	startNode    NodeID
	endNode      NodeID
	roadClass    pkg.RoadClass
	oneWay       OneWay
	bikeForward  bool
	bikeBackward bool
	walkway      bool
	length       float64
}

type WaySegmentAttributes struct {
	RoadClass    pkg.RoadClass
	OneWay       OneWay
	BikeForward  bool
	BikeBackward bool
	Walkway      bool
}

func NewWaySegment(id SegmentID, startNode, endNode NodeID, geometry []geo.Coordinate,
	attr WaySegmentAttributes) *WaySegment {
	owned := make([]geo.Coordinate, len(geometry))
	copy(owned, geometry)
	return &WaySegment{
		id:           id,
		geometry:     owned,
		startNode:    startNode,
		endNode:      endNode,
		roadClass:    attr.RoadClass,
		oneWay:       attr.OneWay,
		bikeForward:  attr.BikeForward,
		bikeBackward: attr.BikeBackward,
		walkway:      attr.Walkway,
		length:       geo.PolylineLength(owned),
	}
}

func (s *WaySegment) GetID() SegmentID {
	return s.id
}

// GetGeometry. copy of the segment polyline (start -> end).
func (s *WaySegment) GetGeometry() []geo.Coordinate {
	out := make([]geo.Coordinate, len(s.geometry))
	copy(out, s.geometry)
	return out
}

// DirectedGeometry. polyline in travel direction dir.
func (s *WaySegment) DirectedGeometry(dir Direction) []geo.Coordinate {
	if dir == FORWARD {
		return s.GetGeometry()
	}
	return util.Reversed(s.geometry)
}

func (s *WaySegment) GetStartNode() NodeID {
	return s.startNode
}

func (s *WaySegment) GetEndNode() NodeID {
	return s.endNode
}

func (s *WaySegment) GetRoadClass() pkg.RoadClass {
	return s.roadClass
}

func (s *WaySegment) GetOneWay() OneWay {
	return s.oneWay
}

func (s *WaySegment) IsWalkway() bool {
	return s.walkway
}

func (s *WaySegment) Attributes() WaySegmentAttributes {
	return WaySegmentAttributes{
		RoadClass:    s.roadClass,
		OneWay:       s.oneWay,
		BikeForward:  s.bikeForward,
		BikeBackward: s.bikeBackward,
		Walkway:      s.walkway,
	}
}

// Length. in meter
func (s *WaySegment) Length() float64 {
	return s.length
}

func (s *WaySegment) EntryNode(dir Direction) NodeID {
	if dir == FORWARD {
		return s.startNode
	}
	return s.endNode
}

func (s *WaySegment) ExitNode(dir Direction) NodeID {
	if dir == FORWARD {
		return s.endNode
	}
	return s.startNode
}

// Validate. a usable segment has at least 2 valid coordinates.
func (s *WaySegment) Validate() error {
	if len(s.geometry) < 2 {
		return fmt.Errorf("%w: segment %d has %d points", ErrInvalidGeometry, s.id, len(s.geometry))
	}
	for _, c := range s.geometry {
		if !c.Valid() {
			return fmt.Errorf("%w: segment %d has coordinate (%f,%f)", ErrInvalidGeometry, s.id, c.Lat, c.Lon)
		}
	}
	if !util.IsFinite(s.length) {
		return fmt.Errorf("%w: segment %d has non finite length", ErrInvalidGeometry, s.id)
	}
	return nil
}

// IsOneWayAgainst. true if traveling in dir violates the segment one-way rule.
func (s *WaySegment) IsOneWayAgainst(dir Direction) bool {
	switch s.oneWay {
	case ONEWAY_FORWARD:
		return dir == BACKWARD
	case ONEWAY_BACKWARD:
		return dir == FORWARD
	default:
		return false
	}
}

func (s *WaySegment) AllowsCar(dir Direction) bool {
	return !s.walkway && !s.IsOneWayAgainst(dir)
}

// AllowsBike. explicit bicycle access in dir (e.g. oneway:bicycle=no on a one-way street).
func (s *WaySegment) AllowsBike(dir Direction) bool {
	if dir == FORWARD {
		return s.bikeForward
	}
	return s.bikeBackward
}

// Projection. a track point projected onto a segment in travel direction.
type Projection struct {
	Distance float64 // meter, point to segment
	Offset   float64 // meter, from the entry node along the travel direction
	Point    geo.Coordinate
}

func (s *WaySegment) Project(p Point, dir Direction) Projection {
	proj := geo.ProjectToPolyline(s.geometry, p.Coordinate())
	offset := proj.Offset
	if dir == BACKWARD {
		offset = s.length - offset
	}
	if offset < 0 {
		offset = 0
	}
	return Projection{Distance: proj.Distance, Offset: offset, Point: proj.Point}
}

// BearingAt. bearing of the travel direction at the given offset.
func (s *WaySegment) BearingAt(dir Direction, offset float64) float64 {
	line := s.DirectedGeometry(dir)
	walked := 0.0
	for i := 0; i+1 < len(line); i++ {
		leg := geo.HaversineMeters(line[i], line[i+1])
		if walked+leg >= offset || i+2 == len(line) {
			return geo.BearingTo(line[i].Lat, line[i].Lon, line[i+1].Lat, line[i+1].Lon)
		}
		walked += leg
	}
	return 0
}
