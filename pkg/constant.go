package pkg

import (
	"errors"
	"strings"
)

const (
	INF_WEIGHT float64 = 1e15

	EARTH_RADIUS_M = 6371000.0
)

const (
	DEBUG = false
)

// RoadClass is the functional road class of a way segment. lower value = more important road.
type RoadClass uint8

// https://wiki.openstreetmap.org/wiki/Key:highway
const (
	MOTORWAY      RoadClass = 0
	TRUNK         RoadClass = 1
	PRIMARY       RoadClass = 2
	SECONDARY     RoadClass = 3
	TERTIARY      RoadClass = 4
	UNCLASSIFIED  RoadClass = 5
	RESIDENTIAL   RoadClass = 6
	SERVICE       RoadClass = 7
	LIVING_STREET RoadClass = 8
	TRACK         RoadClass = 9
	PATH          RoadClass = 10
	UNKNOWN       RoadClass = 11
)

var roadClassNames = [...]string{
	MOTORWAY:      "motorway",
	TRUNK:         "trunk",
	PRIMARY:       "primary",
	SECONDARY:     "secondary",
	TERTIARY:      "tertiary",
	UNCLASSIFIED:  "unclassified",
	RESIDENTIAL:   "residential",
	SERVICE:       "service",
	LIVING_STREET: "living_street",
	TRACK:         "track",
	PATH:          "path",
	UNKNOWN:       "unknown",
}

func (rc RoadClass) String() string {
	if int(rc) < len(roadClassNames) {
		return roadClassNames[rc]
	}
	return roadClassNames[UNKNOWN]
}

// MoreImportantThan. true if rc has a higher functional road class than other.
func (rc RoadClass) MoreImportantThan(other RoadClass) bool {
	return rc < other
}

// ParseRoadClass. map osm highway tag value to a functional road class.
// link roads share the class of the road they link.
func ParseRoadClass(highway string) RoadClass {
	switch highway {
	case "motorway", "motorway_link", "motorroad":
		return MOTORWAY
	case "trunk", "trunk_link":
		return TRUNK
	case "primary", "primary_link":
		return PRIMARY
	case "secondary", "secondary_link":
		return SECONDARY
	case "tertiary", "tertiary_link":
		return TERTIARY
	case "unclassified", "road":
		return UNCLASSIFIED
	case "residential":
		return RESIDENTIAL
	case "service":
		return SERVICE
	case "living_street":
		return LIVING_STREET
	case "track":
		return TRACK
	case "path", "footway", "cycleway", "pedestrian", "steps", "bridleway":
		return PATH
	default:
		return UNKNOWN
	}
}

// RoutingMode selects which travel rules and penalties apply while matching a track.
type RoutingMode uint8

const (
	CAR RoutingMode = iota
	BIKE
	FOOT
)

var ErrInvalidRoutingMode = errors.New("invalid routing mode")

func (m RoutingMode) String() string {
	switch m {
	case CAR:
		return "car"
	case BIKE:
		return "bike"
	case FOOT:
		return "foot"
	default:
		return "unknown"
	}
}

func ParseRoutingMode(mode string) (RoutingMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "car", "driving":
		return CAR, nil
	case "bike", "bicycle", "cycling":
		return BIKE, nil
	case "foot", "walking", "pedestrian":
		return FOOT, nil
	default:
		return 0, ErrInvalidRoutingMode
	}
}
