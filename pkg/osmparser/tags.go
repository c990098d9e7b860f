package osmparser

import (
	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/paulmach/osm"
)

type NodeType uint8

const (
	BETWEEN_NODE NodeType = iota
	END_NODE
	JUNCTION_NODE
)

var (
	// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
	// pedestrian and cycle ways are kept, bike & foot tracks run on them.
	acceptedHighway = map[string]struct{}{
		"motorway":       {},
		"motorway_link":  {},
		"motorroad":      {},
		"trunk":          {},
		"trunk_link":     {},
		"primary":        {},
		"primary_link":   {},
		"secondary":      {},
		"secondary_link": {},
		"tertiary":       {},
		"tertiary_link":  {},
		"unclassified":   {},
		"residential":    {},
		"living_street":  {},
		"service":        {},
		"road":           {},
		"track":          {},
		"footway":        {},
		"cycleway":       {},
		"path":           {},
		"pedestrian":     {},
		"steps":          {},
		"bridleway":      {},
		"corridor":       {},
	}

	// no motor traffic
	walkwayHighway = map[string]struct{}{
		"footway":    {},
		"cycleway":   {},
		"path":       {},
		"pedestrian": {},
		"steps":      {},
		"bridleway":  {},
		"corridor":   {},
	}

	//https://wiki.openstreetmap.org/wiki/Key:barrier
	// a barrier with access=no splits the way into two disconnected segments.
	acceptedBarrierType = map[string]struct{}{
		"bollard":        {},
		"swing_gate":     {},
		"jersey_barrier": {},
		"lift_gate":      {},
		"block":          {},
		"gate":           {},
	}
)

func acceptOsmWay(way *osm.Way) bool {
	if len(way.Nodes) < 2 || way.Tags.Find("area") == "yes" {
		return false
	}
	highway := way.Tags.Find("highway")
	if highway != "" {
		_, ok := acceptedHighway[highway]
		return ok
	}
	return way.Tags.Find("junction") != ""
}

func isRestricted(value string) bool {
	return value == "no" || value == "restricted"
}

func isAllowed(value string) bool {
	return value == "yes" || value == "designated" || value == "permissive"
}

// getReversedOneWay. restricted forward / backward access for vehicles or motor vehicles.
func getReversedOneWay(way *osm.Way) (bool, bool, bool, bool) {
	vehicleForward := way.Tags.Find("vehicle:forward")
	motorVehicleForward := way.Tags.Find("motor_vehicle:forward")
	vehicleBackward := way.Tags.Find("vehicle:backward")
	motorVehicleBackward := way.Tags.Find("motor_vehicle:backward")
	return isRestricted(vehicleForward), isRestricted(motorVehicleForward), isRestricted(vehicleBackward), isRestricted(motorVehicleBackward)
}

// parseOneWay. https://wiki.openstreetmap.org/wiki/Key:oneway
func parseOneWay(way *osm.Way) datastructure.OneWay {
	okvf, okmvf, okvb, okmvb := getReversedOneWay(way)
	switch way.Tags.Find("oneway") {
	case "yes", "true", "1":
		return datastructure.ONEWAY_FORWARD
	case "-1", "reverse":
		return datastructure.ONEWAY_BACKWARD
	case "no", "false", "0":
		return datastructure.ONEWAY_NONE
	}
	switch {
	case okvf || okmvf:
		return datastructure.ONEWAY_BACKWARD
	case okvb || okmvb:
		return datastructure.ONEWAY_FORWARD
	}
	highway := way.Tags.Find("highway")
	if highway == "motorway" || way.Tags.Find("junction") == "roundabout" {
		return datastructure.ONEWAY_FORWARD
	}
	return datastructure.ONEWAY_NONE
}

// wayAttributes. road class, one-way rule, walkway flag and explicit bicycle access of an osm way.
func wayAttributes(way *osm.Way) datastructure.WaySegmentAttributes {
	highway := way.Tags.Find("highway")
	attr := datastructure.WaySegmentAttributes{
		RoadClass: pkg.ParseRoadClass(highway),
		OneWay:    parseOneWay(way),
	}
	_, attr.Walkway = walkwayHighway[highway]

	bicycle := way.Tags.Find("bicycle")
	bikeAccess := highway == "cycleway" || isAllowed(bicycle)
	if isRestricted(bicycle) {
		return attr
	}

	contraflow := way.Tags.Find("oneway:bicycle") == "no" ||
		way.Tags.Find("cycleway") == "opposite" || way.Tags.Find("cycleway") == "opposite_lane"
	switch attr.OneWay {
	case datastructure.ONEWAY_NONE:
		attr.BikeForward, attr.BikeBackward = bikeAccess, bikeAccess
	case datastructure.ONEWAY_FORWARD:
		attr.BikeForward, attr.BikeBackward = bikeAccess || contraflow, contraflow
	case datastructure.ONEWAY_BACKWARD:
		attr.BikeForward, attr.BikeBackward = contraflow, bikeAccess || contraflow
	}
	return attr
}
