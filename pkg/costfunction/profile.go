package costfunction

import (
	"github.com/lintang-b-s/waymatcher/pkg"
)

// Profile. weights of every cost term, all in meter (or meter per meter).
type Profile struct {
	Mode                      pkg.RoutingMode
	PointDistanceWeight       float64
	RoutingDistanceWeight     float64
	PseudoSkipBase            float64
	PseudoSkipPerMeter        float64
	EmptyEndPerMeter          float64
	FrcSwitchPerClass         float64
	BikeAgainstOneWayBase     float64
	BikeAgainstOneWayPerMeter float64
	BikeOnWalkway             float64
	UnmatchedPoint            float64
}

func CarProfile() Profile {
	return Profile{
		Mode:                  pkg.CAR,
		PointDistanceWeight:   1.0,
		RoutingDistanceWeight: 0.5,
		PseudoSkipBase:        2.0,
		PseudoSkipPerMeter:    0.02,
		EmptyEndPerMeter:      1.0,
		FrcSwitchPerClass:     4.0,
		UnmatchedPoint:        60.0,
	}
}

func BikeProfile() Profile {
	p := CarProfile()
	p.Mode = pkg.BIKE
	p.BikeAgainstOneWayBase = 25.0
	p.BikeAgainstOneWayPerMeter = 0.5
	p.BikeOnWalkway = 10.0
	return p
}

// FootProfile. pedestrians change road class all the time.
func FootProfile() Profile {
	p := CarProfile()
	p.Mode = pkg.FOOT
	p.FrcSwitchPerClass = 1.0
	return p
}

func ProfileFor(mode pkg.RoutingMode) (Profile, error) {
	switch mode {
	case pkg.CAR:
		return CarProfile(), nil
	case pkg.BIKE:
		return BikeProfile(), nil
	case pkg.FOOT:
		return FootProfile(), nil
	default:
		return Profile{}, pkg.ErrInvalidRoutingMode
	}
}
