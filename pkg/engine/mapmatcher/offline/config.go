package offline

import (
	"fmt"

	"github.com/lintang-b-s/waymatcher/pkg/util"
)

// Config. branch search limits, distances in meter.
type Config struct {
	SnapRadius               float64
	BeamWidth                int
	MaxSkipSegments          int     // pass-through segments allowed between two matched points
	MaxSkipDistance          float64 // path length allowed between two matched points
	MaxConsecutiveUnmatched  int
	MergeCostTolerance       float64
	DuplicatePointEpsilon    float64
	OffsetBacktrackTolerance float64
	HeadingTolerance         float64 // degree, 0 disables the heading check
	MaxResults               int     // 0 = no limit
}

func DefaultConfig() Config {
	return Config{
		SnapRadius:               30,
		BeamWidth:                32,
		MaxSkipSegments:          8,
		MaxSkipDistance:          500,
		MaxConsecutiveUnmatched:  3,
		MergeCostTolerance:       5,
		DuplicatePointEpsilon:    0.5,
		OffsetBacktrackTolerance: 5,
		MaxResults:               3,
	}
}

func ConfigFromMatcherConfig(mc util.MatcherConfig) Config {
	return Config{
		SnapRadius:               mc.SnapRadius,
		BeamWidth:                mc.BeamWidth,
		MaxSkipSegments:          mc.MaxSkipSegments,
		MaxSkipDistance:          mc.MaxSkipDistance,
		MaxConsecutiveUnmatched:  mc.MaxConsecutiveUnmatched,
		MergeCostTolerance:       mc.MergeCostTolerance,
		DuplicatePointEpsilon:    mc.DuplicatePointEpsilon,
		OffsetBacktrackTolerance: mc.OffsetBacktrackTolerance,
		HeadingTolerance:         mc.HeadingTolerance,
		MaxResults:               mc.MaxResults,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SnapRadius <= 0:
		return fmt.Errorf("snap radius must be positive, got %v", c.SnapRadius)
	case c.BeamWidth <= 0:
		return fmt.Errorf("beam width must be positive, got %d", c.BeamWidth)
	case c.MaxSkipSegments < 0 || c.MaxSkipDistance < 0:
		return fmt.Errorf("skip limits must not be negative")
	case c.MaxConsecutiveUnmatched < 0:
		return fmt.Errorf("max consecutive unmatched must not be negative, got %d", c.MaxConsecutiveUnmatched)
	case c.MergeCostTolerance < 0 || c.DuplicatePointEpsilon < 0 || c.OffsetBacktrackTolerance < 0:
		return fmt.Errorf("tolerances must not be negative")
	case c.HeadingTolerance < 0 || c.HeadingTolerance > 180:
		return fmt.Errorf("heading tolerance must be within [0, 180], got %v", c.HeadingTolerance)
	case c.MaxResults < 0:
		return fmt.Errorf("max results must not be negative, got %d", c.MaxResults)
	}
	return nil
}
