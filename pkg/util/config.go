package util

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

func ReadConfig() error {
	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

// MatcherConfig. tuning of the branch search, all distances in meter.
type MatcherConfig struct {
	SnapRadius               float64
	BeamWidth                int
	MaxSkipSegments          int
	MaxSkipDistance          float64
	MaxConsecutiveUnmatched  int
	MergeCostTolerance       float64
	DuplicatePointEpsilon    float64
	OffsetBacktrackTolerance float64
	HeadingTolerance         float64
	MaxResults               int
	MatchTimeout             time.Duration
	Workers                  int
	FixedPointCost           bool
}

func SetMatcherDefaults() {
	viper.SetDefault("SNAP_RADIUS", 30.0)
	viper.SetDefault("BEAM_WIDTH", 32)
	viper.SetDefault("MAX_SKIP_SEGMENTS", 8)
	viper.SetDefault("MAX_SKIP_DISTANCE", 500.0)
	viper.SetDefault("MAX_CONSECUTIVE_UNMATCHED", 3)
	viper.SetDefault("MERGE_COST_TOLERANCE", 5.0)
	viper.SetDefault("DUPLICATE_POINT_EPSILON", 0.5)
	viper.SetDefault("OFFSET_BACKTRACK_TOLERANCE", 5.0)
	viper.SetDefault("HEADING_TOLERANCE", 0.0)
	viper.SetDefault("MAX_RESULTS", 3)
	viper.SetDefault("MATCH_TIMEOUT", "10s")
	viper.SetDefault("MATCH_WORKERS", 8)
	viper.SetDefault("FIXED_POINT_COST", false)
}

// LoadMatcherConfig. read matcher parameters from viper, falling back to defaults.
func LoadMatcherConfig() MatcherConfig {
	SetMatcherDefaults()
	return MatcherConfig{
		SnapRadius:               viper.GetFloat64("SNAP_RADIUS"),
		BeamWidth:                viper.GetInt("BEAM_WIDTH"),
		MaxSkipSegments:          viper.GetInt("MAX_SKIP_SEGMENTS"),
		MaxSkipDistance:          viper.GetFloat64("MAX_SKIP_DISTANCE"),
		MaxConsecutiveUnmatched:  viper.GetInt("MAX_CONSECUTIVE_UNMATCHED"),
		MergeCostTolerance:       viper.GetFloat64("MERGE_COST_TOLERANCE"),
		DuplicatePointEpsilon:    viper.GetFloat64("DUPLICATE_POINT_EPSILON"),
		OffsetBacktrackTolerance: viper.GetFloat64("OFFSET_BACKTRACK_TOLERANCE"),
		HeadingTolerance:         viper.GetFloat64("HEADING_TOLERANCE"),
		MaxResults:               viper.GetInt("MAX_RESULTS"),
		MatchTimeout:             viper.GetDuration("MATCH_TIMEOUT"),
		Workers:                  viper.GetInt("MATCH_WORKERS"),
		FixedPointCost:           viper.GetBool("FIXED_POINT_COST"),
	}
}
