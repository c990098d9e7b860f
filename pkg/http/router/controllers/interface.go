package controllers

import (
	"context"

	"github.com/lintang-b-s/waymatcher/pkg/engine"
)

type MatchingService interface {
	MatchTrack(ctx context.Context, req engine.MatchRequest) (*engine.MatchResult, error)
	MatchTracks(ctx context.Context, reqs []engine.MatchRequest) ([]engine.BatchOutcome, error)
	Graphs() []string
}
