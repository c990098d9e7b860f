package usecases

import (
	"context"

	"github.com/lintang-b-s/waymatcher/pkg/engine"
)

type MatchEngine interface {
	MatchTrack(ctx context.Context, req engine.MatchRequest) (*engine.MatchResult, error)
	MatchBatch(ctx context.Context, reqs []engine.MatchRequest) []engine.BatchOutcome
	Graphs() []string
}
