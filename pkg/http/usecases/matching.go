package usecases

import (
	"context"
	"errors"

	"github.com/lintang-b-s/waymatcher/pkg/engine"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"go.uber.org/zap"
)

var ErrTooManyTracks = errors.New("too many tracks in one batch")

type MatchingService struct {
	log       *zap.Logger
	engine    MatchEngine
	maxTracks int
}

func NewMatchingService(log *zap.Logger, engine MatchEngine, maxTracks int) *MatchingService {
	return &MatchingService{
		log:       log,
		engine:    engine,
		maxTracks: maxTracks,
	}
}

// MatchTrack. task failures come back as coded errors, see util.ErrorCode.
func (ms *MatchingService) MatchTrack(ctx context.Context, req engine.MatchRequest) (*engine.MatchResult, error) {
	res, err := ms.engine.MatchTrack(ctx, req)
	if err != nil {
		return nil, codedFailure(err)
	}
	return res, nil
}

func (ms *MatchingService) MatchTracks(ctx context.Context, reqs []engine.MatchRequest) ([]engine.BatchOutcome, error) {
	if ms.maxTracks > 0 && len(reqs) > ms.maxTracks {
		return nil, util.WrapErrorf(ErrTooManyTracks, util.ErrBadParamInput, "at most %d tracks per request, got %d",
			ms.maxTracks, len(reqs))
	}
	out := ms.engine.MatchBatch(ctx, reqs)
	for i := range out {
		if out[i].Err != nil {
			out[i].Err = codedFailure(out[i].Err)
		}
	}
	return out, nil
}

func (ms *MatchingService) Graphs() []string {
	return ms.engine.Graphs()
}

func codedFailure(err error) error {
	var f *engine.TaskFailure
	if !errors.As(err, &f) {
		return util.WrapErrorf(err, util.ErrInternalServerError, "%v", err)
	}
	switch f.Kind {
	case engine.GraphNotFound:
		return util.WrapErrorf(f, util.ErrNotFound, "%s", f.Message)
	case engine.InvalidRoutingParameter:
		return util.WrapErrorf(f, util.ErrBadParamInput, "%s", f.Message)
	case engine.Timeout:
		return util.WrapErrorf(f, util.ErrTimeout, "%s", f.Message)
	default:
		return util.WrapErrorf(f, util.ErrInternalServerError, "%s", f.Message)
	}
}
