package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/concurrent"
	"github.com/lintang-b-s/waymatcher/pkg/costfunction"
	"github.com/lintang-b-s/waymatcher/pkg/engine/mapmatcher/offline"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/lintang-b-s/waymatcher/pkg/metrics"
	"github.com/lintang-b-s/waymatcher/pkg/restriction"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"go.uber.org/zap"
)

const (
	defaultMatchTimeout = 10 * time.Second
	defaultWorkers      = 8
)

// Engine. runs match tasks against the registered graphs. safe for concurrent use,
// every task owns its search state.
type Engine struct {
	registry       *graph.Registry
	filter         *restriction.Filter
	cfg            offline.Config
	defaultTimeout time.Duration
	workers        int
	fixedPoint     bool
	metrics        *metrics.Metrics
	log            *zap.Logger
}

func NewEngine(registry *graph.Registry, restrictions restriction.Service, mc util.MatcherConfig,
	m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	cfg := offline.ConfigFromMatcherConfig(mc)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher config: %w", err)
	}
	if registry == nil {
		registry = graph.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := mc.MatchTimeout
	if timeout <= 0 {
		timeout = defaultMatchTimeout
	}
	workers := mc.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	logger.Info("match engine ready", zap.Strings("graphs", registry.Names()),
		zap.Duration("default_timeout", timeout), zap.Int("workers", workers),
		zap.Bool("fixed_point_cost", mc.FixedPointCost))

	return &Engine{
		registry:       registry,
		filter:         restriction.NewFilter(restrictions),
		cfg:            cfg,
		defaultTimeout: timeout,
		workers:        workers,
		fixedPoint:     mc.FixedPointCost,
		metrics:        m,
		log:            logger,
	}, nil
}

func (e *Engine) Registry() *graph.Registry {
	return e.registry
}

func (e *Engine) Graphs() []string {
	return e.registry.Names()
}

func (e *Engine) NewTask(req MatchRequest) *MatchTask {
	return &MatchTask{id: newTaskID(), req: req, engine: e}
}

// MatchTrack. run a single task, see MatchTask.Run.
func (e *Engine) MatchTrack(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	return e.NewTask(req).Run(ctx)
}

// BatchOutcome. exactly one of Result and Err is set.
type BatchOutcome struct {
	Result *MatchResult
	Err    error
}

// MatchBatch. run every request on the worker pool, outcome i belongs to request i.
// one failing request never affects the others.
func (e *Engine) MatchBatch(ctx context.Context, reqs []MatchRequest) []BatchOutcome {
	return concurrent.Map(ctx, e.workers, reqs, func(ctx context.Context, req MatchRequest) (out BatchOutcome) {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("batch match panicked", zap.Any("panic", r))
				out = BatchOutcome{Err: newFailure(Internal, nil, "task panicked: %v", r)}
			}
		}()
		if err := ctx.Err(); err != nil {
			return BatchOutcome{Err: timeoutFailure(err, 0)}
		}
		res, err := e.MatchTrack(ctx, req)
		return BatchOutcome{Result: res, Err: err}
	})
}

func (e *Engine) search(ctx context.Context, cfg offline.Config, mode pkg.RoutingMode, in offline.MatchInput,
	log *zap.Logger) (*offline.Result, error) {
	profile, err := costfunction.ProfileFor(mode)
	if err != nil {
		return nil, newFailure(InvalidRoutingParameter, err, "no cost profile for mode %s", mode)
	}
	if err := cfg.Validate(); err != nil {
		return nil, newFailure(InvalidRoutingParameter, err, "%v", err)
	}

	if e.fixedPoint {
		m := offline.NewMatcher[costfunction.Millimeter](cfg, costfunction.NewMillimeterModel(profile), e.filter, log)
		return m.Match(ctx, in)
	}
	m := offline.NewMatcher[float64](cfg, costfunction.NewMeterModel(profile), e.filter, log)
	return m.Match(ctx, in)
}
