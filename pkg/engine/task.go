package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/engine/mapmatcher/offline"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"go.uber.org/zap"
)

type FailureKind string

const (
	GraphNotFound           FailureKind = "GraphNotFound"
	InvalidRoutingParameter FailureKind = "InvalidRoutingParameter"
	Timeout                 FailureKind = "Timeout"
	Internal                FailureKind = "Internal"
)

// TaskFailure. typed failure of one match task. a task that finds no match is not a failure.
type TaskFailure struct {
	Kind    FailureKind
	Message string
	err     error
}

func (f *TaskFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *TaskFailure) Unwrap() error {
	return f.err
}

func newFailure(kind FailureKind, err error, format string, a ...interface{}) *TaskFailure {
	return &TaskFailure{Kind: kind, Message: fmt.Sprintf(format, a...), err: err}
}

// FailureKindOf. kind of the TaskFailure in err's chain, Internal otherwise.
func FailureKindOf(err error) FailureKind {
	var f *TaskFailure
	if errors.As(err, &f) {
		return f.Kind
	}
	return Internal
}

type MatchRequest struct {
	Track     *datastructure.Track
	GraphName string
	Mode      string
	// Timeout. zero = engine default.
	Timeout time.Duration
	// ReferenceTime for restrictions. zero = first timestamp of the track.
	ReferenceTime time.Time
	// MaxResults. zero = engine default.
	MaxResults int
}

type MatchResult struct {
	TaskID    string
	GraphName string
	Mode      pkg.RoutingMode
	Branches  []datastructure.MatchedBranch
	Warnings  []string
	Duration  time.Duration
	Stats     offline.Stats
}

// NoMatch. the search finished without any plausible branch.
func (r *MatchResult) NoMatch() bool {
	return len(r.Branches) == 0
}

// MatchTask. one track matching run. Run may be called once.
type MatchTask struct {
	id     string
	req    MatchRequest
	engine *Engine
}

func (t *MatchTask) ID() string {
	return t.id
}

type searchOutcome struct {
	res *offline.Result
	err error
}

// Run. match the track under the request timeout. on expiry Run returns a Timeout failure right away,
// the search goroutine notices the cancelled context and exits on its own.
func (t *MatchTask) Run(ctx context.Context) (*MatchResult, error) {
	start := time.Now()
	e := t.engine
	log := e.log.With(zap.String("task_id", t.id), zap.String("graph", t.req.GraphName))

	res, mode, err := t.run(ctx, log)
	elapsed := time.Since(start)

	if err != nil {
		kind := FailureKindOf(err)
		log.Info("match task failed", zap.String("kind", string(kind)), zap.Duration("duration", elapsed),
			zap.Error(err))
		e.metrics.ObserveMatch(t.req.Mode, string(kind), elapsed, 0, 0)
		return nil, err
	}

	out := &MatchResult{
		TaskID:    t.id,
		GraphName: t.req.GraphName,
		Mode:      mode,
		Branches:  res.Branches,
		Warnings:  res.Warnings,
		Duration:  elapsed,
		Stats:     res.Stats,
	}
	outcome := "ok"
	if out.NoMatch() {
		outcome = "no_match"
	}
	log.Debug("match task done", zap.String("outcome", outcome), zap.Int("branches", len(out.Branches)),
		zap.Int("extensions", res.Stats.Extensions), zap.Duration("duration", elapsed))
	e.metrics.ObserveMatch(mode.String(), outcome, elapsed, len(out.Branches), res.Stats.Extensions)
	return out, nil
}

func (t *MatchTask) run(ctx context.Context, log *zap.Logger) (*offline.Result, pkg.RoutingMode, error) {
	e := t.engine
	req := t.req

	store, err := e.registry.Get(req.GraphName)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			return nil, 0, newFailure(GraphNotFound, err, "graph %q does not exist", req.GraphName)
		}
		return nil, 0, newFailure(Internal, err, "resolving graph %q", req.GraphName)
	}

	mode, err := pkg.ParseRoutingMode(req.Mode)
	if err != nil {
		return nil, 0, newFailure(InvalidRoutingParameter, err, "unsupported routing mode %q", req.Mode)
	}
	if req.Track == nil || req.Track.Len() == 0 {
		return nil, mode, newFailure(InvalidRoutingParameter, datastructure.ErrEmptyTrack, "track has no points")
	}
	if req.Timeout < 0 {
		return nil, mode, newFailure(InvalidRoutingParameter, nil, "negative timeout %s", req.Timeout)
	}
	if req.MaxResults < 0 {
		return nil, mode, newFailure(InvalidRoutingParameter, nil, "negative max results %d", req.MaxResults)
	}

	cfg := e.cfg
	if req.MaxResults > 0 {
		cfg.MaxResults = req.MaxResults
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.defaultTimeout
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered, an abandoned search must never block on send
	done := make(chan searchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("match search panicked", zap.Any("panic", r))
				done <- searchOutcome{err: newFailure(Internal, nil, "search panicked: %v", r)}
			}
		}()
		res, err := e.search(tctx, cfg, mode, offline.MatchInput{
			GraphName:     req.GraphName,
			Store:         store,
			Track:         req.Track,
			ReferenceTime: req.ReferenceTime,
		}, log)
		done <- searchOutcome{res: res, err: err}
	}()

	select {
	case <-tctx.Done():
		return nil, mode, timeoutFailure(tctx.Err(), timeout)
	case out := <-done:
		if out.err == nil {
			return out.res, mode, nil
		}
		if errors.Is(out.err, context.DeadlineExceeded) || errors.Is(out.err, context.Canceled) {
			return nil, mode, timeoutFailure(out.err, timeout)
		}
		var f *TaskFailure
		if errors.As(out.err, &f) {
			return nil, mode, f
		}
		return nil, mode, newFailure(Internal, out.err, "matching track: %v", out.err)
	}
}

func timeoutFailure(err error, timeout time.Duration) *TaskFailure {
	if errors.Is(err, context.Canceled) {
		return newFailure(Timeout, err, "cancelled by caller")
	}
	return newFailure(Timeout, err, "no result within %s", timeout)
}

func newTaskID() string {
	return uuid.NewString()
}
