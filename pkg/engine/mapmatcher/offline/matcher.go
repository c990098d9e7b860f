package offline

import (
	"context"
	"errors"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/costfunction"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
	"github.com/lintang-b-s/waymatcher/pkg/restriction"
	"go.uber.org/zap"
)

var ErrNilTrack = errors.New("nil track")

/*
offline multi-hypothesis map matcher.

every live branch consumes the track points in order, one point per step. for point i a branch can
stay on its current segment, move along the graph to another segment near the point (through at most
MaxSkipSegments pass-through segments), or leave the point unmatched. the children are merged, pruned
to the beam width and the next point is processed. branches that cannot be extended terminate early.
*/
type Matcher[T pkg.Cost] struct {
	cfg    Config
	calc   costfunction.Calculator[T]
	filter *restriction.Filter
	log    *zap.Logger
}

func NewMatcher[T pkg.Cost](cfg Config, calc costfunction.Calculator[T], filter *restriction.Filter,
	log *zap.Logger) *Matcher[T] {
	if filter == nil {
		filter = restriction.NewFilter(nil)
	}
	return &Matcher[T]{cfg: cfg, calc: calc, filter: filter, log: log}
}

type MatchInput struct {
	GraphName string
	Store     graph.Store
	Track     *datastructure.Track
	// ReferenceTime for restriction lookups. zero = timestamp of the first point that has one.
	ReferenceTime time.Time
}

type Stats struct {
	Seeds      int
	Extensions int // children created across all steps
	Terminated int
	MaxLive    int
}

type Result struct {
	Branches []datastructure.MatchedBranch
	Warnings []string
	Stats    Stats
}

// Match. ranked branches, best first. an empty list means no plausible match.
// the only errors are ctx errors and graph store failures.
func (m *Matcher[T]) Match(ctx context.Context, in MatchInput) (*Result, error) {
	if in.Track == nil {
		return nil, ErrNilTrack
	}
	refTime := in.ReferenceTime
	if refTime.IsZero() {
		refTime = in.Track.ReferenceTime()
	}

	s := &search[T]{
		m:        m,
		ctx:      ctx,
		graph:    in.GraphName,
		store:    in.Store,
		track:    in.Track,
		refTime:  refTime,
		invalid:  make(map[datastructure.SegmentID]bool),
		warnSeen: make(map[string]struct{}),
	}
	return s.run()
}

// search. state of one Match call, never shared between goroutines.
type search[T pkg.Cost] struct {
	m       *Matcher[T]
	ctx     context.Context
	graph   string
	store   graph.Store
	track   *datastructure.Track
	refTime time.Time

	invalid    map[datastructure.SegmentID]bool
	warnings   []string
	warnSeen   map[string]struct{}
	terminated []*datastructure.Branch[T]
	stats      Stats
}

func (s *search[T]) run() (*Result, error) {
	live, err := s.seed()
	if err != nil {
		return nil, err
	}
	s.stats.Seeds = len(live)
	s.stats.MaxLive = len(live)

	next := 0
	if len(live) > 0 {
		next = live[0].GetNextPoint()
	}

	for i := next; i < s.track.Len() && len(live) > 0; i++ {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}

		children := make([]*datastructure.Branch[T], 0, 2*len(live))
		for _, b := range live {
			grown, err := s.extend(b, i)
			if err != nil {
				return nil, err
			}
			if len(grown) == 0 {
				b.SetState(datastructure.TERMINATED)
				s.terminated = append(s.terminated, b)
				continue
			}
			children = append(children, grown...)
		}
		s.stats.Extensions += len(children)

		live = s.prune(children)
		if len(live) > s.stats.MaxLive {
			s.stats.MaxLive = len(live)
		}
	}

	for _, b := range live {
		b.SetState(datastructure.TERMINATED)
		s.terminated = append(s.terminated, b)
	}
	s.stats.Terminated = len(s.terminated)

	return &Result{
		Branches: s.finalize(),
		Warnings: s.warnings,
		Stats:    s.stats,
	}, nil
}

func (s *search[T]) warn(msg string) {
	if _, ok := s.warnSeen[msg]; ok {
		return
	}
	s.warnSeen[msg] = struct{}{}
	s.warnings = append(s.warnings, msg)
}

// usable. segment geometry check, a broken segment is logged once and skipped.
func (s *search[T]) usable(seg *datastructure.WaySegment) bool {
	bad, seen := s.invalid[seg.GetID()]
	if seen {
		return !bad
	}
	err := seg.Validate()
	s.invalid[seg.GetID()] = err != nil
	if err != nil {
		s.m.log.Warn("skipping segment with invalid geometry", zap.String("graph", s.graph),
			zap.Int64("segment_id", int64(seg.GetID())), zap.Error(err))
	}
	return err == nil
}

// modeAllows. car follows one-way rules and stays off walkways, bike and foot may go anywhere
// (bike gets penalized for it).
func (s *search[T]) modeAllows(seg *datastructure.WaySegment, dir datastructure.Direction) bool {
	if s.m.calc.Mode() == pkg.CAR {
		return seg.AllowsCar(dir)
	}
	return true
}

// headingAllows. heading check against the segment bearing at the projected offset.
func (s *search[T]) headingAllows(p datastructure.Point, seg *datastructure.WaySegment, dir datastructure.Direction,
	offset float64) bool {
	if s.m.cfg.HeadingTolerance <= 0 {
		return true
	}
	heading, ok := p.Heading()
	if !ok {
		return true
	}
	return geo.AngleDifference(heading, seg.BearingAt(dir, offset)) <= s.m.cfg.HeadingTolerance
}

func (s *search[T]) restrictionWarning(err error) {
	s.m.log.Warn("restriction lookup failed, edge treated as restricted", zap.String("graph", s.graph),
		zap.Error(err))
	s.warn(err.Error())
}
