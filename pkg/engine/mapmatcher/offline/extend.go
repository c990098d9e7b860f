package offline

import (
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
	"github.com/lintang-b-s/waymatcher/pkg/geo"
	"github.com/lintang-b-s/waymatcher/pkg/graph"
)

// hop. a directed segment reached by the move expansion. chain holds the pass-through segments
// between the branch's current segment and seg.
type hop struct {
	seg   *datastructure.WaySegment
	dir   datastructure.Direction
	chain []datastructure.Candidate
	dist  float64 // path length from the last matched point to the entry of seg
}

// extend. children of b for track point i. no children = b cannot go on.
func (s *search[T]) extend(b *datastructure.Branch[T], i int) ([]*datastructure.Branch[T], error) {
	p := s.track.At(i)
	children := make([]*datastructure.Branch[T], 0, 4)

	// a repeated fix never triggers a move, otherwise it could start a zero-length hop
	duplicate := i > 0 &&
		geo.HaversineMeters(s.track.At(i-1).Coordinate(), p.Coordinate()) <= s.m.cfg.DuplicatePointEpsilon

	if child, ok := s.stay(b, i, p, duplicate); ok {
		children = append(children, child)
	}

	canSkip := b.GetUnmatchedRun() < s.m.cfg.MaxConsecutiveUnmatched
	if !duplicate {
		moved, err := s.moves(b, i, p)
		if err != nil {
			return nil, err
		}
		children = append(children, moved...)

		if len(moved) == 0 && canSkip {
			drifted, err := s.drifts(b, i, p)
			if err != nil {
				return nil, err
			}
			children = append(children, drifted...)
		}
	}

	if canSkip {
		child := b.Fork()
		child.SkipPoint()
		child.AddCost(s.m.calc.UnmatchedPointPenalty())
		child.SetState(datastructure.EXTENDING)
		children = append(children, child)
	}
	return children, nil
}

// stay. match point i on the branch's current segment, not too far behind the previous point.
func (s *search[T]) stay(b *datastructure.Branch[T], i int, p datastructure.Point,
	duplicate bool) (*datastructure.Branch[T], bool) {
	last := b.Last()
	seg, dir := last.GetSegment(), last.GetDirection()
	proj := seg.Project(p, dir)
	if proj.Distance > s.m.cfg.SnapRadius || !s.headingAllows(p, seg, dir, proj.Offset) {
		return nil, false
	}
	if !duplicate && last.HasPoints() && proj.Offset < last.LastOffset()-s.m.cfg.OffsetBacktrackTolerance {
		return nil, false
	}

	calc := s.m.calc
	grown := last.WithPoint(i, proj)
	single := datastructure.NewCandidate(seg, dir).WithPoint(i, proj)

	// routed from the last matched point, which sits on an earlier segment if the branch drifted onto seg
	run := b.OpenRun()
	path := make([]datastructure.Candidate, len(run))
	copy(path, run)
	path[len(path)-1] = grown

	terms := make([]T, 0, 2)
	calc.SegmentPointsDistance(&single, &terms)
	terms = append(terms, calc.RoutingSegmentsDistance(path, s.track))

	child := b.Fork()
	child.ReplaceLast(grown)
	child.AddCost(calc.Reduce(terms...))
	child.SetState(datastructure.EXTENDING)
	return child, true
}

// moves. bounded best-first search (by path length) from the exit node of the branch's current segment.
// every reached directed segment near point i becomes a child. the search is limited by MaxSkipSegments
// pass-through segments and MaxSkipDistance meters.
func (s *search[T]) moves(b *datastructure.Branch[T], i int, p datastructure.Point) ([]*datastructure.Branch[T], error) {
	last := b.Last()
	rem := last.GetSegment().Length() - last.LastOffset()
	if rem < 0 {
		rem = 0
	}

	pq := datastructure.NewFourAryHeap[*hop]()
	visited := make(map[datastructure.BranchKey]bool)
	children := make([]*datastructure.Branch[T], 0)

	if err := s.pushEdges(pq, last.GetSegment(), last.GetDirection(), nil, rem); err != nil {
		return nil, err
	}

	for !pq.IsEmpty() {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		node, err := pq.ExtractMin()
		if err != nil {
			return nil, err
		}
		h := node.GetItem()
		key := datastructure.BranchKey{Segment: h.seg.GetID(), Direction: h.dir}
		if visited[key] {
			continue
		}
		visited[key] = true

		proj := h.seg.Project(p, h.dir)
		if proj.Distance <= s.m.cfg.SnapRadius && s.headingAllows(p, h.seg, h.dir, proj.Offset) {
			children = append(children, s.moveChild(b, h, i, proj))
		}

		through := h.dist + h.seg.Length()
		if len(h.chain) < s.m.cfg.MaxSkipSegments && through <= s.m.cfg.MaxSkipDistance {
			chain := make([]datastructure.Candidate, len(h.chain)+1)
			copy(chain, h.chain)
			chain[len(h.chain)] = datastructure.NewCandidate(h.seg, h.dir)
			if err := s.pushEdges(pq, h.seg, h.dir, chain, through); err != nil {
				return nil, err
			}
		}
	}
	return children, nil
}

// pushEdges. queue every segment the branch may enter after (from, fromDir).
func (s *search[T]) pushEdges(pq *datastructure.MinHeap[*hop], from *datastructure.WaySegment,
	fromDir datastructure.Direction, chain []datastructure.Candidate, dist float64) error {
	if dist > s.m.cfg.MaxSkipDistance {
		return nil
	}
	edges, err := s.leaving(from, fromDir)
	if err != nil {
		return err
	}
	for _, e := range edges {
		pq.Insert(datastructure.NewPriorityQueueNode(dist, &hop{seg: e.Segment, dir: e.Direction, chain: chain, dist: dist}))
	}
	return nil
}

// leaving. edges out of the exit node of (from, fromDir) that the mode and the restriction filter allow,
// in the direction the graph store lists them. u-turns back onto from are left out.
func (s *search[T]) leaving(from *datastructure.WaySegment, fromDir datastructure.Direction) ([]graph.Edge, error) {
	edges, err := s.store.EdgesFrom(s.ctx, from.ExitNode(fromDir))
	if err != nil {
		return nil, err
	}
	out := make([]graph.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Segment.GetID() == from.GetID() && e.Direction == fromDir.Opposite() {
			continue
		}
		if !s.usable(e.Segment) || !s.modeAllows(e.Segment, e.Direction) {
			continue
		}
		ok, err := s.m.filter.IsTraversableAs(s.ctx, s.graph, from, fromDir, e.Segment, e.Direction, s.refTime)
		if err != nil {
			s.restrictionWarning(err)
			continue
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// drifts. point i lies past the exit of the branch's segment and the move search reached nothing near it.
// the vehicle may still have driven on, so b continues onto every leaving segment without points and i
// stays unmatched. a branch that ends on such a segment pays EmptyEndSegmentsDistance when finalized.
func (s *search[T]) drifts(b *datastructure.Branch[T], i int, p datastructure.Point) ([]*datastructure.Branch[T], error) {
	last := b.Last()
	seg, dir := last.GetSegment(), last.GetDirection()
	if !last.HasPoints() || seg.Project(p, dir).Offset < seg.Length()-s.m.cfg.OffsetBacktrackTolerance {
		return nil, nil
	}
	edges, err := s.leaving(seg, dir)
	if err != nil {
		return nil, err
	}

	calc := s.m.calc
	children := make([]*datastructure.Branch[T], 0, len(edges))
	for _, e := range edges {
		c := datastructure.NewCandidate(e.Segment, e.Direction)
		child := b.Fork()
		child.AppendCandidate(c)
		child.SkipPoint()
		child.AddCost(calc.Reduce(
			calc.UnmatchedPointPenalty(),
			calc.PseudoSkipPenalty(e.Segment),
			calc.SwitchedFrcPenalty(&c, last),
			calc.BikeAgainstOneWayPenalty(&c, last),
			calc.BikeOnWalkwayPenalty(&c),
		))
		child.SetState(datastructure.EXTENDING)
		children = append(children, child)
	}
	return children, nil
}

// moveChild. b extended by the pass-through chain of h and h's segment carrying point i.
func (s *search[T]) moveChild(b *datastructure.Branch[T], h *hop, i int,
	proj datastructure.Projection) *datastructure.Branch[T] {
	calc := s.m.calc
	target := datastructure.NewCandidate(h.seg, h.dir).WithPoint(i, proj)

	// segments b already drifted onto were charged when they were entered
	run := b.OpenRun()
	path := make([]datastructure.Candidate, 0, len(run)+len(h.chain)+1)
	path = append(path, run...)
	path = append(path, h.chain...)
	path = append(path, target)

	terms := make([]T, 0, 2+4*len(path))
	calc.SegmentPointsDistance(&target, &terms)
	terms = append(terms, calc.RoutingSegmentsDistance(path, s.track))
	for k := len(run); k < len(path); k++ {
		cur, prev := &path[k], &path[k-1]
		terms = append(terms,
			calc.SwitchedFrcPenalty(cur, prev),
			calc.BikeAgainstOneWayPenalty(cur, prev),
			calc.BikeOnWalkwayPenalty(cur),
		)
		if !cur.HasPoints() {
			terms = append(terms, calc.PseudoSkipPenalty(cur.GetSegment()))
		}
	}

	child := b.Fork()
	for _, c := range h.chain {
		child.AppendCandidate(c)
	}
	child.AppendCandidate(target)
	child.AddCost(calc.Reduce(terms...))
	child.SetState(datastructure.EXTENDING)
	return child
}
