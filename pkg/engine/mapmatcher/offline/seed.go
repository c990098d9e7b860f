package offline

import (
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

var directions = [...]datastructure.Direction{datastructure.FORWARD, datastructure.BACKWARD}

// seed. one branch per traversable (segment, direction) near the first point that has any.
// leading points without a nearby segment stay unmatched, up to MaxConsecutiveUnmatched of them.
func (s *search[T]) seed() ([]*datastructure.Branch[T], error) {
	skipped := make([]int, 0)
	for i := 0; i < s.track.Len() && i <= s.m.cfg.MaxConsecutiveUnmatched; i++ {
		branches, err := s.seedAt(i, skipped)
		if err != nil {
			return nil, err
		}
		if len(branches) > 0 {
			return branches, nil
		}
		skipped = append(skipped, i)
	}
	return nil, nil
}

func (s *search[T]) seedAt(i int, skipped []int) ([]*datastructure.Branch[T], error) {
	p := s.track.At(i)
	near, err := s.store.SegmentsNear(s.ctx, p.Coordinate(), s.m.cfg.SnapRadius)
	if err != nil {
		return nil, err
	}

	calc := s.m.calc
	branches := make([]*datastructure.Branch[T], 0, 2*len(near))
	for _, seg := range near {
		if !s.usable(seg) {
			continue
		}
		for _, dir := range directions {
			if !s.modeAllows(seg, dir) {
				continue
			}
			proj := seg.Project(p, dir)
			if proj.Distance > s.m.cfg.SnapRadius || !s.headingAllows(p, seg, dir, proj.Offset) {
				continue
			}
			ok, err := s.m.filter.IsSegmentTraversable(s.ctx, s.graph, seg, dir, s.refTime)
			if err != nil {
				s.restrictionWarning(err)
				continue
			}
			if !ok {
				continue
			}

			c := datastructure.NewCandidate(seg, dir).WithPoint(i, proj)
			terms := make([]T, 0, 4+len(skipped))
			calc.SegmentPointsDistance(&c, &terms)
			terms = append(terms, calc.BikeOnWalkwayPenalty(&c), calc.BikeAgainstOneWayPenalty(&c, nil))
			for range skipped {
				terms = append(terms, calc.UnmatchedPointPenalty())
			}
			branches = append(branches, datastructure.NewBranch(c, calc.Reduce(terms...), skipped))
		}
	}
	return branches, nil
}
