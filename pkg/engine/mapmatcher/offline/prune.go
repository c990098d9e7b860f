package offline

import (
	"sort"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

// prune. merge children that sit on the same (segment, direction) with costs within MergeCostTolerance,
// keeping the cheaper one, then keep the best BeamWidth.
func (s *search[T]) prune(children []*datastructure.Branch[T]) []*datastructure.Branch[T] {
	sort.SliceStable(children, func(a, b int) bool {
		return s.less(children[a], children[b])
	})

	kept := make([]*datastructure.Branch[T], 0, min(len(children), s.m.cfg.BeamWidth))
	keptCost := make(map[datastructure.BranchKey][]float64)
	for _, c := range children {
		if len(kept) == s.m.cfg.BeamWidth {
			break
		}
		key := c.Key()
		cost := s.m.calc.ToMeters(c.GetCost())
		merged := false
		for _, k := range keptCost[key] {
			// children are sorted, cost >= k
			if cost-k <= s.m.cfg.MergeCostTolerance {
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		keptCost[key] = append(keptCost[key], cost)
		kept = append(kept, c)
	}
	return kept
}

// less. total order of branches: cost, then the more important road class of the current segment,
// then the lower current segment id, then the segment sequence, then the unmatched points.
func (s *search[T]) less(a, b *datastructure.Branch[T]) bool {
	if a.GetCost() != b.GetCost() {
		return a.GetCost() < b.GetCost()
	}
	la, lb := a.Last().GetSegment(), b.Last().GetSegment()
	if la.GetRoadClass() != lb.GetRoadClass() {
		return la.GetRoadClass().MoreImportantThan(lb.GetRoadClass())
	}
	if la.GetID() != lb.GetID() {
		return la.GetID() < lb.GetID()
	}
	if c := compareSequence(a.GetCandidates(), b.GetCandidates()); c != 0 {
		return c < 0
	}
	return compareInts(a.GetUnmatched(), b.GetUnmatched()) < 0
}

func compareSequence(a, b []datastructure.Candidate) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ia, ib := a[i].GetSegment().GetID(), b[i].GetSegment().GetID()
		if ia != ib {
			if ia < ib {
				return -1
			}
			return 1
		}
		if a[i].GetDirection() != b[i].GetDirection() {
			if a[i].GetDirection() < b[i].GetDirection() {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

func compareInts(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return len(a) - len(b)
}
