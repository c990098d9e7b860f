package offline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lintang-b-s/waymatcher/pkg"
	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

type rankedBranch[T pkg.Cost] struct {
	b      *datastructure.Branch[T]
	factor float64
}

// finalize. charge trailing pass-through segments and unconsumed points, normalize the cost into the
// matched factor (cost * points / matched points), then sort, drop repeated segment sequences and truncate.
func (s *search[T]) finalize() []datastructure.MatchedBranch {
	calc := s.m.calc
	n := s.track.Len()

	ranked := make([]rankedBranch[T], 0, len(s.terminated))
	for _, b := range s.terminated {
		terms := []T{calc.EmptyEndSegmentsDistance(b.TrailingEmpty())}
		for k := b.SkipRemaining(n); k > 0; k-- {
			terms = append(terms, calc.UnmatchedPointPenalty())
		}
		b.AddCost(calc.Reduce(terms...))
		if b.GetMatchedPoints() == 0 {
			continue
		}
		factor := calc.ToMeters(b.GetCost()) * float64(n) / float64(b.GetMatchedPoints())
		b.SetState(datastructure.RANKED)
		ranked = append(ranked, rankedBranch[T]{b: b, factor: factor})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].factor != ranked[j].factor {
			return ranked[i].factor < ranked[j].factor
		}
		return s.less(ranked[i].b, ranked[j].b)
	})

	out := make([]datastructure.MatchedBranch, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, r := range ranked {
		if s.m.cfg.MaxResults > 0 && len(out) == s.m.cfg.MaxResults {
			break
		}
		key := sequenceKey(r.b.GetCandidates())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, datastructure.NewMatchedBranch(r.b.GetCandidates(), r.factor,
			calc.ToMeters(r.b.GetCost()), r.b.GetMatchedPoints(), r.b.GetUnmatched()))
	}
	return out
}

func sequenceKey(cands []datastructure.Candidate) string {
	var sb strings.Builder
	for _, c := range cands {
		sb.WriteString(strconv.FormatInt(int64(c.GetSegment().GetID()), 10))
		if c.GetDirection() == datastructure.FORWARD {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
