package datastructure

import (
	"github.com/lintang-b-s/waymatcher/pkg"
)

// Candidate. proposes that the track points in points project onto segment traversed in direction.
// a candidate with no points is a pass-through segment.
type Candidate struct {
	segment   *WaySegment
	direction Direction
	points    []int
	offsets   []float64 // meter from the entry node, one per point
	distances []float64 // meter from the point to the segment, one per point
}

func NewCandidate(segment *WaySegment, direction Direction) Candidate {
	return Candidate{segment: segment, direction: direction}
}

func (c *Candidate) GetSegment() *WaySegment {
	return c.segment
}

func (c *Candidate) GetDirection() Direction {
	return c.direction
}

func (c *Candidate) GetPoints() []int {
	return c.points
}

func (c *Candidate) GetOffsets() []float64 {
	return c.offsets
}

func (c *Candidate) GetDistances() []float64 {
	return c.distances
}

func (c *Candidate) HasPoints() bool {
	return len(c.points) > 0
}

func (c *Candidate) FirstPoint() int {
	if len(c.points) == 0 {
		return -1
	}
	return c.points[0]
}

func (c *Candidate) LastPoint() int {
	if len(c.points) == 0 {
		return -1
	}
	return c.points[len(c.points)-1]
}

func (c *Candidate) FirstOffset() float64 {
	if len(c.offsets) == 0 {
		return 0
	}
	return c.offsets[0]
}

// LastOffset. offset of the last matched point, 0 for pass-through candidates.
func (c *Candidate) LastOffset() float64 {
	if len(c.offsets) == 0 {
		return 0
	}
	return c.offsets[len(c.offsets)-1]
}

// WithPoint. copy of c with point index i appended, c is left untouched.
func (c Candidate) WithPoint(i int, proj Projection) Candidate {
	out := c.clone()
	out.points = append(out.points, i)
	out.offsets = append(out.offsets, proj.Offset)
	out.distances = append(out.distances, proj.Distance)
	return out
}

func (c Candidate) clone() Candidate {
	out := Candidate{
		segment:   c.segment,
		direction: c.direction,
		points:    make([]int, len(c.points), len(c.points)+1),
		offsets:   make([]float64, len(c.offsets), len(c.offsets)+1),
		distances: make([]float64, len(c.distances), len(c.distances)+1),
	}
	copy(out.points, c.points)
	copy(out.offsets, c.offsets)
	copy(out.distances, c.distances)
	return out
}

type BranchState uint8

const (
	SEEDED BranchState = iota
	EXTENDING
	TERMINATED
	RANKED
)

func (s BranchState) String() string {
	switch s {
	case SEEDED:
		return "seeded"
	case EXTENDING:
		return "extending"
	case TERMINATED:
		return "terminated"
	default:
		return "ranked"
	}
}

// Branch. one path hypothesis. every branch owns its slices, use Fork before growing a child.
type Branch[T pkg.Cost] struct {
	candidates    []Candidate
	cost          T
	nextPoint     int // first track point index not yet consumed
	matchedPoints int
	unmatchedRun  int
	unmatched     []int
	state         BranchState
}

// NewBranch. branch seeded with seed. skipped are the leading track points left unmatched before it.
func NewBranch[T pkg.Cost](seed Candidate, cost T, skipped []int) *Branch[T] {
	b := &Branch[T]{
		candidates:    []Candidate{seed.clone()},
		cost:          cost,
		nextPoint:     seed.LastPoint() + 1,
		matchedPoints: len(seed.points),
		unmatched:     make([]int, len(skipped)),
		state:         SEEDED,
	}
	copy(b.unmatched, skipped)
	return b
}

// Fork. deep copy of b. mutating the child never changes b.
func (b *Branch[T]) Fork() *Branch[T] {
	child := &Branch[T]{
		candidates:    make([]Candidate, len(b.candidates), len(b.candidates)+2),
		cost:          b.cost,
		nextPoint:     b.nextPoint,
		matchedPoints: b.matchedPoints,
		unmatchedRun:  b.unmatchedRun,
		unmatched:     make([]int, len(b.unmatched)),
		state:         b.state,
	}
	for i := range b.candidates {
		child.candidates[i] = b.candidates[i].clone()
	}
	copy(child.unmatched, b.unmatched)
	return child
}

func (b *Branch[T]) GetCandidates() []Candidate {
	return b.candidates
}

func (b *Branch[T]) Last() *Candidate {
	return &b.candidates[len(b.candidates)-1]
}

func (b *Branch[T]) GetCost() T {
	return b.cost
}

func (b *Branch[T]) AddCost(c T) {
	b.cost += c
}

func (b *Branch[T]) GetNextPoint() int {
	return b.nextPoint
}

func (b *Branch[T]) GetMatchedPoints() int {
	return b.matchedPoints
}

func (b *Branch[T]) GetUnmatched() []int {
	return b.unmatched
}

func (b *Branch[T]) GetUnmatchedRun() int {
	return b.unmatchedRun
}

func (b *Branch[T]) GetState() BranchState {
	return b.state
}

func (b *Branch[T]) SetState(s BranchState) {
	b.state = s
}

// AppendCandidate. append c and account for every point it carries.
func (b *Branch[T]) AppendCandidate(c Candidate) {
	b.candidates = append(b.candidates, c)
	b.consume(len(c.points))
}

// ReplaceLast. swap the current candidate for c, which must extend it with more points.
func (b *Branch[T]) ReplaceLast(c Candidate) {
	added := len(c.points) - len(b.Last().points)
	b.candidates[len(b.candidates)-1] = c
	b.consume(added)
}

func (b *Branch[T]) consume(n int) {
	if n <= 0 {
		return
	}
	b.nextPoint += n
	b.matchedPoints += n
	b.unmatchedRun = 0
}

// SkipPoint. leave the next track point unmatched.
func (b *Branch[T]) SkipPoint() {
	b.unmatched = append(b.unmatched, b.nextPoint)
	b.nextPoint++
	b.unmatchedRun++
}

// SkipRemaining. mark every point from the next one up to trackLen-1 as unmatched, returns how many.
func (b *Branch[T]) SkipRemaining(trackLen int) int {
	n := 0
	for b.nextPoint < trackLen {
		b.unmatched = append(b.unmatched, b.nextPoint)
		b.nextPoint++
		n++
	}
	return n
}

// Key. (last segment, direction) the branch currently sits on.
func (b *Branch[T]) Key() BranchKey {
	last := b.Last()
	return BranchKey{Segment: last.segment.GetID(), Direction: last.direction}
}

type BranchKey struct {
	Segment   SegmentID
	Direction Direction
}

func (b *Branch[T]) SegmentIDs() []SegmentID {
	ids := make([]SegmentID, len(b.candidates))
	for i := range b.candidates {
		ids[i] = b.candidates[i].segment.GetID()
	}
	return ids
}

// OpenRun. the last candidate with matched points followed by the pass-through candidates after it.
// the whole candidate list if none has points.
func (b *Branch[T]) OpenRun() []Candidate {
	start := len(b.candidates) - len(b.TrailingEmpty()) - 1
	if start < 0 {
		start = 0
	}
	return b.candidates[start:]
}

// TrailingEmpty. pass-through candidates after the last candidate with matched points.
func (b *Branch[T]) TrailingEmpty() []Candidate {
	i := len(b.candidates)
	for i > 0 && !b.candidates[i-1].HasPoints() {
		i--
	}
	return b.candidates[i:]
}
