package restriction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lintang-b-s/waymatcher/pkg/datastructure"
)

var (
	ErrRestrictionUnavailable = errors.New("restriction service unavailable")
	ErrInvalidRule            = errors.New("invalid restriction rule")
)

// Service. answers whether traversing a segment in one direction is forbidden at a given time.
type Service interface {
	IsRestricted(ctx context.Context, graphName string, segmentID datastructure.SegmentID, forward bool,
		at time.Time) (bool, error)
}

type Scope uint8

const (
	SCOPE_BOTH Scope = iota
	SCOPE_FORWARD
	SCOPE_BACKWARD
)

func (s Scope) String() string {
	switch s {
	case SCOPE_FORWARD:
		return "forward"
	case SCOPE_BACKWARD:
		return "backward"
	default:
		return "both"
	}
}

func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return SCOPE_BOTH, nil
	case "forward":
		return SCOPE_FORWARD, nil
	case "backward":
		return SCOPE_BACKWARD, nil
	default:
		return 0, fmt.Errorf("%w: unknown scope %q", ErrInvalidRule, s)
	}
}

// Rule. closure of a segment in scope. From/Until bound a half-open window [From, Until),
// a zero bound is open. a rule with both bounds zero is permanent.
type Rule struct {
	ID        int64
	GraphName string
	SegmentID datastructure.SegmentID
	Scope     Scope
	From      time.Time
	Until     time.Time
	Note      string
}

func (r Rule) Validate() error {
	if r.GraphName == "" {
		return fmt.Errorf("%w: empty graph name", ErrInvalidRule)
	}
	if r.Scope > SCOPE_BACKWARD {
		return fmt.Errorf("%w: unknown scope %d", ErrInvalidRule, r.Scope)
	}
	if !r.From.IsZero() && !r.Until.IsZero() && !r.Until.After(r.From) {
		return fmt.Errorf("%w: until %s is not after from %s", ErrInvalidRule, r.Until, r.From)
	}
	return nil
}

func (r Rule) Permanent() bool {
	return r.From.IsZero() && r.Until.IsZero()
}

func (r Rule) appliesTo(forward bool) bool {
	switch r.Scope {
	case SCOPE_FORWARD:
		return forward
	case SCOPE_BACKWARD:
		return !forward
	default:
		return true
	}
}

// Active. true if the rule forbids the traversal at. a zero at only matches permanent rules.
func (r Rule) Active(forward bool, at time.Time) bool {
	if !r.appliesTo(forward) {
		return false
	}
	if r.Permanent() {
		return true
	}
	if at.IsZero() {
		return false
	}
	if !r.From.IsZero() && at.Before(r.From) {
		return false
	}
	if !r.Until.IsZero() && !at.Before(r.Until) {
		return false
	}
	return true
}

// Unrestricted. service without any rule.
type Unrestricted struct{}

func (Unrestricted) IsRestricted(ctx context.Context, graphName string, segmentID datastructure.SegmentID,
	forward bool, at time.Time) (bool, error) {
	return false, nil
}
