package condition

import (
	"fmt"
	"sync"

	"github.com/zxnext/dzrp-mediator/internal/breakpoint"
	"github.com/zxnext/dzrp-mediator/internal/session"
)

// Outcome is what a single breakpoint hit resolves to (spec §4.7 table).
type Outcome int

const (
	// OutcomeSuppress means the condition evaluated false: the hit is
	// invisible, execution should continue.
	OutcomeSuppress Outcome = iota
	// OutcomePause means the hit is user-visible and execution stops.
	OutcomePause
	// OutcomeLogAndContinue means a logpoint fired: emit the formatted
	// line and keep running. A satisfied logpoint never pauses (spec §4.7).
	OutcomeLogAndContinue
)

// Evaluator decides, for one breakpoint hit, whether to pause, continue,
// or log-and-continue, per the condition/log truth table in spec §4.7.
// It tracks which breakpoints have already had an expression-evaluation
// warning emitted, so a broken condition warns at most once per
// breakpoint per session (spec §7).
type Evaluator struct {
	mu     sync.Mutex
	warned map[uint16]bool
	logger *session.Logger
}

// NewEvaluator creates an Evaluator that logs expression warnings via logger.
func NewEvaluator(logger *session.Logger) *Evaluator {
	return &Evaluator{warned: make(map[uint16]bool), logger: logger}
}

// Decide evaluates bp's condition and log format against env and returns
// the outcome plus, for OutcomePause, a human break-reason suffix and for
// OutcomeLogAndContinue, the formatted log line.
func (e *Evaluator) Decide(bp breakpoint.Breakpoint, env *Environment) (Outcome, string, error) {
	conditionTrue := true
	if bp.Condition != "" {
		v, err := Evaluate(bp.Condition, env)
		if err != nil {
			e.warnOnce(bp.ID, err)
			// Expression errors are treated as false: suppress the hit
			// (spec §7 "Expression" error policy).
			return OutcomeSuppress, "", nil
		}
		conditionTrue = v
	}

	if !conditionTrue {
		return OutcomeSuppress, "", nil
	}

	if bp.Log != "" {
		line, err := FormatLog(bp.Log, env)
		if err != nil {
			e.warnOnce(bp.ID, err)
			return OutcomeSuppress, "", nil
		}
		return OutcomeLogAndContinue, line, nil
	}

	reason := fmt.Sprintf("Breakpoint hit @%04Xh.", bp.Address)
	if bp.Condition != "" {
		reason += fmt.Sprintf(" Condition: %s", bp.Condition)
	}
	return OutcomePause, reason, nil
}

func (e *Evaluator) warnOnce(id uint16, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.warned[id] {
		return
	}
	e.warned[id] = true
	if e.logger != nil {
		e.logger.Warn("breakpoint %d: %v", id, err)
	}
}

// AssertionReason builds the "Assertion failed: <expr>" message for an
// assert breakpoint hit (spec §4.5, §4.7).
func AssertionReason(expr string) string {
	return fmt.Sprintf("Assertion failed: %s", expr)
}
