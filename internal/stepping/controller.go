// Package stepping implements the stepping controller (component C6):
// synthesizing step-into, step-over, and step-out on top of a remote
// that only exposes CONTINUE(bp1?, bp2?).
package stepping

import (
	"fmt"
	"sync"
	"time"

	"github.com/zxnext/dzrp-mediator/internal/breakpoint"
	"github.com/zxnext/dzrp-mediator/internal/condition"
	"github.com/zxnext/dzrp-mediator/internal/dispatcher"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/registers"
	"github.com/zxnext/dzrp-mediator/internal/session"
)

// State is the active step's position in the Idle/Running/Classifying
// machine described in spec §4.6. It exists for observability; the
// control flow itself lives in the blocking step/StepOut loops below.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateClassifying
)

// Controller owns one in-flight step at a time, synthesizing ephemeral
// breakpoints from the decoded instruction stream and classifying every
// pause notification against the persistent breakpoint table.
type Controller struct {
	disp   *dispatcher.Dispatcher
	regs   *registers.Cache
	mem    memoryReader
	bps    *breakpoint.Table
	cond   *condition.Evaluator
	logger *session.Logger

	// stepOutWatchdog bounds how long StepOut waits for each resume's
	// pause notification; <=0 falls back to the dispatcher's general
	// response timeout (spec §6 "step-out watchdog").
	stepOutWatchdog time.Duration

	mu             sync.Mutex
	state          State
	pauseRequested bool
}

// New creates a Controller wired to the dispatcher, register cache,
// breakpoint table, and condition evaluator of one mediator session.
// stepOutWatchdog governs only StepOut's resume wait; Continue/StepInto/
// StepOver always use the dispatcher's default response timeout.
func New(disp *dispatcher.Dispatcher, regs *registers.Cache, mem memoryReader, bps *breakpoint.Table, cond *condition.Evaluator, logger *session.Logger, stepOutWatchdog time.Duration) *Controller {
	return &Controller{disp: disp, regs: regs, mem: mem, bps: bps, cond: cond, logger: logger, stepOutWatchdog: stepOutWatchdog}
}

// State reports the controller's current position in the step state machine.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Pause requests a manual break. It is sticky: the next classification,
// wherever the step currently is, reports MANUAL_BREAK (spec §4.6).
func (c *Controller) Pause() error {
	c.mu.Lock()
	c.pauseRequested = true
	c.mu.Unlock()
	return c.disp.Pause()
}

func (c *Controller) consumePauseRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.pauseRequested
	c.pauseRequested = false
	return v
}

// Continue resumes execution with no ephemeral step breakpoints,
// stopping only at a persistent breakpoint, watchpoint, or manual pause.
func (c *Controller) Continue() (string, error) {
	return c.step(nil, nil, false)
}

// StepInto executes exactly one source-level step, descending into any
// call the current instruction makes.
func (c *Controller) StepInto() (string, error) {
	pc, err := c.regs.PC()
	if err != nil {
		return "", err
	}
	dec, err := decodeAt(c.mem, pc)
	if err != nil {
		return "", err
	}
	bp1 := pc + uint16(dec.length)
	return c.step(&bp1, dec.branchTarget, false)
}

// StepOver executes exactly one source-level step, running any call or
// block-repeat instruction to completion without stopping inside it.
func (c *Controller) StepOver() (string, error) {
	pc, err := c.regs.PC()
	if err != nil {
		return "", err
	}
	dec, err := decodeAt(c.mem, pc)
	if err != nil {
		return "", err
	}
	bp1 := pc + uint16(dec.length)
	skip := dec.callFamily || dec.blockRepeat
	return c.step(&bp1, dec.branchTarget, skip)
}

// step drives one ephemeral-breakpoint resume loop. bp2, when skipSecond
// is set, marks an address that is "inside" the stepped-over instruction:
// landing there is not completion, just another lap of the same resume.
func (c *Controller) step(bp1, bp2 *uint16, skipSecond bool) (string, error) {
	for {
		c.setState(StateRunning)
		ntf, err := c.resume(bp1, bp2, 0)
		if err != nil {
			c.setState(StateIdle)
			return "", err
		}
		c.setState(StateClassifying)

		if c.consumePauseRequested() {
			c.setState(StateIdle)
			return "Manual break.", nil
		}
		switch ntf.BreakNumber {
		case protocol.ManualBreak:
			c.setState(StateIdle)
			return "Manual break.", nil
		case protocol.WatchpointRead, protocol.WatchpointWrite:
			pause, msg, err := c.decideWatch(ntf)
			if err != nil {
				c.setState(StateIdle)
				return "", err
			}
			if !pause {
				continue
			}
			c.setState(StateIdle)
			return msg, nil
		}

		if matches := c.bps.At(ntf.BreakAddress); len(matches) > 0 {
			outcome, msg, err := c.decideAny(matches, ntf)
			if err != nil {
				c.setState(StateIdle)
				return "", err
			}
			if outcome == condition.OutcomePause {
				c.setState(StateIdle)
				return msg, nil
			}
			continue
		}

		if skipSecond && bp2 != nil && ntf.BreakAddress == *bp2 {
			continue
		}
		c.setState(StateIdle)
		return "", nil
	}
}

// StepOut runs until control returns to the caller of the current
// function, per the SP/RET-classification algorithm in spec §4.6.
func (c *Controller) StepOut() (string, error) {
	startSp, err := c.regs.SP()
	if err != nil {
		return "", err
	}
	prevSp := startSp

	for {
		instrPC, err := c.regs.PC()
		if err != nil {
			return "", err
		}
		dec, err := decodeAt(c.mem, instrPC)
		if err != nil {
			return "", err
		}
		bp1 := instrPC + uint16(dec.length)

		c.setState(StateRunning)
		ntf, err := c.resume(&bp1, dec.branchTarget, c.stepOutWatchdog)
		if err != nil {
			c.setState(StateIdle)
			return "", err
		}
		c.setState(StateClassifying)

		if c.consumePauseRequested() {
			c.setState(StateIdle)
			return "Manual break.", nil
		}
		switch ntf.BreakNumber {
		case protocol.ManualBreak:
			c.setState(StateIdle)
			return "Manual break.", nil
		case protocol.WatchpointRead, protocol.WatchpointWrite:
			pause, msg, err := c.decideWatch(ntf)
			if err != nil {
				c.setState(StateIdle)
				return "", err
			}
			if !pause {
				continue
			}
			c.setState(StateIdle)
			return msg, nil
		}

		// A suppressed or logged match at the landing address must not
		// short-circuit the SP/RET check below: the genuine return could
		// coincide with it, and skipping the check would miss the return
		// entirely.
		if matches := c.bps.At(ntf.BreakAddress); len(matches) > 0 {
			outcome, msg, err := c.decideAny(matches, ntf)
			if err != nil {
				c.setState(StateIdle)
				return "", err
			}
			if outcome == condition.OutcomePause {
				c.setState(StateIdle)
				return msg, nil
			}
		}

		op0, err := c.mem.ReadByte(instrPC)
		if err != nil {
			return "", err
		}
		op1, err := c.mem.ReadByte(instrPC + 1)
		if err != nil {
			return "", err
		}
		sp, err := c.regs.SP()
		if err != nil {
			return "", err
		}
		if sp > startSp && sp > prevSp && isRet(op0, op1) {
			c.setState(StateIdle)
			return "", nil
		}
		prevSp = sp
	}
}

// resume rebuilds the breakpoint index and invalidates the register
// cache before every CONTINUE, per the C4/C5 resume-entry contracts.
// timeout bounds the wait for the pause notification; <=0 defers to the
// dispatcher's default response timeout.
func (c *Controller) resume(bp1, bp2 *uint16, timeout time.Duration) (protocol.PauseNotification, error) {
	c.bps.RebuildIndex()
	c.regs.Invalidate()
	ch, err := c.disp.Continue(bp1, bp2)
	if err != nil {
		return protocol.PauseNotification{}, err
	}
	return c.disp.AwaitPause(ch, timeout)
}

// decideAny evaluates every breakpoint registered at the pause address
// and returns the first one that resolves to a pause, logging any
// logpoints it passes over along the way. An assert-kind match is
// reconfirmed against the live index via MatchAssert before being
// reported, so a hit that was evaluated against a since-disabled or
// since-removed assertion does not surface as a stale pause.
func (c *Controller) decideAny(matches []breakpoint.Breakpoint, ntf protocol.PauseNotification) (condition.Outcome, string, error) {
	env := &condition.Environment{Registers: c.regs, Memory: c.mem}
	for _, bp := range matches {
		outcome, msg, err := c.cond.Decide(bp, env)
		if err != nil {
			return condition.OutcomeSuppress, "", err
		}
		switch outcome {
		case condition.OutcomePause:
			if bp.Kind == breakpoint.KindAssert {
				confirmed, ok := c.bps.MatchAssert(ntf.BreakAddress, bp.Condition)
				if !ok {
					continue
				}
				return condition.OutcomePause, condition.AssertionReason(confirmed.Condition), nil
			}
			return condition.OutcomePause, msg, nil
		case condition.OutcomeLogAndContinue:
			if c.logger != nil {
				c.logger.Info("%s", msg)
			}
		}
	}
	return condition.OutcomeSuppress, "", nil
}

// decideWatch evaluates every locally-tracked watchpoint covering the
// notified address. A watchpoint with no stored condition always pauses;
// one with a condition suppresses the hit until the expression evaluates
// true. An unmatched notification (no watchpoint covers the address, e.g.
// a race with a concurrent removal) pauses rather than silently dropping
// the hit.
func (c *Controller) decideWatch(ntf protocol.PauseNotification) (bool, string, error) {
	matches := c.bps.WatchpointsAt(ntf.BreakAddress)
	if len(matches) == 0 {
		return true, formatWatch(ntf), nil
	}
	env := &condition.Environment{Registers: c.regs, Memory: c.mem}
	for _, wp := range matches {
		if wp.Condition == "" {
			return true, formatWatch(ntf), nil
		}
		hit, err := condition.Evaluate(wp.Condition, env)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("watchpoint condition %q failed to evaluate: %v", wp.Condition, err)
			}
			continue
		}
		if hit {
			return true, formatWatch(ntf), nil
		}
	}
	return false, "", nil
}

// formatWatch renders a watchpoint pause per spec §4.7. Symbol labels
// are resolved by an external collaborator and are not available here.
func formatWatch(ntf protocol.PauseNotification) string {
	kind := "read"
	if ntf.BreakNumber == protocol.WatchpointWrite {
		kind = "write"
	}
	msg := fmt.Sprintf("Watchpoint %s access at address 0x%04X (%d).", kind, ntf.BreakAddress, ntf.BreakAddress)
	if ntf.Reason != "" {
		msg += " " + ntf.Reason
	}
	return msg
}
