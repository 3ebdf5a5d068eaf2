package condition

import (
	"testing"

	"github.com/zxnext/dzrp-mediator/internal/breakpoint"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

func TestDecideUnconditionalHitPauses(t *testing.T) {
	env := envWith(protocol.RegisterSnapshot{}, nil)
	bp := breakpoint.Breakpoint{ID: 1, Address: 0x8000, Kind: breakpoint.KindUser}

	ev := NewEvaluator(nil)
	outcome, reason, err := ev.Decide(bp, env)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomePause {
		t.Fatalf("outcome = %v, want OutcomePause", outcome)
	}
	if reason != "Breakpoint hit @8000h." {
		t.Fatalf("reason = %q, want %q", reason, "Breakpoint hit @8000h.")
	}
}

func TestDecideFalseConditionSuppresses(t *testing.T) {
	var snap protocol.RegisterSnapshot
	snap[protocol.RegHL] = 1
	env := envWith(snap, nil)
	bp := breakpoint.Breakpoint{ID: 2, Address: 0x8000, Condition: "HL==0", Kind: breakpoint.KindUser}

	ev := NewEvaluator(nil)
	outcome, _, err := ev.Decide(bp, env)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeSuppress {
		t.Fatalf("outcome = %v, want OutcomeSuppress", outcome)
	}
}

func TestDecideTrueConditionNoLogPausesWithExpr(t *testing.T) {
	var snap protocol.RegisterSnapshot
	snap[protocol.RegHL] = 0
	env := envWith(snap, nil)
	bp := breakpoint.Breakpoint{ID: 3, Address: 0x9000, Condition: "HL==0", Kind: breakpoint.KindUser}

	ev := NewEvaluator(nil)
	outcome, reason, err := ev.Decide(bp, env)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomePause {
		t.Fatalf("outcome = %v, want OutcomePause", outcome)
	}
	if reason != "Breakpoint hit @9000h. Condition: HL==0" {
		t.Fatalf("reason = %q", reason)
	}
}

func TestDecideTrueConditionWithLogNeverPauses(t *testing.T) {
	var snap protocol.RegisterSnapshot
	snap[protocol.RegAF] = 0x4200
	env := envWith(snap, nil)
	bp := breakpoint.Breakpoint{ID: 4, Address: 0x9000, Log: "A={A}", Kind: breakpoint.KindLog}

	ev := NewEvaluator(nil)
	outcome, line, err := ev.Decide(bp, env)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeLogAndContinue {
		t.Fatalf("outcome = %v, want OutcomeLogAndContinue", outcome)
	}
	if line != "A=66" {
		t.Fatalf("line = %q, want A=66", line)
	}
}

func TestDecideUnsetConditionWithLogBehavesAsTruePlusLog(t *testing.T) {
	var snap protocol.RegisterSnapshot
	env := envWith(snap, nil)
	bp := breakpoint.Breakpoint{ID: 5, Address: 0x9000, Log: "hit"}

	ev := NewEvaluator(nil)
	outcome, line, err := ev.Decide(bp, env)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeLogAndContinue {
		t.Fatalf("outcome = %v, want OutcomeLogAndContinue", outcome)
	}
	if line != "hit" {
		t.Fatalf("line = %q, want hit", line)
	}
}

func TestDecideBrokenExpressionSuppressesAndWarnsOnce(t *testing.T) {
	env := envWith(protocol.RegisterSnapshot{}, nil)
	bp := breakpoint.Breakpoint{ID: 6, Address: 0x9000, Condition: "ZZ==0"}

	ev := NewEvaluator(nil)
	outcome, _, err := ev.Decide(bp, env)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeSuppress {
		t.Fatalf("outcome = %v, want OutcomeSuppress for broken expression", outcome)
	}
	if !ev.warned[6] {
		t.Fatal("expected warned flag set after first failure")
	}
}
