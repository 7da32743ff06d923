package main

import (
	"bytes"
	"strings"
	"testing"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/sandbox"
)

func entry(id string, turn int, failures ...sandbox.Failure) match.TurnLogEntry {
	e := match.TurnLogEntry{MatchID: id, Turn: turn, Digest: "0123456789abcdef"}
	for i, f := range failures {
		e.Decisions = append(e.Decisions, match.DecisionRecord{
			RobotID:  i,
			Location: board.Loc{X: i, Y: 1},
			Action:   action.Guard(),
			Failure:  f,
		})
	}
	return e
}

func TestReplayer_Summary(t *testing.T) {
	var buf bytes.Buffer
	r := newReplayer("", true, &buf)
	for _, e := range []match.TurnLogEntry{
		entry("m1", 1, sandbox.FailureNone, sandbox.FailurePanic),
		entry("m1", 1, sandbox.FailureBudget),
		entry("m2", 3),
		entry("m1", 2, sandbox.FailurePanic),
	} {
		if err := r.add(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	r.summary()
	out := buf.String()
	for _, want := range []string{
		"replay ok: match=m1 passes=3 last_turn=2 decisions=4 budget=1 panic=2",
		"replay ok: match=m2 passes=1 last_turn=3 decisions=0",
		"robot 1 at (1,1): [guard] (panic)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReplayer_RejectsBackwardsTurn(t *testing.T) {
	r := newReplayer("", false, &bytes.Buffer{})
	if err := r.add(entry("m1", 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.add(entry("m2", 1)); err != nil {
		t.Fatalf("other match must not interfere: %v", err)
	}
	if err := r.add(entry("m1", 4)); err == nil {
		t.Fatalf("expected error for turn going backwards")
	}
}

func TestReplayer_FiltersMatch(t *testing.T) {
	var buf bytes.Buffer
	r := newReplayer("m2", false, &buf)
	_ = r.add(entry("m1", 1))
	_ = r.add(entry("m2", 1))
	r.summary()
	if strings.Contains(buf.String(), "m1") {
		t.Fatalf("m1 should be filtered out:\n%s", buf.String())
	}
}
