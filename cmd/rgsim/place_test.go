package main

import (
	"testing"

	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
)

func TestParsePlacements(t *testing.T) {
	got, err := parsePlacements(" f@0,0  enemy@4,4/20 ")
	if err != nil {
		t.Fatalf("parsePlacements: %v", err)
	}
	want := []placement{
		{Owner: roster.Friendly, Loc: board.Loc{X: 0, Y: 0}},
		{Owner: roster.Hostile, Loc: board.Loc{X: 4, Y: 4}, HP: 20},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("placement %d: got %+v want %+v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"f0,0", "x@1,1", "f@1", "f@a,1", "f@1,1/0", "f@1,1/x"} {
		if _, err := parsePlacements(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if got, err := parsePlacements(""); err != nil || len(got) != 0 {
		t.Fatalf("empty: %v %v", got, err)
	}
}
