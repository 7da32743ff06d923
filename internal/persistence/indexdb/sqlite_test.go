package indexdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	persistlog "rgsim/internal/persistence/log"
	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/sandbox"
	"rgsim/internal/sim/tuning"
)

func turnEntry(matchID string, turn int, failures ...sandbox.Failure) match.TurnLogEntry {
	e := match.TurnLogEntry{MatchID: matchID, Turn: turn, Digest: "d"}
	for i, f := range failures {
		e.Decisions = append(e.Decisions, match.DecisionRecord{
			RobotID:  i,
			Location: board.Loc{X: i, Y: 0},
			Action:   action.Guard(),
			Failure:  f,
		})
	}
	return e
}

func TestSQLiteIndex_FailureCounts(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()

	_ = s.WriteTurn(turnEntry("m1", 1, sandbox.FailureNone, sandbox.FailurePanic, sandbox.FailureBudget))
	_ = s.WriteTurn(turnEntry("m1", 1, sandbox.FailurePanic))
	_ = s.WriteTurn(turnEntry("m2", 1, sandbox.FailureInvalid))
	_ = s.WriteEdit(persistlog.EditEntry{MatchID: "m1", Turn: 1, Op: "ADD"})

	ctx := context.Background()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := s.FailureCounts(ctx, "m1")
	if err != nil {
		t.Fatalf("FailureCounts: %v", err)
	}
	if got[sandbox.FailurePanic] != 2 || got[sandbox.FailureBudget] != 1 || len(got) != 2 {
		t.Fatalf("counts: %v", got)
	}
	n, err := s.TurnCount(ctx, "m1")
	if err != nil || n != 2 {
		t.Fatalf("TurnCount=%d err=%v", n, err)
	}
}

func TestSQLiteIndex_UpsertSettings(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()

	tu := tuning.Defaults()
	if err := s.UpsertSettings(tu); err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	tu.Workers = 4
	if err := s.UpsertSettings(tu); err != nil {
		t.Fatalf("UpsertSettings again: %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("settings rows=%d err=%v", n, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTurn}

	_ = s.WriteTurn(turnEntry("m1", 2))
	_ = s.WriteEdit(persistlog.EditEntry{MatchID: "m1"})

	st := s.Stats()
	if st.DropTurnTotal != 1 || st.DropEditTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.WriteTurn(turnEntry("m1", 1)); err != nil {
		t.Fatalf("WriteTurn after close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	var nilIndex *SQLiteIndex
	if err := nilIndex.WriteTurn(turnEntry("m1", 1)); err != nil {
		t.Fatalf("nil WriteTurn: %v", err)
	}
}

func TestSQLiteIndex_WritesRacingClose(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				_ = s.WriteTurn(turnEntry("m1", j))
				_ = s.WriteEdit(persistlog.EditEntry{MatchID: "m1", Turn: j, Op: "ADD"})
				if j%50 == 0 {
					_ = s.Flush(ctx)
				}
			}
		}()
	}
	close(start)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush after close: %v", err)
	}
}
