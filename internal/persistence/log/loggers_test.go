package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rgsim/internal/sim/action"
	"rgsim/internal/sim/board"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/sandbox"
)

func entry(turn int) match.TurnLogEntry {
	return match.TurnLogEntry{
		MatchID: "m1",
		Turn:    turn,
		Digest:  "abc",
		Decisions: []match.DecisionRecord{
			{RobotID: 0, Location: board.Loc{X: 1, Y: 1}, Action: action.Action{Kind: action.KindMove, Target: &board.Loc{X: 2, Y: 1}}},
			{RobotID: 3, Location: board.Loc{X: 4, Y: 4}, Action: action.Guard(), Failure: sandbox.FailurePanic, Error: "panic: boom"},
		},
	}
}

func TestTurnLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTurnLogger(dir)
	for turn := 1; turn <= 3; turn++ {
		if err := l.WriteTurn(entry(turn)); err != nil {
			t.Fatalf("WriteTurn: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListTurnFiles(TurnsDir(dir))
	if err != nil {
		t.Fatalf("ListTurnFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one file, got %v", files)
	}
	got, err := ReadTurns(files[0])
	if err != nil {
		t.Fatalf("ReadTurns: %v", err)
	}
	if len(got) != 3 || got[2].Turn != 3 {
		t.Fatalf("entries: %+v", got)
	}
	d := got[0].Decisions[0]
	if d.Action.Kind != action.KindMove || d.Action.Target == nil || *d.Action.Target != (board.Loc{X: 2, Y: 1}) {
		t.Fatalf("action lost in round trip: %+v", d)
	}
	if got[0].Decisions[1].Failure != sandbox.FailurePanic {
		t.Fatalf("failure lost: %+v", got[0].Decisions[1])
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, turnPrefix)
	now := time.Date(2026, 1, 2, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(entry(1)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(entry(2)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListTurnFiles(dir)
	if err != nil {
		t.Fatalf("ListTurnFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "turns-2026-01-02-10.jsonl.zst"),
		filepath.Join(dir, "turns-2026-01-02-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: %v", files)
	}
	second, err := ReadTurns(files[1])
	if err != nil || len(second) != 1 || second[0].Turn != 2 {
		t.Fatalf("second file: %+v %v", second, err)
	}
}

func TestJSONLZstdWriter_ReadableWhileOpen(t *testing.T) {
	dir := t.TempDir()
	l := NewTurnLogger(dir)
	defer l.Close()
	for turn := 1; turn <= 2; turn++ {
		if err := l.WriteTurn(entry(turn)); err != nil {
			t.Fatalf("WriteTurn: %v", err)
		}
	}
	files, err := ListTurnFiles(TurnsDir(dir))
	if err != nil || len(files) != 1 {
		t.Fatalf("files: %v %v", files, err)
	}
	got, err := ReadTurns(files[0])
	if err != nil {
		t.Fatalf("ReadTurns on open file: %v", err)
	}
	if len(got) != 2 || got[1].Turn != 2 {
		t.Fatalf("entries: %+v", got)
	}
}

func TestJSONLZstdWriter_AppendsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
	for turn := 1; turn <= 2; turn++ {
		w := NewJSONLZstdWriter(dir, turnPrefix)
		w.now = func() time.Time { return now }
		if err := w.Write(entry(turn)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	got, err := ReadTurns(filepath.Join(dir, "turns-2026-03-04-05.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadTurns: %v", err)
	}
	if len(got) != 2 || got[0].Turn != 1 || got[1].Turn != 2 {
		t.Fatalf("entries: %+v", got)
	}
}

func TestListTurnFiles_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"edits-2026-01-01-00.jsonl.zst", "turns.txt", "turns-2026-01-01-00.jsonl.zst"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := ListTurnFiles(dir)
	if err != nil {
		t.Fatalf("ListTurnFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
}

func TestEditLogger_StampsEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewEditLogger(dir)
	if err := l.WriteEdit(EditEntry{MatchID: "m1", Turn: 1, Op: "ADD", Args: json.RawMessage(`{"x":1}`)}); err != nil {
		t.Fatalf("WriteEdit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, editsDir))
	if err != nil || len(ents) != 1 {
		t.Fatalf("edits dir: %v %v", ents, err)
	}
}
