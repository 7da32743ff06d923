package maps

import (
	"os"
	"path/filepath"
	"testing"

	"rgsim/internal/sim/board"
)

func TestParse_YAMLAndJSON(t *testing.T) {
	for name, raw := range map[string]string{
		"yaml": "size: 5\nobstacle:\n  - [2, 2]\n  - [0, 4]\n  - [2, 2]\n",
		"json": `{"size": 5, "obstacle": [[0, 4], [2, 2]]}`,
	} {
		m, err := Parse([]byte(raw), 19)
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		if m.Size != 5 || len(m.Obstacles) != 2 {
			t.Fatalf("%s: map = %+v", name, m)
		}
		if m.Obstacles[0] != (board.Loc{X: 2, Y: 2}) {
			t.Fatalf("%s: obstacles not sorted: %v", name, m.Obstacles)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("size: 3\nobstacle: [[3, 0]]\n"), 19); err == nil {
		t.Fatalf("expected out-of-bounds obstacle error")
	}
	if _, err := Parse([]byte("size: -1\n"), 19); err == nil {
		t.Fatalf("expected bad size error")
	}
	m, err := Parse([]byte("obstacle: []\n"), 7)
	if err != nil || m.Size != 7 {
		t.Fatalf("default size not applied: %+v %v", m, err)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	want := Default(9)
	raw, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path, 19)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Size != want.Size || len(got.Obstacles) != len(want.Obstacles) {
		t.Fatalf("loaded %d/%d obstacles, want %d/%d", got.Size, len(got.Obstacles), want.Size, len(want.Obstacles))
	}
}

func TestDefault_Arena(t *testing.T) {
	m := Default(19)
	b, err := m.Board()
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	for _, tc := range []struct {
		loc      board.Loc
		obstacle bool
	}{
		{board.Loc{X: 0, Y: 0}, true},
		{board.Loc{X: 18, Y: 18}, true},
		{board.Loc{X: 9, Y: 9}, false},
		{board.Loc{X: 0, Y: 9}, false},
	} {
		got, _ := b.IsObstacle(tc.loc)
		if got != tc.obstacle {
			t.Fatalf("IsObstacle(%s) = %v, want %v", tc.loc, got, tc.obstacle)
		}
	}
	if m2, _ := Load("", 19); len(m2.Obstacles) != len(m.Obstacles) {
		t.Fatalf("Load(\"\") should return the default arena")
	}
}
