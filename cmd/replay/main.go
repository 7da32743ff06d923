package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	persistlog "rgsim/internal/persistence/log"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/sandbox"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		turnDir = flag.String("turns", "", "turn log dir containing turns-*.jsonl.zst (default: <data>/turns)")
		matchID = flag.String("match", "", "only this match id (optional)")
		verbose = flag.Bool("v", false, "print every decision")
	)
	flag.Parse()

	dir := *turnDir
	if dir == "" {
		dir = persistlog.TurnsDir(*dataDir)
	}
	files, err := persistlog.ListTurnFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list turns:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no turn files found in", dir)
		os.Exit(1)
	}

	r := newReplayer(*matchID, *verbose, os.Stdout)
	for _, path := range files {
		if err := persistlog.ScanTurns(path, r.add); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	r.summary()
}

type matchStats struct {
	passes   int
	lastTurn int
	robots   int
	failures map[sandbox.Failure]int
}

type replayer struct {
	only    string
	verbose bool
	out     io.Writer

	matches map[string]*matchStats
}

func newReplayer(only string, verbose bool, out io.Writer) *replayer {
	return &replayer{only: only, verbose: verbose, out: out, matches: map[string]*matchStats{}}
}

// add checks one entry and folds it into the per-match totals. Turn numbers
// never go backwards within a match.
func (r *replayer) add(e match.TurnLogEntry) error {
	if r.only != "" && e.MatchID != r.only {
		return nil
	}
	st := r.matches[e.MatchID]
	if st == nil {
		st = &matchStats{failures: map[sandbox.Failure]int{}}
		r.matches[e.MatchID] = st
	}
	if st.passes > 0 && e.Turn < st.lastTurn {
		return fmt.Errorf("match %s: turn went backwards: %d after %d", e.MatchID, e.Turn, st.lastTurn)
	}
	st.passes++
	st.lastTurn = e.Turn
	st.robots += len(e.Decisions)

	fmt.Fprintf(r.out, "match=%s turn=%d digest=%.12s robots=%d\n", e.MatchID, e.Turn, e.Digest, len(e.Decisions))
	for _, d := range e.Decisions {
		if d.Failure != sandbox.FailureNone {
			st.failures[d.Failure]++
		}
		if !r.verbose {
			continue
		}
		line := fmt.Sprintf("  robot %d at %s: %s", d.RobotID, d.Location, d.Action)
		if d.Failure != sandbox.FailureNone {
			line += fmt.Sprintf(" (%s", d.Failure)
			if d.Proposed != nil {
				line += fmt.Sprintf(", proposed %s", *d.Proposed)
			}
			if d.Error != "" {
				line += ": " + d.Error
			}
			line += ")"
		}
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func (r *replayer) summary() {
	ids := make([]string, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := r.matches[id]
		kinds := make([]string, 0, len(st.failures))
		for k := range st.failures {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		fmt.Fprintf(r.out, "replay ok: match=%s passes=%d last_turn=%d decisions=%d", id, st.passes, st.lastTurn, st.robots)
		for _, k := range kinds {
			fmt.Fprintf(r.out, " %s=%d", k, st.failures[sandbox.Failure(k)])
		}
		fmt.Fprintln(r.out)
	}
}
