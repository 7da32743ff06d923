package main

import (
	"fmt"
	"strconv"
	"strings"

	"rgsim/internal/sim/board"
	"rgsim/internal/sim/roster"
)

type placement struct {
	Owner roster.Owner
	Loc   board.Loc
	HP    int // 0 keeps robot_hp
}

// parsePlacements reads "f@0,0 e@4,4/20": owner@x,y with an optional /hp.
func parsePlacements(s string) ([]placement, error) {
	var out []placement
	for _, tok := range strings.Fields(s) {
		ownerStr, rest, ok := strings.Cut(tok, "@")
		if !ok {
			return nil, fmt.Errorf("placement %q: want owner@x,y", tok)
		}
		owner, err := roster.ParseOwner(ownerStr)
		if err != nil {
			return nil, fmt.Errorf("placement %q: %w", tok, err)
		}
		p := placement{Owner: owner}
		locStr, hpStr, hasHP := strings.Cut(rest, "/")
		xs, ys, ok := strings.Cut(locStr, ",")
		if !ok {
			return nil, fmt.Errorf("placement %q: want owner@x,y", tok)
		}
		if p.Loc.X, err = strconv.Atoi(strings.TrimSpace(xs)); err != nil {
			return nil, fmt.Errorf("placement %q: %w", tok, err)
		}
		if p.Loc.Y, err = strconv.Atoi(strings.TrimSpace(ys)); err != nil {
			return nil, fmt.Errorf("placement %q: %w", tok, err)
		}
		if hasHP {
			if p.HP, err = strconv.Atoi(hpStr); err != nil || p.HP < 1 {
				return nil, fmt.Errorf("placement %q: bad hp %q", tok, hpStr)
			}
		}
		out = append(out, p)
	}
	return out, nil
}
