package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rgsim/internal/persistence/indexdb"
	persistlog "rgsim/internal/persistence/log"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/tuning"
)

type runtimeIndex interface {
	match.TurnLogger
	WriteEdit(entry persistlog.EditEntry) error
	UpsertSettings(tune tuning.Tuning) error
	Stats() indexdb.Stats
	Close() error
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RGSIM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "rgsim.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported RGSIM_INDEX_BACKEND: %s", backend)
	}
}
