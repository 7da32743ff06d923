package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	persistlog "rgsim/internal/persistence/log"
	"rgsim/internal/protocol"
	"rgsim/internal/sim/maps"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/tuning"
	"rgsim/internal/transport/ws"
)

func main() {
	var (
		settingsPath = flag.String("settings", "./configs/settings.yaml", "path to settings.yaml")
		mapPath      = flag.String("map", "", "map file (default: round arena of board_size)")
		botPath      = flag.String("bot", "./configs/bots/chaser.js", "robot controller script (.js or .lua)")
		addr         = flag.String("addr", "", "serve the board editor on this address (empty: run headless)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite turn index")
		place        = flag.String("place", "", `robots to place before resolving, e.g. "f@0,0 e@4,4/20"`)
		turns        = flag.Int("turns", 1, "headless: number of turns to resolve")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[rgsim] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*settingsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load settings: %v", err)
		}
		logger.Printf("settings not found (%s); using defaults", *settingsPath)
		tune = tuning.Defaults()
	}
	arena, err := maps.Load(*mapPath, tune.BoardSize)
	if err != nil {
		logger.Fatalf("load map: %v", err)
	}
	bot, err := loadBot(*botPath, tune, logger)
	if err != nil {
		logger.Fatalf("load bot: %v", err)
	}

	cfg, err := match.ConfigFromTuning(tune)
	if err != nil {
		logger.Fatalf("settings: %v", err)
	}
	m, err := match.New(cfg, arena, bot, logger)
	if err != nil {
		logger.Fatalf("new match: %v", err)
	}

	turnLog := persistlog.NewTurnLogger(*dataDir)
	defer turnLog.Close()

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	loggers := match.TurnLoggers{turnLog}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertSettings(tune); err != nil {
			logger.Printf("index backend: upsert settings: %v", err)
		}
		loggers = append(loggers, idx)
	}
	m.SetTurnLogger(loggers)

	ps, err := parsePlacements(*place)
	if err != nil {
		logger.Fatalf("-place: %v", err)
	}
	for _, p := range ps {
		v, err := m.AddEntity(p.Loc, p.Owner)
		if err != nil {
			logger.Fatalf("place %s robot at %s: %v", p.Owner, p.Loc, err)
		}
		if p.HP > 0 {
			if err := m.SetHP(v.ID, p.HP); err != nil {
				logger.Fatalf("place %s robot at %s: %v", p.Owner, p.Loc, err)
			}
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Printf("match %s: board %dx%d, %d obstacles, bot %s", m.ID(), m.Size(), m.Size(), len(m.Obstacles()), *botPath)

	if strings.TrimSpace(*addr) == "" {
		if err := runHeadless(ctx, m, *turns); err != nil {
			logger.Fatalf("%v", err)
		}
		return
	}

	editLog := persistlog.NewEditLogger(*dataDir)
	defer editLog.Close()

	v, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("protocol schema: %v", err)
	}
	editor := ws.NewServer(m, v, logger)
	recorders := ws.EditRecorders{editLog}
	if idx != nil {
		recorders = append(recorders, idx)
	}
	editor.SetEditRecorder(recorders)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP rgsim_turn Current turn counter.\n")
		fmt.Fprintf(rw, "# TYPE rgsim_turn gauge\n")
		fmt.Fprintf(rw, "rgsim_turn{match=%q} %d\n", m.ID(), m.Turn())
		fmt.Fprintf(rw, "# HELP rgsim_robots Robots on the board.\n")
		fmt.Fprintf(rw, "# TYPE rgsim_robots gauge\n")
		fmt.Fprintf(rw, "rgsim_robots{match=%q} %d\n", m.ID(), len(m.Entities()))
		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP rgsim_index_queue_depth Pending sqlite index writes.\n")
			fmt.Fprintf(rw, "# TYPE rgsim_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "rgsim_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP rgsim_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE rgsim_index_dropped_total counter\n")
			fmt.Fprintf(rw, "rgsim_index_dropped_total{kind=\"turn\"} %d\n", st.DropTurnTotal)
			fmt.Fprintf(rw, "rgsim_index_dropped_total{kind=\"edit\"} %d\n", st.DropEditTotal)
		}
	})
	mux.HandleFunc("/v1/editor", editor.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("editor listening on %s/v1/editor", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// runHeadless resolves n turns and prints each action map.
func runHeadless(ctx context.Context, m *match.Match, n int) error {
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := m.ResolveTurn(ctx)
		if err != nil {
			return err
		}
		b, err := json.Marshal(res.Actions())
		if err != nil {
			return err
		}
		fmt.Printf("turn %d: %s\n", res.Turn, b)
		if i < n-1 {
			if _, err := m.AdvanceTurn(); err != nil {
				return err
			}
		}
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
