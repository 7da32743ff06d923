package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	persistlog "rgsim/internal/persistence/log"
	"rgsim/internal/sim/match"
	"rgsim/internal/sim/sandbox"
	"rgsim/internal/sim/tuning"
)

const queueSize = 65536

// SQLiteIndex is a queryable secondary index of the turn and edit logs.
// Writes are queued to a single writer goroutine and dropped when the queue
// is full; the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// sendMu keeps Close from closing ch while a send is in flight.
	sendMu sync.RWMutex
	closed atomic.Bool

	dropTurn atomic.Uint64
	dropEdit atomic.Uint64
}

type reqKind int

const (
	reqTurn reqKind = iota + 1
	reqEdit
	reqFlush
)

type req struct {
	kind reqKind

	turn match.TurnLogEntry
	edit persistlog.EditEntry
	done chan struct{}
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTurnTotal uint64
	DropEditTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			digest TEXT NOT NULL,
			robots INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_match_turn ON turns(match_id, turn);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			turn_id INTEGER NOT NULL REFERENCES turns(id),
			robot_id INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			action_json TEXT NOT NULL,
			failure TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (turn_id, robot_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_failure ON decisions(failure);`,
		`CREATE TABLE IF NOT EXISTS edits (
			match_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			op TEXT NOT NULL,
			code TEXT,
			error TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTurnTotal: s.dropTurn.Load(),
		DropEditTotal: s.dropEdit.Load(),
	}
}

// WriteTurn implements match.TurnLogger. It never blocks.
func (s *SQLiteIndex) WriteTurn(entry match.TurnLogEntry) error {
	if s == nil {
		return nil
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTurn, turn: entry}:
	default:
		s.dropTurn.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteEdit(entry persistlog.EditEntry) error {
	if s == nil {
		return nil
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEdit, edit: entry}:
	default:
		s.dropEdit.Add(1)
	}
	return nil
}

// Flush waits until everything queued so far is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	if err := s.enqueueFlush(ctx, done); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) enqueueFlush(ctx context.Context, done chan struct{}) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		close(done)
		return nil
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertSettings stores the settings actually applied (canonical JSON).
func (s *SQLiteIndex) UpsertSettings(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO settings(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// FailureCounts returns contained controller failures of one match by kind.
func (s *SQLiteIndex) FailureCounts(ctx context.Context, matchID string) (map[sandbox.Failure]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.failure, COUNT(*)
		FROM decisions d JOIN turns t ON d.turn_id = t.id
		WHERE t.match_id = ? AND d.failure != ''
		GROUP BY d.failure`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[sandbox.Failure]int{}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[sandbox.Failure(kind)] = n
	}
	return out, rows.Err()
}

// TurnCount is the number of indexed resolution passes for a match.
func (s *SQLiteIndex) TurnCount(ctx context.Context, matchID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE match_id = ?`, matchID).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTurn, _ := s.db.Prepare(`INSERT INTO turns(match_id,turn,digest,robots,failures,raw_json) VALUES(?,?,?,?,?,?)`)
	insertDecision, _ := s.db.Prepare(`INSERT OR REPLACE INTO decisions(turn_id,robot_id,x,y,action_json,failure,error) VALUES(?,?,?,?,?,?,?)`)
	insertEdit, _ := s.db.Prepare(`INSERT OR REPLACE INTO edits(match_id,seq,turn,op,code,error,raw_json) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTurn, insertDecision, insertEdit} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		editSeq = map[string]int{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTurn:
			if insertTurn == nil || insertDecision == nil {
				continue
			}
			e := r.turn
			failures := 0
			for _, d := range e.Decisions {
				if d.Failure != sandbox.FailureNone {
					failures++
				}
			}
			raw, _ := json.Marshal(e)
			res, err := tx.Stmt(insertTurn).Exec(e.MatchID, e.Turn, e.Digest, len(e.Decisions), failures, string(raw))
			if err != nil {
				rollback()
				continue
			}
			turnID, err := res.LastInsertId()
			if err != nil {
				rollback()
				continue
			}
			opCount++
			for _, d := range e.Decisions {
				actJSON, _ := json.Marshal(d.Action)
				if _, err := tx.Stmt(insertDecision).Exec(turnID, d.RobotID, d.Location.X, d.Location.Y, string(actJSON), string(d.Failure), d.Error); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqEdit:
			if insertEdit == nil {
				continue
			}
			e := r.edit
			seq := editSeq[e.MatchID]
			editSeq[e.MatchID] = seq + 1
			raw, _ := json.Marshal(e)
			if _, err := tx.Stmt(insertEdit).Exec(e.MatchID, seq, e.Turn, e.Op, e.Code, e.Error, string(raw)); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
