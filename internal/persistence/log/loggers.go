package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"rgsim/internal/sim/match"
)

const (
	turnsDir   = "turns"
	turnPrefix = "turns"
	editsDir   = "edits"
	editPrefix = "edits"
)

// JSONLZstdWriter appends JSON lines to hourly files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst. Every record is written as its own zstd
// frame, so a file is always a valid stream and can be replayed while it is
// still being written.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu    sync.Mutex
	enc   *zstd.Encoder
	hour  string
	f     *os.File
	frame []byte
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
		w.enc = enc
	}
	if err := w.openLocked(w.now().UTC().Format("2006-01-02-15")); err != nil {
		return err
	}
	w.frame = w.enc.EncodeAll(line, w.frame[:0])
	_, err = w.f.Write(w.frame)
	return err
}

// openLocked makes f the file for hour, closing the previous one.
func (w *JSONLZstdWriter) openLocked(hour string) error {
	if w.f != nil && w.hour == hour {
		return nil
	}
	if err := w.closeFileLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f, w.hour = f, hour
	return nil
}

func (w *JSONLZstdWriter) closeFileLocked() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f, w.hour = nil, ""
	return err
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.closeFileLocked()
	if w.enc != nil {
		_ = w.enc.Close()
		w.enc = nil
	}
	return err
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TurnLogger writes one JSONL entry per resolved turn (compressed).
type TurnLogger struct{ w *JSONLZstdWriter }

func NewTurnLogger(dataDir string) *TurnLogger {
	return &TurnLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, turnsDir), turnPrefix)}
}

func (l *TurnLogger) WriteTurn(v match.TurnLogEntry) error { return l.w.Write(v) }
func (l *TurnLogger) Close() error                         { return l.w.Close() }

// EditEntry records one editor request applied (or refused) by a match.
type EditEntry struct {
	MatchID string          `json:"match_id"`
	Turn    int             `json:"turn"`
	Op      string          `json:"op"`
	Args    json.RawMessage `json:"args,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	At      string          `json:"at"`
}

// EditLogger writes editor audit entries (compressed).
type EditLogger struct{ w *JSONLZstdWriter }

func NewEditLogger(dataDir string) *EditLogger {
	return &EditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, editsDir), editPrefix)}
}

func (l *EditLogger) WriteEdit(v EditEntry) error {
	if v.At == "" {
		v.At = l.w.now().UTC().Format(time.RFC3339Nano)
	}
	return l.w.Write(v)
}
func (l *EditLogger) Close() error { return l.w.Close() }
