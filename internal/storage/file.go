package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	LogFileName   = "queries.ndjson"
	StateFileName = "state.json"
)

// QueryLog is the append-only NDJSON query log plus its watermark state file.
// Both files live in one directory owned by a single process.
type QueryLog struct {
	dir     string
	enabled bool
	mu      sync.Mutex
}

func NewQueryLog(dir string, enabled bool) *QueryLog {
	return &QueryLog{dir: dir, enabled: enabled}
}

func (q *QueryLog) Enabled() bool     { return q.enabled }
func (q *QueryLog) Dir() string       { return q.dir }
func (q *QueryLog) LogPath() string   { return filepath.Join(q.dir, LogFileName) }
func (q *QueryLog) StatePath() string { return filepath.Join(q.dir, StateFileName) }

// Append writes entry as one JSON line. It is a no-op when logging is disabled
// and swallows I/O errors so the caller's request never fails because of logging.
func (q *QueryLog) Append(entry Entry) {
	if !q.enabled {
		return
	}
	if err := q.append(entry); err != nil {
		log.Printf("⚠️ Failed appending query log: %v", err)
	}
}

func (q *QueryLog) append(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	line = append(line, '\n')

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return fmt.Errorf("ensure log dir: %w", err)
	}
	f, err := os.OpenFile(q.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer f.Close()
	// one write per line keeps each entry intact under O_APPEND
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write append: %w", err)
	}
	return nil
}

// Stat reports whether the log file exists and its current size.
// A missing file is not an error; any other stat failure is returned.
func (q *QueryLog) Stat() (exists bool, size int64, err error) {
	st, err := os.Stat(q.LogPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("stat query log: %w", err)
	}
	return true, st.Size(), nil
}

// ReadRange returns exactly the bytes [start, end) of the log file.
func (q *QueryLog) ReadRange(start, end int64) ([]byte, error) {
	if end <= start {
		return []byte{}, nil
	}
	f, err := os.Open(q.LogPath())
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer f.Close()
	buf := make([]byte, end-start)
	n, err := f.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read range: %w", err)
	}
	return buf[:n], nil
}

// Open returns the raw log file for streaming. The error wraps fs.ErrNotExist when absent.
func (q *QueryLog) Open() (*os.File, error) {
	return os.Open(q.LogPath())
}

// ReadState decodes the watermark state. A missing, unreadable or malformed file
// yields an empty State; fields of the wrong type are dropped individually.
func (q *QueryLog) ReadState() State {
	data, err := os.ReadFile(q.StatePath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("⚠️ Failed reading query log state: %v", err)
		}
		return State{}
	}
	return decodeState(data)
}

func decodeState(data []byte) State {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return State{}
	}
	var st State
	if raw, ok := fields["lastEmailedByte"]; ok {
		if off, ok := decodeOffset(raw); ok {
			st.LastEmailedByte = &off
		}
	}
	if raw, ok := fields["lastDailySentYmd"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			st.LastDailySentYmd = s
		}
	}
	return st
}

// decodeOffset accepts only integral JSON numbers. Negative values become 0 and
// values beyond int64 saturate at math.MaxInt64, so an out-of-range watermark
// still clamps to the file size instead of wrapping around.
func decodeOffset(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if n, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		return max(n, 0), true
	}
	f, _, err := big.ParseFloat(num.String(), 10, 256, big.ToZero)
	if err != nil {
		return 0, false
	}
	switch {
	case f.IsInf():
		if f.Sign() > 0 {
			return math.MaxInt64, true
		}
		return 0, true
	case !f.IsInt():
		return 0, false
	case f.Sign() < 0:
		return 0, true
	}
	n, _ := f.Int64()
	return n, true
}

// WriteState replaces state.json through a temp file and rename so a crash
// leaves the previous state intact. Errors are logged, never returned.
func (q *QueryLog) WriteState(state State) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tmp := q.StatePath() + ".tmp"
	if err := q.writeState(tmp, state); err != nil {
		log.Printf("⚠️ Failed writing query log state: %v", err)
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Printf("⚠️ Failed removing stale state temp file: %v", rmErr)
		}
	}
}

func (q *QueryLog) writeState(tmp string, state State) error {
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return fmt.Errorf("ensure log dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmp, q.StatePath()); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// EntryFromRequest builds an entry stamped with the current time and best-effort request metadata.
func EntryFromRequest(r *http.Request, message, sessionKey, sessionID string) Entry {
	return Entry{
		Timestamp:  time.Now().UTC(),
		Message:    message,
		SessionID:  strings.TrimSpace(sessionID),
		SessionKey: sessionKey,
		IP:         ClientIP(r),
		UserAgent:  r.UserAgent(),
		Referer:    r.Referer(),
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then the connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
