package storage

import (
	"bufio"
	"encoding/json"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestQueryLog_AppendWritesOneLinePerEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "query-logs")
	q := NewQueryLog(dir, true)

	e1 := Entry{Timestamp: time.Unix(1, 0).UTC(), Message: "hi", SessionKey: "s_1"}
	e2 := Entry{Timestamp: time.Unix(2, 0).UTC(), Message: "what did you build?", SessionKey: "s_2", SessionID: "abc"}
	q.Append(e1)
	q.Append(e2)

	f, err := os.Open(q.LogPath())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var got []Entry
	s := bufio.NewScanner(f)
	for s.Scan() {
		var e Entry
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %q", s.Text())
		}
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 lines, got %d", len(got))
	}
	if got[0].Message != "hi" || got[1].SessionID != "abc" {
		t.Fatalf("order or content mismatch: %+v", got)
	}

	exists, size, err := q.Stat()
	if err != nil || !exists || size == 0 {
		t.Fatalf("stat: exists=%v size=%d err=%v", exists, size, err)
	}
}

func TestQueryLog_EntryOmitsEmptyOptionalFields(t *testing.T) {
	b, err := json.Marshal(Entry{Timestamp: time.Unix(0, 0).UTC(), Message: "m", SessionKey: "k"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	_ = json.Unmarshal(b, &fields)
	for _, k := range []string{"sessionId", "ip", "userAgent", "referer"} {
		if _, ok := fields[k]; ok {
			t.Fatalf("%s should be omitted: %s", k, b)
		}
	}
	if fields["sessionKey"] != "k" {
		t.Fatalf("sessionKey missing: %s", b)
	}
}

func TestQueryLog_DisabledDoesNotWrite(t *testing.T) {
	q := NewQueryLog(t.TempDir(), false)
	q.Append(Entry{Message: "x", SessionKey: "k"})
	if exists, _, err := q.Stat(); exists || err != nil {
		t.Fatalf("disabled log must not create file")
	}
}

func TestQueryLog_AppendFailureIsSwallowed(t *testing.T) {
	base := t.TempDir()
	// a regular file where the directory should be makes MkdirAll fail
	blocker := filepath.Join(base, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	q := NewQueryLog(filepath.Join(blocker, "logs"), true)
	q.Append(Entry{Message: "lost", SessionKey: "k"})
	exists, _, err := q.Stat()
	if exists {
		t.Fatalf("unexpected log file")
	}
	// the path runs through a regular file, which is an I/O failure and not "absent"
	if err == nil {
		t.Fatalf("stat through a file should report an error")
	}
}

func TestQueryLog_ReadRange(t *testing.T) {
	q := NewQueryLog(t.TempDir(), true)
	if err := os.WriteFile(q.LogPath(), []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	b, err := q.ReadRange(3, 7)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "3456" {
		t.Fatalf("got %q", b)
	}
	b, err = q.ReadRange(5, 5)
	if err != nil || len(b) != 0 {
		t.Fatalf("empty range: %q %v", b, err)
	}
}

func TestQueryLog_ReadStateMissingOrMalformed(t *testing.T) {
	q := NewQueryLog(t.TempDir(), true)
	if st := q.ReadState(); st.LastEmailedByte != nil || st.LastDailySentYmd != "" {
		t.Fatalf("missing file: %+v", st)
	}
	for _, body := range []string{`{"lastEmailedByte":`, `[]`, `42`, `null`, `"x"`} {
		if err := os.WriteFile(q.StatePath(), []byte(body), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if st := q.ReadState(); st.LastEmailedByte != nil || st.LastDailySentYmd != "" {
			t.Fatalf("%s: want empty state, got %+v", body, st)
		}
	}
}

func TestQueryLog_ReadStateDropsWrongTypedFields(t *testing.T) {
	q := NewQueryLog(t.TempDir(), true)
	body := `{"lastEmailedByte":"12","lastDailySentYmd":"2024-05-01"}`
	if err := os.WriteFile(q.StatePath(), []byte(body), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	st := q.ReadState()
	if st.LastEmailedByte != nil {
		t.Fatalf("string offset must be dropped: %v", *st.LastEmailedByte)
	}
	if st.LastDailySentYmd != "2024-05-01" {
		t.Fatalf("valid date lost: %+v", st)
	}
}

func TestDecodeState_WatermarkNumbers(t *testing.T) {
	cases := []struct {
		body string
		want *int64
	}{
		{`{"lastEmailedByte":12}`, ptr(12)},
		{`{"lastEmailedByte":1.2e3}`, ptr(1200)},
		{`{"lastEmailedByte":1e20}`, ptr(math.MaxInt64)},
		{`{"lastEmailedByte":99999999999999999999}`, ptr(math.MaxInt64)},
		{`{"lastEmailedByte":-3}`, ptr(0)},
		{`{"lastEmailedByte":-1e30}`, ptr(0)},
		{`{"lastEmailedByte":12.5}`, nil},
		{`{"lastEmailedByte":null}`, nil},
		{`{"lastEmailedByte":true}`, nil},
	}
	for _, c := range cases {
		st := decodeState([]byte(c.body))
		switch {
		case c.want == nil && st.LastEmailedByte != nil:
			t.Errorf("%s: want no watermark, got %d", c.body, *st.LastEmailedByte)
		case c.want != nil && st.LastEmailedByte == nil:
			t.Errorf("%s: want %d, got none", c.body, *c.want)
		case c.want != nil && *st.LastEmailedByte != *c.want:
			t.Errorf("%s: want %d, got %d", c.body, *c.want, *st.LastEmailedByte)
		}
	}
}

func ptr(n int64) *int64 { return &n }

func TestQueryLog_WriteStateRoundTripAndStrayTemp(t *testing.T) {
	q := NewQueryLog(t.TempDir(), true)
	off := int64(128)
	q.WriteState(State{LastEmailedByte: &off, LastDailySentYmd: "2024-05-01"})

	raw, err := os.ReadFile(q.StatePath())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if raw[0] != '{' || raw[1] != '\n' {
		t.Fatalf("state should be pretty printed: %q", raw)
	}

	// interrupted write: temp file left behind with garbage
	if err := os.WriteFile(q.StatePath()+".tmp", []byte(`{"lastEmai`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	st := q.ReadState()
	if st.LastEmailedByte == nil || *st.LastEmailedByte != 128 || st.LastDailySentYmd != "2024-05-01" {
		t.Fatalf("last good state lost: %+v", st)
	}

	next := int64(256)
	q.WriteState(State{LastEmailedByte: &next})
	if st := q.ReadState(); st.LastEmailedByte == nil || *st.LastEmailedByte != 256 {
		t.Fatalf("overwrite failed: %+v", st)
	}
	if _, err := os.Stat(q.StatePath() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be renamed away, err=%v", err)
	}
}

func TestQueryLog_WriteStateFailureCleansTemp(t *testing.T) {
	q := NewQueryLog(t.TempDir(), true)
	// a directory at the target path makes rename fail
	if err := os.Mkdir(q.StatePath(), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(q.StatePath(), "child"), []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	off := int64(1)
	q.WriteState(State{LastEmailedByte: &off})
	if _, err := os.Stat(q.StatePath() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be removed after failure, err=%v", err)
	}
}

func TestEntryFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/ask", nil)
	r.RemoteAddr = "10.0.0.5:5555"
	r.Header.Set("User-Agent", "curl/8")
	r.Header.Set("Referer", "https://portfolio.example/")
	e := EntryFromRequest(r, "hello", "s_abc", "  sid  ")
	if e.IP != "10.0.0.5" || e.UserAgent != "curl/8" || e.Referer != "https://portfolio.example/" {
		t.Fatalf("metadata: %+v", e)
	}
	if e.SessionID != "sid" || e.SessionKey != "s_abc" || e.Timestamp.IsZero() {
		t.Fatalf("fields: %+v", e)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(r); ip != "203.0.113.9" {
		t.Fatalf("forwarded ip: %s", ip)
	}
}
