package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"portfolio-chatter/internal/storage"
)

// WindowStats summarises a byte window of the query log.
type WindowStats struct {
	Lines          int       `json:"lines"`
	Parsed         int       `json:"parsed"`
	UniqueSessions int       `json:"unique_sessions"`
	First          time.Time `json:"first,omitempty"`
	Last           time.Time `json:"last,omitempty"`
}

// AnalyzeWindow counts non-empty lines and, best effort, the entries behind them.
// A truncated window may start mid-line; such fragments count as lines but not as parsed entries.
func AnalyzeWindow(window []byte) WindowStats {
	var stats WindowStats
	sessions := make(map[string]struct{})
	for _, line := range bytes.Split(window, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		stats.Lines++
		var e storage.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		stats.Parsed++
		if e.SessionKey != "" {
			sessions[e.SessionKey] = struct{}{}
		}
		if e.Timestamp.IsZero() {
			continue
		}
		if stats.First.IsZero() || e.Timestamp.Before(stats.First) {
			stats.First = e.Timestamp
		}
		if e.Timestamp.After(stats.Last) {
			stats.Last = e.Timestamp
		}
	}
	stats.UniqueSessions = len(sessions)
	return stats
}

// Summary renders the stats as extra lines for a digest body.
func (s WindowStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unique sessions: %d\n", s.UniqueSessions)
	if !s.First.IsZero() {
		fmt.Fprintf(&b, "Earliest entry: %s\n", s.First.Format(time.RFC3339))
		fmt.Fprintf(&b, "Latest entry: %s\n", s.Last.Format(time.RFC3339))
	}
	if skipped := s.Lines - s.Parsed; skipped > 0 {
		fmt.Fprintf(&b, "Unparseable lines: %d\n", skipped)
	}
	return strings.TrimRight(b.String(), "\n")
}
