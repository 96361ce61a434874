package analytics

import (
	"strings"
	"testing"
)

func TestAnalyzeWindow(t *testing.T) {
	window := []byte(`ionKey":"s_cut"}
{"timestamp":"2024-01-15T10:00:00Z","message":"hi","sessionKey":"s_1"}

{"timestamp":"2024-01-15T09:00:00Z","message":"projects?","sessionKey":"s_2"}
{"timestamp":"2024-01-15T11:30:00Z","message":"contact","sessionKey":"s_1"}
`)
	stats := AnalyzeWindow(window)

	if stats.Lines != 4 {
		t.Errorf("Expected 4 lines, got %d", stats.Lines)
	}
	if stats.Parsed != 3 {
		t.Errorf("Expected 3 parsed entries, got %d", stats.Parsed)
	}
	if stats.UniqueSessions != 2 {
		t.Errorf("Expected 2 unique sessions, got %d", stats.UniqueSessions)
	}
	if stats.First.Hour() != 9 || stats.Last.Hour() != 11 {
		t.Errorf("Unexpected range %v..%v", stats.First, stats.Last)
	}

	summary := stats.Summary()
	for _, want := range []string{"Unique sessions: 2", "Unparseable lines: 1", "2024-01-15T09:00:00Z"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}
}

func TestAnalyzeWindow_Empty(t *testing.T) {
	stats := AnalyzeWindow(nil)
	if stats.Lines != 0 || stats.UniqueSessions != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if strings.Contains(stats.Summary(), "Earliest") {
		t.Fatalf("empty window should not report a range")
	}
}
