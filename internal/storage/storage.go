package storage

import "time"

// Entry is one logged visitor query. It is appended once and never rewritten.
// SessionKey is derived by the caller; this package never generates it.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	SessionID  string    `json:"sessionId,omitempty"`
	SessionKey string    `json:"sessionKey"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Referer    string    `json:"referer,omitempty"`
}

// State is the persisted digest watermark.
// LastEmailedByte is the log offset up to which content has already been sent.
// LastDailySentYmd is the local calendar date (YYYY-MM-DD) of the last daily digest.
type State struct {
	LastEmailedByte  *int64 `json:"lastEmailedByte,omitempty"`
	LastDailySentYmd string `json:"lastDailySentYmd,omitempty"`
}
