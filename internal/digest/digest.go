// Package digest batches the query log into e-mail digests and tracks the
// byte watermark of what has already been delivered.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"portfolio-chatter/internal/analytics"
	"portfolio-chatter/internal/config"
	"portfolio-chatter/internal/delivery"
	"portfolio-chatter/internal/storage"
)

type Reason string

const (
	ReasonImmediate Reason = "immediate"
	ReasonDaily     Reason = "daily"
	ReasonManual    Reason = "manual"
)

const attachmentContentType = "application/x-ndjson"

var (
	ErrTransportNotConfigured = delivery.ErrNotConfigured
	ErrRecipientMissing       = errors.New("QUERY_LOG_EMAIL_TO (or CONTACT_EMAIL fallback) is missing")
	ErrSenderMissing          = errors.New("QUERY_LOG_EMAIL_FROM (or SMTP_FROM/SMTP_USER) is missing")
	ErrUnknownReason          = errors.New("unknown digest reason")
)

// Result describes one send attempt. Sent is false when there was nothing to send.
type Result struct {
	Sent      bool `json:"sent"`
	Bytes     int  `json:"bytes"`
	Truncated bool `json:"truncated"`
}

// Log is the part of the query log store the sender reads and advances.
type Log interface {
	Stat() (exists bool, size int64, err error)
	ReadRange(start, end int64) ([]byte, error)
	ReadState() storage.State
	WriteState(state storage.State)
}

// TransportFunc resolves the delivery transport at send time.
type TransportFunc func(ctx context.Context) (delivery.Transport, error)

type Options struct {
	Enabled       bool
	Mode          config.EmailMode
	MaxBytes      int64
	Subject       string
	Recipient     string
	Sender        string
	FireAndForget bool
	// Timeout bounds a single transport call; zero means no bound.
	Timeout time.Duration
	Now     func() time.Time
}

// OptionsFromConfig maps the environment settings onto sender options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Enabled:       cfg.Enabled(),
		Mode:          cfg.EmailMode(),
		MaxBytes:      cfg.MaxBytes(),
		Subject:       cfg.Subject(),
		Recipient:     cfg.Recipient(),
		Sender:        cfg.Sender(),
		FireAndForget: cfg.FireAndForget(),
		Timeout:       cfg.SendTimeout(),
	}
}

type Sender struct {
	log       Log
	transport TransportFunc
	opts      Options

	mu sync.Mutex // serialises sends so watermark updates never interleave
	wg sync.WaitGroup
}

func New(l Log, transport TransportFunc, opts Options) *Sender {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = config.DefaultMaxBytes
	}
	if strings.TrimSpace(opts.Subject) == "" {
		opts.Subject = config.DefaultSubject
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sender{log: l, transport: transport, opts: opts}
}

func (s *Sender) Options() Options { return s.opts }

// LocalYmd formats t as a calendar date in the server's local zone.
func LocalYmd(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// SendManual is the admin-triggered send; errors are returned to the caller.
func (s *Sender) SendManual(ctx context.Context) (Result, error) {
	return s.Send(ctx, ReasonManual, "")
}

// NotifyImmediate delivers the most recent window after a new entry was logged.
// It does nothing unless logging is enabled in immediate mode. Failures are logged.
// With FireAndForget the send runs in the background and the call returns at once.
func (s *Sender) NotifyImmediate(ctx context.Context, sessionKeyHint string) {
	if !s.opts.Enabled || s.opts.Mode != config.EmailModeImmediate {
		return
	}
	if s.opts.FireAndForget {
		bg := context.WithoutCancel(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sendLogged(bg, ReasonImmediate, sessionKeyHint)
		}()
		return
	}
	s.sendLogged(ctx, ReasonImmediate, sessionKeyHint)
}

// Wait blocks until background sends started by NotifyImmediate have finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) sendLogged(ctx context.Context, reason Reason, hint string) {
	if _, err := s.Send(ctx, reason, hint); err != nil {
		log.Printf("⚠️ Failed emailing query log (%s): %v", reason, err)
	}
}

// Send selects a window of the log, delivers it and advances the watermark.
func (s *Sender) Send(ctx context.Context, reason Reason, sessionKeyHint string) (Result, error) {
	switch reason {
	case ReasonImmediate, ReasonDaily, ReasonManual:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownReason, reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	transport, err := s.transport(ctx)
	if err != nil {
		return Result{}, err
	}
	if transport == nil {
		return Result{}, ErrTransportNotConfigured
	}
	from, to := s.opts.Sender, s.opts.Recipient
	if needsAddresses(transport) {
		if to == "" {
			return Result{}, ErrRecipientMissing
		}
		if from == "" {
			return Result{}, ErrSenderMissing
		}
	}

	exists, size, err := s.log.Stat()
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{}, nil
	}

	state := s.log.ReadState()
	start, end, truncated := window(reason, state, size, s.opts.MaxBytes)

	data, err := s.log.ReadRange(start, end)
	if err != nil {
		return Result{}, fmt.Errorf("read query log: %w", err)
	}
	if len(data) == 0 {
		return Result{}, nil
	}

	now := s.opts.Now()
	today := LocalYmd(now)
	msg := delivery.Message{
		From:    from,
		To:      to,
		Subject: s.subject(today, reason, sessionKeyHint),
		Text:    s.body(today, reason, data, truncated),
		Attachments: []delivery.Attachment{{
			Filename:    fmt.Sprintf("queries-%s.ndjson", today),
			ContentType: attachmentContentType,
			Data:        data,
		}},
	}

	sendCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	if err := transport.Send(sendCtx, msg); err != nil {
		return Result{}, fmt.Errorf("send digest: %w", err)
	}

	next := state
	next.LastEmailedByte = &end
	if reason == ReasonDaily {
		next.LastDailySentYmd = today
	}
	s.log.WriteState(next)
	log.Printf("📬 Query log digest sent (%s): %d bytes, truncated=%v", reason, len(data), truncated)

	return Result{Sent: true, Bytes: len(data), Truncated: truncated}, nil
}

// window picks [start, end) for a send. Immediate sends ignore the watermark and take
// the most recent maxBytes; daily and manual sends resume from the watermark.
// A window larger than maxBytes keeps its tail.
func window(reason Reason, state storage.State, size, maxBytes int64) (start, end int64, truncated bool) {
	end = size
	switch {
	case reason == ReasonImmediate:
		start = max(0, size-maxBytes)
	case state.LastEmailedByte != nil:
		start = min(max(0, *state.LastEmailedByte), size)
	}
	if end-start > maxBytes {
		start = end - maxBytes
		truncated = true
	}
	return start, end, truncated
}

func (s *Sender) subject(today string, reason Reason, hint string) string {
	subject := fmt.Sprintf("%s — %s [%s]", s.opts.Subject, today, reason)
	if hint != "" {
		subject += fmt.Sprintf(" (%s)", hint)
	}
	return subject
}

func (s *Sender) body(today string, reason Reason, data []byte, truncated bool) string {
	stats := analytics.AnalyzeWindow(data)
	lines := []string{
		fmt.Sprintf("Reason: %s", reason),
		fmt.Sprintf("Date: %s", today),
		fmt.Sprintf("Entries in attachment (approx): %d", stats.Lines),
		fmt.Sprintf("Bytes attached: %d", len(data)),
		stats.Summary(),
	}
	if truncated {
		lines = append(lines, "", fmt.Sprintf("NOTE: Attachment was truncated to last %d bytes.", s.opts.MaxBytes))
	}
	return strings.Join(lines, "\n")
}

func needsAddresses(t delivery.Transport) bool {
	if at, ok := t.(delivery.AddressedTransport); ok {
		return at.NeedsAddresses()
	}
	return true
}
