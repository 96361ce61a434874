package delivery

import (
	"context"
	"errors"
)

// Attachment is a single file carried by a digest message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a transport-neutral digest.
type Message struct {
	From        string
	To          string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Transport delivers a digest. Implementations must honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// AddressedTransport is implemented by transports that need From/To mail addresses.
type AddressedTransport interface {
	Transport
	NeedsAddresses() bool
}

// ErrNotConfigured is returned by New when required transport settings are missing.
var ErrNotConfigured = errors.New("transport is not configured")
