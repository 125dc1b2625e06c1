package transport

import (
	"context"
	"time"

	"offhoursbot/internal/chat"
)

type EventKind string

const (
	EventMessages   EventKind = "messages"
	EventConnection EventKind = "connection"
)

// Event is one inbound notification from the chat network.
type Event struct {
	Kind EventKind

	// Messages carries an upsert batch. The network may deliver several
	// records at once; consumers act on the first one only.
	Messages []Message

	Connection *ConnectionUpdate
}

// Message is one inbound chat message envelope.
type Message struct {
	ID        string
	Chat      chat.JID
	FromMe    bool
	PushName  string
	Timestamp time.Time
	Content   *Content
}

// Text extracts the message's plain text, if any.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.Text()
}

// ConnectionUpdate reports session lifecycle changes.
type ConnectionUpdate struct {
	Open bool

	// LoggedOut is set on close when the session was permanently
	// de-authenticated. No reconnect should be attempted.
	LoggedOut bool
}

// GroupInfo is the display metadata of a participating group.
type GroupInfo struct {
	Name string `json:"name"`
}

// PairingStatus describes the session's pairing state for the admin surface.
type PairingStatus struct {
	Paired bool `json:"paired"`

	// QRDataURL is a data: URL of the current pairing QR code, empty when
	// the session is already paired or no code has been issued yet.
	QRDataURL string `json:"qr_data_url,omitempty"`
}

// Adapter is the chat-network transport consumed by the core.
//
// SendText is a single best-effort attempt; retries are the caller's call.
type Adapter interface {
	Start(ctx context.Context, out chan<- Event) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to chat.JID, text string) error
	ListGroups(ctx context.Context) (map[chat.JID]GroupInfo, error)
	PairingStatus(ctx context.Context) (PairingStatus, error)

	// Reconnect asks the transport to re-establish the session after a
	// non-permanent connection loss.
	Reconnect(ctx context.Context) error
}

// Sender is the outbound-only slice of Adapter used by the responder and
// the daily broadcaster.
type Sender interface {
	SendText(ctx context.Context, to chat.JID, text string) error
}
