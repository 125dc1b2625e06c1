// Package chat models WhatsApp chat identifiers (JIDs).
//
// A JID's kind is encoded in its suffix:
//
//	group:            ...@g.us
//	direct user:      ...@s.whatsapp.net
//	broadcast list:   ...@broadcast
//	status updates:   status@broadcast
package chat

import "strings"

// JID is an opaque chat identifier. Immutable once observed.
type JID string

// Kind is a coarse classification of a JID.
type Kind int

const (
	KindUnknown Kind = iota
	KindGroup
	KindUser
	KindBroadcast
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindUser:
		return "user"
	case KindBroadcast:
		return "broadcast"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

const statusJID = "status@broadcast"

func (j JID) Kind() Kind {
	s := string(j)
	switch {
	case s == statusJID:
		return KindStatus
	case strings.HasSuffix(s, "@g.us"):
		return KindGroup
	case strings.HasSuffix(s, "@s.whatsapp.net"):
		return KindUser
	case strings.HasSuffix(s, "@broadcast"):
		return KindBroadcast
	default:
		return KindUnknown
	}
}

func (j JID) IsGroup() bool { return j.Kind() == KindGroup }
func (j JID) IsUser() bool  { return j.Kind() == KindUser }

func (j JID) String() string { return string(j) }
