package transport

import "strings"

// Content mirrors the wire shapes a WhatsApp message body can take.
// Exactly the fields the bot reads are modeled; everything else is ignored
// by the JSON decoder.
type Content struct {
	Conversation string        `json:"conversation,omitempty"`
	ExtendedText *ExtendedText `json:"extendedTextMessage,omitempty"`
	Image        *MediaCaption `json:"imageMessage,omitempty"`
	Video        *MediaCaption `json:"videoMessage,omitempty"`
	ButtonsReply *ButtonsReply `json:"buttonsResponseMessage,omitempty"`
	ListReply    *ListReply    `json:"listResponseMessage,omitempty"`

	// Disappearing-message wrapper: the real content sits one level down.
	Ephemeral *EphemeralWrapper `json:"ephemeralMessage,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text,omitempty"`
}

type MediaCaption struct {
	Caption string `json:"caption,omitempty"`
}

type ButtonsReply struct {
	SelectedDisplayText string `json:"selectedDisplayText,omitempty"`
}

type ListReply struct {
	Title string `json:"title,omitempty"`
}

type EphemeralWrapper struct {
	Message *Content `json:"message,omitempty"`
}

// Text returns the first present text field, unwrapping one ephemeral level.
// Empty string means the message carries no usable text.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	if s := c.flatText(); s != "" {
		return s
	}
	if c.Ephemeral != nil && c.Ephemeral.Message != nil {
		// One level only: nested ephemeral wrappers are not unwrapped.
		return c.Ephemeral.Message.flatText()
	}
	return ""
}

func (c *Content) flatText() string {
	switch {
	case strings.TrimSpace(c.Conversation) != "":
		return c.Conversation
	case c.ExtendedText != nil && strings.TrimSpace(c.ExtendedText.Text) != "":
		return c.ExtendedText.Text
	case c.Image != nil && strings.TrimSpace(c.Image.Caption) != "":
		return c.Image.Caption
	case c.Video != nil && strings.TrimSpace(c.Video.Caption) != "":
		return c.Video.Caption
	case c.ButtonsReply != nil && strings.TrimSpace(c.ButtonsReply.SelectedDisplayText) != "":
		return c.ButtonsReply.SelectedDisplayText
	case c.ListReply != nil && strings.TrimSpace(c.ListReply.Title) != "":
		return c.ListReply.Title
	default:
		return ""
	}
}
