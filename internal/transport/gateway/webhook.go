package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"offhoursbot/internal/chat"
	"offhoursbot/internal/transport"
	logx "offhoursbot/pkg/logx"
)

// webhookPayload is the gateway's push format. One request carries either a
// message upsert batch or a connection update.
type webhookPayload struct {
	Event    string           `json:"event"`
	Messages []webhookMessage `json:"messages,omitempty"`

	Connection string `json:"connection,omitempty"` // "open" | "close"
	LoggedOut  bool   `json:"loggedOut,omitempty"`
}

type webhookMessage struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	PushName         string             `json:"pushName,omitempty"`
	MessageTimestamp int64              `json:"messageTimestamp,omitempty"`
	Message          *transport.Content `json:"message,omitempty"`
}

// WebhookHandler returns the HTTP handler the gateway pushes events to.
// Mount it on the admin server.
func (a *Adapter) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if a.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+a.cfg.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var p webhookPayload
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&p); err != nil {
			a.log.Warn("webhook decode failed", logx.Err(err))
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		ev, ok := p.toEvent()
		if !ok {
			// Unknown event kinds are acknowledged and ignored so the
			// gateway doesn't retry them forever.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		a.deliver(ev)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (p webhookPayload) toEvent() (transport.Event, bool) {
	switch p.Event {
	case "messages.upsert":
		msgs := make([]transport.Message, 0, len(p.Messages))
		for _, wm := range p.Messages {
			m := transport.Message{
				ID:       wm.Key.ID,
				Chat:     chat.JID(wm.Key.RemoteJID),
				FromMe:   wm.Key.FromMe,
				PushName: wm.PushName,
				Content:  wm.Message,
			}
			if wm.MessageTimestamp > 0 {
				m.Timestamp = time.Unix(wm.MessageTimestamp, 0)
			}
			msgs = append(msgs, m)
		}
		return transport.Event{Kind: transport.EventMessages, Messages: msgs}, true
	case "connection.update":
		return transport.Event{
			Kind: transport.EventConnection,
			Connection: &transport.ConnectionUpdate{
				Open:      p.Connection == "open",
				LoggedOut: p.LoggedOut,
			},
		}, true
	default:
		return transport.Event{}, false
	}
}
