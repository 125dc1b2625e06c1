package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"offhoursbot/internal/chat"
	"offhoursbot/internal/transport"
	logx "offhoursbot/pkg/logx"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := New(Config{
		BaseURL:        baseURL,
		Token:          "secret",
		SendRatePerSec: 100,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestSendText(t *testing.T) {
	t.Parallel()
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var m map[string]string
		_ = json.NewDecoder(r.Body).Decode(&m)
		gotBody = m["to"] + "|" + m["message"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	if err := a.SendText(context.Background(), chat.JID("g1@g.us"), "hola"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody != "g1@g.us|hola" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestSendTextErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	err := a.SendText(context.Background(), chat.JID("u@s.whatsapp.net"), "x")
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error should carry status: %v", err)
	}
}

func TestListGroups(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"groups": map[string]any{
				"a@g.us": map[string]string{"name": "Alpha"},
				"b@g.us": map[string]string{"name": "Beta"},
			},
		})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	groups, err := a.ListGroups(context.Background())
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 2 || groups["a@g.us"].Name != "Alpha" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestWebhookMessagesUpsert(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "http://gateway.invalid")

	out := make(chan transport.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx, out); err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload := `{
		"event": "messages.upsert",
		"messages": [{
			"key": {"id": "MSG1", "remoteJid": "123@s.whatsapp.net", "fromMe": false},
			"pushName": "Ana",
			"messageTimestamp": 1735776000,
			"message": {"conversation": "hola"}
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	a.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case ev := <-out:
		if ev.Kind != transport.EventMessages || len(ev.Messages) != 1 {
			t.Fatalf("unexpected event: %+v", ev)
		}
		m := ev.Messages[0]
		if m.ID != "MSG1" || m.Chat != "123@s.whatsapp.net" || m.Text() != "hola" {
			t.Fatalf("unexpected message: %+v", m)
		}
		if m.Timestamp.IsZero() {
			t.Fatal("timestamp not decoded")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWebhookConnectionUpdate(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "http://gateway.invalid")
	out := make(chan transport.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = a.Start(ctx, out)

	req := httptest.NewRequest(http.MethodPost, "/hook",
		strings.NewReader(`{"event":"connection.update","connection":"close","loggedOut":true}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	a.WebhookHandler().ServeHTTP(rec, req)

	ev := <-out
	if ev.Kind != transport.EventConnection || ev.Connection == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Connection.Open || !ev.Connection.LoggedOut {
		t.Fatalf("unexpected connection state: %+v", ev.Connection)
	}
}

func TestWebhookRejectsBadAuthAndBadJSON(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "http://gateway.invalid")

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	a.WebhookHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing auth: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{not json`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	a.WebhookHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d", rec.Code)
	}
}
