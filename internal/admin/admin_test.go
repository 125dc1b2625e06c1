package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"offhoursbot/internal/broadcast"
	"offhoursbot/internal/storage"
	"offhoursbot/internal/transport"
	"offhoursbot/internal/whitelist"
	logx "offhoursbot/pkg/logx"
)

type fakeRoster struct {
	groups []storage.GroupRecord
	state  broadcast.State
}

func (f *fakeRoster) Groups(context.Context) []storage.GroupRecord { return f.groups }
func (f *fakeRoster) State() broadcast.State                       { return f.state }

type fakePairing struct {
	status transport.PairingStatus
	err    error
}

func (f *fakePairing) PairingStatus(context.Context) (transport.PairingStatus, error) {
	return f.status, f.err
}

func newTestService(t *testing.T, store storage.Store) (*Service, *whitelist.List, *fakeRoster) {
	t.Helper()
	roster := &fakeRoster{
		groups: []storage.GroupRecord{{JID: "aaa@g.us", Name: "alpha"}},
		state:  broadcast.StatePrepared,
	}
	allow := whitelist.New()
	svc := New(Config{Token: "secret"}, roster, allow, store, &fakePairing{}, nil, logx.Nop())
	return svc, allow, roster
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, nil)
	h := svc.Handler()

	if rec := get(t, h, "/groups", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code = %d", rec.Code)
	}
	if rec := get(t, h, "/groups", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: code = %d", rec.Code)
	}
	if rec := get(t, h, "/groups?token=secret", ""); rec.Code != http.StatusOK {
		t.Fatalf("query token: code = %d", rec.Code)
	}
}

func TestGroupsEndpoint(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, nil)
	rec := get(t, svc.Handler(), "/groups", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body struct {
		Groups []storage.GroupRecord `json:"groups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Groups) != 1 || body.Groups[0].Name != "alpha" {
		t.Fatalf("groups = %+v", body.Groups)
	}
}

func TestHealthzReportsSchedulerState(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, nil)
	rec := get(t, svc.Handler(), "/healthz", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["scheduler"] != "prepared" {
		t.Fatalf("scheduler = %q", body["scheduler"])
	}
}

func TestWhitelistReplaceFiltersAndPersists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := storage.Open(storage.Config{Driver: "file", Path: dir + "/state.json"}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	svc, allow, _ := newTestService(t, store)
	h := svc.Handler()

	payload := `{"jids":["bbb@g.us","user@s.whatsapp.net","aaa@g.us","aaa@g.us"]}`
	req := httptest.NewRequest(http.MethodPost, "/whitelist", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		JIDs []string `json:"jids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.JIDs) != 2 || body.JIDs[0] != "aaa@g.us" || body.JIDs[1] != "bbb@g.us" {
		t.Fatalf("accepted = %v, want groups only, deduped, sorted", body.JIDs)
	}
	if allow.Allows("user@s.whatsapp.net") && !allow.Empty() {
		// Non-group entries must not have slipped into the filter set.
		t.Fatal("non-group jid accepted into whitelist")
	}

	persisted, err := store.LoadWhitelist(context.Background())
	if err != nil {
		t.Fatalf("load whitelist: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("persisted = %v", persisted)
	}
}

func TestWhitelistRejectsMalformedBody(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/whitelist", strings.NewReader(`{"jids": "not-a-list"`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestQRPage(t *testing.T) {
	t.Parallel()
	roster := &fakeRoster{}
	allow := whitelist.New()
	pairing := &fakePairing{status: transport.PairingStatus{QRDataURL: "data:image/png;base64,abc"}}
	svc := New(Config{}, roster, allow, nil, pairing, nil, logx.Nop())

	rec := get(t, svc.Handler(), "/qr", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "data:image/png;base64,abc") {
		t.Fatalf("body missing QR image: %s", rec.Body.String())
	}

	pairing.status = transport.PairingStatus{Paired: true}
	rec = get(t, svc.Handler(), "/qr", "")
	if !strings.Contains(rec.Body.String(), "Linked") {
		t.Fatalf("body missing linked state: %s", rec.Body.String())
	}
}

func TestHookMounted(t *testing.T) {
	t.Parallel()
	called := false
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})
	svc := New(Config{Token: "secret"}, &fakeRoster{}, whitelist.New(), nil, &fakePairing{}, hook, logx.Nop())

	// The hook endpoint bypasses admin auth; the gateway token guards it.
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)
	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("hook not reached: code = %d called = %v", rec.Code, called)
	}
}
