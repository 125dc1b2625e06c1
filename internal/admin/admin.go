// Package admin exposes the bot's operational HTTP surface: the group
// roster, the whitelist, the pairing page, and the inbound webhook mount.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"offhoursbot/internal/broadcast"
	rtsup "offhoursbot/internal/runtime/supervisor"
	"offhoursbot/internal/storage"
	"offhoursbot/internal/transport"
	"offhoursbot/internal/whitelist"
	logx "offhoursbot/pkg/logx"
)

// Config controls the admin HTTP server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - If binding to a non-loopback address, set Token or enable AllowInsecure.
type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RosterSource provides the group roster and scheduler state for the
// read-only endpoints.
type RosterSource interface {
	Groups(ctx context.Context) []storage.GroupRecord
	State() broadcast.State
}

// PairingSource provides the link status for GET /qr.
type PairingSource interface {
	PairingStatus(ctx context.Context) (transport.PairingStatus, error)
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	roster  RosterSource
	allow   *whitelist.List
	store   storage.Store
	pairing PairingSource
	hook    http.Handler

	ln       net.Listener
	srv      *http.Server
	sup      *rtsup.Supervisor
	stopDone chan struct{}
}

func New(cfg Config, roster RosterSource, allow *whitelist.List, store storage.Store,
	pairing PairingSource, hook http.Handler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		roster:  roster,
		allow:   allow,
		store:   store,
		pairing: pairing,
		hook:    hook,
		log:     log,
	}
}

// Addr returns the bound listen address, or "" while not serving.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Start is idempotent.
	for {
		s.mu.Lock()
		// If stopping, wait for it to finish before restarting.
		if s.stopDone != nil {
			done := s.stopDone
			s.mu.Unlock()
			select {
			case <-done:
				// loop
			case <-ctx.Done():
				return
			}
			continue
		}
		if s.sup != nil {
			s.mu.Unlock()
			return
		}

		s.sup = rtsup.New(ctx,
			rtsup.WithLogger(s.log.With(logx.String("comp", "admin"))),
			// The admin surface is auxiliary; never hard-kill the app.
			rtsup.WithCancelOnError(false),
		)
		sup := s.sup
		s.mu.Unlock()

		// Run the HTTP server under a restart loop so it self-heals.
		sup.GoRestart("http.serve", func(c context.Context) error {
			return s.serveOnce(c)
		})
		return
	}
}

func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.sup == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}

	done := make(chan struct{})
	s.stopDone = done
	srv := s.srv
	ln := s.ln
	sup := s.sup
	s.mu.Unlock()

	// Shutdown happens asynchronously so callers can time out without leaking state.
	go func() {
		defer close(done)

		if srv != nil {
			_ = srv.Shutdown(ctx)
			_ = srv.Close()
		}
		if ln != nil {
			_ = ln.Close()
		}
		if sup != nil {
			sup.Cancel()
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.ln = nil
		s.srv = nil
		s.sup = nil
		s.stopDone = nil
		s.mu.Unlock()
		s.log.Info("admin server stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cur := s.cfg
	log := s.log
	s.mu.Unlock()

	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = "127.0.0.1:8099"
	}

	// Safety: prevent accidental public exposure without auth.
	if !cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
		log.Error("admin refused to start: non-loopback addr requires token or allow_insecure",
			logx.String("addr", addr))
		return errors.New("admin refused to start: insecure bind")
	}
	if cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
		log.Warn("admin running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("admin listen failed", logx.String("addr", addr), logx.Err(err))
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	defer func() { _ = ln.Close() }()

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cur.ReadTimeout,
		WriteTimeout: cur.WriteTimeout,
		IdleTimeout:  cur.IdleTimeout,
	}
	defer func() { _ = srv.Close() }()

	s.mu.Lock()
	s.ln = ln
	s.srv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		// Keep this bounded; the outer Stop(ctx) does the real graceful shutdown.
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	log.Info("admin server started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cur.Token != ""))

	err = srv.Serve(ln)

	s.mu.Lock()
	if s.srv == srv {
		s.srv = nil
		s.ln = nil
	}
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if stopping || ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("admin server exited unexpectedly")
	}
	return err
}

// Handler builds the route table. Exposed for tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return s.withAuth(s.cfg.Token, h) }

	mux.HandleFunc("/healthz", wrap(s.handleHealthz))
	mux.HandleFunc("/groups", wrap(s.handleGroups))
	mux.HandleFunc("/whitelist", wrap(s.handleWhitelist))
	mux.HandleFunc("/qr", wrap(s.handleQR))
	if s.hook != nil {
		// The webhook carries its own gateway-token auth; mount it raw.
		mux.Handle("/hook", s.hook)
	}
	return mux
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.roster != nil {
		state = s.roster.State().String()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"scheduler": state,
	})
}

func (s *Service) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	groups := []storage.GroupRecord{}
	if s.roster != nil {
		groups = s.roster.Groups(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Service) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"jids": s.allow.Snapshot()})
	case http.MethodPost:
		var body struct {
			JIDs []string `json:"jids"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		accepted := s.allow.Replace(body.JIDs)
		if s.store != nil {
			if err := s.store.SaveWhitelist(r.Context(), accepted); err != nil {
				s.log.Warn("whitelist persist failed", logx.Err(err))
			}
		}
		s.log.Info("whitelist replaced", logx.Int("accepted", len(accepted)), logx.Int("submitted", len(body.JIDs)))
		writeJSON(w, http.StatusOK, map[string]any{"jids": accepted})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

var qrPage = template.Must(template.New("qr").Parse(`<!doctype html>
<html><head><title>pairing</title><meta http-equiv="refresh" content="5"></head>
<body style="font-family:sans-serif;text-align:center">
{{if .Paired}}<h1>Linked</h1><p>The WhatsApp session is active.</p>
{{else if .QRDataURL}}<h1>Scan to link</h1><img src="{{.QRDataURL}}" alt="QR code">
{{else}}<h1>Waiting for QR…</h1><p>The gateway has not produced a code yet.</p>
{{end}}
</body></html>
`))

func (s *Service) handleQR(w http.ResponseWriter, r *http.Request) {
	if s.pairing == nil {
		http.Error(w, "pairing unavailable", http.StatusServiceUnavailable)
		return
	}
	st, err := s.pairing.PairingStatus(r.Context())
	if err != nil {
		http.Error(w, "pairing status: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = qrPage.Execute(w, st)
}

func (s *Service) withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		if ah := r.Header.Get("Authorization"); ah != "" {
			const p = "Bearer "
			if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				h(w, r)
				return
			}
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
