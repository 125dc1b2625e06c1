// Package gateway reaches the WhatsApp network through a companion HTTP
// gateway process. Outbound calls (send, roster, pairing, session restart)
// are plain REST; inbound messages and connection updates arrive on a
// webhook served by this process (see WebhookHandler).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"offhoursbot/internal/chat"
	"offhoursbot/internal/transport"
	logx "offhoursbot/pkg/logx"
)

type Config struct {
	// BaseURL of the gateway REST surface, e.g. "http://127.0.0.1:3000".
	BaseURL string
	// Token is sent as a bearer token on every request when non-empty.
	Token string
	// SessionDir is forwarded to the gateway on session restarts so the
	// credential store survives our restarts.
	SessionDir string

	RequestTimeout time.Duration
	// SendRatePerSec caps outbound sends across all callers. The WhatsApp
	// network bans accounts that send too fast; this floor applies under
	// whatever per-chat pacing callers already do.
	SendRatePerSec int
}

type Adapter struct {
	cfg  Config
	log  logx.Logger
	http *http.Client

	limiter *rate.Limiter

	runMu   sync.Mutex
	running bool
	out     chan<- transport.Event

	// droppedEvents counts webhook events dropped because the consumer was
	// slower than the gateway. Logged periodically to avoid per-event spam.
	droppedEvents uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway base_url is empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("gateway base_url: %w", err)
	}
	cfg.BaseURL = base

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Event) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	a.out = out

	// Periodic summary for dropped events (avoid noisy per-event logs).
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn("inbound events dropped (channel full)", logx.Int64("count", int64(n)))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn("inbound events dropped (channel full)", logx.Int64("count", int64(n)))
				}
			}
		}
	}()

	a.log.Info("gateway adapter started", logx.String("base_url", a.cfg.BaseURL))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.running = false
	a.out = nil
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to chat.JID, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	body := map[string]string{"to": to.String(), "message": text}
	return a.post(ctx, "/send", body, nil)
}

func (a *Adapter) ListGroups(ctx context.Context) (map[chat.JID]transport.GroupInfo, error) {
	var resp struct {
		Groups map[string]transport.GroupInfo `json:"groups"`
	}
	if err := a.get(ctx, "/groups", &resp); err != nil {
		return nil, err
	}
	out := make(map[chat.JID]transport.GroupInfo, len(resp.Groups))
	for jid, info := range resp.Groups {
		out[chat.JID(jid)] = info
	}
	return out, nil
}

func (a *Adapter) PairingStatus(ctx context.Context) (transport.PairingStatus, error) {
	var st transport.PairingStatus
	if err := a.get(ctx, "/pairing", &st); err != nil {
		return transport.PairingStatus{}, err
	}
	return st, nil
}

func (a *Adapter) Reconnect(ctx context.Context) error {
	body := map[string]string{}
	if a.cfg.SessionDir != "" {
		body["session_dir"] = a.cfg.SessionDir
	}
	return a.post(ctx, "/session/restart", body, nil)
}

func (a *Adapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return a.do(req, out)
}

func (a *Adapter) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *Adapter) do(req *http.Request, out any) error {
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway %s %s: decode: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (a *Adapter) deliver(ev transport.Event) {
	a.runMu.Lock()
	out := a.out
	a.runMu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- ev:
	default:
		atomic.AddUint64(&a.droppedEvents, 1)
	}
}
