package fleet

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/pkg/models"
)

// httpMode records which half of the remote transport a server answered on.
type httpMode int

const (
	modeStreamingHTTP httpMode = iota
	modeSSE
)

// HTTPTransport speaks MCP over a remote server, choosing between a
// streaming HTTP POST/response cycle and a server-sent-events stream.
//
// Divergence from a naive implementation: Connect performs a sequential
// probe-then-fallback handshake instead of always racing both. A URL
// configured with a "/sse" suffix skips the HTTP probe outright; otherwise
// Connect POSTs a lightweight request and only falls back to establishing
// an SSE stream if that probe fails. Exactly one of the two stays live for
// the lifetime of the connection.
type HTTPTransport struct {
	config models.ServerConfig
	logger *slog.Logger
	client *http.Client

	mode httpMode

	events    chan *JSONRPCNotification
	requests  chan *JSONRPCRequest
	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewHTTPTransport creates a remote transport for cfg.
func NewHTTPTransport(cfg models.ServerConfig) *HTTPTransport {
	return &HTTPTransport{
		config: cfg,
		logger: slog.Default().With("tool_server", cfg.Name, "transport", "http"),
		client: &http.Client{Timeout: cfg.Timeout()},

		events:   make(chan *JSONRPCNotification, 100),
		requests: make(chan *JSONRPCRequest, 100),
		stopChan: make(chan struct{}),
	}
}

// Connect probes HTTP first (unless the configured URL already names an SSE
// endpoint), falling back to SSE only if the probe fails.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("fleet: URL is required for remote transport %q", t.config.Name)
	}

	if !strings.HasSuffix(t.config.URL, "/sse") {
		if err := t.probeHTTP(ctx); err == nil {
			t.mode = modeStreamingHTTP
			t.connected.Store(true)
			t.logger.Info("remote tool server ready over streaming HTTP", "url", t.config.URL)
			return nil
		} else {
			t.logger.Debug("HTTP probe failed, falling back to SSE", "error", err)
		}
	}

	sseURL := t.config.URL
	if !strings.HasSuffix(sseURL, "/sse") {
		sseURL = strings.TrimSuffix(sseURL, "/") + "/sse"
	}
	ready := make(chan error, 1)
	t.wg.Add(1)
	go t.sseLoop(ctx, sseURL, ready)

	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("fleet: SSE fallback for %q failed: %w", t.config.Name, err)
		}
	case <-time.After(t.config.Timeout()):
		return fmt.Errorf("fleet: SSE fallback for %q timed out", t.config.Name)
	}

	t.mode = modeSSE
	t.connected.Store(true)
	t.logger.Info("remote tool server ready over SSE", "url", sseURL)
	return nil
}

// probeHTTP sends a tools/list request as a cheap liveness check; any
// response (success or JSON-RPC error) counts as a live HTTP endpoint.
func (t *HTTPTransport) probeHTTP(ctx context.Context) error {
	req := JSONRPCRequest{JSONRPC: "2.0", ID: uuid.New().String(), Method: "tools/list"}
	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close tears down whichever half of the transport is live.
func (t *HTTPTransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopChan)
	t.wg.Wait()
	return nil
}

// Call sends a request over the streaming-HTTP POST path regardless of
// mode: MCP remote servers accept POST requests even when notifications
// arrive over a side-channel SSE stream.
func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("fleet: %q not connected", t.config.Name)
	}

	req := JSONRPCRequest{JSONRPC: "2.0", ID: uuid.New().String(), Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("fleet: marshal params: %w", err)
		}
		req.Params = paramsJSON
	}
	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fleet: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fleet: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}

	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("fleet: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("tool server error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// Notify posts a one-way notification.
func (t *HTTPTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("fleet: %q not connected", t.config.Name)
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("fleet: marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	body, _ := json.Marshal(notif)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fleet: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fleet: http request: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Events returns server-initiated notifications, populated only when mode
// is modeSSE.
func (t *HTTPTransport) Events() <-chan *JSONRPCNotification { return t.events }

// Requests returns server-initiated requests, populated only when mode is
// modeSSE.
func (t *HTTPTransport) Requests() <-chan *JSONRPCRequest { return t.requests }

// Respond answers a server-initiated request.
func (t *HTTPTransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	if !t.connected.Load() {
		return fmt.Errorf("fleet: %q not connected", t.config.Name)
	}
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("fleet: marshal result: %w", err)
		}
		resp.Result = data
	}
	body, _ := json.Marshal(resp)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fleet: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		httpReq.Header.Set(k, v)
	}
	respHTTP, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fleet: http request: %w", err)
	}
	respHTTP.Body.Close()
	return nil
}

// Connected reports whether either half of the transport is live.
func (t *HTTPTransport) Connected() bool { return t.connected.Load() }

// sseLoop establishes the SSE stream once (reporting the outcome on ready),
// then keeps reconnecting it in the background for as long as the
// transport is open.
func (t *HTTPTransport) sseLoop(ctx context.Context, sseURL string, ready chan<- error) {
	defer t.wg.Done()

	err := t.connectSSE(ctx, sseURL)
	ready <- err
	if err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		case <-time.After(5 * time.Second):
		}
		_ = t.connectSSE(ctx, sseURL)
	}
}

func (t *HTTPTransport) connectSSE(ctx context.Context, sseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SSE returned HTTP %d", resp.StatusCode)
	}
	t.logger.Debug("SSE connected", "url", sseURL)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stopChan:
			return nil
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		var envelope struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      any             `json:"id"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
		}
		if err := json.Unmarshal([]byte(data), &envelope); err != nil || envelope.Method == "" {
			continue
		}
		if envelope.ID != nil {
			req := &JSONRPCRequest{JSONRPC: envelope.JSONRPC, ID: envelope.ID, Method: envelope.Method, Params: envelope.Params}
			select {
			case t.requests <- req:
			default:
				t.logger.Warn("request channel full, dropping")
			}
			continue
		}
		notif := &JSONRPCNotification{JSONRPC: envelope.JSONRPC, Method: envelope.Method, Params: envelope.Params}
		select {
		case t.events <- notif:
		default:
			t.logger.Warn("notification channel full, dropping")
		}
	}
	return scanner.Err()
}
