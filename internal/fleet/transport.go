package fleet

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Transport is the wire-level contract a managed client drives. Both the
// stdio and HTTP/SSE implementations frame every message as a single
// JSON-RPC 2.0 envelope per call, matching the protocol the teacher's own
// MCP client speaks.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(ctx context.Context, method string, params any) error
	Events() <-chan *JSONRPCNotification
	Requests() <-chan *JSONRPCRequest
	Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error
	Connected() bool
}

// NewTransport builds the transport named by cfg.Transport.
func NewTransport(cfg models.ServerConfig) Transport {
	switch cfg.Transport {
	case models.TransportRemote:
		return NewHTTPTransport(cfg)
	default:
		return NewStdioTransport(cfg)
	}
}
