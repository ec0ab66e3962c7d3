package jsonrpc

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/monitoring"
)

// Handler serves one message type. data is the undecoded payload, empty
// when the request carried none. A nil result means not found.
type Handler func(ctx context.Context, data jsonx.RawMessage) (any, error)

// Envelope is the {type, data} frame every routed message travels in.
type Envelope struct {
	Type string           `json:"type"`
	Data jsonx.RawMessage `json:"data,omitempty"`
}

// Router is a static registry of message handlers plus the broadcast
// primitive. Handlers are registered at startup and may then be
// dispatched concurrently.
type Router struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	broadcaster interfaces.Broadcaster
	log         *logx.Logger
}

// NewRouter returns an empty router. bc may be nil, in which case
// Broadcast reports errors.ErrBroadcastDisabled.
func NewRouter(bc interfaces.Broadcaster, log *logx.Logger) *Router {
	return &Router{
		handlers:    make(map[string]Handler),
		broadcaster: bc,
		log:         log,
	}
}

func (r *Router) Register(msgType string, h Handler) error {
	if msgType == "" || h == nil {
		return fmt.Errorf("register %q: empty type or nil handler", msgType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[msgType]; exists {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateHandler, msgType)
	}
	r.handlers[msgType] = h
	return nil
}

// Types lists the registered message types in sorted order.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Router) lookup(msgType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[msgType]
	return h, ok
}

// Dispatch runs the handler registered for env.Type. An unregistered type
// yields a nil result and errors.ErrUnknownMessageType.
func (r *Router) Dispatch(ctx context.Context, env Envelope) (any, error) {
	h, ok := r.lookup(env.Type)
	if !ok {
		r.log.Debug("ROUTER", "unknown message type ", env.Type)
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownMessageType, env.Type)
	}
	monitoring.IncreaseSyncRequestCount(env.Type)
	return h(ctx, env.Data)
}

// DispatchJSON decodes an envelope and dispatches it.
func (r *Router) DispatchJSON(ctx context.Context, body []byte) (any, error) {
	var env Envelope
	if err := jsonx.Unmarshal(body, &env); err != nil {
		return nil, &paramsError{err: fmt.Errorf("decode envelope: %w", err)}
	}
	return r.Dispatch(ctx, env)
}

// Broadcast hands payload to the broadcaster without waiting for peers.
func (r *Router) Broadcast(ctx context.Context, msgType string, payload any) error {
	if r.broadcaster == nil {
		return errors.ErrBroadcastDisabled
	}
	err := r.broadcaster.Broadcast(ctx, msgType, payload)
	monitoring.RecordBroadcast(msgType, err)
	if err != nil {
		r.log.Warn("ROUTER", "broadcast ", msgType, " failed: ", err)
	}
	return err
}

// MethodMap exposes every registered type not listed in except as a
// JSON-RPC method of the same name, with the message payload as params.
func (r *Router) MethodMap(except ...string) handler.Map {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make(handler.Map, len(r.handlers))
	for msgType := range r.handlers {
		if slices.Contains(except, msgType) {
			continue
		}
		msgType := msgType
		methods[msgType] = func(ctx context.Context, req *jrpc2.Request) (any, error) {
			var data jsonx.RawMessage
			if req.HasParams() {
				data = jsonx.RawMessage(req.ParamString())
			}
			res, err := r.Dispatch(ctx, Envelope{Type: msgType, Data: data})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}
	}
	return methods
}

// PeerMethodMap is the method set served to peers on sync streams. It omits
// post_tx: peers hand over transactions by gossip, where the relay tags them
// as relayed and applies per-peer limits and dedup.
func (r *Router) PeerMethodMap() handler.Map {
	return r.MethodMap(MsgPostTx)
}

// paramsError marks a failure to decode a request payload.
type paramsError struct {
	err error
}

func (e *paramsError) Error() string { return e.err.Error() }

func (e *paramsError) Unwrap() error { return e.err }

func toJRPC2Error(err error) error {
	var pe *paramsError
	switch {
	case errors.As(err, &pe), errors.Is(err, errors.ErrInvalidChunkSize):
		return jrpc2.Errorf(jrpc2.InvalidParams, "%v", err)
	case errors.Is(err, errors.ErrUnknownMessageType):
		return jrpc2.Errorf(jrpc2.MethodNotFound, "%v", err)
	default:
		return jrpc2.Errorf(jrpc2.InternalError, "%v", err)
	}
}
