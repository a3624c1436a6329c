// Package rpc implements the JSON-RPC 2.0 request/response model and the
// method dispatcher used by the SSE transport.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// CodeInternalError is returned for unknown methods and handler failures.
const CodeInternalError = -32603

// Request is an incoming JSON-RPC 2.0 request. A nil ID marks a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// must never produce a queued response.
func (r *Request) IsNotification() bool { return r.ID == nil }

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Response is an outgoing JSON-RPC 2.0 response. Its ID always equals the
// originating request's ID.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// HandlerFunc handles one JSON-RPC method.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes requests to registered method handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler for a method name.
func (d *Dispatcher) Register(method string, h HandlerFunc) error {
	if method == "" {
		return fmt.Errorf("method name is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[method]; exists {
		return fmt.Errorf("handler already registered for %s", method)
	}
	d.handlers[method] = h
	return nil
}

// MustRegister adds a handler or panics.
func (d *Dispatcher) MustRegister(method string, h HandlerFunc) {
	if err := d.Register(method, h); err != nil {
		panic(err)
	}
}

// Dispatch runs the request's handler and builds the response. Handler
// failures and unknown methods become JSON-RPC error objects; they never
// propagate. Notifications return nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	d.mu.RLock()
	handler := d.handlers[req.Method]
	d.mu.RUnlock()

	var result any
	var err error
	if handler == nil {
		err = fmt.Errorf("unknown method: %s", req.Method)
	} else {
		result, err = handler(ctx, req.Params)
	}

	if req.IsNotification() {
		if err != nil {
			log.Printf("WARN: notification %s failed: %v", req.Method, err)
		}
		return nil
	}

	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if err != nil {
		log.Printf("ERROR: method %s failed: %v", req.Method, err)
		resp.Error = &Error{
			Code:    CodeInternalError,
			Message: "Internal error",
			Data:    err.Error(),
		}
		return resp
	}
	resp.Result = result
	return resp
}
