package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	d := NewDispatcher()
	d.MustRegister("echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		var in map[string]string
		json.Unmarshal(params, &in)
		return in, nil
	})

	resp := d.Dispatch(context.Background(), &Request{
		JSONRPC: "2.0",
		ID:      float64(7),
		Method:  "echo",
		Params:  json.RawMessage(`{"k": "v"}`),
	})
	if resp == nil {
		t.Fatal("expected a response")
	}
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, float64(7), resp.ID)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]string{"k": "v"}, resp.Result)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher()

	resp := d.Dispatch(context.Background(), &Request{JSONRPC: "2.0", ID: "req-1", Method: "nope"})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "Internal error", resp.Error.Message)
	assert.Contains(t, resp.Error.Data, "unknown method: nope")
	assert.Equal(t, "req-1", resp.ID, "error responses carry the request id")
}

func TestDispatchHandlerErrorBecomesErrorObject(t *testing.T) {
	d := NewDispatcher()
	d.MustRegister("boom", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, errors.New("backend exploded")
	})

	resp := d.Dispatch(context.Background(), &Request{JSONRPC: "2.0", ID: 1, Method: "boom"})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected an error response")
	}
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "backend exploded", resp.Error.Data)
}

func TestDispatchNotificationReturnsNil(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.MustRegister("notify", func(ctx context.Context, _ json.RawMessage) (any, error) {
		called = true
		return "ignored", nil
	})

	resp := d.Dispatch(context.Background(), &Request{JSONRPC: "2.0", Method: "notify"})
	assert.Nil(t, resp, "notifications never produce responses")
	assert.True(t, called, "notification handlers still run")

	// Even failures stay silent for notifications.
	resp = d.Dispatch(context.Background(), &Request{JSONRPC: "2.0", Method: "missing"})
	assert.Nil(t, resp)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d := NewDispatcher()
	h := func(ctx context.Context, _ json.RawMessage) (any, error) { return nil, nil }

	if err := d.Register("m", h); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := d.Register("m", h); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := d.Register("", h); err == nil {
		t.Fatal("expected empty method name to fail")
	}
	if err := d.Register("n", nil); err == nil {
		t.Fatal("expected nil handler to fail")
	}
}
