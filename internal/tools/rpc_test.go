package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logsleuth/logsleuth/internal/rpc"
)

func newTestDispatcher(t *testing.T) (*rpc.Dispatcher, *toolsetDeps) {
	t.Helper()
	ts, deps := newTestToolset(t)
	d := rpc.NewDispatcher()
	RegisterRPC(d, ts)
	return d, deps
}

func dispatch(t *testing.T, d *rpc.Dispatcher, method, params string) *rpc.Response {
	t.Helper()
	resp := d.Dispatch(context.Background(), &rpc.Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  json.RawMessage(params),
	})
	if resp == nil {
		t.Fatalf("no response for %s", method)
	}
	return resp
}

func TestToolsListMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := dispatch(t, d, "tools/list", "")
	if resp.Error != nil {
		t.Fatalf("tools/list: %v", resp.Error)
	}
	out := resp.Result.(map[string]any)
	defs := out["tools"].([]Definition)
	assert.Len(t, defs, 5)
}

func TestToolsCallMethod(t *testing.T) {
	d, deps := newTestDispatcher(t)

	resp := dispatch(t, d, "tools/call",
		`{"name": "splunk_search", "arguments": {"query": "index=main error"}}`)
	if resp.Error != nil {
		t.Fatalf("tools/call: %v", resp.Error)
	}
	assert.Equal(t, 1, deps.searcher.callCount())

	resp = dispatch(t, d, "tools/call", `{"arguments": {}}`)
	if resp.Error == nil {
		t.Fatal("expected error for missing tool name")
	}
	assert.Equal(t, rpc.CodeInternalError, resp.Error.Code)
}

func TestResourcesListMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := dispatch(t, d, "resources/list", "")
	if resp.Error != nil {
		t.Fatalf("resources/list: %v", resp.Error)
	}
	out := resp.Result.(map[string]any)
	resources := out["resources"].([]Resource)
	uris := make([]string, len(resources))
	for i, r := range resources {
		uris[i] = r.URI
	}
	assert.Contains(t, uris, "splunk://indexes")
	assert.Contains(t, uris, "splunk://server-info")
}

func TestResourcesReadMethod(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := dispatch(t, d, "resources/read", `{"uri": "splunk://indexes"}`)
	if resp.Error != nil {
		t.Fatalf("resources/read indexes: %v", resp.Error)
	}
	out := resp.Result.(map[string]any)
	assert.Equal(t, "splunk://indexes", out["uri"])

	resp = dispatch(t, d, "resources/read", `{"uri": "splunk://server-info"}`)
	if resp.Error != nil {
		t.Fatalf("resources/read server-info: %v", resp.Error)
	}

	resp = dispatch(t, d, "resources/read", `{"uri": "splunk://nope"}`)
	if resp.Error == nil {
		t.Fatal("expected error for unknown resource")
	}
	assert.Contains(t, resp.Error.Data, "resource not found")
}
