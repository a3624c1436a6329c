package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/logsleuth/logsleuth/internal/rpc"
)

// Resource describes a readable resource for resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

const (
	resourceIndexes    = "splunk://indexes"
	resourceServerInfo = "splunk://server-info"
)

var resourceList = []Resource{
	{
		URI:         resourceIndexes,
		Name:        "Splunk indexes",
		Description: "Index metadata from the connected Splunk backend.",
		MimeType:    "application/json",
	},
	{
		URI:         resourceServerInfo,
		Name:        "Splunk server info",
		Description: "Version and build information for the connected Splunk backend.",
		MimeType:    "application/json",
	},
}

// RegisterRPC wires the toolset onto the JSON-RPC dispatcher: tools/list,
// tools/call, resources/list, resources/read.
func RegisterRPC(d *rpc.Dispatcher, ts *Toolset) {
	d.MustRegister("tools/list", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]any{"tools": ts.registry.Definitions()}, nil
	})

	d.MustRegister("tools/call", func(ctx context.Context, params json.RawMessage) (any, error) {
		var call struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := unmarshalArgs(params, &call); err != nil {
			return nil, err
		}
		if call.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		return ts.Call(ctx, call.Name, call.Arguments)
	})

	d.MustRegister("resources/list", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]any{"resources": resourceList}, nil
	})

	d.MustRegister("resources/read", func(ctx context.Context, params json.RawMessage) (any, error) {
		var read struct {
			URI string `json:"uri"`
		}
		if err := unmarshalArgs(params, &read); err != nil {
			return nil, err
		}
		return ts.readResource(ctx, read.URI)
	})
}

func (ts *Toolset) readResource(ctx context.Context, uri string) (any, error) {
	switch uri {
	case resourceIndexes:
		indexes, err := ts.metadata.Indexes(ctx, "")
		if err != nil {
			return nil, err
		}
		return map[string]any{"uri": uri, "indexes": indexes}, nil
	case resourceServerInfo:
		info, err := ts.metadata.ServerInfo(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"uri": uri, "info": info}, nil
	default:
		return nil, fmt.Errorf("resource not found: %s", uri)
	}
}
