package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/logsleuth/logsleuth/internal/monitor"
	"github.com/logsleuth/logsleuth/internal/policy"
	"github.com/logsleuth/logsleuth/internal/splunk"
	"github.com/logsleuth/logsleuth/internal/trace"
)

// Searcher is the slice of the search engine the tools need.
type Searcher interface {
	Execute(ctx context.Context, query string, opts splunk.SearchOptions) ([]splunk.Record, error)
}

// MetadataClient exposes backend metadata for the index tool and resources.
type MetadataClient interface {
	Indexes(ctx context.Context, filter string) ([]splunk.IndexInfo, error)
	ServerInfo(ctx context.Context) (map[string]any, error)
}

// Auditor records tool invocation outcomes. A nil auditor disables auditing.
type Auditor interface {
	RecordToolCall(ctx context.Context, tool string, args json.RawMessage, status string, callErr error, duration time.Duration) error
}

// Toolset owns the registered tools and their shared collaborators.
type Toolset struct {
	registry   *Registry
	searcher   Searcher
	retriever  *trace.Retriever
	supervisor *monitor.Supervisor
	metadata   MetadataClient
	policy     *policy.Engine
	auditor    Auditor

	maxResultsDefault int
}

// New builds the toolset and registers every tool. policy and auditor may be
// nil.
func New(searcher Searcher, retriever *trace.Retriever, supervisor *monitor.Supervisor, metadata MetadataClient, pol *policy.Engine, auditor Auditor, maxResultsDefault int) *Toolset {
	ts := &Toolset{
		registry:          NewRegistry(),
		searcher:          searcher,
		retriever:         retriever,
		supervisor:        supervisor,
		metadata:          metadata,
		policy:            pol,
		auditor:           auditor,
		maxResultsDefault: maxResultsDefault,
	}
	ts.register()
	return ts
}

// Registry exposes the underlying registry.
func (ts *Toolset) Registry() *Registry { return ts.registry }

// Call executes the named tool and audits the outcome: exactly one audit row
// per invocation, success or failure.
func (ts *Toolset) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	started := time.Now()
	result, err := ts.registry.Execute(ctx, name, args)
	if ts.auditor != nil {
		status := "succeeded"
		if err != nil {
			status = "failed"
		}
		if auditErr := ts.auditor.RecordToolCall(ctx, name, args, status, err, time.Since(started)); auditErr != nil {
			// Auditing never changes the call outcome.
			log.Printf("WARN: failed to audit tool call %s: %v", name, auditErr)
		}
	}
	return result, err
}

// checkQuery runs the policy gate over a user-supplied query. Blocked queries
// never reach the backend.
func (ts *Toolset) checkQuery(ctx context.Context, toolName, query string) error {
	if ts.policy == nil {
		return nil
	}
	decision, err := ts.policy.Evaluate(ctx, policy.Input{ToolName: toolName, Query: query})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if decision == policy.DecisionBlock {
		return fmt.Errorf("query blocked by policy: %q", query)
	}
	return nil
}

func (ts *Toolset) register() {
	ts.registry.MustRegister(searchDefinition, ts.execSearch)
	ts.registry.MustRegister(errorSearchDefinition, ts.execErrorSearch)
	ts.registry.MustRegister(traceSearchDefinition, ts.execTraceSearch)
	ts.registry.MustRegister(monitorDefinition, ts.execMonitor)
	ts.registry.MustRegister(listIndexesDefinition, ts.execListIndexes)
}

type searchArgs struct {
	Query       string `json:"query"`
	EarliestTime string `json:"earliest_time"`
	LatestTime   string `json:"latest_time"`
	MaxResults   int    `json:"max_results"`
	TimeoutSecs  int    `json:"timeout"`
	RawReturn    bool   `json:"raw_return"`
}

func (ts *Toolset) execSearch(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, &splunk.ValidationError{Field: "query", Reason: "query is required"}
	}
	if args.EarliestTime != "" {
		if err := splunk.CheckTimeRange("earliest_time", args.EarliestTime); err != nil {
			return nil, err
		}
	}
	if args.LatestTime != "" && args.LatestTime != "now" {
		if err := splunk.CheckTimeRange("latest_time", args.LatestTime); err != nil {
			return nil, err
		}
	}
	if err := ts.checkQuery(ctx, "splunk_search", args.Query); err != nil {
		return nil, err
	}

	results, err := ts.searcher.Execute(ctx, args.Query, splunk.SearchOptions{
		Earliest:   args.EarliestTime,
		Latest:     args.LatestTime,
		MaxResults: orDefault(args.MaxResults, ts.maxResultsDefault),
		Timeout:    time.Duration(args.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	if args.RawReturn {
		return map[string]any{"query": args.Query, "count": len(results), "results": results}, nil
	}

	lines := make([]string, 0, len(results))
	for _, rec := range results {
		lines = append(lines, fmt.Sprintf("- [%v] %v", rec["_time"], rec["_raw"]))
	}
	return map[string]any{
		"query":   args.Query,
		"count":   len(results),
		"summary": strings.Join(lines, "\n"),
	}, nil
}

type errorSearchArgs struct {
	Indices      []string `json:"indices"`
	EarliestTime string   `json:"earliest_time"`
	LatestTime   string   `json:"latest_time"`
	MaxResults   int      `json:"max_results"`
}

func (ts *Toolset) execErrorSearch(ctx context.Context, raw json.RawMessage) (any, error) {
	var args errorSearchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	report, err := ts.retriever.ErrorSearch(ctx, args.Indices, args.EarliestTime, args.LatestTime,
		orDefault(args.MaxResults, 500))
	if err != nil {
		return nil, err
	}
	if !report.Found {
		return map[string]any{
			"found":             false,
			"indices":           report.Indices,
			"windows_attempted": report.WindowsAttempted,
			"suggestions":       report.Suggestions,
			"message": fmt.Sprintf(
				"No matching error logs found. Indices searched: %s. Time windows attempted: %s.",
				strings.Join(report.Indices, ", "), strings.Join(report.WindowsAttempted, ", ")),
		}, nil
	}
	return report, nil
}

type traceSearchArgs struct {
	IDs          []string `json:"ids"`
	Indices      []string `json:"indices"`
	EarliestTime string   `json:"earliest_time"`
	LatestTime   string   `json:"latest_time"`
	MaxResults   int      `json:"max_results"`
}

func (ts *Toolset) execTraceSearch(ctx context.Context, raw json.RawMessage) (any, error) {
	var args traceSearchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	report, err := ts.retriever.TraceSearch(ctx, args.IDs, args.Indices, args.EarliestTime, args.LatestTime,
		orDefault(args.MaxResults, 4000))
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"kind":              "data",
		"found":             report.Found,
		"latest_time":       report.Latest,
		"windows_attempted": report.WindowsAttempted,
		"traces":            report.Buckets,
	}
	if report.Found {
		out["window_used"] = report.WindowUsed
	} else {
		out["message"] = fmt.Sprintf(
			"No matching logs were found for the provided IDs. IDs: %s. Windows attempted: %s. Widen the time window or verify the IDs and indices.",
			strings.Join(args.IDs, ", "), strings.Join(report.WindowsAttempted, ", "))
	}
	return out, nil
}

type monitorArgs struct {
	Action      string `json:"action"`
	Query       string `json:"query"`
	Interval    int    `json:"interval"`
	MaxResults  int    `json:"max_results"`
	TimeoutSecs int    `json:"timeout"`
	ClearBuffer *bool  `json:"clear_buffer"`
}

func (ts *Toolset) execMonitor(ctx context.Context, raw json.RawMessage) (any, error) {
	var args monitorArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	switch args.Action {
	case "start":
		if strings.TrimSpace(args.Query) == "" {
			return nil, &splunk.ValidationError{Field: "query", Reason: "query is required for the start action"}
		}
		if err := ts.checkQuery(ctx, "splunk_monitor", args.Query); err != nil {
			return nil, err
		}
		interval := args.Interval
		if interval == 0 {
			interval = 60
		}
		status, err := ts.supervisor.Start(monitor.StartParams{
			Query:      args.Query,
			Interval:   time.Duration(interval) * time.Second,
			MaxResults: args.MaxResults,
			Timeout:    time.Duration(args.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"started": true, "status": status}, nil

	case "stop":
		if err := ts.supervisor.Stop(); err != nil {
			return nil, err
		}
		return map[string]any{"stopped": true}, nil

	case "status":
		status, ok := ts.supervisor.Status()
		if !ok {
			return map[string]any{"is_active": false, "message": "no monitoring session"}, nil
		}
		return status, nil

	case "get_results":
		clear := true
		if args.ClearBuffer != nil {
			clear = *args.ClearBuffer
		}
		results, err := ts.supervisor.Drain(clear)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(results), "cleared": clear, "results": results}, nil

	default:
		return nil, &splunk.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", args.Action)}
	}
}

type listIndexesArgs struct {
	Filter string `json:"filter"`
}

func (ts *Toolset) execListIndexes(ctx context.Context, raw json.RawMessage) (any, error) {
	var args listIndexesArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	indexes, err := ts.metadata.Indexes(ctx, args.Filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(indexes), "indexes": indexes}, nil
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &splunk.ValidationError{Field: "arguments", Reason: err.Error()}
	}
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
