package tools

var searchDefinition = Definition{
	Name: "splunk_search",
	Description: "Execute a raw SPL query against Splunk indices and return the results. " +
		"Summarizes in plain text by default, or returns the raw JSON results if raw_return=true.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":         map[string]any{"type": "string", "description": "Raw SPL query to execute."},
			"earliest_time": map[string]any{"type": "string", "description": "Start time (e.g., '-24h', '-2d', ISO).", "default": "-24h"},
			"latest_time":   map[string]any{"type": "string", "description": "End time (e.g., 'now').", "default": "now"},
			"max_results":   map[string]any{"type": "integer", "description": "Max total events to return.", "default": 1000, "minimum": 1, "maximum": 20000},
			"raw_return":    map[string]any{"type": "boolean", "description": "If true, return raw JSON instead of summarizing.", "default": false},
		},
		"required": []string{"query"},
	},
}

var errorSearchDefinition = Definition{
	Name: "splunk_error_search",
	Description: "Search Splunk for logs containing 'ERROR' or 'error' in one or more indices. " +
		"If no earliest_time is provided, automatically broadens the search up to 3 days. " +
		"If still no results, returns a detailed no-results summary.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"indices":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "List of Splunk indices to search."},
			"earliest_time": map[string]any{"type": "string", "description": "Start time (e.g., '-24h', '-2d'). If omitted, auto-broadens."},
			"latest_time":   map[string]any{"type": "string", "description": "End time (default 'now').", "default": "now"},
			"max_results":   map[string]any{"type": "integer", "description": "Maximum number of results to return.", "default": 500, "minimum": 1, "maximum": 10000},
		},
		"required": []string{"indices"},
	},
}

var traceSearchDefinition = Definition{
	Name: "splunk_trace_search_by_ids",
	Description: "Given a list of trace/correlation IDs, retrieve all related logs across indices and time range. " +
		"Returns traces grouped per ID; IDs with no matching events get an empty group.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ids":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Trace/correlation IDs to fetch."},
			"indices":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Optional Splunk indices to restrict search (defaults to all)."},
			"earliest_time": map[string]any{"type": "string", "description": "Start time (e.g., '-24h'). If omitted, auto-broadens up to 3 days."},
			"latest_time":   map[string]any{"type": "string", "description": "End time (e.g., 'now').", "default": "now"},
			"max_results":   map[string]any{"type": "integer", "description": "Max events per chunk.", "default": 4000, "minimum": 100, "maximum": 20000},
		},
		"required": []string{"ids"},
	},
}

var monitorDefinition = Definition{
	Name: "splunk_monitor",
	Description: "Start continuous monitoring of Splunk logs with a fixed interval. " +
		"A single background session collects logs each interval and buffers results for retrieval. " +
		"Only one monitoring session can be active at a time.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action":       map[string]any{"type": "string", "enum": []string{"start", "stop", "status", "get_results"}, "description": "Action to perform."},
			"query":        map[string]any{"type": "string", "description": "SPL query to monitor (required for 'start')."},
			"interval":     map[string]any{"type": "integer", "description": "Monitoring interval in seconds.", "minimum": 10, "maximum": 3600, "default": 60},
			"max_results":  map[string]any{"type": "integer", "description": "Maximum results per monitoring check.", "default": 1000, "minimum": 1, "maximum": 10000},
			"timeout":      map[string]any{"type": "integer", "description": "Search timeout in seconds for each check.", "default": 60, "minimum": 10, "maximum": 300},
			"clear_buffer": map[string]any{"type": "boolean", "description": "Whether to clear the buffer after get_results.", "default": true},
		},
		"required": []string{"action"},
	},
}

var listIndexesDefinition = Definition{
	Name:        "list_indexes",
	Description: "List available Splunk indexes with event counts and sizes, optionally filtered by name substring.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filter": map[string]any{"type": "string", "description": "Case-insensitive name substring filter."},
		},
	},
}
