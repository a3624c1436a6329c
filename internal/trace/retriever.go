// Package trace locates correlated log events by trace identifier, widening
// the search window and chunking large ID sets as needed.
package trace

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/logsleuth/logsleuth/internal/splunk"
)

// Searcher is the slice of the search engine the retriever needs.
type Searcher interface {
	Execute(ctx context.Context, query string, opts splunk.SearchOptions) ([]splunk.Record, error)
}

// candidateIDFields are the field names services commonly emit the trace or
// correlation identifier under.
var candidateIDFields = []string{
	"traceId", "trace_id", "traceID",
	"correlationId", "correlation_id",
	"requestId", "request_id",
	"x-b3-traceid", "b3TraceId",
}

// idChunkSize bounds generated query length.
const idChunkSize = 25

// broadeningWindows are tried in order until one yields results.
var broadeningWindows = []string{"-24h", "-48h", "-72h"}

// Retriever implements the broadened error search and the ID-chunked trace
// search on top of a Searcher.
type Retriever struct {
	searcher Searcher
}

// NewRetriever creates a retriever backed by the given searcher.
func NewRetriever(s Searcher) *Retriever {
	return &Retriever{searcher: s}
}

// ErrorReport is the outcome of a broadened error search. Found is false when
// every attempted window came back empty; that is not an error.
type ErrorReport struct {
	Found            bool            `json:"found"`
	Results          []splunk.Record `json:"results,omitempty"`
	WindowUsed       string          `json:"window_used,omitempty"`
	Indices          []string        `json:"indices"`
	WindowsAttempted []string        `json:"windows_attempted"`
	Suggestions      []string        `json:"suggestions,omitempty"`
}

// ErrorSearch looks for error-keyword events across the given indices. An
// explicit earliest pins the search to that single window; otherwise the
// window broadens through -24h, -48h, -72h, stopping at the first hit.
func (r *Retriever) ErrorSearch(ctx context.Context, indices []string, earliest, latest string, maxResults int) (*ErrorReport, error) {
	if len(indices) == 0 {
		return nil, &splunk.ValidationError{Field: "indices", Reason: "at least one index is required"}
	}
	if latest == "" {
		latest = "now"
	} else if latest != "now" {
		if err := splunk.CheckTimeRange("latest_time", latest); err != nil {
			return nil, err
		}
	}

	windows := broadeningWindows
	if earliest != "" {
		if err := splunk.CheckTimeRange("earliest_time", earliest); err != nil {
			return nil, err
		}
		windows = []string{earliest}
	}

	clauses := make([]string, len(indices))
	for i, idx := range indices {
		clauses[i] = fmt.Sprintf("index=%q", idx)
	}
	query := fmt.Sprintf(`(%s) ("ERROR" OR "error")`, strings.Join(clauses, " OR "))

	for _, window := range windows {
		log.Printf("Error search: window=%s indices=%s", window, strings.Join(indices, ","))
		results, err := r.searcher.Execute(ctx, query, splunk.SearchOptions{
			Earliest:   window,
			Latest:     latest,
			MaxResults: maxResults,
		})
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return &ErrorReport{
				Found:            true,
				Results:          results,
				WindowUsed:       window,
				Indices:          indices,
				WindowsAttempted: windows[:indexOf(windows, window)+1],
			}, nil
		}
	}

	return &ErrorReport{
		Indices:          indices,
		WindowsAttempted: windows,
		Suggestions: []string{
			"widen or shift the time range",
			"add or change the searched indices",
			"try different keywords (WARN, FAIL, exception)",
		},
	}, nil
}

// TraceBucket holds the events retrieved for one requested identifier.
type TraceBucket struct {
	ID     string          `json:"id"`
	Events []splunk.Record `json:"events"`
}

// TraceReport is the outcome of an ID-chunked trace search. Buckets always
// contains one entry per requested id, possibly empty, so downstream stages
// receive complete input even on a total miss.
type TraceReport struct {
	Found            bool          `json:"found"`
	WindowUsed       string        `json:"window_used,omitempty"`
	Latest           string        `json:"latest_time"`
	WindowsAttempted []string      `json:"windows_attempted"`
	Buckets          []TraceBucket `json:"traces"`
}

// TraceSearch fetches all events matching the given trace ids, chunking the
// id set and broadening the window like ErrorSearch.
func (r *Retriever) TraceSearch(ctx context.Context, ids, indices []string, earliest, latest string, maxResults int) (*TraceReport, error) {
	if len(ids) == 0 {
		return nil, &splunk.ValidationError{Field: "ids", Reason: "at least one id is required"}
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, &splunk.ValidationError{Field: "ids", Reason: "ids must be non-empty strings"}
		}
	}
	if latest == "" {
		latest = "now"
	} else if latest != "now" {
		if err := splunk.CheckTimeRange("latest_time", latest); err != nil {
			return nil, err
		}
	}

	windows := broadeningWindows
	if earliest != "" {
		if err := splunk.CheckTimeRange("earliest_time", earliest); err != nil {
			return nil, err
		}
		windows = []string{earliest}
	}

	chunks := chunkIDs(ids, idChunkSize)

	report := &TraceReport{Latest: latest}
	for _, window := range windows {
		report.WindowsAttempted = append(report.WindowsAttempted, window)

		var events []splunk.Record
		for _, chunk := range chunks {
			query := buildTraceQuery(chunk, indices)
			log.Printf("Trace search chunk: ids=%d window=%s", len(chunk), window)
			chunkEvents, err := r.searcher.Execute(ctx, query, splunk.SearchOptions{
				Earliest:   window,
				Latest:     latest,
				MaxResults: maxResults,
			})
			if err != nil {
				return nil, err
			}
			events = append(events, chunkEvents...)
		}

		if len(events) > 0 {
			report.Found = true
			report.WindowUsed = window
			report.Buckets = bucketEvents(events, ids)
			return report, nil
		}
	}

	// Nothing anywhere: still succeed, with one empty bucket per id.
	report.Buckets = bucketEvents(nil, ids)
	return report, nil
}

// buildTraceQuery builds the SPL predicate for one chunk: any candidate id
// field IN the chunk, with a raw substring fallback.
func buildTraceQuery(ids, indices []string) string {
	indexClause := "index=*"
	if len(indices) > 0 {
		clauses := make([]string, len(indices))
		for i, idx := range indices {
			clauses[i] = fmt.Sprintf("index=%q", idx)
		}
		indexClause = "(" + strings.Join(clauses, " OR ") + ")"
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	inList := strings.Join(quoted, ",")

	var predicates []string
	for _, field := range candidateIDFields {
		predicates = append(predicates, fmt.Sprintf("%s IN (%s)", field, inList))
	}
	var rawContains []string
	for _, id := range ids {
		rawContains = append(rawContains, fmt.Sprintf(`like(_raw, "%%%s%%")`, id))
	}
	predicates = append(predicates, strings.Join(rawContains, " OR "))

	return fmt.Sprintf("search %s (%s) | sort _time", indexClause, strings.Join(predicates, " OR "))
}

// bucketEvents assigns events to the ids that were searched for. An exact
// candidate-field match wins; otherwise an event is assigned by raw substring
// only when exactly one id matches, and dropped when zero or several do.
func bucketEvents(events []splunk.Record, ids []string) []TraceBucket {
	buckets := make(map[string][]splunk.Record, len(ids))
	for _, id := range ids {
		buckets[id] = nil
	}

	for _, ev := range events {
		if id, ok := fieldMatch(ev, buckets); ok {
			buckets[id] = append(buckets[id], ev)
			continue
		}
		raw, _ := ev["_raw"].(string)
		if len(raw) > 20000 {
			raw = raw[:20000]
		}
		var matched string
		matches := 0
		for _, id := range ids {
			if strings.Contains(raw, id) {
				matched = id
				matches++
				if matches > 1 {
					break
				}
			}
		}
		if matches == 1 {
			buckets[matched] = append(buckets[matched], ev)
		}
	}

	out := make([]TraceBucket, 0, len(ids))
	for _, id := range ids {
		evs := buckets[id]
		sort.SliceStable(evs, func(i, j int) bool {
			return recordTime(evs[i]) < recordTime(evs[j])
		})
		out = append(out, TraceBucket{ID: id, Events: evs})
	}
	return out
}

func fieldMatch(ev splunk.Record, buckets map[string][]splunk.Record) (string, bool) {
	for _, field := range candidateIDFields {
		if val, ok := ev[field].(string); ok {
			if _, requested := buckets[val]; requested {
				return val, true
			}
		}
	}
	return "", false
}

// recordTime returns the event's _time as a string; lexicographic ordering is
// adequate for both epoch and ISO forms the backend emits.
func recordTime(ev splunk.Record) string {
	if t, ok := ev["_time"]; ok && t != nil {
		return fmt.Sprintf("%v", t)
	}
	return ""
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
