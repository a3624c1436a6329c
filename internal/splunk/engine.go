package splunk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

// Job is one submitted search job. Created by Engine.Create, mutated only by
// Engine.Wait, and cancelled exactly once per Execute call.
type Job struct {
	SID      string
	Query    string
	Earliest string
	Latest   string
	State    JobState
}

// Engine drives the search job lifecycle: submit, poll to a terminal state,
// stream results, and guarantee cleanup.
type Engine struct {
	backend Backend

	// pollInterval bounds the status poll loop. The backend paces its own
	// refresh endpoint poorly, so an un-slept loop would busy-wait.
	pollInterval   time.Duration
	defaultTimeout time.Duration
	maxResults     int
}

// NewEngine creates a search engine on the given backend. defaultTimeout and
// maxResults apply when SearchOptions leave them zero.
func NewEngine(backend Backend, defaultTimeout time.Duration, maxResults int) *Engine {
	return &Engine{
		backend:        backend,
		pollInterval:   500 * time.Millisecond,
		defaultTimeout: defaultTimeout,
		maxResults:     maxResults,
	}
}

// SearchOptions are the caller-facing parameters for Execute and Create.
type SearchOptions struct {
	Earliest   string
	Latest     string
	MaxResults int
	Timeout    time.Duration
}

func (e *Engine) fill(opts SearchOptions) SearchOptions {
	if opts.Earliest == "" {
		opts.Earliest = "-24h"
	}
	if opts.Latest == "" {
		opts.Latest = "now"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.maxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = e.defaultTimeout
	}
	return opts
}

// NormalizeQuery prefixes the default search verb unless the query already
// starts with a recognized SPL form.
func NormalizeQuery(query string) string {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)
	if strings.HasPrefix(lower, "search ") ||
		strings.HasPrefix(lower, "index=") ||
		strings.HasPrefix(lower, "savedsearch") ||
		strings.HasPrefix(q, "|") {
		return q
	}
	return "search " + q
}

// Create normalizes and submits a search job.
func (e *Engine) Create(ctx context.Context, query string, opts SearchOptions) (*Job, error) {
	opts = e.fill(opts)
	normalized := NormalizeQuery(query)

	log.Printf("Creating search job: query=%q earliest=%s latest=%s max=%d",
		normalized, opts.Earliest, opts.Latest, opts.MaxResults)

	sid, err := e.backend.CreateJob(ctx, normalized, JobOptions{
		Earliest:   opts.Earliest,
		Latest:     opts.Latest,
		MaxResults: opts.MaxResults,
		Timeout:    opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Search job created: sid=%s", sid)
	return &Job{
		SID:      sid,
		Query:    normalized,
		Earliest: opts.Earliest,
		Latest:   opts.Latest,
		State:    JobSubmitted,
	}, nil
}

// Wait polls the job until it reaches a terminal state. A FAILED state aborts
// immediately rather than polling on.
func (e *Engine) Wait(ctx context.Context, job *Job, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		state, err := e.backend.JobStatus(waitCtx, job.SID)
		if err != nil {
			if waitCtx.Err() != nil {
				return &SearchError{SID: job.SID, Err: fmt.Errorf("timed out after %s: %w", timeout, waitCtx.Err())}
			}
			return &SearchError{SID: job.SID, Err: err}
		}
		job.State = state
		switch state {
		case JobDone:
			return nil
		case JobFailed:
			return &SearchError{SID: job.SID, Err: errors.New("job entered FAILED state")}
		}

		select {
		case <-waitCtx.Done():
			return &SearchError{SID: job.SID, Err: fmt.Errorf("timed out after %s: %w", timeout, waitCtx.Err())}
		case <-ticker.C:
		}
	}
}

// Results opens the job's result stream. mode "json" yields parsed records;
// any other mode yields one {"raw": line} record per line.
func (e *Engine) Results(ctx context.Context, job *Job, mode string) (*ResultStream, error) {
	if mode == "" {
		mode = "json"
	}
	rc, err := e.backend.JobResults(ctx, job.SID, mode, 0)
	if err != nil {
		return nil, &SearchError{SID: job.SID, Err: err}
	}
	return newResultStream(rc, mode), nil
}

// Execute composes create, wait, and result draining into a materialized
// record list. The job is cancelled on every exit path; a cancellation
// failure is logged and never masks the primary outcome.
func (e *Engine) Execute(ctx context.Context, query string, opts SearchOptions) ([]Record, error) {
	opts = e.fill(opts)

	job, err := e.Create(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Cancellation uses a fresh context so a caller timeout cannot
		// leak the job on the backend.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.backend.CancelJob(cancelCtx, job.SID); err != nil {
			log.Printf("WARN: failed to cancel search job %s: %v", job.SID, err)
		}
	}()

	if err := e.Wait(ctx, job, opts.Timeout); err != nil {
		return nil, err
	}

	stream, err := e.Results(ctx, job, "json")
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var records []Record
	for {
		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SearchError{SID: job.SID, Err: fmt.Errorf("reading results: %w", err)}
		}
		records = append(records, rec)
	}

	log.Printf("Search executed: sid=%s results=%d", job.SID, len(records))
	return records, nil
}
