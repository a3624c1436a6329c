// Package monitor runs the single background monitoring session that polls a
// search on a fixed interval and buffers new results.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/logsleuth/logsleuth/internal/splunk"
)

// Searcher is the slice of the search engine the monitor needs.
type Searcher interface {
	Execute(ctx context.Context, query string, opts splunk.SearchOptions) ([]splunk.Record, error)
}

// CheckRecorder receives the outcome of every monitoring iteration. A nil
// recorder disables recording.
type CheckRecorder interface {
	RecordCheck(ctx context.Context, sessionID, query, earliest, latest string, resultCount int, checkErr error)
}

// maxErrors is the number of consecutive failed iterations after which the
// session terminates itself.
const maxErrors = 5

// checkTimeField tags buffered results with the iteration's check time.
const checkTimeField = "_monitoring_check_time"

const timestampLayout = "2006-01-02T15:04:05"

// Status is a point-in-time snapshot of a session. Reading it never mutates
// session state.
type Status struct {
	SessionID       string     `json:"session_id"`
	Query           string     `json:"query"`
	IntervalSeconds int        `json:"interval"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastCheckTime   *time.Time `json:"last_check_time,omitempty"`
	ErrorCount      int        `json:"error_count"`
	BufferedResults int        `json:"results_in_buffer"`
}

// session is one background monitoring loop. It is owned by the Supervisor
// and never escapes the package.
type session struct {
	id         string
	query      string
	interval   time.Duration
	maxResults int
	timeout    time.Duration
	searcher   Searcher
	recorder   CheckRecorder

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu         sync.Mutex
	active     bool
	createdAt  time.Time
	lastCheck  time.Time
	buffer     []splunk.Record
	errorCount int
}

func (s *session) start() {
	s.mu.Lock()
	s.active = true
	s.createdAt = time.Now()
	s.mu.Unlock()
	go s.run()
	log.Printf("Monitoring session started: id=%s interval=%s", s.id, s.interval)
}

func (s *session) run() {
	defer close(s.doneCh)
	for {
		if !s.check() {
			return
		}
		select {
		case <-s.stopCh:
			s.setActive(false)
			return
		case <-time.After(s.interval):
		}
	}
}

// check performs one iteration and reports whether the loop should continue.
func (s *session) check() bool {
	now := time.Now()

	s.mu.Lock()
	last := s.lastCheck
	s.mu.Unlock()

	// First iteration looks back one interval; later iterations pick up
	// exactly where the previous one left off.
	earliest := fmt.Sprintf("-%ds", int(s.interval.Seconds()))
	if !last.IsZero() {
		earliest = last.Format(timestampLayout)
	}
	latest := now.Format(timestampLayout)

	results, err := s.searcher.Execute(context.Background(), s.query, splunk.SearchOptions{
		Earliest:   earliest,
		Latest:     latest,
		MaxResults: s.maxResults,
		Timeout:    s.timeout,
	})

	if s.recorder != nil {
		s.recorder.RecordCheck(context.Background(), s.id, s.query, earliest, latest, len(results), err)
	}

	if err != nil {
		s.mu.Lock()
		s.errorCount++
		count := s.errorCount
		s.mu.Unlock()
		log.Printf("ERROR: monitoring check failed (%d/%d): %v", count, maxErrors, err)
		if count >= maxErrors {
			log.Printf("ERROR: monitoring session %s reached max errors, stopping", s.id)
			s.setActive(false)
			return false
		}
		return true
	}

	for _, rec := range results {
		rec[checkTimeField] = now.Format(timestampLayout)
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, results...)
	s.errorCount = 0
	s.lastCheck = now
	buffered := len(s.buffer)
	s.mu.Unlock()

	if len(results) > 0 {
		log.Printf("Monitoring check: new=%d buffered=%d", len(results), buffered)
	}
	return true
}

// stop signals the loop and waits up to joinTimeout for it to end; an
// overrunning iteration is abandoned, not killed.
func (s *session) stop(joinTimeout time.Duration) {
	s.stopOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.doneCh:
	case <-time.After(joinTimeout):
		log.Printf("WARN: monitoring session %s did not stop within %s, abandoning", s.id, joinTimeout)
	}
	s.setActive(false)
	log.Printf("Monitoring session stopped: id=%s", s.id)
}

func (s *session) setActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

func (s *session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		SessionID:       s.id,
		Query:           s.query,
		IntervalSeconds: int(s.interval.Seconds()),
		IsActive:        s.active,
		CreatedAt:       s.createdAt,
		ErrorCount:      s.errorCount,
		BufferedResults: len(s.buffer),
	}
	if !s.lastCheck.IsZero() {
		t := s.lastCheck
		st.LastCheckTime = &t
	}
	return st
}

// drain returns a copy of the buffer, optionally clearing it.
func (s *session) drain(clear bool) []splunk.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]splunk.Record, len(s.buffer))
	copy(out, s.buffer)
	if clear {
		s.buffer = s.buffer[:0]
	}
	return out
}
