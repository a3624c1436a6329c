package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/logsleuth/logsleuth/internal/splunk"
)

// ErrNoSession is returned by operations that need an existing session.
var ErrNoSession = errors.New("no monitoring session")

// joinTimeout bounds how long a replace or stop waits for the old loop.
const joinTimeout = 5 * time.Second

const (
	minInterval = 10 * time.Second
	maxInterval = 3600 * time.Second
)

// Supervisor owns at most one monitoring session process-wide. All
// start/stop/replace operations serialize on its mutex, so replacing the
// session is atomic with respect to concurrent calls.
type Supervisor struct {
	searcher Searcher
	recorder CheckRecorder

	mu      sync.Mutex
	current *session
}

// NewSupervisor creates a supervisor. recorder may be nil.
func NewSupervisor(searcher Searcher, recorder CheckRecorder) *Supervisor {
	return &Supervisor{searcher: searcher, recorder: recorder}
}

// StartParams configure a new monitoring session.
type StartParams struct {
	Query      string
	Interval   time.Duration
	MaxResults int
	Timeout    time.Duration
}

// Start replaces any running session with a new one. The old session is fully
// stopped (joined with a bounded timeout) before the new loop begins. Start
// returns once the new loop is scheduled; it does not wait for the first poll.
func (sv *Supervisor) Start(p StartParams) (Status, error) {
	if p.Query == "" {
		return Status{}, &splunk.ValidationError{Field: "query", Reason: "query is required"}
	}
	if p.Interval < minInterval || p.Interval > maxInterval {
		return Status{}, &splunk.ValidationError{Field: "interval", Reason: "must be between 10 and 3600 seconds"}
	}
	if p.MaxResults <= 0 {
		p.MaxResults = 1000
	}
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}

	sv.mu.Lock()
	defer sv.mu.Unlock()

	if sv.current != nil {
		sv.current.stop(joinTimeout)
	}

	sess := &session{
		id:         "mon_" + uuid.New().String()[:8],
		query:      p.Query,
		interval:   p.Interval,
		maxResults: p.MaxResults,
		timeout:    p.Timeout,
		searcher:   sv.searcher,
		recorder:   sv.recorder,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	sess.start()
	sv.current = sess
	return sess.status(), nil
}

// Stop ends the current session and discards it along with any buffered
// results.
func (sv *Supervisor) Stop() error {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.current == nil {
		return ErrNoSession
	}
	sv.current.stop(joinTimeout)
	sv.current = nil
	return nil
}

// Status snapshots the current session without mutating it. ok is false when
// no session exists.
func (sv *Supervisor) Status() (Status, bool) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.current == nil {
		return Status{}, false
	}
	return sv.current.status(), true
}

// Drain returns buffered results, clearing the buffer when clear is set.
func (sv *Supervisor) Drain(clear bool) ([]splunk.Record, error) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.current == nil {
		return nil, ErrNoSession
	}
	return sv.current.drain(clear), nil
}

// Shutdown stops any running session; used during process teardown.
func (sv *Supervisor) Shutdown() {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.current != nil {
		sv.current.stop(joinTimeout)
		sv.current = nil
	}
}
