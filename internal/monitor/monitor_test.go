package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/logsleuth/logsleuth/internal/splunk"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingSearcher answers every check from a fixed script and records the
// windows it was asked to search.
type countingSearcher struct {
	mu       sync.Mutex
	calls    int
	windows  [][2]string
	results  []splunk.Record
	err      error
	released chan struct{} // closed once calls reaches want
	want     int
}

func (s *countingSearcher) Execute(ctx context.Context, query string, opts splunk.SearchOptions) ([]splunk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.windows = append(s.windows, [2]string{opts.Earliest, opts.Latest})
	if s.released != nil && s.calls == s.want {
		close(s.released)
	}
	return s.results, s.err
}

func (s *countingSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestSession(searcher Searcher, interval time.Duration) *session {
	return &session{
		id:       "mon_test",
		query:    "search error",
		interval: interval,
		searcher: searcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func TestSupervisorValidation(t *testing.T) {
	sv := NewSupervisor(&countingSearcher{}, nil)

	cases := []StartParams{
		{Query: "", Interval: 60 * time.Second},
		{Query: "search error", Interval: 5 * time.Second},
		{Query: "search error", Interval: 4000 * time.Second},
	}
	for _, p := range cases {
		_, err := sv.Start(p)
		var verr *splunk.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("params %+v: expected ValidationError, got %v", p, err)
		}
	}
	if _, ok := sv.Status(); ok {
		t.Fatal("rejected start must not leave a session behind")
	}
}

func TestSupervisorStartIsImmediatelyActive(t *testing.T) {
	searcher := &countingSearcher{}
	sv := NewSupervisor(searcher, nil)
	defer sv.Shutdown()

	status, err := sv.Start(StartParams{Query: "search error", Interval: 10 * time.Second})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	assert.True(t, status.IsActive)
	assert.Equal(t, 10, status.IntervalSeconds)
	assert.NotEmpty(t, status.SessionID)

	got, ok := sv.Status()
	if !ok {
		t.Fatal("expected a session")
	}
	assert.Equal(t, status.SessionID, got.SessionID)
}

func TestSupervisorReplaceStopsOldSessionFirst(t *testing.T) {
	searcher := &countingSearcher{}
	sv := NewSupervisor(searcher, nil)
	defer sv.Shutdown()

	first, err := sv.Start(StartParams{Query: "search error", Interval: 10 * time.Second})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := sv.Start(StartParams{Query: "search warn", Interval: 20 * time.Second})
	if err != nil {
		t.Fatalf("Start replacement: %v", err)
	}
	assert.NotEqual(t, first.SessionID, second.SessionID)

	got, ok := sv.Status()
	if !ok {
		t.Fatal("expected a session")
	}
	assert.Equal(t, second.SessionID, got.SessionID)
	assert.Equal(t, "search warn", got.Query)
}

func TestSupervisorStopAndDrainWithoutSession(t *testing.T) {
	sv := NewSupervisor(&countingSearcher{}, nil)
	assert.ErrorIs(t, sv.Stop(), ErrNoSession)
	_, err := sv.Drain(true)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionBuffersAndTagsResults(t *testing.T) {
	released := make(chan struct{})
	searcher := &countingSearcher{
		results:  []splunk.Record{{"_raw": "hit"}},
		released: released,
		want:     2,
	}
	sess := newTestSession(searcher, 10*time.Millisecond)
	sess.start()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checks")
	}
	sess.stop(time.Second)

	results := sess.drain(true)
	if len(results) < 2 {
		t.Fatalf("expected at least 2 buffered results, got %d", len(results))
	}
	for _, rec := range results {
		if _, ok := rec[checkTimeField]; !ok {
			t.Fatalf("result missing check-time tag: %v", rec)
		}
	}
	assert.Empty(t, sess.drain(true), "drain with clear must empty the buffer")
}

func TestSessionDrainWithoutClearKeepsBuffer(t *testing.T) {
	released := make(chan struct{})
	searcher := &countingSearcher{
		results:  []splunk.Record{{"_raw": "hit"}},
		released: released,
		want:     1,
	}
	sess := newTestSession(searcher, time.Hour)
	sess.start()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first check")
	}
	sess.stop(time.Second)

	first := sess.drain(false)
	second := sess.drain(false)
	assert.Equal(t, len(first), len(second))
	assert.NotEmpty(t, first)
}

func TestSessionSelfTerminatesAfterMaxErrors(t *testing.T) {
	searcher := &countingSearcher{err: errors.New("backend down")}
	sess := newTestSession(searcher, time.Millisecond)
	sess.start()

	select {
	case <-sess.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate itself")
	}

	st := sess.status()
	assert.False(t, st.IsActive)
	assert.Equal(t, maxErrors, st.ErrorCount)
	assert.Equal(t, maxErrors, searcher.callCount(), "no checks after the limit")
	assert.Nil(t, st.LastCheckTime, "failed checks never advance the cursor")
}

func TestSessionErrorCountResetsOnSuccess(t *testing.T) {
	released := make(chan struct{})
	searcher := &countingSearcher{released: released, want: 3}
	flaky := &flakySearcher{inner: searcher, failFirst: 2}
	sess := newTestSession(flaky, time.Millisecond)
	sess.start()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checks")
	}
	sess.stop(time.Second)

	st := sess.status()
	assert.Equal(t, 0, st.ErrorCount)
	assert.True(t, st.LastCheckTime != nil)
}

// flakySearcher fails its first failFirst calls and then delegates.
type flakySearcher struct {
	mu        sync.Mutex
	inner     Searcher
	failFirst int
	calls     int
}

func (f *flakySearcher) Execute(ctx context.Context, query string, opts splunk.SearchOptions) ([]splunk.Record, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failFirst
	f.mu.Unlock()
	results, err := f.inner.Execute(ctx, query, opts)
	if fail {
		return nil, errors.New("transient failure")
	}
	return results, err
}

func TestSessionWindowAdvances(t *testing.T) {
	released := make(chan struct{})
	searcher := &countingSearcher{
		results:  []splunk.Record{{"_raw": "hit"}},
		released: released,
		want:     2,
	}
	sess := newTestSession(searcher, 10*time.Millisecond)
	sess.start()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checks")
	}
	sess.stop(time.Second)

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	if len(searcher.windows) < 2 {
		t.Fatalf("expected at least 2 windows, got %d", len(searcher.windows))
	}
	// First window looks back one interval, later windows resume from the
	// previous check's timestamp.
	assert.True(t, strings.HasPrefix(searcher.windows[0][0], "-"))
	if _, err := time.Parse(timestampLayout, searcher.windows[1][0]); err != nil {
		t.Errorf("second earliest %q is not a resume timestamp: %v", searcher.windows[1][0], err)
	}
}
