// Package splunk provides the log-search backend client and the search job
// engine built on top of it.
package splunk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/logsleuth/logsleuth/internal/config"
)

// Record is one parsed search result event.
type Record map[string]any

// JobState is the lifecycle state of a search job.
type JobState string

const (
	JobSubmitted JobState = "SUBMITTED"
	JobRunning   JobState = "RUNNING"
	JobDone      JobState = "DONE"
	JobFailed    JobState = "FAILED"
)

// JobOptions are the parameters for submitting a search job.
type JobOptions struct {
	Earliest   string
	Latest     string
	MaxResults int
	Timeout    time.Duration
}

// IndexInfo describes one backend index.
type IndexInfo struct {
	Name            string `json:"name"`
	EarliestTime    string `json:"earliest_time,omitempty"`
	LatestTime      string `json:"latest_time,omitempty"`
	TotalEventCount int64  `json:"total_event_count"`
	CurrentDBSizeMB int64  `json:"current_db_size_mb"`
	MaxDataSize     string `json:"max_data_size"`
	Disabled        bool   `json:"disabled"`
}

// Backend is the log-search backend boundary: job submission, polling,
// cancellation, result streaming, and index metadata.
type Backend interface {
	CreateJob(ctx context.Context, query string, opts JobOptions) (sid string, err error)
	JobStatus(ctx context.Context, sid string) (JobState, error)
	CancelJob(ctx context.Context, sid string) error
	JobResults(ctx context.Context, sid, mode string, count int) (io.ReadCloser, error)
	Indexes(ctx context.Context, filter string) ([]IndexInfo, error)
	ServerInfo(ctx context.Context) (map[string]any, error)
}

// RESTClient talks to the splunkd management API.
type RESTClient struct {
	cfg  config.SplunkConfig
	base string
	http *http.Client
}

// NewRESTClient creates a backend client from connection config.
func NewRESTClient(cfg config.SplunkConfig) *RESTClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &RESTClient{
		cfg:  cfg,
		base: fmt.Sprintf("%s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port),
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

func (c *RESTClient) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
}

// do issues a request and maps transport and HTTP-level failures onto the
// error taxonomy. The caller owns the body on success.
func (c *RESTClient) do(req *http.Request) (*http.Response, error) {
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &AuthError{Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// CreateJob submits a search with exec_mode=normal and returns the job sid.
func (c *RESTClient) CreateJob(ctx context.Context, query string, opts JobOptions) (string, error) {
	form := url.Values{}
	form.Set("search", query)
	form.Set("exec_mode", "normal")
	form.Set("output_mode", "json")
	if opts.Earliest != "" {
		form.Set("earliest_time", opts.Earliest)
	}
	if opts.Latest != "" {
		form.Set("latest_time", opts.Latest)
	}
	if opts.MaxResults > 0 {
		form.Set("max_count", strconv.Itoa(opts.MaxResults))
	}
	if opts.Timeout > 0 {
		form.Set("timeout", strconv.Itoa(int(opts.Timeout.Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/services/search/jobs", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		var connErr *ConnectionError
		var authErr *AuthError
		if errors.As(err, &connErr) || errors.As(err, &authErr) {
			return "", err
		}
		return "", &SubmitError{Query: query, Err: err}
	}
	defer resp.Body.Close()

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &SubmitError{Query: query, Err: fmt.Errorf("decoding job response: %w", err)}
	}
	if created.SID == "" {
		return "", &SubmitError{Query: query, Err: fmt.Errorf("backend returned no sid")}
	}
	return created.SID, nil
}

type jobEntryResponse struct {
	Entry []struct {
		Content struct {
			IsDone        bool   `json:"isDone"`
			IsFailed      bool   `json:"isFailed"`
			DispatchState string `json:"dispatchState"`
		} `json:"content"`
	} `json:"entry"`
}

// JobStatus refreshes and returns the job's lifecycle state.
func (c *RESTClient) JobStatus(ctx context.Context, sid string) (JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/services/search/jobs/"+url.PathEscape(sid)+"?output_mode=json", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var status jobEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("decoding job status: %w", err)
	}
	if len(status.Entry) == 0 {
		return "", fmt.Errorf("job %s not found", sid)
	}
	content := status.Entry[0].Content
	switch {
	case content.IsFailed || content.DispatchState == "FAILED":
		return JobFailed, nil
	case content.IsDone:
		return JobDone, nil
	case content.DispatchState == "QUEUED" || content.DispatchState == "PARSING":
		return JobSubmitted, nil
	default:
		return JobRunning, nil
	}
}

// CancelJob asks the backend to cancel the job and release its resources.
func (c *RESTClient) CancelJob(ctx context.Context, sid string) error {
	form := url.Values{"action": {"cancel"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/services/search/jobs/"+url.PathEscape(sid)+"/control", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// JobResults opens the one-shot result stream for a finished job.
func (c *RESTClient) JobResults(ctx context.Context, sid, mode string, count int) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("output_mode", mode)
	if count > 0 {
		q.Set("count", strconv.Itoa(count))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/services/search/jobs/"+url.PathEscape(sid)+"/results?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

type indexEntryResponse struct {
	Entry []struct {
		Name    string `json:"name"`
		Content struct {
			TotalEventCount int64  `json:"totalEventCount"`
			CurrentDBSizeMB int64  `json:"currentDBSizeMB"`
			MaxDataSize     string `json:"maxDataSize"`
			Disabled        bool   `json:"disabled"`
			MinTime         string `json:"minTime"`
			MaxTime         string `json:"maxTime"`
		} `json:"content"`
	} `json:"entry"`
}

// Indexes returns index metadata, optionally filtered by a case-insensitive
// name substring.
func (c *RESTClient) Indexes(ctx context.Context, filter string) ([]IndexInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/services/data/indexes?output_mode=json&count=0", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listing indexEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding index listing: %w", err)
	}

	indexes := make([]IndexInfo, 0, len(listing.Entry))
	for _, e := range listing.Entry {
		if filter != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(filter)) {
			continue
		}
		indexes = append(indexes, IndexInfo{
			Name:            e.Name,
			EarliestTime:    e.Content.MinTime,
			LatestTime:      e.Content.MaxTime,
			TotalEventCount: e.Content.TotalEventCount,
			CurrentDBSizeMB: e.Content.CurrentDBSizeMB,
			MaxDataSize:     e.Content.MaxDataSize,
			Disabled:        e.Content.Disabled,
		})
	}
	log.Printf("Retrieved %d indexes from backend", len(indexes))
	return indexes, nil
}

// ServerInfo fetches backend version info; it doubles as the connection test.
func (c *RESTClient) ServerInfo(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/services/server/info?output_mode=json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info struct {
		Entry []struct {
			Content map[string]any `json:"content"`
		} `json:"entry"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding server info: %w", err)
	}
	if len(info.Entry) == 0 {
		return nil, fmt.Errorf("server info response had no entries")
	}
	return info.Entry[0].Content, nil
}
