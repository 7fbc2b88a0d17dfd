package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/pubsub"
)

const (
	actionSubmit = "submit"
	actionUpload = "upload"

	statusSuccess        = "success"
	statusHTTPError      = "http_error"
	statusTransportError = "transport_error"

	// maxErrorBody caps how much of a failed response is read for its message
	maxErrorBody = 64 << 10
)

// JobRequest starts a research job
type JobRequest struct {
	Topic   string   `json:"topic"`
	Agents  []string `json:"agents"`
	LLMType LLMType  `json:"llm_type"`
}

// JobResponse is the server's acknowledgement of a job
type JobResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

type uploadResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Controller sends user actions to the research server. It never touches
// the event log directly; an upload's confirmation reaches the log through
// the local events topic.
type Controller struct {
	baseURL string
	bus     *pubsub.PubSub
	client  *http.Client
	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures a Controller
type Option func(*Controller)

// WithHTTPClient replaces the default client (30s timeout)
func WithHTTPClient(c *http.Client) Option {
	return func(d *Controller) { d.client = c }
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(d *Controller) { d.logger = logging.OrNop(logger) }
}

// WithMetrics records request counts and latency
func WithMetrics(r *metrics.Registry) Option {
	return func(d *Controller) { d.metrics = r }
}

// NewController creates a controller for the server at baseURL.
// bus may be nil, in which case uploads are not forwarded to the log.
func NewController(baseURL string, bus *pubsub.PubSub, opts ...Option) *Controller {
	d := &Controller{
		baseURL: strings.TrimRight(baseURL, "/"),
		bus:     bus,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logging.Component("dispatch"))
	return d
}

// BaseURL returns the server address requests go to
func (d *Controller) BaseURL() string {
	return d.baseURL
}

// SubmitJob asks the server to run the selected agents on a topic
func (d *Controller) SubmitJob(ctx context.Context, job JobRequest) (*JobResponse, error) {
	if job.LLMType == "" {
		job.LLMType = LLMOpenAI
	}
	if job.Agents == nil {
		job.Agents = []string{}
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/research", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out JobResponse
	if err := d.do(req, actionSubmit, &out); err != nil {
		return nil, err
	}

	d.logger.Info("Research job submitted",
		logging.String("topic", job.Topic),
		logging.Count(len(job.Agents)),
		logging.String("llm_type", job.LLMType.String()),
		logging.JobID(out.JobID))
	return &out, nil
}

// UploadFile sends the file at path to the server. On success it publishes
// a File Upload event carrying the server's confirmation on the local events
// topic and returns that event.
func (d *Controller) UploadFile(ctx context.Context, path string) (events.AgentEvent, error) {
	if strings.TrimSpace(path) == "" {
		return events.AgentEvent{}, ErrNoFile
	}

	f, err := os.Open(path)
	if err != nil {
		return events.AgentEvent{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return events.AgentEvent{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return events.AgentEvent{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return events.AgentEvent{}, fmt.Errorf("failed to finish form: %w", err)
	}

	size := int64(buf.Len())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/upload", &buf)
	if err != nil {
		return events.AgentEvent{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := d.do(req, actionUpload, &out); err != nil {
		return events.AgentEvent{}, err
	}

	ev := events.AgentEvent{Agent: events.FileUploadLabel, Message: out.Message}
	if d.bus != nil {
		if err := d.bus.Publish(ctx, pubsub.TopicLocalEvents, ev); err != nil {
			return ev, fmt.Errorf("failed to publish upload event: %w", err)
		}
	}

	d.logger.Info("File uploaded", logging.Path(path), logging.Int64("bytes", size))
	return ev, nil
}

// do sends req and decodes a 2xx JSON body into out
func (d *Controller) do(req *http.Request, action string, out any) error {
	timer := logging.StartTimer(d.logger, action, logging.String("url", req.URL.String()))
	start := time.Now()

	resp, err := d.client.Do(req)
	if err != nil {
		d.record(action, statusTransportError, start)
		timer.EndError(err)
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.record(action, statusHTTPError, start)
		herr := &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
		timer.EndError(herr, logging.Status(resp.StatusCode))
		return herr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		d.record(action, statusTransportError, start)
		timer.EndError(err)
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}

	d.record(action, statusSuccess, start)
	timer.End(logging.Status(resp.StatusCode))
	return nil
}

func (d *Controller) record(action, status string, start time.Time) {
	if d.metrics != nil {
		d.metrics.RecordDispatch(action, status, time.Since(start))
	}
}

// errorMessage prefers the server's {"error": ...} field and falls back to
// the trimmed body text
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
