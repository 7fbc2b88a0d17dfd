package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
)

// ErrRunnerClosed is returned by Submit after Close
var ErrRunnerClosed = errors.New("runner closed")

// Job statuses recorded in ResearchJobsTotal
const (
	JobCompleted = "completed"
	JobCancelled = "cancelled"
)

// Job is one research request: the selected agents run in their canonical
// order on the same topic
type Job struct {
	ID      string
	Topic   string
	Agents  []string
	LLMType string
}

// Agents holds one instance of every research worker
type Agents struct {
	Research       Agent
	Policy         Agent
	Technical      Agent
	Communication  Agent
	Web            Agent
	Recommendation Agent
	LLM            Agent
	Data           Agent
	Sentiment      Agent
}

// topicAgents lists the agents a job may select, in run order
func (a Agents) topicAgents() []Agent {
	return []Agent{a.Research, a.Policy, a.Technical, a.Communication, a.Web, a.Recommendation, a.LLM}
}

// Runner executes jobs in background goroutines. Agents within a job run one
// after another; at most maxJobs jobs run at once.
type Runner struct {
	em        Emitter
	agents    Agents
	sem       *semaphore.Weighted
	maxJobs   int64
	stepDelay time.Duration
	logger    logging.Logger
	metrics   *metrics.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active int64
	closed bool
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithStepDelay pauses between agent steps so clients see progress arrive
func WithStepDelay(d time.Duration) RunnerOption {
	return func(r *Runner) { r.stepDelay = d }
}

// WithRunnerLogger sets the logger
func WithRunnerLogger(logger logging.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.OrNop(logger) }
}

// WithRunnerMetrics records job and agent outcomes
func WithRunnerMetrics(m *metrics.Registry) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner allowing maxJobs concurrent jobs
func NewRunner(em Emitter, agents Agents, maxJobs int64, opts ...RunnerOption) *Runner {
	if maxJobs < 1 {
		maxJobs = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		em:      em,
		agents:  agents,
		sem:     semaphore.NewWeighted(maxJobs),
		maxJobs: maxJobs,
		logger:  logging.NopLogger{},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.Component("runner"))
	return r
}

// Submit queues job and returns its id without waiting for it to run
func (r *Runner) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	selected := make(map[string]bool, len(job.Agents))
	for _, name := range job.Agents {
		selected[name] = true
	}

	var steps []Agent
	for _, a := range r.agents.topicAgents() {
		if a != nil && selected[a.Name()] {
			steps = append(steps, a)
			delete(selected, a.Name())
		}
	}
	for name := range selected {
		r.logger.Warn("Ignoring unknown agent", logging.JobID(job.ID), logging.Agent(name))
	}

	task := Task{Topic: job.Topic, LLMType: job.LLMType}
	return job.ID, r.start(job.ID, func(ctx context.Context) error {
		for i, a := range steps {
			if i > 0 {
				if err := r.pause(ctx); err != nil {
					return err
				}
			}
			if _, err := r.runAgent(ctx, job.ID, a, task); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return nil
	})
}

// SubmitUpload announces an upload, then runs Data Processing followed by
// Sentiment Analysis over its result
func (r *Runner) SubmitUpload(file File) (string, error) {
	id := uuid.NewString()
	return id, r.start(id, func(ctx context.Context) error {
		msg := fmt.Sprintf("File %s uploaded successfully", file.Name)
		if err := r.em.Emit(ctx, events.FileUploadLabel, msg); err != nil {
			return err
		}

		if r.agents.Data == nil {
			return nil
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
		processed, err := r.runAgent(ctx, id, r.agents.Data, Task{File: &file})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		if r.agents.Sentiment == nil || err != nil {
			return nil
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
		_, err = r.runAgent(ctx, id, r.agents.Sentiment, Task{Text: processed})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	})
}

func (r *Runner) start(id string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.finish(id, JobCancelled, 0)
			return
		}
		defer r.sem.Release(1)

		r.setActive(1)
		defer r.setActive(-1)

		start := time.Now()
		r.logger.Info("Job started", logging.JobID(id))
		status := JobCompleted
		if err := fn(r.ctx); err != nil {
			status = JobCancelled
			r.logger.Warn("Job stopped", logging.JobID(id), logging.Error(err))
		}
		r.finish(id, status, time.Since(start))
	}()
	return nil
}

func (r *Runner) runAgent(ctx context.Context, jobID string, a Agent, task Task) (string, error) {
	start := time.Now()
	result, err := a.Act(ctx, task)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		r.logger.Warn("Agent step failed", logging.JobID(jobID), logging.Agent(a.Name()), logging.Error(err))
	} else {
		r.logger.Debug("Agent step done", logging.JobID(jobID), logging.Agent(a.Name()), logging.Latency(elapsed))
	}
	if r.metrics != nil {
		r.metrics.RecordAgentRun(a.Name(), status, elapsed)
	}
	return result, err
}

func (r *Runner) pause(ctx context.Context) error {
	if r.stepDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.stepDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) setActive(delta int64) {
	r.mu.Lock()
	r.active += delta
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ResearchJobsActive.Add(float64(delta))
	}
}

func (r *Runner) finish(id, status string, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.ResearchJobsTotal.WithLabelValues(status).Inc()
	}
	r.logger.Info("Job finished", logging.JobID(id), logging.String("result", status), logging.Latency(elapsed))
}

// Active is the number of jobs currently holding a slot
func (r *Runner) Active() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// MaxJobs is the concurrency limit
func (r *Runner) MaxJobs() int64 {
	return r.maxJobs
}

// Wait blocks until every submitted job has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running jobs and waits for them, or for ctx to end
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
