package research

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.Counter.GetValue()
}

func testAgents(em Emitter) Agents {
	return Agents{
		Research:       NewResearchAgent(em),
		Policy:         NewPolicyAgent(em),
		Technical:      NewTechnicalAgent(em),
		Communication:  NewCommunicationAgent(em),
		Recommendation: NewRecommendationAgent(em),
		Data:           NewDataAgent(em),
		Sentiment:      NewSentimentAgent(em),
	}
}

// gateAgent blocks in Act until released or cancelled
type gateAgent struct {
	started atomic.Int32
	release chan struct{}
}

func newGateAgent() *gateAgent {
	return &gateAgent{release: make(chan struct{})}
}

func (a *gateAgent) Name() string { return "Technologist" }

func (a *gateAgent) Act(ctx context.Context, task Task) (string, error) {
	a.started.Add(1)
	select {
	case <-a.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestRunnerRunsSelectedAgentsInOrder(t *testing.T) {
	em := &recordingEmitter{}
	reg := metrics.NewRegistry()
	r := NewRunner(em, testAgents(em), 2, WithRunnerMetrics(reg))
	defer r.Close(context.Background())

	id, err := r.Submit(Job{
		Topic:  "wind",
		Agents: []string{"Communicator", "Bogus", "Research Specialist"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	r.Wait()

	assert.Equal(t, []events.AgentEvent{
		ev("Research Specialist", "Researching topic: wind"),
		ev("Research Specialist", "Research notes ready for: wind"),
		ev("Communicator", "Preparing communication materials for: wind"),
		ev("Communicator", "Communication materials drafted for: wind"),
	}, em.recorded())

	assert.Equal(t, 1.0, counterValue(t, reg.ResearchJobsTotal.WithLabelValues(JobCompleted)))
	assert.Equal(t, 1.0, counterValue(t, reg.AgentRunsTotal.WithLabelValues("Communicator", "success")))
}

func TestRunnerKeepsJobID(t *testing.T) {
	em := &recordingEmitter{}
	r := NewRunner(em, testAgents(em), 1)
	defer r.Close(context.Background())

	id, err := r.Submit(Job{ID: "job-1", Topic: "x"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	r.Wait()
	assert.Empty(t, em.recorded())
}

func TestRunnerUpload(t *testing.T) {
	em := &recordingEmitter{}
	r := NewRunner(em, testAgents(em), 1)
	defer r.Close(context.Background())

	_, err := r.SubmitUpload(File{Name: "notes.txt", Data: []byte("a great success")})
	require.NoError(t, err)
	r.Wait()

	assert.Equal(t, []events.AgentEvent{
		ev("File Upload", "File notes.txt uploaded successfully"),
		ev("Data Processing", "Processing file: notes.txt"),
		ev("Data Processing", "Extracted text: a great success"),
		ev("Sentiment Analysis", "Analyzing sentiment for the provided text."),
		ev("Sentiment Analysis", "Sentiment analysis result: Positive"),
	}, em.recorded())
}

func TestRunnerUploadSkipsSentimentOnError(t *testing.T) {
	em := &recordingEmitter{}
	r := NewRunner(em, testAgents(em), 1)
	defer r.Close(context.Background())

	_, err := r.SubmitUpload(File{Name: "photo.png", Data: []byte{1}})
	require.NoError(t, err)
	r.Wait()

	got := em.recorded()
	require.Len(t, got, 3)
	assert.Equal(t, "Data Processing", got[2].Agent)
	assert.Equal(t, "Error processing file photo.png: unsupported file type: photo.png", got[2].Message)
}

func TestRunnerLimitsConcurrentJobs(t *testing.T) {
	em := &recordingEmitter{}
	gate := newGateAgent()
	r := NewRunner(em, Agents{Technical: gate}, 1)
	defer r.Close(context.Background())

	for range 2 {
		_, err := r.Submit(Job{Topic: "x", Agents: []string{"Technologist"}})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return r.Active() == 1 }, time.Second, 5*time.Millisecond)
	// The second job waits for the slot
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), gate.started.Load())
	assert.Equal(t, int64(1), r.MaxJobs())

	close(gate.release)
	r.Wait()
	assert.Equal(t, int32(2), gate.started.Load())
	assert.Equal(t, int64(0), r.Active())
}

func TestRunnerCloseCancelsJobs(t *testing.T) {
	em := &recordingEmitter{}
	gate := newGateAgent()
	reg := metrics.NewRegistry()
	r := NewRunner(em, Agents{Technical: gate}, 1, WithRunnerMetrics(reg))

	_, err := r.Submit(Job{Topic: "x", Agents: []string{"Technologist"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gate.started.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))

	assert.Equal(t, 1.0, counterValue(t, reg.ResearchJobsTotal.WithLabelValues(JobCancelled)))

	_, err = r.Submit(Job{Topic: "late"})
	assert.ErrorIs(t, err, ErrRunnerClosed)
	_, err = r.SubmitUpload(File{Name: "a.txt"})
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestRunnerStepDelay(t *testing.T) {
	em := &recordingEmitter{}
	r := NewRunner(em, testAgents(em), 1, WithStepDelay(30*time.Millisecond))
	defer r.Close(context.Background())

	start := time.Now()
	_, err := r.Submit(Job{Topic: "x", Agents: []string{"Research Specialist", "Policy Analyst", "Technologist"}})
	require.NoError(t, err)
	r.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Len(t, em.recorded(), 6)
}
