package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/health"
	"github.com/dd0wney/agentgraph/pkg/llm"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
)

const (
	// maxJSONBody bounds a /research request body
	maxJSONBody = 1 << 20
	// multipartMemory is held in memory before ParseMultipartForm spills to disk
	multipartMemory = 8 << 20

	activatedMessage = "Agents have been activated for the task."
)

// ResearchRequest is the /research body
type ResearchRequest struct {
	Topic   string   `json:"topic" validate:"required,max=500"`
	Agents  []string `json:"agents" validate:"max=32,dive,required"`
	LLMType string   `json:"llm_type" validate:"omitempty,oneof=openai claude ollama"`
}

// ResearchResponse acknowledges a job
type ResearchResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// MessageResponse is the /upload success body
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is every error body
type ErrorResponse struct {
	Error string `json:"error"`
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}()

// Server serves the research HTTP API and the push channel
type Server struct {
	cfg       config.ServerConfig
	hub       *Hub
	runner    *Runner
	store     UploadStore
	health    *health.HealthChecker
	logger    logging.Logger
	metrics   *metrics.Registry
}

// Deps are the collaborators a Server needs
type Deps struct {
	Hub     *Hub
	Runner  *Runner
	Store   UploadStore
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// NewServer assembles a server from already built parts
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	s := &Server{
		cfg:       cfg,
		hub:       deps.Hub,
		runner:    deps.Runner,
		store:     deps.Store,
		logger:    logging.OrNop(deps.Logger).With(logging.Component("research")),
		metrics:   reg,
	}
	s.health = s.newHealthChecker()
	return s
}

// Build wires the hub, agents, runner and upload store from cfg. The NNG
// publisher is bound when cfg.NNGAddr is set.
func Build(ctx context.Context, cfg config.ServerConfig, logger logging.Logger, reg *metrics.Registry) (*Server, error) {
	logger = logging.OrNop(logger)
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}

	allowed := originAllowed(cfg.CORSOrigins)
	hub := NewHub(WithHubLogger(logger), WithHubMetrics(reg), WithCheckOrigin(func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed(origin)
	}))
	if cfg.NNGAddr != "" {
		if err := hub.ListenNNG(cfg.NNGAddr); err != nil {
			hub.Close()
			return nil, err
		}
	}

	store, err := NewUploadStore(ctx, cfg)
	if err != nil {
		hub.Close()
		return nil, err
	}

	provider := func(kind string) (llm.Provider, error) {
		return llm.NewProvider(kind, cfg.LLM)
	}
	agents := Agents{
		Research:       NewResearchAgent(hub),
		Policy:         NewPolicyAgent(hub),
		Technical:      NewTechnicalAgent(hub),
		Communication:  NewCommunicationAgent(hub),
		Web:            NewWebAgent(hub, cfg.WikipediaURL, nil),
		Recommendation: NewRecommendationAgent(hub),
		LLM:            NewLLMAgent(hub, provider),
		Data:           NewDataAgent(hub),
		Sentiment:      NewSentimentAgent(hub),
	}
	runner := NewRunner(hub, agents, cfg.MaxConcurrentJobs,
		WithStepDelay(cfg.StepDelay), WithRunnerLogger(logger), WithRunnerMetrics(reg))

	return NewServer(cfg, Deps{Hub: hub, Runner: runner, Store: store, Logger: logger, Metrics: reg}), nil
}

// Hub returns the push-channel hub
func (s *Server) Hub() *Hub { return s.hub }

// Runner returns the job runner
func (s *Server) Runner() *Runner { return s.runner }

// Handler returns the routed, middleware-wrapped API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /research", s.handleResearch)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)
	mux.HandleFunc("GET /health", s.health.HTTPHandler())
	mux.HandleFunc("GET /ready", s.health.ReadinessHandler())
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = s.metricsMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.panicRecoveryMiddleware(h)
	return h
}

// Close stops the runner, then the hub
func (s *Server) Close(ctx context.Context) error {
	err := s.runner.Close(ctx)
	if herr := s.hub.Close(); err == nil {
		err = herr
	}
	return err
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.LLMType == "" {
		req.LLMType = llm.KindOpenAI
	}

	id, err := s.runner.Submit(Job{Topic: req.Topic, Agents: req.Agents, LLMType: req.LLMType})
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}

	s.logger.Info("Research job accepted", logging.JobID(id), logging.String("topic", req.Topic),
		logging.Count(len(req.Agents)), logging.String("llm_type", req.LLMType))
	s.respondJSON(w, http.StatusOK, ResearchResponse{Message: activatedMessage, JobID: id})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		// A part named file with an empty filename is parsed as a plain value
		if _, ok := r.MultipartForm.Value["file"]; ok {
			s.respondError(w, http.StatusBadRequest, "No selected file")
			return
		}
		s.respondError(w, http.StatusBadRequest, "No file part")
		return
	}

	hdr := headers[0]
	name := SanitizeFilename(hdr.Filename)
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "No selected file")
		return
	}

	f, err := hdr.Open()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	backend := s.store.Backend()
	location, err := s.store.Put(r.Context(), NewUploadKey(name), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.metrics.RecordUpload(backend, "error", int64(len(data)))
		s.logger.Error("Failed to store upload", logging.String("file", name), logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	s.metrics.RecordUpload(backend, "success", int64(len(data)))
	s.logger.Info("Upload stored", logging.String("file", name), logging.Path(location),
		logging.Int64("bytes", int64(len(data))))

	if _, err := s.runner.SubmitUpload(File{Name: name, Data: data}); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}

	s.respondJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("File %s uploaded successfully", name)})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to encode response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// validationMessage turns validator errors into one client-facing line
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds the limit of %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
