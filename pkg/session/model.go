package session

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/agentgraph/pkg/channel"
	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/dispatch"
	"github.com/dd0wney/agentgraph/pkg/events"
	"github.com/dd0wney/agentgraph/pkg/graph"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/render"
	"github.com/dd0wney/agentgraph/pkg/visualization"
)

const (
	defaultNoticeTTL      = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Dispatcher sends user actions to the research server
type Dispatcher interface {
	SubmitJob(ctx context.Context, job dispatch.JobRequest) (*dispatch.JobResponse, error)
	UploadFile(ctx context.Context, path string) (events.AgentEvent, error)
}

// Options configure a Model
type Options struct {
	Simulation     visualization.SimulationConfig
	NodeRadius     float64
	TickInterval   time.Duration
	WarmStart      bool
	DefaultLLM     dispatch.LLMType
	Dispatcher     Dispatcher
	Context        context.Context // parent of every dispatch request
	Logger         logging.Logger
	Metrics        *metrics.Registry
	NoticeTTL      time.Duration
	RequestTimeout time.Duration
}

// OptionsFromConfig maps the client configuration onto model options
func OptionsFromConfig(cfg *config.ClientConfig) Options {
	sim := visualization.DefaultSimulationConfig()
	sim.Width = cfg.Canvas.Width
	sim.Height = cfg.Canvas.Height
	sim.LinkDistance = cfg.Simulation.LinkDistance
	sim.ChargeStrength = cfg.Simulation.ChargeStrength
	sim.VelocityDecay = cfg.Simulation.VelocityDecay
	sim.DragAlphaTarget = cfg.Simulation.DragAlphaTarget
	if cfg.Simulation.AlphaMin > 0 {
		sim.AlphaMin = cfg.Simulation.AlphaMin
		sim.AlphaDecay = 1 - math.Pow(sim.AlphaMin, 1.0/300)
	}

	llm, err := dispatch.ParseLLMType(cfg.DefaultLLM)
	if err != nil {
		llm = dispatch.LLMOpenAI
	}

	return Options{
		Simulation:   sim,
		NodeRadius:   cfg.NodeRadius,
		TickInterval: cfg.Simulation.TickInterval,
		WarmStart:    cfg.Simulation.WarmStart,
		DefaultLLM:   llm,
	}
}

// Model is the session's bubbletea model. Update is the only code that
// touches the event log, the simulation and the scene.
type Model struct {
	opts       Options
	ctx        context.Context
	dispatcher Dispatcher
	logger     logging.Logger
	metrics    *metrics.Registry

	log         *events.Log
	sim         *visualization.Simulation
	scene       *render.Scene
	generation  int
	tickPending bool

	dragging bool
	dragID   int
	dragPos  visualization.Position
	dragView render.Viewport

	hover   int
	inspect int
	fit     bool

	form  form
	focus focus
	help  help.Model
	keys  keyMap

	status    channel.Status
	statusErr error

	notice    string
	noticeErr bool
	noticeSeq int

	width  int
	height int
}

// NewModel creates a model with an empty event log
func NewModel(opts Options) Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = defaultNoticeTTL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.DefaultLLM == "" {
		opts.DefaultLLM = dispatch.LLMOpenAI
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}

	sim := opts.Simulation
	if sim.Width == 0 || sim.Height == 0 {
		d := visualization.DefaultSimulationConfig()
		sim.Width, sim.Height = d.Width, d.Height
	}
	opts.Simulation = sim

	scene := render.NewScene(sim.Width, sim.Height)
	scene.Radius = opts.NodeRadius

	return Model{
		opts:       opts,
		ctx:        opts.Context,
		dispatcher: opts.Dispatcher,
		logger:     logging.OrNop(opts.Logger).With(logging.Component("session")),
		metrics:    opts.Metrics,
		log:        events.NewLog(),
		scene:      scene,
		hover:      -1,
		inspect:    -1,
		form:       newForm(opts.DefaultLLM),
		help:       help.New(),
		keys:       keys,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case EventMsg:
		cmd := m.appendEvent(msg.Delivery)
		return m, cmd

	case tickMsg:
		cmd := m.tick(msg)
		return m, cmd

	case StatusMsg:
		m.status = msg.Status
		m.statusErr = msg.Err
		if msg.Status == channel.StatusClosed && msg.Err != nil {
			cmd := m.setNotice("Push channel closed: "+msg.Err.Error(), true)
			return m, cmd
		}
		return m, nil

	case noticeMsg:
		cmd := m.setNotice(msg.text, msg.isErr)
		return m, cmd

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case submitDoneMsg:
		if msg.err != nil {
			m.logger.Warn("Job submission failed", logging.Error(msg.err))
			cmd := m.setNotice(describeError("Job", msg.err), true)
			return m, cmd
		}
		text := msg.resp.Message
		if msg.resp.JobID != "" {
			text += " (job " + msg.resp.JobID + ")"
		}
		cmd := m.setNotice(text, false)
		return m, cmd

	case uploadDoneMsg:
		if msg.err != nil {
			m.logger.Warn("Upload failed", logging.Path(msg.path), logging.Error(msg.err))
			cmd := m.setNotice(describeError("Upload", msg.err), true)
			return m, cmd
		}
		// The File Upload event itself reaches the log through the listener
		m.form.file.SetValue("")
		cmd := m.setNotice(msg.event.Message, false)
		return m, cmd

	case tea.MouseMsg:
		cmd := m.mouse(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.key(msg)
	}

	cmd := m.updateInputs(msg)
	return m, cmd
}

// appendEvent records e and restarts the layout on the rebuilt graph
func (m *Model) appendEvent(d channel.Delivery) tea.Cmd {
	idx := m.log.Append(d.Event)

	g := graph.Build(m.log.Events())
	if err := g.Validate(); err != nil {
		m.logger.Error("Graph invariant violated", logging.Generation(m.generation+1), logging.Error(err))
	}

	var seed map[int]visualization.Position
	if m.opts.WarmStart && m.sim != nil {
		seed = m.sim.Positions()
	}

	m.generation++
	m.sim = visualization.NewSimulation(g, m.opts.Simulation, seed)
	m.scene.Reset(g)
	if m.dragging {
		if err := m.sim.DragStart(m.dragID, m.dragPos); err != nil {
			m.dragging = false
		}
	}
	m.scene.Sync(m.sim.Nodes())
	m.tickPending = false
	m.metrics.RecordGeneration(len(g.Nodes))

	m.logger.Debug("Event appended",
		logging.EventIndex(idx),
		logging.Agent(d.Event.Agent),
		logging.Generation(m.generation),
		logging.String("source", d.Source.String()))

	return m.scheduleTick()
}

// scheduleTick starts the tick loop for the current generation unless one is
// already pending or the simulation is idle
func (m *Model) scheduleTick() tea.Cmd {
	if m.tickPending || m.sim == nil || !m.sim.Running() {
		return nil
	}
	m.tickPending = true
	return tickCmd(m.generation, m.opts.TickInterval)
}

func (m *Model) tick(msg tickMsg) tea.Cmd {
	if msg.gen != m.generation || m.sim == nil {
		m.metrics.StaleTicksTotal.Inc()
		return nil
	}
	m.tickPending = false

	running := m.sim.Tick()
	m.metrics.SimulationTicksTotal.Inc()
	m.scene.Sync(m.sim.Nodes())

	if !running {
		m.metrics.SimulationSettleTicks.Observe(float64(m.sim.Ticks()))
		m.logger.Debug("Simulation settled",
			logging.Generation(m.generation),
			logging.Int("ticks", m.sim.Ticks()))
		return nil
	}
	return m.scheduleTick()
}

func (m *Model) mouse(msg tea.MouseMsg) tea.Cmd {
	if m.sim == nil {
		return nil
	}
	col, row := msg.X-canvasLeft, msg.Y-canvasTop

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		vp := m.viewport()
		if !vp.Contains(col, row) {
			return nil
		}
		p := vp.ToWorld(col, row)
		id, ok := m.scene.NodeAt(p.X, p.Y)
		if !ok {
			return nil
		}
		if err := m.sim.DragStart(id, p); err != nil {
			m.logger.Warn("Drag failed", logging.NodeID(id), logging.Error(err))
			return nil
		}
		m.dragging = true
		m.dragID = id
		m.dragPos = p
		// The frame stays put while dragging, even in fit mode
		m.dragView = vp
		m.inspect = id
		m.metrics.DragsTotal.Inc()
		m.scene.Sync(m.sim.Nodes())
		return m.scheduleTick()

	case tea.MouseActionMotion:
		if m.dragging {
			p := m.dragView.ToWorld(col, row)
			if err := m.sim.DragMove(m.dragID, p); err != nil {
				m.dragging = false
				return nil
			}
			m.dragPos = p
			return m.scheduleTick()
		}
		m.hover = -1
		vp := m.viewport()
		if vp.Contains(col, row) {
			p := vp.ToWorld(col, row)
			if id, ok := m.scene.NodeAt(p.X, p.Y); ok {
				m.hover = id
			}
		}
		return nil

	case tea.MouseActionRelease:
		if !m.dragging {
			return nil
		}
		m.dragging = false
		if err := m.sim.DragEnd(m.dragID); err != nil {
			return nil
		}
		return m.scheduleTick()
	}
	return nil
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Submit):
		cmd := m.submit()
		return m, cmd
	case key.Matches(msg, m.keys.Upload):
		cmd := m.upload()
		return m, cmd
	case key.Matches(msg, m.keys.NextField):
		cmd := m.setFocus(m.focus.next())
		return m, cmd
	case key.Matches(msg, m.keys.PrevField):
		cmd := m.setFocus(m.focus.prev())
		return m, cmd
	case key.Matches(msg, m.keys.Dismiss):
		if m.notice != "" {
			m.notice = ""
			return m, nil
		}
		cmd := m.setFocus(focusGraph)
		return m, cmd
	}

	switch m.focus {
	case focusTopic:
		if key.Matches(msg, m.keys.Enter) {
			cmd := m.submit()
			return m, cmd
		}
		var cmd tea.Cmd
		m.form.topic, cmd = m.form.topic.Update(msg)
		return m, cmd

	case focusFile:
		if key.Matches(msg, m.keys.Enter) {
			cmd := m.upload()
			return m, cmd
		}
		var cmd tea.Cmd
		m.form.file, cmd = m.form.file.Update(msg)
		return m, cmd

	case focusAgents:
		switch {
		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Left):
			m.form.moveCursor(-1)
		case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Right):
			m.form.moveCursor(1)
		case key.Matches(msg, m.keys.Toggle), key.Matches(msg, m.keys.Enter):
			m.form.toggle()
		}

	case focusLLM:
		switch {
		case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Toggle), key.Matches(msg, m.keys.Enter):
			m.form.llm = m.form.llm.Next()
		case key.Matches(msg, m.keys.Left):
			m.form.llm = prevLLM(m.form.llm)
		}

	case focusGraph:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Fit):
			m.fit = !m.fit
		case key.Matches(msg, m.keys.NextNode):
			m.cycleInspect(1)
		case key.Matches(msg, m.keys.PrevNode):
			m.cycleInspect(-1)
		}
	}
	return m, nil
}

// updateInputs forwards component messages such as cursor blinks
func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var topicCmd, fileCmd tea.Cmd
	m.form.topic, topicCmd = m.form.topic.Update(msg)
	m.form.file, fileCmd = m.form.file.Update(msg)
	return tea.Batch(topicCmd, fileCmd)
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	return m.form.focus(f)
}

func (m *Model) submit() tea.Cmd {
	req := m.form.request()
	if req.Topic == "" {
		return m.setNotice("Enter a topic before running a job", true)
	}
	if m.dispatcher == nil {
		return m.setNotice("No research server configured", true)
	}
	m.logger.Info("Submitting job",
		logging.String("topic", req.Topic),
		logging.Count(len(req.Agents)),
		logging.String("llm_type", req.LLMType.String()))
	return submitCmd(m.ctx, m.dispatcher, req, m.opts.RequestTimeout)
}

func (m *Model) upload() tea.Cmd {
	path := m.form.filePath()
	if path == "" {
		return m.setNotice("Enter a file path before uploading", true)
	}
	if m.dispatcher == nil {
		return m.setNotice("No research server configured", true)
	}
	m.logger.Info("Uploading file", logging.Path(path))
	return uploadCmd(m.ctx, m.dispatcher, path, m.opts.RequestTimeout)
}

// setNotice shows text until it expires or is dismissed. Notices never touch
// the log or the layout.
func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	return expireCmd(m.noticeSeq, m.opts.NoticeTTL)
}

// cycleInspect steps the inspected node through the log
func (m *Model) cycleInspect(delta int) {
	n := m.log.Len()
	if n == 0 {
		m.inspect = -1
		return
	}
	if m.inspect < 0 || m.inspect >= n {
		if delta > 0 {
			m.inspect = 0
		} else {
			m.inspect = n - 1
		}
		return
	}
	m.inspect = (m.inspect + delta + n) % n
}

func prevLLM(t dispatch.LLMType) dispatch.LLMType {
	for i, v := range dispatch.LLMTypes {
		if v == t {
			return dispatch.LLMTypes[(i+len(dispatch.LLMTypes)-1)%len(dispatch.LLMTypes)]
		}
	}
	return dispatch.LLMOpenAI
}

// describeError turns a dispatch failure into notice text
func describeError(action string, err error) string {
	var httpErr *dispatch.HTTPError
	switch {
	case errors.Is(err, dispatch.ErrNoFile):
		return "No file selected"
	case errors.Is(err, os.ErrNotExist):
		return action + " failed: file not found"
	case errors.As(err, &httpErr):
		if httpErr.Message != "" {
			return action + " rejected: " + httpErr.Message
		}
		return action + " rejected: " + httpErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return action + " timed out"
	default:
		return action + " failed: " + err.Error()
	}
}
