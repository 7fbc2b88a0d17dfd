package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/agentgraph/pkg/channel"
	"github.com/dd0wney/agentgraph/pkg/config"
	"github.com/dd0wney/agentgraph/pkg/dispatch"
	"github.com/dd0wney/agentgraph/pkg/logging"
	"github.com/dd0wney/agentgraph/pkg/metrics"
	"github.com/dd0wney/agentgraph/pkg/pubsub"
)

// Deps override the collaborators New would otherwise build from config
type Deps struct {
	Logger         logging.Logger
	Metrics        *metrics.Registry
	Transport      channel.Transport
	Dispatcher     Dispatcher
	ProgramOptions []tea.ProgramOption
}

// Session owns one client run: the local bus, the push-channel listener and
// the terminal program
type Session struct {
	bus      *pubsub.PubSub
	listener *channel.Listener
	program  *tea.Program
	cancel   context.CancelFunc
	logger   logging.Logger

	mu  sync.Mutex
	ran bool
}

// New builds a session from cfg. Nothing is started until Run.
func New(cfg *config.ClientConfig, deps Deps) (*Session, error) {
	logger := logging.OrNop(deps.Logger)
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	transport := deps.Transport
	if transport == nil {
		t, err := channel.NewTransport(cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("push channel: %w", err)
		}
		transport = t
	}

	bus := pubsub.NewPubSub()
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.NewController(cfg.ServerURL, bus,
			dispatch.WithLogger(logger), dispatch.WithMetrics(reg))
	}

	ctx, cancel := context.WithCancel(context.Background())
	opts := OptionsFromConfig(cfg)
	opts.Dispatcher = dispatcher
	opts.Context = ctx
	opts.Logger = logger
	opts.Metrics = reg

	s := &Session{bus: bus, cancel: cancel, logger: logger.With(logging.Component("session"))}

	popts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseAllMotion()}, deps.ProgramOptions...)
	s.program = tea.NewProgram(NewModel(opts), popts...)

	s.listener = channel.NewListener(transport, bus,
		func(d channel.Delivery) { s.program.Send(EventMsg{Delivery: d}) },
		channel.WithRetryPolicy(channel.RetryPolicyFrom(cfg.Channel.Retry)),
		channel.WithStatusHook(func(st channel.Status, err error) {
			s.program.Send(StatusMsg{Status: st, Err: err})
		}),
		channel.WithLogger(logger),
		channel.WithMetrics(reg))

	return s, nil
}

// Run opens the listener and runs the program until the user quits or ctx
// ends. The listener and bus are released before Run returns. A session runs
// once.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return errors.New("session already ran")
	}
	s.ran = true
	s.mu.Unlock()

	defer s.cancel()
	defer s.bus.Shutdown()

	if err := s.listener.Open(ctx); err != nil {
		return fmt.Errorf("open listener: %w", err)
	}
	defer s.listener.Close()

	stop := context.AfterFunc(ctx, s.program.Quit)
	defer stop()

	s.logger.Info("Session started")
	_, err := s.program.Run()
	s.logger.Info("Session ended")
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
