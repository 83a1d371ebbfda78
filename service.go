package deepresearch

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/policy"
	"github.com/viant/deepresearch/service/aggregator"
	"github.com/viant/deepresearch/service/dao/task"
	tfs "github.com/viant/deepresearch/service/dao/task/fs"
	tmemory "github.com/viant/deepresearch/service/dao/task/memory"
	"github.com/viant/deepresearch/service/dao/task/sqlite"
	"github.com/viant/deepresearch/service/document"
	"github.com/viant/deepresearch/service/event"
	"github.com/viant/deepresearch/service/intake"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/investigator/provider/duckduckgo"
	"github.com/viant/deepresearch/service/investigator/provider/github"
	"github.com/viant/deepresearch/service/investigator/provider/semanticscholar"
	"github.com/viant/deepresearch/service/kanban"
	"github.com/viant/deepresearch/service/llm"
	"github.com/viant/deepresearch/service/messaging"
	mfs "github.com/viant/deepresearch/service/messaging/fs"
	"github.com/viant/deepresearch/service/notifier"
	"github.com/viant/deepresearch/service/processor"
	"github.com/viant/deepresearch/service/scheduler"
	"github.com/viant/deepresearch/service/synthesizer"
	"go.uber.org/zap"
)

const dispatchQueue = "dispatch"

// Service assembles the research pipeline from configuration.
type Service struct {
	runtime             *Runtime
	config              *Config
	taskDAO             task.Service
	eventService        *event.Service
	generator           llm.Generator
	web                 investigator.WebSearchProvider
	academic            investigator.AcademicPaperProvider
	code                investigator.CodeRepoProvider
	investigatorOptions []investigator.Option
	httpClient          *http.Client
	channel             notifier.Channel
}

// New creates a service; call Runtime().Start to begin processing.
func New(options ...Option) (*Service, error) {
	s := &Service{runtime: &Runtime{}}
	if err := s.init(options); err != nil {
		s.runtime.close()
		return nil, err
	}
	return s, nil
}

// Runtime returns the runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	ctx := context.Background()
	cfg := s.config
	rt := s.runtime
	rt.logger = logging.Named("deepresearch")
	rt.sweepInterval = cfg.intakeConfig().Window / 6

	rt.kanban = kanban.New(s.taskDAO,
		kanban.WithMaxRetries(cfg.MaxRetries),
		kanban.WithListener(func(ctx context.Context, from model.Stage, t *model.Task) {
			rt.logger.Debug("task moved", zap.String("task", t.ID), zap.String("from", string(from)), zap.String("to", string(t.Stage)))
		}))
	if err := rt.kanban.Load(ctx); err != nil {
		return err
	}

	dispatch, err := event.QueueOf[scheduler.Dispatch](s.eventService, dispatchQueue)
	if err != nil {
		return fmt.Errorf("failed to create dispatch queue: %w", err)
	}

	// deliveries go through the outbox so a crash after completion does not
	// lose the notification when queues are durable
	outbox, err := notifier.NewOutbox(s.eventService)
	if err != nil {
		return fmt.Errorf("failed to create outbox: %w", err)
	}
	poster, _ := s.channel.(notifier.ChannelPoster)
	if rt.relay, err = notifier.NewRelay(s.eventService, s.channel, poster); err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	var synthOptions = []synthesizer.Option{synthesizer.WithTimeout(cfg.synthesisTimeout())}
	if cfg.ReportTemplate != "" {
		tmpl, err := synthesizer.ParseTemplate(cfg.ReportTemplate)
		if err != nil {
			return err
		}
		synthOptions = append(synthOptions, synthesizer.WithTemplate(tmpl))
	}
	synth := synthesizer.New(s.generator, synthOptions...)
	rt.documents = document.New(cfg.Reports.BaseURL, synth.Render)

	var poolOptions []investigator.PoolOption
	if cfg.Policy != nil {
		poolOptions = append(poolOptions, investigator.WithPolicy(policy.FromConfig(cfg.Policy)))
	}
	pool := investigator.NewPool(cfg.poolConfig(), []investigator.Investigator{
		investigator.NewWeb(s.web, s.investigatorOptions...),
		investigator.NewAcademic(s.academic, s.investigatorOptions...),
		investigator.NewCode(s.code, s.investigatorOptions...),
	}, poolOptions...)

	rt.processor, err = processor.New(
		processor.WithKanban(rt.kanban),
		processor.WithDispatchQueue(dispatch),
		processor.WithInvestigators(pool),
		processor.WithAggregator(aggregator.New(cfg.SourceBudget)),
		processor.WithSynthesizer(synth),
		processor.WithDocumentStore(rt.documents, rt.documents.Location),
		processor.WithNotifier(outbox, cfg.NotificationChannelID),
		processor.WithConfig(cfg.processorConfig()),
	)
	if err != nil {
		return err
	}
	rt.scheduler = scheduler.New(rt.kanban, dispatch, cfg.schedulerConfig(), scheduler.WithNotifier(outbox))
	rt.intake = intake.New(rt.kanban, intake.WithGenerator(s.generator), intake.WithConfig(cfg.intakeConfig()))
	return nil
}

// ensureBaseSetup fills every dependency not supplied by an option.
func (s *Service) ensureBaseSetup() error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	cfg := s.config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Tracing.Enabled {
		WithTracing("deepresearch", Version, cfg.Tracing.Output)(s)
	}
	if s.taskDAO == nil {
		dao, closer, err := newTaskDAO(cfg.Store)
		if err != nil {
			return err
		}
		s.taskDAO = dao
		if closer != nil {
			s.runtime.closers = append(s.runtime.closers, closer)
		}
	}
	if s.eventService == nil {
		events, err := newEventService(cfg.Queue)
		if err != nil {
			return err
		}
		s.eventService = events
	}
	if s.generator == nil {
		extractive := llm.Extractive{}
		s.generator = extractive
		if cfg.LLM.APIKey != "" {
			gemini, err := llm.NewGemini(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model)
			if err != nil {
				return err
			}
			s.generator = llm.WithFallback(gemini, extractive)
		}
	}
	if s.web == nil {
		s.web = duckduckgo.New(s.httpClient, cfg.Endpoints.Web)
	}
	if s.academic == nil {
		s.academic = semanticscholar.New(s.httpClient, cfg.Endpoints.Academic, cfg.AcademicAPIKey)
	}
	if s.code == nil {
		s.code = github.New(context.Background(), s.httpClient, cfg.Endpoints.Code, cfg.CodeRepoToken)
	}
	if s.channel == nil {
		s.channel = notifier.NewLog()
	}
	return nil
}

func newTaskDAO(cfg StoreConfig) (task.Service, func() error, error) {
	switch cfg.Kind {
	case StoreFs:
		dao, err := tfs.New(cfg.Path)
		return dao, nil, err
	case StoreSqlite:
		dao, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return dao, dao.Close, nil
	case StoreMemory, "":
		return tmemory.New(), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported store kind: %v", cfg.Kind)
}

func newEventService(cfg QueueConfig) (*event.Service, error) {
	vendor := messaging.Vendor(cfg.Kind)
	if vendor == "" {
		vendor = messaging.VendorMemory
	}
	if vendor != messaging.VendorFs {
		return event.New(vendor)
	}
	base := cfg.Path
	if url.Scheme(base, "") == "" {
		base = url.Normalize(path.Clean(base), file.Scheme)
	}
	return event.New(vendor, event.WithNewFsQueueConfig(func(name string) mfs.Config {
		config := mfs.DefaultConfig()
		config.BasePath = url.Join(base, name)
		return config
	}))
}
