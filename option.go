package deepresearch

import (
	"net/http"

	"github.com/viant/deepresearch/service/dao/task"
	"github.com/viant/deepresearch/service/event"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/llm"
	"github.com/viant/deepresearch/service/notifier"
	"github.com/viant/deepresearch/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises a Service
type Option func(s *Service)

// WithConfig sets the configuration; DefaultConfig is used otherwise.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithTaskDAO replaces the task store selected by config.
func WithTaskDAO(dao task.Service) Option {
	return func(s *Service) {
		s.taskDAO = dao
	}
}

// WithEventService replaces the event service backing dispatch and outbox queues.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithGenerator sets the language model used for questions and report prose.
func WithGenerator(generator llm.Generator) Option {
	return func(s *Service) {
		s.generator = generator
	}
}

// WithWebSearchProvider replaces the web search provider
func WithWebSearchProvider(provider investigator.WebSearchProvider) Option {
	return func(s *Service) {
		s.web = provider
	}
}

// WithAcademicPaperProvider replaces the academic paper provider
func WithAcademicPaperProvider(provider investigator.AcademicPaperProvider) Option {
	return func(s *Service) {
		s.academic = provider
	}
}

// WithCodeRepoProvider replaces the code repository provider
func WithCodeRepoProvider(provider investigator.CodeRepoProvider) Option {
	return func(s *Service) {
		s.code = provider
	}
}

// WithInvestigatorOptions are passed to every investigator, e.g. a faster backoff in tests.
func WithInvestigatorOptions(opts ...investigator.Option) Option {
	return func(s *Service) {
		s.investigatorOptions = append(s.investigatorOptions, opts...)
	}
}

// WithHTTPClient sets the client used by the built-in providers.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// WithNotifier sets the channels receiving task notifications. Channels
// implementing notifier.ChannelPoster also receive channel posts.
func WithNotifier(channels ...notifier.Channel) Option {
	return func(s *Service) {
		s.channel = notifier.Fanout(channels...)
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for example
// OTLP, Jaeger or Zipkin. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
