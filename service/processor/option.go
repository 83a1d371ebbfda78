package processor

import (
	"github.com/viant/deepresearch/service/document"
	"github.com/viant/deepresearch/service/kanban"
	"github.com/viant/deepresearch/service/messaging"
	"github.com/viant/deepresearch/service/notifier"
	"github.com/viant/deepresearch/service/scheduler"
)

// Option customises the processor.
type Option func(*Service)

// WithKanban sets the task queue
func WithKanban(queue *kanban.Service) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithDispatchQueue sets the queue the worker consumes
func WithDispatchQueue(dispatch messaging.Queue[scheduler.Dispatch]) Option {
	return func(s *Service) {
		s.dispatch = dispatch
	}
}

// WithInvestigators sets the investigator pool
func WithInvestigators(pool Investigators) Option {
	return func(s *Service) {
		s.pool = pool
	}
}

func WithAggregator(aggregator Aggregator) Option {
	return func(s *Service) {
		s.aggregator = aggregator
	}
}

func WithSynthesizer(synthesizer Synthesizer) Option {
	return func(s *Service) {
		s.synthesizer = synthesizer
	}
}

// WithDocumentStore sets where finished reports go; locate maps a document id
// to the location quoted in the success notification.
func WithDocumentStore(store document.Store, locate func(documentID string) string) Option {
	return func(s *Service) {
		s.documents = store
		if locate != nil {
			s.locate = locate
		}
	}
}

// WithNotifier sets the terminal notification channel. Channels that also
// implement notifier.ChannelPoster get a post on channelID for every
// finished report.
func WithNotifier(channel notifier.Channel, channelID string) Option {
	return func(s *Service) {
		s.channel = channel
		s.channelID = channelID
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
