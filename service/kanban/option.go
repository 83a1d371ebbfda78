package kanban

import "go.uber.org/zap"

// Option customises the Service.
type Option func(*Service)

// WithMaxRetries sets how many explicit requeues a failed task gets before it
// is rejected.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListener registers a callback invoked after every committed transition.
func WithListener(listener Listener) Option {
	return func(s *Service) {
		if listener != nil {
			s.listeners = append(s.listeners, listener)
		}
	}
}
