package event

import (
	"github.com/viant/deepresearch/service/messaging/fs"
	"github.com/viant/deepresearch/service/messaging/memory"
)

type Option func(s *Service)

// WithNewFsQueueConfig sets the per-queue file system configuration
func WithNewFsQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = newConfig
	}
}

// WithNewMemoryQueueConfig sets the per-queue memory configuration
func WithNewMemoryQueueConfig(newQueue func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newQueue
	}
}
