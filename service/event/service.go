package event

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/deepresearch/service/messaging"
	"github.com/viant/deepresearch/service/messaging/fs"
	"github.com/viant/deepresearch/service/messaging/memory"
)

// Service hands out one typed publisher per event payload type, all backed by
// the same queue vendor.
type Service struct {
	typedPublishers   map[reflect.Type]any
	mux               sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:       queueVendor,
		typedPublishers:   make(map[reflect.Type]any),
		memNewQueueConfig: func(string) memory.Config { return memory.DefaultConfig() },
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch queueVendor {
	case messaging.VendorFs:
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires fsNewQueueConfig")
		}
	case messaging.VendorMemory:
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}
	return ret, nil
}

// QueueOf builds a queue named name with the service vendor.
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFs:
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// PublisherOf returns the publisher for the provided type, creating its queue
// on first use.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.Name())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	s.typedPublishers[key] = publisher
	return publisher, nil
}

// ListenerOf starts a listener draining the publisher queue for T.
func ListenerOf[T any](s *Service, handler Handler[T]) (*Listener[T], error) {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return nil, err
	}
	return NewListener[T](publisher.Queue(), handler), nil
}
