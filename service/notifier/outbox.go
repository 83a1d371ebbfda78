package notifier

import (
	"context"
	"fmt"

	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/service/event"
	"go.uber.org/zap"
)

const eventNotify = "notify"
const eventPost = "post"

// Delivery is the payload queued by the Outbox.
type Delivery struct {
	TaskID     string `json:"taskId,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	ChannelID  string `json:"channelId,omitempty"`
	Summary    string `json:"summary"`
}

// Outbox queues deliveries on the event service so a crash between task
// completion and delivery does not lose the message when the queue is
// durable.
type Outbox struct {
	publisher *event.Publisher[Delivery]
}

func (o *Outbox) Notify(ctx context.Context, taskID, documentID, summary string) error {
	return o.publish(ctx, eventNotify, Delivery{TaskID: taskID, DocumentID: documentID, Summary: summary})
}

func (o *Outbox) PostToChannel(ctx context.Context, channelID, summary string) error {
	return o.publish(ctx, eventPost, Delivery{ChannelID: channelID, Summary: summary})
}

func (o *Outbox) publish(ctx context.Context, eventType string, delivery Delivery) error {
	evt := event.NewEvent(&event.Context{TaskID: delivery.TaskID, EventType: eventType, Service: "notifier"}, delivery)
	if err := o.publisher.Publish(ctx, evt); err != nil {
		return fmt.Errorf("failed to queue delivery: %w", err)
	}
	return nil
}

// NewOutbox creates an outbox on the Delivery queue of events.
func NewOutbox(events *event.Service) (*Outbox, error) {
	publisher, err := event.PublisherOf[Delivery](events)
	if err != nil {
		return nil, err
	}
	return &Outbox{publisher: publisher}, nil
}

// Relay drains the outbox into a target channel. Failed deliveries are
// nacked and retried by the queue.
type Relay struct {
	listener *event.Listener[Delivery]
}

// NewRelay creates a relay; poster may be nil when channel posts are not
// supported, in which case post events are logged and dropped.
func NewRelay(events *event.Service, target Channel, poster ChannelPoster) (*Relay, error) {
	logger := logging.Named("notifier.relay")
	listener, err := event.ListenerOf[Delivery](events, func(ctx context.Context, evt *event.Event[Delivery]) error {
		delivery := evt.Data
		if evt.Context != nil && evt.Context.EventType == eventPost {
			if poster == nil {
				logger.Warn("channel post dropped", zap.String("channelId", delivery.ChannelID))
				return nil
			}
			return poster.PostToChannel(ctx, delivery.ChannelID, delivery.Summary)
		}
		return target.Notify(ctx, delivery.TaskID, delivery.DocumentID, delivery.Summary)
	})
	if err != nil {
		return nil, err
	}
	return &Relay{listener: listener}, nil
}

func (r *Relay) Start(ctx context.Context) { r.listener.Start(ctx) }

func (r *Relay) Stop() { r.listener.Stop() }
