// Package notifier delivers the single terminal message of a task.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"go.uber.org/zap"
)

// Channel notifies the requester of a task.
type Channel interface {
	Notify(ctx context.Context, taskID, documentID, summary string) error
}

// ChannelPoster additionally posts to a shared channel.
type ChannelPoster interface {
	PostToChannel(ctx context.Context, channelID, summary string) error
}

// Log writes notifications to the structured log.
type Log struct {
	logger *zap.Logger
}

func (l *Log) Notify(ctx context.Context, taskID, documentID, summary string) error {
	l.logger.Info("task notification",
		zap.String("taskId", taskID),
		zap.String("documentId", documentID),
		zap.String("summary", summary))
	return nil
}

func (l *Log) PostToChannel(ctx context.Context, channelID, summary string) error {
	l.logger.Info("channel post", zap.String("channelId", channelID), zap.String("summary", summary))
	return nil
}

// NewLog creates a log notifier.
func NewLog() *Log {
	return &Log{logger: logging.Named("notifier")}
}

type fanout []Channel

func (f fanout) Notify(ctx context.Context, taskID, documentID, summary string) error {
	var errs []error
	for _, channel := range f {
		if err := channel.Notify(ctx, taskID, documentID, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostToChannel posts through the members that implement ChannelPoster.
func (f fanout) PostToChannel(ctx context.Context, channelID, summary string) error {
	var errs []error
	for _, channel := range f {
		if poster, ok := channel.(ChannelPoster); ok {
			if err := poster.PostToChannel(ctx, channelID, summary); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Fanout notifies every channel, joining their errors. It returns nil when
// no channel is given.
func Fanout(channels ...Channel) Channel {
	var ret fanout
	for _, channel := range channels {
		if channel != nil {
			ret = append(ret, channel)
		}
	}
	switch len(ret) {
	case 0:
		return nil
	case 1:
		return ret[0]
	}
	return ret
}

// SuccessSummary is the completion message for a task.
func SuccessSummary(t *model.Task, location string) string {
	return fmt.Sprintf("Research on %q is complete. Report: %s", t.Brief.Topic, location)
}

// FailureSummary is the single message sent when a task is rejected.
func FailureSummary(t *model.Task) string {
	summary := fmt.Sprintf("Research on %q could not be completed after %d attempt(s)", t.Brief.Topic, t.RetryCount+1)
	if t.Failure != "" {
		summary += " (" + strings.ReplaceAll(string(t.Failure), "_", " ") + ")"
	}
	return summary + "."
}
