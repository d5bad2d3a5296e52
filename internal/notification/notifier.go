package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Notifier delivers a plain text message to subscribers.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Multi fans a message out to every notifier. All notifiers are tried; the
// joined error of the failed ones is returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the log. It keeps every notification
// visible even when no delivery channel is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, message string) error {
	n.log.Info("notification", zap.String("message", message))
	return nil
}
