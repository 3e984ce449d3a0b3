package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/congo-pay/custody_vault/internal/events"
)

// Notifier delivers committed vault events to downstream systems. The store's
// event log is authoritative; notifiers are a best-effort fan-out.
type Notifier interface {
	Notify(ctx context.Context, e events.Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Notify writes the event to the logger.
func (n *LoggerNotifier) Notify(_ context.Context, e events.Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("vault event",
		slog.Uint64("seq", e.Seq),
		slog.String("kind", string(e.Kind)),
		slog.String("event_id", e.ID.String()),
		slog.String("account", e.Account.Hex()),
		slog.String("asset", e.Asset.Hex()),
		slog.String("amount", e.AmountString()),
		slog.String("request_id", e.RequestID),
	)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e events.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
