// Package notify is the delivery hook for notifications. The service layer
// persists notification rows itself; a Notifier only carries them out of
// process (email, SMS, push). The default implementation just logs, so a
// real channel can be swapped in without touching the emitting code.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"cafeops/backend/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

type Noop struct{}

func (Noop) Notify(_ context.Context, _ domain.Notification) error {
	return nil
}

// LogNotifier writes each notification to the log instead of delivering it.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, notification domain.Notification) error {
	n.log.Info().
		Str("type", notification.Type).
		Int64("id", notification.ID).
		Str("message", notification.Message).
		Msg("notification")
	return nil
}
