package notify

import (
	"context"
	"errors"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by a sink that has no endpoint set.
var ErrNotConfigured = errors.New("notifier not configured")

// Multi fans a message out to every sink. Failures are logged and never
// returned.
type Multi struct {
	Sinks []reservation.Notifier
	Log   *zap.Logger
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Notify(ctx context.Context, message string) error {
	log := logging.OrNop(m.Log).Named("notify")
	for _, s := range m.Sinks {
		err := s.Notify(ctx, message)
		switch {
		case err == nil:
			log.Info("notify: delivered", zap.String("sink", s.Name()))
		case errors.Is(err, ErrNotConfigured):
			log.Debug("notify: sink not configured, skipped", zap.String("sink", s.Name()))
		default:
			log.Warn("notify: delivery failed", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
	return nil
}
