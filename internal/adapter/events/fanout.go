package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/openretail/pos/internal/core/domain"
	"github.com/openretail/pos/internal/port"
)

// Fanout delivers each event to every configured transport. A failing
// transport is logged and does not stop delivery to the others.
type Fanout struct {
	publishers []port.EventPublisher
	logger     *zap.Logger
}

func NewFanout(logger *zap.Logger, publishers ...port.EventPublisher) *Fanout {
	return &Fanout{publishers: publishers, logger: logger}
}

func (f *Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Warn("event delivery failed",
				zap.String("event", event.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
