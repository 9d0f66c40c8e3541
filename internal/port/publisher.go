package port

import (
	"context"

	"github.com/openretail/pos/internal/core/domain"
)

// EventPublisher broadcasts committed state changes to subscribers. The
// services never learn the transport or the subscriber list.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
