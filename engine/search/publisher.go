package search

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/carseek-mvp/pkg/natsutil"
)

// SubjectCompleted is the NATS subject completed searches are published to.
const SubjectCompleted = "search.completed"

// NATSPublisher publishes pipeline events to NATS. Publishing is
// fire-and-forget; a failed publish is logged and dropped.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher creates a publisher over an existing connection.
// logger may be nil.
func NewNATSPublisher(nc *nats.Conn, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{nc: nc, logger: logger}
}

func (p *NATSPublisher) SearchCompleted(ctx context.Context, e CompletedEvent) {
	if err := natsutil.Publish(ctx, p.nc, SubjectCompleted, e); err != nil {
		p.logger.Warn("search.completed publish failed", "error", err)
	}
}
