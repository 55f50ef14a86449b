// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sweeper_server/core/port/out"
)

// Stream names
const (
	StreamSweepCompleted = "sweep:completed"
)

// maxStreamLength caps the stream so an unconsumed stream cannot grow
// without bound.
const maxStreamLength = 10000

// StreamNotifier implements out.Notifier using Redis Streams. The external
// notification service consumes the stream and fans out to the user's
// channels.
type StreamNotifier struct {
	client *redis.Client
}

// NewStreamNotifier creates a new StreamNotifier.
func NewStreamNotifier(client *redis.Client) *StreamNotifier {
	return &StreamNotifier{client: client}
}

// Notify publishes a sweep completion report.
func (n *StreamNotifier) Notify(ctx context.Context, ownerID uuid.UUID, report *out.SweepReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep report: %w", err)
	}

	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamSweepCompleted,
		MaxLen: maxStreamLength,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"owner_id": ownerID.String(),
			"data":     string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", StreamSweepCompleted, err)
	}

	return nil
}

// Ensure StreamNotifier implements out.Notifier
var _ out.Notifier = (*StreamNotifier)(nil)
