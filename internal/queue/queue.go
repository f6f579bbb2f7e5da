package queue

import (
	"context"

	"github.com/innohealth/notify-engine/internal/domain"
)

// InAppEventQueue is the durable queue the web tier consumes for realtime
// in-app notification delivery.
const InAppEventQueue = "notify.in_app.events"

// queueMaxPriority is the RabbitMQ x-max-priority value for the event queue.
const queueMaxPriority int32 = 4

// Publisher publishes in-app notification events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event Event) error
	Close() error
}

// PriorityValue maps domain priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityUrgent:
		return 4
	case domain.PriorityHigh:
		return 3
	case domain.PriorityMedium:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
