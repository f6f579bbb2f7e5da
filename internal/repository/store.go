package repository

import (
	"context"
	"time"

	"github.com/innohealth/notify-engine/internal/domain"
)

// ListParams filters and pages the notification listing. Nil filters match
// everything.
type ListParams struct {
	RecipientID *string
	Type        *domain.Type
	Priority    *domain.Priority
	Read        *bool
	Limit       int
	Offset      int
}

// StatsSummary aggregates one recipient's notification counts.
type StatsSummary struct {
	Total      int64
	Unread     int64
	ByType     map[domain.Type]int64
	ByPriority map[domain.Priority]int64
}

// NotificationStore is the persistence port for notifications.
//
// ClaimForDispatch and FinishDispatch implement the email dispatch handshake:
// a claim moves PENDING to DISPATCHING and succeeds for exactly one caller;
// FinishDispatch either completes the claim (DISPATCHED, email flags set) or
// releases it back to PENDING so a later sweep can retry.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
	ClaimForDispatch(ctx context.Context, id string) (bool, error)
	FinishDispatch(ctx context.Context, id string, emailSent bool, at time.Time) error
	ListDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	Stats(ctx context.Context, recipientID string) (StatsSummary, error)
	Delete(ctx context.Context, id string) error
}
