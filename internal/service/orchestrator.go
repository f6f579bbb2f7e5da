package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/innohealth/notify-engine/internal/directory"
	"github.com/innohealth/notify-engine/internal/dispatch"
	"github.com/innohealth/notify-engine/internal/domain"
	"github.com/innohealth/notify-engine/internal/repository"
)

const (
	maxBulkSize         = 1000
	bulkCreateWorkers   = 8
	defaultProcessLimit = 100
)

// dispatchChannels is the channel set a stored notification goes out on.
// Email is the mandatory channel for a created notification; the claim on
// the row guards exactly this send.
var dispatchChannels = []domain.Channel{domain.ChannelEmail}

// NotificationDispatcher is the orchestrator's view of the dispatch engine.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// CreateInput carries the caller-provided fields of a new notification.
type CreateInput struct {
	RecipientID  string
	SenderID     *string
	Type         domain.Type
	Priority     domain.Priority
	Title        string
	Message      string
	ActionURL    *string
	Metadata     map[string]any
	ScheduledFor *time.Time
}

// Orchestrator persists notifications and drives their delivery. Immediate
// notifications go out as part of Create; scheduled ones are held until a
// sweep finds them due.
type Orchestrator struct {
	store      repository.NotificationStore
	dispatcher NotificationDispatcher
	logger     *zap.Logger
	now        func() time.Time
	sweepLimit int
}

func NewOrchestrator(
	store repository.NotificationStore,
	dispatcher NotificationDispatcher,
	sweepLimit int,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if sweepLimit <= 0 {
		sweepLimit = defaultProcessLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		sweepLimit: sweepLimit,
	}, nil
}

// Create persists the notification and, when it is already due, delivers it.
// Delivery failures are logged and left for the sweep to retry; they never
// fail the create. Content configuration errors do fail it.
func (o *Orchestrator) Create(ctx context.Context, input CreateInput) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := o.now()
	n, err := o.buildNotification(input, now)
	if err != nil {
		return nil, err
	}

	if err := o.store.Create(ctx, n); err != nil {
		return nil, err
	}

	if !n.DueAt(now) {
		return n, nil
	}

	if err := o.deliver(ctx, n); err != nil {
		return nil, err
	}

	// Re-read so the caller sees the email flags the delivery set.
	stored, err := o.store.GetByID(ctx, n.ID)
	if err != nil {
		return n, nil
	}
	return stored, nil
}

// CreateBulk sends the same content to many recipients, creating one
// notification per recipient. Failed entries do not abort the rest; the
// returned error joins the per-recipient failures, if any.
func (o *Orchestrator) CreateBulk(ctx context.Context, recipientIDs []string, input CreateInput) ([]domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(recipientIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}
	if len(recipientIDs) > maxBulkSize {
		return nil, fmt.Errorf("%w: bulk size exceeds %d", domain.ErrValidation, maxBulkSize)
	}

	results := make([]*domain.Notification, len(recipientIDs))
	failures := make([]error, len(recipientIDs))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(bulkCreateWorkers)

	for i, recipientID := range recipientIDs {
		g.Go(func() error {
			entry := input
			entry.RecipientID = recipientID

			created, err := o.Create(groupCtx, entry)
			if err != nil {
				failures[i] = fmt.Errorf("recipient %s: %w", recipientID, err)
				return nil
			}
			results[i] = created
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created := make([]domain.Notification, 0, len(results))
	for _, n := range results {
		if n != nil {
			created = append(created, *n)
		}
	}

	if err := errors.Join(failures...); err != nil {
		o.logger.Warn("bulk create completed with failures",
			zap.Int("requested", len(recipientIDs)),
			zap.Int("created", len(created)),
		)
		return created, err
	}

	return created, nil
}

func (o *Orchestrator) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return o.store.GetByID(ctx, strings.TrimSpace(id))
}

func (o *Orchestrator) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	return o.store.List(ctx, params)
}

// MarkAsRead marks the notification read and returns its current state.
// Marking an already-read notification is a no-op, not an error.
func (o *Orchestrator) MarkAsRead(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	id = strings.TrimSpace(id)
	if _, err := o.store.MarkRead(ctx, id, o.now()); err != nil {
		return nil, err
	}
	return o.store.GetByID(ctx, id)
}

func (o *Orchestrator) MarkAllAsRead(ctx context.Context, recipientID string) (int64, error) {
	if strings.TrimSpace(recipientID) == "" {
		return 0, fmt.Errorf("%w: recipient id is required", domain.ErrValidation)
	}
	return o.store.MarkAllRead(ctx, strings.TrimSpace(recipientID), o.now())
}

func (o *Orchestrator) Stats(ctx context.Context, recipientID string) (repository.StatsSummary, error) {
	if strings.TrimSpace(recipientID) == "" {
		return repository.StatsSummary{}, fmt.Errorf("%w: recipient id is required", domain.ErrValidation)
	}
	return o.store.Stats(ctx, strings.TrimSpace(recipientID))
}

// Delete removes the notification. Deleting a missing one succeeds.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return o.store.Delete(ctx, strings.TrimSpace(id))
}

// ProcessScheduled delivers every due notification it can claim and reports
// how many went out. Concurrent sweeps are safe: the claim admits one winner
// per notification.
func (o *Orchestrator) ProcessScheduled(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := o.now()
	due, err := o.store.ListDueForDispatch(ctx, now, o.sweepLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due notifications: %w", err)
	}

	dispatched := 0
	for i := range due {
		n := due[i]

		sent, err := o.dispatchEmail(ctx, &n)
		if err != nil {
			o.logger.Error("scheduled delivery failed",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
			continue
		}
		if sent {
			dispatched++
		}
	}

	return dispatched, nil
}

// deliver runs the create-time delivery under the dispatch claim.
func (o *Orchestrator) deliver(ctx context.Context, n *domain.Notification) error {
	if _, err := o.dispatchEmail(ctx, n); err != nil {
		return err
	}
	return nil
}

// dispatchEmail claims the notification, dispatches it, and settles the
// claim from the outcome. Returns whether the claim was won and the email
// went out.
func (o *Orchestrator) dispatchEmail(ctx context.Context, n *domain.Notification) (bool, error) {
	claimed, err := o.store.ClaimForDispatch(ctx, n.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	result, err := o.dispatcher.Dispatch(ctx, dispatch.Request{
		Recipients: directory.Recipients(n.RecipientID),
		Type:       n.Type,
		Priority:   n.Priority,
		Title:      n.Title,
		Message:    n.Message,
		ActionURL:  derefString(n.ActionURL),
		Icon:       strings.ToLower(n.Type.String()),
		Data:       n.Metadata,
		Channels:   dispatchChannels,
	})
	if err != nil {
		// Settle the claim before surfacing a configuration defect.
		if finishErr := o.store.FinishDispatch(ctx, n.ID, false, o.now()); finishErr != nil {
			o.logger.Error("failed to release dispatch claim",
				zap.String("notificationId", n.ID),
				zap.Error(finishErr),
			)
		}
		return false, err
	}

	if !result.Success {
		for _, chErr := range result.ChannelErrors {
			o.logger.Warn("channel delivery failed",
				zap.String("notificationId", n.ID),
				zap.String("channel", chErr.Channel.String()),
				zap.Error(chErr.Err),
			)
		}
	}

	// A failed send releases the claim so a later sweep can retry; only a
	// successful one settles email_sent and keeps delivery at-most-once.
	emailSent := result.Success

	if err := o.store.FinishDispatch(ctx, n.ID, emailSent, o.now()); err != nil {
		o.logger.Error("failed to settle dispatch claim",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
		return false, nil
	}

	return emailSent, nil
}

func (o *Orchestrator) buildNotification(input CreateInput, now time.Time) (*domain.Notification, error) {
	priority := input.Priority
	if priority == "" {
		priority = domain.DefaultPriority
	}

	n := &domain.Notification{
		ID:            uuid.NewString(),
		RecipientID:   strings.TrimSpace(input.RecipientID),
		SenderID:      input.SenderID,
		Type:          input.Type,
		Priority:      priority,
		Title:         strings.TrimSpace(input.Title),
		Message:       strings.TrimSpace(input.Message),
		ActionURL:     input.ActionURL,
		Metadata:      input.Metadata,
		ScheduledFor:  input.ScheduledFor,
		DispatchState: domain.DispatchPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
