package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/innohealth/notify-engine/internal/content"
	"github.com/innohealth/notify-engine/internal/directory"
	"github.com/innohealth/notify-engine/internal/domain"
	"github.com/innohealth/notify-engine/internal/queue"
	"github.com/innohealth/notify-engine/internal/ratelimit"
)

// Sender delivers a composed payload to a set of recipients over one channel.
// A recipient without the address the channel needs is skipped, not failed.
// Send returns an error only when every attempted delivery failed; a channel
// with zero attempts counts as success.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, recipients []directory.Recipient, payload content.Payload, priority domain.Priority) error
}

// PushSender fans a payload out to recipients' device tokens.
type PushSender struct {
	transport PushTransport
	limiter   ratelimit.RateLimiter
	logger    *zap.Logger
}

func NewPushSender(transport PushTransport, limiter ratelimit.RateLimiter, logger *zap.Logger) (*PushSender, error) {
	if transport == nil {
		return nil, fmt.Errorf("push transport is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PushSender{transport: transport, limiter: limiter, logger: logger}, nil
}

func (s *PushSender) Channel() domain.Channel {
	return domain.ChannelPush
}

func (s *PushSender) Send(ctx context.Context, recipients []directory.Recipient, payload content.Payload, priority domain.Priority) error {
	attempted := 0
	var failures []error

	for _, recipient := range recipients {
		if recipient.DeviceToken == "" {
			continue
		}
		attempted++

		if err := waitForSlot(ctx, s.limiter, s.Channel()); err != nil {
			failures = append(failures, err)
			continue
		}

		if err := s.transport.Push(ctx, recipient.DeviceToken, payload); err != nil {
			s.logger.Warn("push delivery failed",
				zap.String("recipientId", recipient.ID),
				zap.Error(err),
			)
			failures = append(failures, fmt.Errorf("recipient %s: %w", recipient.ID, err))
		}
	}

	return sendOutcome(attempted, failures)
}

// EmailSender fans a payload out to recipients' email addresses.
type EmailSender struct {
	transport EmailTransport
	limiter   ratelimit.RateLimiter
	logger    *zap.Logger
}

func NewEmailSender(transport EmailTransport, limiter ratelimit.RateLimiter, logger *zap.Logger) (*EmailSender, error) {
	if transport == nil {
		return nil, fmt.Errorf("email transport is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EmailSender{transport: transport, limiter: limiter, logger: logger}, nil
}

func (s *EmailSender) Channel() domain.Channel {
	return domain.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, recipients []directory.Recipient, payload content.Payload, priority domain.Priority) error {
	attempted := 0
	var failures []error

	for _, recipient := range recipients {
		if recipient.Email == "" {
			continue
		}
		attempted++

		if err := waitForSlot(ctx, s.limiter, s.Channel()); err != nil {
			failures = append(failures, err)
			continue
		}

		if err := s.transport.Email(ctx, recipient.Email, payload.Title, payload.HTMLBody, payload.Body); err != nil {
			s.logger.Warn("email delivery failed",
				zap.String("recipientId", recipient.ID),
				zap.Error(err),
			)
			failures = append(failures, fmt.Errorf("recipient %s: %w", recipient.ID, err))
		}
	}

	return sendOutcome(attempted, failures)
}

// InAppSender publishes one realtime event per recipient to the broker.
type InAppSender struct {
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewInAppSender(publisher queue.Publisher, logger *zap.Logger) (*InAppSender, error) {
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InAppSender{
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *InAppSender) Channel() domain.Channel {
	return domain.ChannelInApp
}

func (s *InAppSender) Send(ctx context.Context, recipients []directory.Recipient, payload content.Payload, priority domain.Priority) error {
	attempted := 0
	var failures []error

	for _, recipient := range recipients {
		attempted++

		event := queue.Event{
			RecipientID: recipient.ID,
			Title:       payload.Title,
			Body:        payload.Body,
			Priority:    priority,
			ActionURL:   payload.ActionURL,
			Icon:        payload.Icon,
			Data:        payload.Data,
			SentAt:      s.now(),
		}

		if err := s.publisher.Publish(ctx, queue.InAppEventQueue, event); err != nil {
			s.logger.Warn("in-app event publish failed",
				zap.String("recipientId", recipient.ID),
				zap.Error(err),
			)
			failures = append(failures, fmt.Errorf("recipient %s: %w", recipient.ID, err))
		}
	}

	return sendOutcome(attempted, failures)
}

func waitForSlot(ctx context.Context, limiter ratelimit.RateLimiter, ch domain.Channel) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx, ch.String()); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func sendOutcome(attempted int, failures []error) error {
	if attempted == 0 || len(failures) < attempted {
		return nil
	}
	return errors.Join(failures...)
}
