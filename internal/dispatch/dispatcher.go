package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/innohealth/notify-engine/internal/channel"
	"github.com/innohealth/notify-engine/internal/content"
	"github.com/innohealth/notify-engine/internal/directory"
	"github.com/innohealth/notify-engine/internal/domain"
	"github.com/innohealth/notify-engine/internal/observability"
)

const defaultChannelTimeout = 10 * time.Second

// Request describes one send: who, what, and over which channels.
type Request struct {
	Recipients directory.Audience
	Type       domain.Type
	Priority   domain.Priority
	Title      string
	Message    string
	ActionURL  string
	Icon       string
	Data       map[string]any
	Channels   []domain.Channel
}

func (r Request) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", domain.ErrValidation, r.Type)
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, r.Priority)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if len(r.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", domain.ErrValidation)
	}
	for _, ch := range r.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, ch)
		}
	}
	return nil
}

// ChannelError records one channel's failure within an otherwise completed send.
type ChannelError struct {
	Channel domain.Channel
	Err     error
}

// Result summarizes a dispatch. Success is true when at least one requested
// channel completed without error; channel failures never abort the others.
type Result struct {
	Success        bool
	RecipientCount int
	ChannelErrors  []ChannelError
}

// Dispatcher resolves recipients, composes content once, and fans the payload
// out to the requested channels concurrently.
type Dispatcher struct {
	resolver *directory.Resolver
	composer *content.Composer
	senders  map[domain.Channel]channel.Sender
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewDispatcher(
	resolver *directory.Resolver,
	composer *content.Composer,
	senders []channel.Sender,
	timeout time.Duration,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("at least one sender is required")
	}
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byChannel := make(map[domain.Channel]channel.Sender, len(senders))
	for _, s := range senders {
		if s == nil {
			return nil, fmt.Errorf("nil sender")
		}
		if _, exists := byChannel[s.Channel()]; exists {
			return nil, fmt.Errorf("duplicate sender for channel %s", s.Channel())
		}
		byChannel[s.Channel()] = s
	}

	return &Dispatcher{
		resolver: resolver,
		composer: composer,
		senders:  byChannel,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

// Dispatch runs one send end to end. Recipient resolution failures and
// channel failures are reported in the Result; only invalid requests and
// content configuration defects return an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	recipients, err := d.resolver.Resolve(ctx, req.Recipients)
	if err != nil {
		d.logger.Error("recipient resolution failed",
			zap.String("audience", string(req.Recipients.Kind)),
			zap.Error(err),
		)
		return Result{}, nil
	}
	if len(recipients) == 0 {
		return Result{}, nil
	}

	payload, err := d.composer.Compose(req.Type, req.Priority, req.Title, req.Message, req.ActionURL)
	if err != nil {
		return Result{}, err
	}
	payload.Icon = req.Icon
	payload.Data = req.Data

	errs := make([]error, len(req.Channels))
	var wg sync.WaitGroup

	for i, ch := range req.Channels {
		wg.Add(1)
		go func(i int, ch domain.Channel) {
			defer wg.Done()
			errs[i] = d.sendChannel(ctx, ch, recipients, payload, req.Priority)
		}(i, ch)
	}
	wg.Wait()

	result := Result{RecipientCount: len(recipients)}
	for i, ch := range req.Channels {
		if errs[i] != nil {
			result.ChannelErrors = append(result.ChannelErrors, ChannelError{Channel: ch, Err: errs[i]})
			continue
		}
		result.Success = true
	}

	return result, nil
}

func (d *Dispatcher) sendChannel(
	ctx context.Context,
	ch domain.Channel,
	recipients []directory.Recipient,
	payload content.Payload,
	priority domain.Priority,
) error {
	sender, ok := d.senders[ch]
	if !ok {
		return fmt.Errorf("no sender registered for channel %s", ch)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	name := ch.String()
	if d.metrics != nil {
		d.metrics.IncChannelInFlight(name)
		defer d.metrics.DecChannelInFlight(name)
	}

	start := time.Now()
	err := sender.Send(sendCtx, recipients, payload, priority)
	duration := time.Since(start)

	if d.metrics != nil {
		d.metrics.ObserveChannelSendDuration(name, duration)
	}

	if err != nil {
		reason := "permanent"
		if channel.IsTransient(err) {
			reason = "transient"
		}
		if d.metrics != nil {
			d.metrics.IncChannelFailed(name, reason)
		}
		d.logger.Warn("channel send failed",
			zap.String("channel", name),
			zap.Int("recipients", len(recipients)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	if d.metrics != nil {
		d.metrics.IncChannelSent(name)
	}
	d.logger.Debug("channel send completed",
		zap.String("channel", name),
		zap.Int("recipients", len(recipients)),
		zap.Duration("duration", duration),
	)

	return nil
}
