package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/innohealth/notify-engine/internal/channel"
	"github.com/innohealth/notify-engine/internal/content"
	"github.com/innohealth/notify-engine/internal/directory"
	"github.com/innohealth/notify-engine/internal/domain"
)

type fakeSender struct {
	channel domain.Channel

	mu         sync.Mutex
	sendFn     func(ctx context.Context, recipients []directory.Recipient, payload content.Payload, priority domain.Priority) error
	calls      int
	recipients []directory.Recipient
	payload    content.Payload
}

func (f *fakeSender) Channel() domain.Channel { return f.channel }

func (f *fakeSender) Send(ctx context.Context, recipients []directory.Recipient, payload content.Payload, priority domain.Priority) error {
	f.mu.Lock()
	f.calls++
	f.recipients = recipients
	f.payload = payload
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, recipients, payload, priority)
	}
	return nil
}

func newTestDispatcher(t *testing.T, dir *directory.MemoryDirectory, senders ...channel.Sender) *Dispatcher {
	t.Helper()

	resolver, err := directory.NewResolver(dir)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	composer, err := content.NewComposer(content.DefaultTemplates(), content.NewSubstitutionRenderer())
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}

	d, err := NewDispatcher(resolver, composer, senders, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d
}

func TestDispatchFansOutToAllChannels(t *testing.T) {
	t.Parallel()

	dir := directory.NewMemoryDirectory()
	dir.Add(directory.Recipient{ID: "user-1", Email: "u1@example.com", DeviceToken: "token-1"})
	dir.Add(directory.Recipient{ID: "user-2", Email: "u2@example.com"})

	push := &fakeSender{channel: domain.ChannelPush}
	email := &fakeSender{channel: domain.ChannelEmail}
	inApp := &fakeSender{channel: domain.ChannelInApp}

	d := newTestDispatcher(t, dir, push, email, inApp)

	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.AllRecipients(),
		Type:       domain.TypeMeeting,
		Priority:   domain.PriorityMedium,
		Title:      "Meeting scheduled",
		Message:    "Kickoff at 10:00.",
		Channels:   []domain.Channel{domain.ChannelPush, domain.ChannelEmail, domain.ChannelInApp},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatalf("Success = false, channel errors: %v", result.ChannelErrors)
	}
	if result.RecipientCount != 2 {
		t.Fatalf("RecipientCount = %d, want 2", result.RecipientCount)
	}
	for _, s := range []*fakeSender{push, email, inApp} {
		if s.calls != 1 {
			t.Fatalf("sender %s calls = %d, want 1", s.channel, s.calls)
		}
		if len(s.recipients) != 2 {
			t.Fatalf("sender %s recipients = %d, want 2", s.channel, len(s.recipients))
		}
	}
}

func TestDispatchOneChannelFailureDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	dir := directory.NewMemoryDirectory()
	dir.Add(directory.Recipient{ID: "user-1", Email: "u1@example.com", DeviceToken: "token-1"})

	push := &fakeSender{
		channel: domain.ChannelPush,
		sendFn: func(context.Context, []directory.Recipient, content.Payload, domain.Priority) error {
			return &channel.TransportError{StatusCode: 503, Message: "gateway down", Transient: true}
		},
	}
	email := &fakeSender{channel: domain.ChannelEmail}

	d := newTestDispatcher(t, dir, push, email)

	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Recipients("user-1"),
		Type:       domain.TypeDeadline,
		Priority:   domain.PriorityHigh,
		Title:      "Review due",
		Message:    "Submit by Friday.",
		Channels:   []domain.Channel{domain.ChannelPush, domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatal("Success = false, want true when one channel still succeeded")
	}
	if email.calls != 1 {
		t.Fatalf("email sender calls = %d, want 1", email.calls)
	}
	if len(result.ChannelErrors) != 1 {
		t.Fatalf("ChannelErrors = %v, want exactly one", result.ChannelErrors)
	}
	if result.ChannelErrors[0].Channel != domain.ChannelPush {
		t.Fatalf("failed channel = %s, want %s", result.ChannelErrors[0].Channel, domain.ChannelPush)
	}
}

func TestDispatchAllChannelsFailingFailsResult(t *testing.T) {
	t.Parallel()

	dir := directory.NewMemoryDirectory()
	dir.Add(directory.Recipient{ID: "user-1", Email: "u1@example.com", DeviceToken: "token-1"})

	fail := func(context.Context, []directory.Recipient, content.Payload, domain.Priority) error {
		return &channel.TransportError{StatusCode: 500, Message: "down", Transient: true}
	}
	push := &fakeSender{channel: domain.ChannelPush, sendFn: fail}
	email := &fakeSender{channel: domain.ChannelEmail, sendFn: fail}

	d := newTestDispatcher(t, dir, push, email)

	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Recipients("user-1"),
		Type:       domain.TypeDeadline,
		Priority:   domain.PriorityHigh,
		Title:      "Review due",
		Message:    "Submit by Friday.",
		Channels:   []domain.Channel{domain.ChannelPush, domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("Success = true, want false when every channel failed")
	}
	if len(result.ChannelErrors) != 2 {
		t.Fatalf("ChannelErrors = %v, want two", result.ChannelErrors)
	}
}

func TestDispatchEmptyAudienceShortCircuits(t *testing.T) {
	t.Parallel()

	push := &fakeSender{channel: domain.ChannelPush}
	d := newTestDispatcher(t, directory.NewMemoryDirectory(), push)

	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Recipients(),
		Type:       domain.TypeSystem,
		Priority:   domain.PriorityLow,
		Title:      "Maintenance window",
		Message:    "Sunday 02:00 UTC.",
		Channels:   []domain.Channel{domain.ChannelPush},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("Success = true, want false for empty audience")
	}
	if result.RecipientCount != 0 {
		t.Fatalf("RecipientCount = %d, want 0", result.RecipientCount)
	}
	if push.calls != 0 {
		t.Fatalf("sender calls = %d, want 0", push.calls)
	}
}

func TestDispatchResolutionFailureYieldsFailedResult(t *testing.T) {
	t.Parallel()

	push := &fakeSender{channel: domain.ChannelPush}
	d := newTestDispatcher(t, directory.NewMemoryDirectory(), push)

	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Audience{Kind: directory.AudienceKind("UNKNOWN")},
		Type:       domain.TypeSystem,
		Priority:   domain.PriorityLow,
		Title:      "t",
		Message:    "m",
		Channels:   []domain.Channel{domain.ChannelPush},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if push.calls != 0 {
		t.Fatalf("sender calls = %d, want 0", push.calls)
	}
}

func TestDispatchComposesOnceWithPriorityMarker(t *testing.T) {
	t.Parallel()

	dir := directory.NewMemoryDirectory()
	dir.Add(directory.Recipient{ID: "user-1", DeviceToken: "token-1"})

	push := &fakeSender{channel: domain.ChannelPush}
	d := newTestDispatcher(t, dir, push)

	_, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Recipients("user-1"),
		Type:       domain.TypeDeadline,
		Priority:   domain.PriorityUrgent,
		Title:      "Submission closes",
		Message:    "24 hours left.",
		Channels:   []domain.Channel{domain.ChannelPush},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	wantTitle := content.UrgentTitleMarker + "Submission closes"
	if push.payload.Title != wantTitle {
		t.Fatalf("payload title = %q, want %q", push.payload.Title, wantTitle)
	}
	if !strings.Contains(push.payload.Body, "24 hours left.") {
		t.Fatalf("payload body = %q, missing message", push.payload.Body)
	}
}

func TestDispatchMissingSenderIsChannelError(t *testing.T) {
	t.Parallel()

	dir := directory.NewMemoryDirectory()
	dir.Add(directory.Recipient{ID: "user-1", DeviceToken: "token-1"})

	push := &fakeSender{channel: domain.ChannelPush}
	d := newTestDispatcher(t, dir, push)

	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Recipients("user-1"),
		Type:       domain.TypeProgram,
		Priority:   domain.PriorityMedium,
		Title:      "t",
		Message:    "m",
		Channels:   []domain.Channel{domain.ChannelPush, domain.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatal("Success = false, want true while push still delivered")
	}
	if len(result.ChannelErrors) != 1 || result.ChannelErrors[0].Channel != domain.ChannelEmail {
		t.Fatalf("ChannelErrors = %v, want email only", result.ChannelErrors)
	}
}

func TestDispatchRequestValidation(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, directory.NewMemoryDirectory(), &fakeSender{channel: domain.ChannelPush})

	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "invalid type",
			req: Request{
				Recipients: directory.AllRecipients(),
				Type:       domain.Type("BOGUS"),
				Priority:   domain.PriorityLow,
				Title:      "t", Message: "m",
				Channels: []domain.Channel{domain.ChannelPush},
			},
		},
		{
			name: "missing title",
			req: Request{
				Recipients: directory.AllRecipients(),
				Type:       domain.TypeSystem,
				Priority:   domain.PriorityLow,
				Message:    "m",
				Channels:   []domain.Channel{domain.ChannelPush},
			},
		},
		{
			name: "no channels",
			req: Request{
				Recipients: directory.AllRecipients(),
				Type:       domain.TypeSystem,
				Priority:   domain.PriorityLow,
				Title:      "t", Message: "m",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDispatchChannelTimeoutIsEnforced(t *testing.T) {
	t.Parallel()

	dir := directory.NewMemoryDirectory()
	dir.Add(directory.Recipient{ID: "user-1", DeviceToken: "token-1"})

	slow := &fakeSender{
		channel: domain.ChannelPush,
		sendFn: func(ctx context.Context, _ []directory.Recipient, _ content.Payload, _ domain.Priority) error {
			select {
			case <-ctx.Done():
				return fmt.Errorf("send canceled: %w", ctx.Err())
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	}

	resolver, err := directory.NewResolver(dir)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	composer, err := content.NewComposer(content.DefaultTemplates(), content.NewSubstitutionRenderer())
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	d, err := NewDispatcher(resolver, composer, []channel.Sender{slow}, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	start := time.Now()
	result, err := d.Dispatch(context.Background(), Request{
		Recipients: directory.Recipients("user-1"),
		Type:       domain.TypeSystem,
		Priority:   domain.PriorityLow,
		Title:      "t", Message: "m",
		Channels: []domain.Channel{domain.ChannelPush},
	})
	if err != nil {
		t.Fatalf("Dispatch() unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("Success = true, want false after timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Dispatch() took %v, timeout not enforced", elapsed)
	}
}
