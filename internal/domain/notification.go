package domain

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a notification by the portal event that produced it.
type Type string

const (
	TypeSystem        Type = "SYSTEM"
	TypeProgram       Type = "PROGRAM"
	TypeMeeting       Type = "MEETING"
	TypeApplication   Type = "APPLICATION"
	TypeDeadline      Type = "DEADLINE"
	TypeCollaboration Type = "COLLABORATION"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case TypeSystem, TypeProgram, TypeMeeting, TypeApplication, TypeDeadline, TypeCollaboration:
		return true
	}
	return false
}

// Types returns every known notification type.
func Types() []Type {
	return []Type{TypeSystem, TypeProgram, TypeMeeting, TypeApplication, TypeDeadline, TypeCollaboration}
}

func ParseTypeFromString(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid type %q", ErrValidation, s)
	}
	return t, nil
}

// Priority represents the message priority level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// DefaultPriority applies when a request leaves priority unset.
const DefaultPriority = PriorityMedium

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelPush  Channel = "PUSH"
	ChannelEmail Channel = "EMAIL"
	ChannelInApp Channel = "IN_APP"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelInApp:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// DispatchState tracks the email dispatch claim for a notification.
// PENDING rows are eligible for dispatch, DISPATCHING rows are claimed by an
// in-flight attempt, DISPATCHED rows completed an email send.
type DispatchState string

const (
	DispatchPending    DispatchState = "PENDING"
	DispatchInProgress DispatchState = "DISPATCHING"
	DispatchDone       DispatchState = "DISPATCHED"
)

func (s DispatchState) String() string { return string(s) }

func (s DispatchState) IsValid() bool {
	switch s {
	case DispatchPending, DispatchInProgress, DispatchDone:
		return true
	}
	return false
}

// Notification is the core domain entity: one message for one recipient.
type Notification struct {
	ID            string
	RecipientID   string
	SenderID      *string
	Type          Type
	Priority      Priority
	Title         string
	Message       string
	ActionURL     *string
	Metadata      map[string]any
	Read          bool
	ReadAt        *time.Time
	EmailSent     bool
	EmailSentAt   *time.Time
	ScheduledFor  *time.Time
	DispatchState DispatchState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (n *Notification) Validate() error {
	if n.RecipientID == "" {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if n.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: invalid type %q", ErrValidation, n.Type)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if (n.ReadAt != nil) != n.Read {
		return fmt.Errorf("%w: readAt must be set exactly when read is true", ErrValidation)
	}
	if (n.EmailSentAt != nil) != n.EmailSent {
		return fmt.Errorf("%w: emailSentAt must be set exactly when emailSent is true", ErrValidation)
	}
	return nil
}

// DueAt reports whether the notification should be dispatched at the given
// time: either it was never scheduled or its scheduled time has passed.
func (n *Notification) DueAt(now time.Time) bool {
	if n.ScheduledFor == nil {
		return true
	}
	return !n.ScheduledFor.After(now)
}
