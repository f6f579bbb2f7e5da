package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/innohealth/notify-engine/internal/domain"
)

// Event is the broker payload for a single recipient's in-app notification.
type Event struct {
	RecipientID string          `json:"recipientId"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Priority    domain.Priority `json:"priority"`
	ActionURL   string          `json:"actionUrl,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Data        map[string]any  `json:"data,omitempty"`
	SentAt      time.Time       `json:"sentAt"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.RecipientID) == "" {
		return fmt.Errorf("recipientId is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !e.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", e.Priority)
	}
	return nil
}
