package content

import (
	"fmt"

	"github.com/innohealth/notify-engine/internal/domain"
)

// Title markers prepended by priority. These are fixed: downstream systems
// and equivalence tests depend on the exact bytes.
const (
	HighTitleMarker   = "⚠️ "
	UrgentTitleMarker = "🚨 URGENT: "
)

// Payload is the channel-agnostic content of one notification send.
type Payload struct {
	Title     string
	Body      string
	HTMLBody  string
	ActionURL string
	Icon      string
	Data      map[string]any
}

// Composer produces channel payloads from notification fields. It is a pure
// function of its inputs: identical inputs yield byte-identical payloads.
type Composer struct {
	templates map[domain.Type]Template
	renderer  Renderer
}

// NewComposer validates that a template exists for every notification type.
// A missing template is a deployment defect, so construction fails rather
// than deferring the error to send time.
func NewComposer(templates map[domain.Type]Template, renderer Renderer) (*Composer, error) {
	if renderer == nil {
		return nil, fmt.Errorf("%w: renderer is required", domain.ErrConfig)
	}
	for _, t := range domain.Types() {
		if _, ok := templates[t]; !ok {
			return nil, fmt.Errorf("%w: missing template for type %s", domain.ErrConfig, t)
		}
	}
	return &Composer{templates: templates, renderer: renderer}, nil
}

func (c *Composer) Compose(
	notifType domain.Type,
	priority domain.Priority,
	title string,
	message string,
	actionURL string,
) (Payload, error) {
	template, ok := c.templates[notifType]
	if !ok {
		return Payload{}, fmt.Errorf("%w: missing template for type %s", domain.ErrConfig, notifType)
	}

	markedTitle := MarkTitle(priority, title)
	fields := map[string]string{
		"title":     markedTitle,
		"message":   message,
		"actionUrl": actionURL,
	}

	return Payload{
		Title:     markedTitle,
		Body:      c.renderer.Render(template.Text, fields),
		HTMLBody:  c.renderer.Render(template.HTML, fields),
		ActionURL: actionURL,
	}, nil
}

// MarkTitle prefixes a title with its priority marker. LOW and MEDIUM titles
// pass through unchanged.
func MarkTitle(priority domain.Priority, title string) string {
	switch priority {
	case domain.PriorityHigh:
		return HighTitleMarker + title
	case domain.PriorityUrgent:
		return UrgentTitleMarker + title
	default:
		return title
	}
}
