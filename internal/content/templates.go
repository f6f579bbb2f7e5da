package content

import "github.com/innohealth/notify-engine/internal/domain"

// Template holds the per-type bodies a notification renders into. The same
// placeholder fields feed both variants: {{title}}, {{message}}, {{actionUrl}}.
type Template struct {
	HTML string
	Text string
}

// DefaultTemplates returns the built-in template set covering every
// notification type.
func DefaultTemplates() map[domain.Type]Template {
	return map[domain.Type]Template{
		domain.TypeSystem: {
			HTML: `<div class="notification notification-system"><h2>{{title}}</h2><p>{{message}}</p><a href="{{actionUrl}}">View details</a></div>`,
			Text: "{{title}}\n\n{{message}}\n\n{{actionUrl}}",
		},
		domain.TypeProgram: {
			HTML: `<div class="notification notification-program"><h2>{{title}}</h2><p>{{message}}</p><a href="{{actionUrl}}">Open program</a></div>`,
			Text: "{{title}}\n\n{{message}}\n\nOpen program: {{actionUrl}}",
		},
		domain.TypeMeeting: {
			HTML: `<div class="notification notification-meeting"><h2>{{title}}</h2><p>{{message}}</p><a href="{{actionUrl}}">View meeting</a></div>`,
			Text: "{{title}}\n\n{{message}}\n\nView meeting: {{actionUrl}}",
		},
		domain.TypeApplication: {
			HTML: `<div class="notification notification-application"><h2>{{title}}</h2><p>{{message}}</p><a href="{{actionUrl}}">Review application</a></div>`,
			Text: "{{title}}\n\n{{message}}\n\nReview application: {{actionUrl}}",
		},
		domain.TypeDeadline: {
			HTML: `<div class="notification notification-deadline"><h2>{{title}}</h2><p>{{message}}</p><a href="{{actionUrl}}">See deadline</a></div>`,
			Text: "{{title}}\n\n{{message}}\n\nSee deadline: {{actionUrl}}",
		},
		domain.TypeCollaboration: {
			HTML: `<div class="notification notification-collaboration"><h2>{{title}}</h2><p>{{message}}</p><a href="{{actionUrl}}">Open workspace</a></div>`,
			Text: "{{title}}\n\n{{message}}\n\nOpen workspace: {{actionUrl}}",
		},
	}
}
