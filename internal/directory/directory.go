package directory

import "context"

// Recipient is an addressable portal user. Empty channel addresses mean the
// recipient cannot be reached on that channel and is skipped there.
type Recipient struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// Directory is the recipient lookup port backed by the host application's
// user store.
type Directory interface {
	// List returns every known recipient.
	List(ctx context.Context) ([]Recipient, error)
	// FindByIDs returns the recipients matching the given ids. Ids with no
	// matching recipient are omitted from the result, not reported as errors.
	FindByIDs(ctx context.Context, ids []string) ([]Recipient, error)
	// FindByID returns a single recipient or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*Recipient, error)
	// ListGroup returns the membership of a named group. An unknown group
	// yields an empty list.
	ListGroup(ctx context.Context, name string) ([]Recipient, error)
}

// AudienceKind discriminates the three ways a send can address recipients.
type AudienceKind string

const (
	AudienceAll      AudienceKind = "ALL"
	AudienceExplicit AudienceKind = "EXPLICIT"
	AudienceGroup    AudienceKind = "GROUP"
)

// Audience is a recipient selection: everyone, an explicit id list, or a
// named group.
type Audience struct {
	Kind  AudienceKind
	IDs   []string
	Group string
}

// AllRecipients addresses every known recipient.
func AllRecipients() Audience {
	return Audience{Kind: AudienceAll}
}

// Recipients addresses an explicit list of recipient ids.
func Recipients(ids ...string) Audience {
	return Audience{Kind: AudienceExplicit, IDs: ids}
}

// GroupRecipients addresses the membership of a named group.
func GroupRecipients(name string) Audience {
	return Audience{Kind: AudienceGroup, Group: name}
}
