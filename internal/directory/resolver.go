package directory

import (
	"context"
	"fmt"

	"github.com/innohealth/notify-engine/internal/domain"
)

// Resolver turns an Audience into a concrete recipient list. It is a pure
// query over the directory: no side effects, missing ids are dropped and an
// unknown group resolves to an empty list.
type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) (*Resolver, error) {
	if directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	return &Resolver{directory: directory}, nil
}

func (r *Resolver) Resolve(ctx context.Context, audience Audience) ([]Recipient, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch audience.Kind {
	case AudienceAll:
		return r.directory.List(ctx)
	case AudienceExplicit:
		if len(audience.IDs) == 0 {
			return nil, nil
		}
		return r.directory.FindByIDs(ctx, audience.IDs)
	case AudienceGroup:
		if audience.Group == "" {
			return nil, nil
		}
		return r.directory.ListGroup(ctx, audience.Group)
	default:
		return nil, fmt.Errorf("%w: unknown audience kind %q", domain.ErrValidation, audience.Kind)
	}
}
