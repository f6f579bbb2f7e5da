package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/innohealth/notify-engine/internal/domain"
)

var _ Directory = (*MemoryDirectory)(nil)

// MemoryDirectory is an in-memory Directory for tests and embedded use.
type MemoryDirectory struct {
	mu         sync.RWMutex
	recipients map[string]Recipient
	groups     map[string][]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		recipients: make(map[string]Recipient),
		groups:     make(map[string][]string),
	}
}

// Add registers or replaces a recipient.
func (d *MemoryDirectory) Add(r Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients[r.ID] = r
}

// SetGroup sets the membership of a named group to the given recipient ids.
func (d *MemoryDirectory) SetGroup(name string, memberIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[name] = append([]string(nil), memberIDs...)
}

func (d *MemoryDirectory) List(ctx context.Context) ([]Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Recipient, 0, len(d.recipients))
	for _, r := range d.recipients {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemoryDirectory) FindByIDs(ctx context.Context, ids []string) ([]Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		if r, ok := d.recipients[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) FindByID(ctx context.Context, id string) (*Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.recipients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (d *MemoryDirectory) ListGroup(ctx context.Context, name string) ([]Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	memberIDs, ok := d.groups[name]
	if !ok {
		return nil, nil
	}

	out := make([]Recipient, 0, len(memberIDs))
	for _, id := range memberIDs {
		if r, ok := d.recipients[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
