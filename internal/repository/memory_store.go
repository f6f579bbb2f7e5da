package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/innohealth/notify-engine/internal/domain"
)

// MemoryNotificationStore is an in-memory NotificationStore for tests and
// local development. It honors the same claim semantics as the SQL store.
type MemoryNotificationStore struct {
	mu            sync.Mutex
	notifications map[string]*domain.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{
		notifications: make(map[string]*domain.Notification),
	}
}

func (s *MemoryNotificationStore) Create(_ context.Context, n *domain.Notification) error {
	if n == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return domain.ErrConflict
	}

	stored := cloneNotification(n)
	s.notifications[n.ID] = stored
	*n = *cloneNotification(stored)
	return nil
}

func (s *MemoryNotificationStore) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneNotification(n), nil
}

func (s *MemoryNotificationStore) List(_ context.Context, params ListParams) ([]domain.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if params.RecipientID != nil && n.RecipientID != *params.RecipientID {
			continue
		}
		if params.Type != nil && n.Type != *params.Type {
			continue
		}
		if params.Priority != nil && n.Priority != *params.Priority {
			continue
		}
		if params.Read != nil && n.Read != *params.Read {
			continue
		}
		matched = append(matched, n)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))

	limit := params.Limit
	if limit < 1 {
		limit = 50
	}
	limit = min(limit, 100)

	offset := max(params.Offset, 0)
	if offset >= len(matched) {
		return nil, total, nil
	}

	end := min(offset+limit, len(matched))

	page := make([]domain.Notification, 0, end-offset)
	for _, n := range matched[offset:end] {
		page = append(page, *cloneNotification(n))
	}

	return page, total, nil
}

func (s *MemoryNotificationStore) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if n.Read {
		return false, nil
	}

	readAt := at
	n.Read = true
	n.ReadAt = &readAt
	n.UpdatedAt = at
	return true, nil
}

func (s *MemoryNotificationStore) MarkAllRead(_ context.Context, recipientID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, n := range s.notifications {
		if n.RecipientID != recipientID || n.Read {
			continue
		}
		readAt := at
		n.Read = true
		n.ReadAt = &readAt
		n.UpdatedAt = at
		updated++
	}
	return updated, nil
}

func (s *MemoryNotificationStore) ClaimForDispatch(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return false, nil
	}
	if n.DispatchState != domain.DispatchPending || n.EmailSent {
		return false, nil
	}

	n.DispatchState = domain.DispatchInProgress
	return true, nil
}

func (s *MemoryNotificationStore) FinishDispatch(_ context.Context, id string, emailSent bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.DispatchState != domain.DispatchInProgress {
		return domain.ErrConflict
	}

	if emailSent {
		sentAt := at
		n.DispatchState = domain.DispatchDone
		n.EmailSent = true
		n.EmailSentAt = &sentAt
	} else {
		n.DispatchState = domain.DispatchPending
	}
	n.UpdatedAt = at
	return nil
}

func (s *MemoryNotificationStore) ListDueForDispatch(_ context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 {
		limit = 100
	}

	due := make([]*domain.Notification, 0)
	for _, n := range s.notifications {
		if n.EmailSent || n.DispatchState != domain.DispatchPending {
			continue
		}
		if !n.DueAt(now) {
			continue
		}
		due = append(due, n)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	result := make([]domain.Notification, 0, len(due))
	for _, n := range due {
		result = append(result, *cloneNotification(n))
	}
	return result, nil
}

func (s *MemoryNotificationStore) Stats(_ context.Context, recipientID string) (StatsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := StatsSummary{
		ByType:     make(map[domain.Type]int64),
		ByPriority: make(map[domain.Priority]int64),
	}

	for _, n := range s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		summary.Total++
		if !n.Read {
			summary.Unread++
		}
		summary.ByType[n.Type]++
		summary.ByPriority[n.Priority]++
	}

	return summary, nil
}

func (s *MemoryNotificationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.notifications, id)
	return nil
}

func cloneNotification(n *domain.Notification) *domain.Notification {
	if n == nil {
		return nil
	}

	clone := *n
	clone.SenderID = clonePtr(n.SenderID)
	clone.ActionURL = clonePtr(n.ActionURL)
	clone.ReadAt = clonePtr(n.ReadAt)
	clone.EmailSentAt = clonePtr(n.EmailSentAt)
	clone.ScheduledFor = clonePtr(n.ScheduledFor)

	if n.Metadata != nil {
		clone.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
