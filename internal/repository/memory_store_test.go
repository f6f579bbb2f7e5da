package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/innohealth/notify-engine/internal/domain"
)

func newStoredNotification(t *testing.T, store *MemoryNotificationStore, mutate func(*domain.Notification)) *domain.Notification {
	t.Helper()

	n := &domain.Notification{
		ID:            uuid.NewString(),
		RecipientID:   "user-1",
		Type:          domain.TypeSystem,
		Priority:      domain.PriorityMedium,
		Title:         "title",
		Message:       "message",
		DispatchState: domain.DispatchPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if mutate != nil {
		mutate(n)
	}

	if err := store.Create(context.Background(), n); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return n
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, func(n *domain.Notification) {
		n.Metadata = map[string]any{"programId": "prog-7"}
	})

	got, err := store.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != n.Title {
		t.Fatalf("Title = %q, want %q", got.Title, n.Title)
	}
	if got.Metadata["programId"] != "prog-7" {
		t.Fatalf("Metadata = %v", got.Metadata)
	}

	// Returned copies must not alias the stored row.
	got.Title = "mutated"
	again, err := store.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if again.Title != n.Title {
		t.Fatal("store row was mutated through a returned copy")
	}
}

func TestMemoryStoreCreateDuplicateIsConflict(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, nil)

	dup := *n
	if err := store.Create(context.Background(), &dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Create() duplicate error = %v, want ErrConflict", err)
	}
}

func TestMemoryStoreGetByIDNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	if _, err := store.GetByID(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListFiltersAndOrders(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	base := time.Now().UTC()

	newStoredNotification(t, store, func(n *domain.Notification) {
		n.RecipientID = "user-1"
		n.Type = domain.TypeMeeting
		n.CreatedAt = base.Add(-2 * time.Minute)
	})
	newStoredNotification(t, store, func(n *domain.Notification) {
		n.RecipientID = "user-1"
		n.Type = domain.TypeDeadline
		n.Priority = domain.PriorityUrgent
		n.CreatedAt = base.Add(-1 * time.Minute)
	})
	newStoredNotification(t, store, func(n *domain.Notification) {
		n.RecipientID = "user-2"
		n.Type = domain.TypeMeeting
		n.CreatedAt = base
	})

	recipient := "user-1"
	listed, total, err := store.List(context.Background(), ListParams{RecipientID: &recipient})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if len(listed) != 2 {
		t.Fatalf("listed = %d, want 2", len(listed))
	}
	if listed[0].Type != domain.TypeDeadline {
		t.Fatalf("listed[0].Type = %s, want newest first", listed[0].Type)
	}

	notifType := domain.TypeMeeting
	listed, total, err = store.List(context.Background(), ListParams{Type: &notifType})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(listed) != 2 {
		t.Fatalf("type filter: total = %d, listed = %d, want 2/2", total, len(listed))
	}

	urgent := domain.PriorityUrgent
	_, total, err = store.List(context.Background(), ListParams{Priority: &urgent})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("priority filter total = %d, want 1", total)
	}
}

func TestMemoryStoreListPagination(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Minute
		newStoredNotification(t, store, func(n *domain.Notification) {
			n.CreatedAt = base.Add(-offset)
		})
	}

	page, total, err := store.List(context.Background(), ListParams{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d, want 2", len(page))
	}

	page, _, err = store.List(context.Background(), ListParams{Limit: 2, Offset: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("out-of-range page = %d, want 0", len(page))
	}
}

func TestMemoryStoreMarkRead(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, nil)
	at := time.Now().UTC()

	updated, err := store.MarkRead(context.Background(), n.ID, at)
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if !updated {
		t.Fatal("MarkRead() updated = false, want true")
	}

	got, err := store.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Read || got.ReadAt == nil {
		t.Fatalf("Read = %v, ReadAt = %v, want read with timestamp", got.Read, got.ReadAt)
	}
	firstReadAt := *got.ReadAt

	// Second call is a no-op and preserves the original timestamp.
	updated, err = store.MarkRead(context.Background(), n.ID, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("MarkRead() second call error = %v", err)
	}
	if updated {
		t.Fatal("MarkRead() second call updated = true, want false")
	}

	got, err = store.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.ReadAt.Equal(firstReadAt) {
		t.Fatalf("ReadAt changed on repeat: %v != %v", got.ReadAt, firstReadAt)
	}

	if _, err := store.MarkRead(context.Background(), uuid.NewString(), at); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("MarkRead() missing row error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreMarkAllRead(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	newStoredNotification(t, store, nil)
	newStoredNotification(t, store, nil)
	newStoredNotification(t, store, func(n *domain.Notification) {
		n.RecipientID = "user-2"
	})

	updated, err := store.MarkAllRead(context.Background(), "user-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	updated, err = store.MarkAllRead(context.Background(), "user-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkAllRead() second call error = %v", err)
	}
	if updated != 0 {
		t.Fatalf("second call updated = %d, want 0", updated)
	}
}

func TestMemoryStoreClaimForDispatchIsExclusive(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, nil)

	const claimants = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimForDispatch(context.Background(), n.ID)
			if err != nil {
				t.Errorf("ClaimForDispatch() error = %v", err)
				return
			}
			if claimed {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	if got := len(wins); got != 1 {
		t.Fatalf("claims won = %d, want exactly 1", got)
	}
}

func TestMemoryStoreFinishDispatch(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, nil)
	at := time.Now().UTC()

	if err := store.FinishDispatch(context.Background(), n.ID, true, at); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("FinishDispatch() without claim error = %v, want ErrConflict", err)
	}

	claimed, err := store.ClaimForDispatch(context.Background(), n.ID)
	if err != nil || !claimed {
		t.Fatalf("ClaimForDispatch() = %v, %v", claimed, err)
	}

	if err := store.FinishDispatch(context.Background(), n.ID, true, at); err != nil {
		t.Fatalf("FinishDispatch() error = %v", err)
	}

	got, err := store.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.EmailSent || got.EmailSentAt == nil {
		t.Fatalf("EmailSent = %v, EmailSentAt = %v", got.EmailSent, got.EmailSentAt)
	}
	if got.DispatchState != domain.DispatchDone {
		t.Fatalf("DispatchState = %s, want %s", got.DispatchState, domain.DispatchDone)
	}

	// Dispatched rows can never be claimed again.
	claimed, err = store.ClaimForDispatch(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("ClaimForDispatch() error = %v", err)
	}
	if claimed {
		t.Fatal("claimed a dispatched notification")
	}
}

func TestMemoryStoreFinishDispatchReleaseAllowsRetry(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, nil)

	claimed, err := store.ClaimForDispatch(context.Background(), n.ID)
	if err != nil || !claimed {
		t.Fatalf("ClaimForDispatch() = %v, %v", claimed, err)
	}

	if err := store.FinishDispatch(context.Background(), n.ID, false, time.Now().UTC()); err != nil {
		t.Fatalf("FinishDispatch() release error = %v", err)
	}

	got, err := store.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.EmailSent {
		t.Fatal("EmailSent = true after release")
	}
	if got.DispatchState != domain.DispatchPending {
		t.Fatalf("DispatchState = %s, want %s", got.DispatchState, domain.DispatchPending)
	}

	claimed, err = store.ClaimForDispatch(context.Background(), n.ID)
	if err != nil || !claimed {
		t.Fatalf("reclaim after release = %v, %v", claimed, err)
	}
}

func TestMemoryStoreListDueForDispatch(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	now := time.Now().UTC()

	immediate := newStoredNotification(t, store, nil)
	past := now.Add(-time.Minute)
	due := newStoredNotification(t, store, func(n *domain.Notification) {
		n.ScheduledFor = &past
	})
	future := now.Add(time.Hour)
	newStoredNotification(t, store, func(n *domain.Notification) {
		n.ScheduledFor = &future
	})
	sent := newStoredNotification(t, store, nil)
	if ok, err := store.ClaimForDispatch(context.Background(), sent.ID); err != nil || !ok {
		t.Fatalf("ClaimForDispatch() = %v, %v", ok, err)
	}
	if err := store.FinishDispatch(context.Background(), sent.ID, true, now); err != nil {
		t.Fatalf("FinishDispatch() error = %v", err)
	}

	got, err := store.ListDueForDispatch(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("ListDueForDispatch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("due = %d, want 2", len(got))
	}

	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[immediate.ID] || !ids[due.ID] {
		t.Fatalf("due ids = %v, want %s and %s", ids, immediate.ID, due.ID)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	newStoredNotification(t, store, func(n *domain.Notification) {
		n.Type = domain.TypeMeeting
		n.Priority = domain.PriorityHigh
	})
	newStoredNotification(t, store, func(n *domain.Notification) {
		n.Type = domain.TypeMeeting
		n.Priority = domain.PriorityLow
	})
	read := newStoredNotification(t, store, func(n *domain.Notification) {
		n.Type = domain.TypeDeadline
		n.Priority = domain.PriorityHigh
	})
	if _, err := store.MarkRead(context.Background(), read.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}

	stats, err := store.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	if stats.Unread != 2 {
		t.Fatalf("Unread = %d, want 2", stats.Unread)
	}
	if stats.ByType[domain.TypeMeeting] != 2 || stats.ByType[domain.TypeDeadline] != 1 {
		t.Fatalf("ByType = %v", stats.ByType)
	}
	if stats.ByPriority[domain.PriorityHigh] != 2 || stats.ByPriority[domain.PriorityLow] != 1 {
		t.Fatalf("ByPriority = %v", stats.ByPriority)
	}

	var byTypeSum int64
	for _, c := range stats.ByType {
		byTypeSum += c
	}
	if byTypeSum != stats.Total {
		t.Fatalf("ByType sum = %d, want %d", byTypeSum, stats.Total)
	}
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryNotificationStore()
	n := newStoredNotification(t, store, nil)

	if err := store.Delete(context.Background(), n.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(context.Background(), n.ID); err != nil {
		t.Fatalf("Delete() repeat error = %v", err)
	}
	if _, err := store.GetByID(context.Background(), n.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}
