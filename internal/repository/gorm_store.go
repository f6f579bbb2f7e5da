package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/innohealth/notify-engine/internal/domain"
)

type typeCount struct {
	Type  domain.Type `gorm:"column:type"`
	Count int64       `gorm:"column:count"`
}

type priorityCount struct {
	Priority domain.Priority `gorm:"column:priority"`
	Count    int64           `gorm:"column:count"`
}

// GormNotificationStore persists notifications in PostgreSQL.
type GormNotificationStore struct {
	db *gorm.DB
}

func NewGormNotificationStore(db *gorm.DB) *GormNotificationStore {
	return &GormNotificationStore{db: db}
}

func (s *GormNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	model, err := notificationModelFromDomain(n)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		stored, err := notificationModelToDomain(model)
		if err != nil {
			return err
		}
		*n = *stored
	}
	return nil
}

func (s *GormNotificationStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model)
}

func (s *GormNotificationStore) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := s.db.WithContext(ctx).Model(&NotificationModel{})

	if params.RecipientID != nil {
		query = query.Where("recipient_id = ?", *params.RecipientID)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Priority != nil {
		query = query.Where("priority = ?", *params.Priority)
	}
	if params.Read != nil {
		query = query.Where("read = ?", *params.Read)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit < 1 {
		limit = 50
	}
	limit = min(limit, 100)

	offset := max(params.Offset, 0)

	var models []NotificationModel
	err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		n, err := notificationModelToDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, total, nil
}

func (s *GormNotificationStore) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND read = false", id).
		Updates(map[string]any{
			"read":    true,
			"read_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// Row untouched: either already read or missing.
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (s *GormNotificationStore) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("recipient_id = ? AND read = false", recipientID).
		Updates(map[string]any{
			"read":    true,
			"read_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *GormNotificationStore) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND dispatch_state = ? AND email_sent = false", id, domain.DispatchPending).
		Update("dispatch_state", domain.DispatchInProgress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormNotificationStore) FinishDispatch(ctx context.Context, id string, emailSent bool, at time.Time) error {
	updates := map[string]any{
		"dispatch_state": domain.DispatchPending,
	}
	if emailSent {
		updates = map[string]any{
			"dispatch_state": domain.DispatchDone,
			"email_sent":     true,
			"email_sent_at":  at,
		}
	}

	result := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND dispatch_state = ?", id, domain.DispatchInProgress).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *GormNotificationStore) ListDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 100
	}

	var models []NotificationModel
	err := s.db.WithContext(ctx).
		Where("email_sent = false AND dispatch_state = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)",
			domain.DispatchPending, now).
		Order("scheduled_for ASC NULLS FIRST, created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		n, err := notificationModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, nil
}

func (s *GormNotificationStore) Stats(ctx context.Context, recipientID string) (StatsSummary, error) {
	summary := StatsSummary{
		ByType:     make(map[domain.Type]int64),
		ByPriority: make(map[domain.Priority]int64),
	}

	base := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("recipient_id = ?", recipientID)

	if err := base.Session(&gorm.Session{}).Count(&summary.Total).Error; err != nil {
		return StatsSummary{}, err
	}
	if err := base.Session(&gorm.Session{}).Where("read = false").Count(&summary.Unread).Error; err != nil {
		return StatsSummary{}, err
	}

	var byType []typeCount
	if err := base.Session(&gorm.Session{}).
		Select("type, COUNT(*) as count").
		Group("type").
		Scan(&byType).Error; err != nil {
		return StatsSummary{}, err
	}
	for _, row := range byType {
		summary.ByType[row.Type] = row.Count
	}

	var byPriority []priorityCount
	if err := base.Session(&gorm.Session{}).
		Select("priority, COUNT(*) as count").
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		return StatsSummary{}, err
	}
	for _, row := range byPriority {
		summary.ByPriority[row.Priority] = row.Count
	}

	return summary, nil
}

func (s *GormNotificationStore) Delete(ctx context.Context, id string) error {
	// Idempotent: deleting a missing row is not an error.
	return s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&NotificationModel{}).Error
}
