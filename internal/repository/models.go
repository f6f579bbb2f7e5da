package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/innohealth/notify-engine/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID            string               `gorm:"type:uuid;primaryKey"`
	RecipientID   string               `gorm:"type:varchar(64);not null;index"`
	SenderID      *string              `gorm:"type:varchar(64)"`
	Type          domain.Type          `gorm:"type:varchar(20);not null"`
	Priority      domain.Priority      `gorm:"type:varchar(10);not null"`
	Title         string               `gorm:"type:varchar(500);not null"`
	Message       string               `gorm:"type:text;not null"`
	ActionURL     *string              `gorm:"type:varchar(1000)"`
	Metadata      []byte               `gorm:"type:jsonb"`
	Read          bool                 `gorm:"not null;default:false"`
	ReadAt        *time.Time           `gorm:"type:timestamptz"`
	EmailSent     bool                 `gorm:"not null;default:false"`
	EmailSentAt   *time.Time           `gorm:"type:timestamptz"`
	ScheduledFor  *time.Time           `gorm:"type:timestamptz"`
	DispatchState domain.DispatchState `gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func notificationModelFromDomain(n *domain.Notification) (*NotificationModel, error) {
	if n == nil {
		return nil, nil
	}

	var metadata []byte
	if len(n.Metadata) > 0 {
		encoded, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = encoded
	}

	return &NotificationModel{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		SenderID:      n.SenderID,
		Type:          n.Type,
		Priority:      n.Priority,
		Title:         n.Title,
		Message:       n.Message,
		ActionURL:     n.ActionURL,
		Metadata:      metadata,
		Read:          n.Read,
		ReadAt:        n.ReadAt,
		EmailSent:     n.EmailSent,
		EmailSentAt:   n.EmailSentAt,
		ScheduledFor:  n.ScheduledFor,
		DispatchState: n.DispatchState,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}, nil
}

func notificationModelToDomain(m *NotificationModel) (*domain.Notification, error) {
	if m == nil {
		return nil, nil
	}

	var metadata map[string]any
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for notification %s: %w", m.ID, err)
		}
	}

	return &domain.Notification{
		ID:            m.ID,
		RecipientID:   m.RecipientID,
		SenderID:      m.SenderID,
		Type:          m.Type,
		Priority:      m.Priority,
		Title:         m.Title,
		Message:       m.Message,
		ActionURL:     m.ActionURL,
		Metadata:      metadata,
		Read:          m.Read,
		ReadAt:        m.ReadAt,
		EmailSent:     m.EmailSent,
		EmailSentAt:   m.EmailSentAt,
		ScheduledFor:  m.ScheduledFor,
		DispatchState: m.DispatchState,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}
