package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// Notification is an in-app message addressed to one user. EventID ties it
// to the outbox event that produced it.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	EventID   *uuid.UUID             `gorm:"column:event_id;type:uuid" json:"-"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null" json:"type"`
	Title     string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message   string                 `gorm:"column:message;type:text;not null" json:"message"`
	Link      *string                `gorm:"column:link;type:text" json:"link,omitempty"`
	ReadAt    *time.Time             `gorm:"column:read_at;type:timestamptz" json:"readAt,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}
