package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification channels.
const (
	NotificationChannelEmail = "email"
	NotificationChannelPush  = "push"
)

// Notification delivery statuses.
const (
	NotificationStatusSent   = "SENT"
	NotificationStatusFailed = "FAILED"
)

// Notification is the persisted record of one outbound notification attempt.
type Notification struct {
	ID        uint                       `gorm:"primaryKey;autoIncrement"`
	Channel   string                     `gorm:"not null;type:VARCHAR(20)"`
	Recipient string                     `gorm:"not null"`
	Kind      string                     `gorm:"not null;type:VARCHAR(100)"`
	Status    string                     `gorm:"not null;type:VARCHAR(20)"`
	Payload   *JSONField[map[string]any] `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (n Notification) String() string {
	val, _ := json.Marshal(n)
	return string(val)
}

// AuditEntry is one row of the external audit log, written on escalations
// and assignment changes.
type AuditEntry struct {
	ID        uint                       `gorm:"primaryKey;autoIncrement"`
	Actor     string                     `gorm:"not null;type:VARCHAR(100)"`
	Action    string                     `gorm:"not null;type:VARCHAR(100)"`
	JobID     *uuid.UUID                 `gorm:"index"`
	Detail    *JSONField[map[string]any] `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (a AuditEntry) String() string {
	val, _ := json.Marshal(a)
	return string(val)
}
