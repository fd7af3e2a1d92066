package store

import (
	"context"
	"fmt"

	"github.com/fieldval/dispatch-engine/internal/store/model"
	"gorm.io/gorm"
)

type Notification interface {
	InitialMigration() error
	Create(ctx context.Context, notification model.Notification) error
	List(ctx context.Context) ([]model.Notification, error)
}

type NotificationStore struct {
	db *gorm.DB
}

// Make sure we conform to Notification interface
var _ Notification = (*NotificationStore)(nil)

func NewNotificationStore(db *gorm.DB) Notification {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Notification{})
}

func (s *NotificationStore) Create(ctx context.Context, notification model.Notification) error {
	if result := s.getDB(ctx).Create(&notification); result.Error != nil {
		return fmt.Errorf("creating notification record: %w", result.Error)
	}
	return nil
}

func (s *NotificationStore) List(ctx context.Context) ([]model.Notification, error) {
	var notifications []model.Notification
	if result := s.getDB(ctx).Order("id ASC").Find(&notifications); result.Error != nil {
		return nil, result.Error
	}
	return notifications, nil
}

func (s *NotificationStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
