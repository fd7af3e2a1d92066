package store

import (
	"context"
	"fmt"

	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Audit interface {
	InitialMigration() error
	Create(ctx context.Context, entry model.AuditEntry) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.AuditEntry, error)
}

type AuditStore struct {
	db *gorm.DB
}

// Make sure we conform to Audit interface
var _ Audit = (*AuditStore)(nil)

func NewAuditStore(db *gorm.DB) Audit {
	return &AuditStore{db: db}
}

func (s *AuditStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.AuditEntry{})
}

func (s *AuditStore) Create(ctx context.Context, entry model.AuditEntry) error {
	if result := s.getDB(ctx).Create(&entry); result.Error != nil {
		return fmt.Errorf("creating audit entry: %w", result.Error)
	}
	return nil
}

func (s *AuditStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	result := s.getDB(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

func (s *AuditStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
