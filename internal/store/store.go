package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Appraiser() Appraiser
	Notification() Notification
	Audit() Audit
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db           *gorm.DB
	job          Job
	appraiser    Appraiser
	notification Notification
	audit        Audit
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		job:          NewJobStore(db),
		appraiser:    NewAppraiserStore(db),
		notification: NewNotificationStore(db),
		audit:        NewAuditStore(db),
		db:           db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Appraiser() Appraiser {
	return s.appraiser
}

func (s *DataStore) Notification() Notification {
	return s.notification
}

func (s *DataStore) Audit() Audit {
	return s.audit
}

func (s *DataStore) InitialMigration() error {
	if err := s.job.InitialMigration(); err != nil {
		return err
	}
	if err := s.appraiser.InitialMigration(); err != nil {
		return err
	}
	if err := s.notification.InitialMigration(); err != nil {
		return err
	}
	return s.audit.InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
