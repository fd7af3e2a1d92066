package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Appraiser interface {
	InitialMigration() error
	Create(ctx context.Context, profile model.AppraiserProfile) (*model.AppraiserProfile, error)
	Get(ctx context.Context, id uuid.UUID) (*model.AppraiserProfile, error)
	List(ctx context.Context, filter *AppraiserQueryFilter) (model.AppraiserProfileList, error)
	UpdateCounters(ctx context.Context, id uuid.UUID, completedDelta, cancelledDelta int) error
}

type AppraiserStore struct {
	db *gorm.DB
}

// Make sure we conform to Appraiser interface
var _ Appraiser = (*AppraiserStore)(nil)

func NewAppraiserStore(db *gorm.DB) Appraiser {
	return &AppraiserStore{db: db}
}

func (s *AppraiserStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.AppraiserProfile{})
}

func (s *AppraiserStore) Create(ctx context.Context, profile model.AppraiserProfile) (*model.AppraiserProfile, error) {
	if profile.ID == (uuid.UUID{}) {
		profile.ID = uuid.New()
	}
	result := s.getDB(ctx).Create(&profile)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating appraiser profile: %w", result.Error)
	}
	return &profile, nil
}

func (s *AppraiserStore) Get(ctx context.Context, id uuid.UUID) (*model.AppraiserProfile, error) {
	var profile model.AppraiserProfile
	result := s.getDB(ctx).First(&profile, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying appraiser profile: %w", result.Error)
	}
	return &profile, nil
}

func (s *AppraiserStore) List(ctx context.Context, filter *AppraiserQueryFilter) (model.AppraiserProfileList, error) {
	var profiles model.AppraiserProfileList

	tx := s.getDB(ctx).Model(&profiles).Order("id")
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&profiles); result.Error != nil {
		return nil, result.Error
	}
	return profiles, nil
}

func (s *AppraiserStore) UpdateCounters(ctx context.Context, id uuid.UUID, completedDelta, cancelledDelta int) error {
	result := s.getDB(ctx).Model(&model.AppraiserProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"completed_jobs": gorm.Expr("completed_jobs + ?", completedDelta),
			"cancelled_jobs": gorm.Expr("cancelled_jobs + ?", cancelledDelta),
		})
	if result.Error != nil {
		return fmt.Errorf("updating appraiser counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *AppraiserStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
