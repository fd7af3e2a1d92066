package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job statuses during which an appraiser counts as actively engaged.
var activeJobStatuses = []string{
	model.JobStatusAccepted,
	model.JobStatusInProgress,
	model.JobStatusSubmitted,
	model.JobStatusUnderReview,
}

type Job interface {
	InitialMigration() error
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	// Update performs a conditional update: the row is only written when it
	// still carries expectedStatus. ErrStaleStatus signals a lost race.
	Update(ctx context.Context, job *model.Job, expectedStatus string) error
	AppendHistory(ctx context.Context, entry model.JobHistoryEntry) error
	History(ctx context.Context, jobID uuid.UUID) ([]model.JobHistoryEntry, error)
	// LastEscalation returns the newest escalation entry recorded for the
	// given breach type. A job under several deadline checks tracks each
	// breach independently.
	LastEscalation(ctx context.Context, jobID uuid.UUID, breachType string) (*model.JobHistoryEntry, error)
	ActiveCountByAppraiser(ctx context.Context) (map[uuid.UUID]int, error)
	CountByStatus(ctx context.Context, statuses ...string) (map[string]int64, error)
	CountEscalationsSince(ctx context.Context, since time.Time) (int64, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration() error {
	if err := s.db.AutoMigrate(&model.Job{}); err != nil {
		return err
	}
	return s.db.AutoMigrate(&model.JobHistoryEntry{})
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.ID == (uuid.UUID{}) {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPendingDispatch
	}
	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList

	tx := s.getDB(ctx).Model(&model.Job{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func (s *JobStore) Update(ctx context.Context, job *model.Job, expectedStatus string) error {
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", job.ID, expectedStatus).
		Select("status", "assigned_appraiser_id", "sla_due_at",
			"dispatched_at", "accepted_at", "started_at", "submitted_at", "completed_at").
		Updates(job)
	if result.Error != nil {
		return fmt.Errorf("updating job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// distinguish a missing record from a lost race
		var count int64
		if err := s.getDB(ctx).Model(&model.Job{}).Where("id = ?", job.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrRecordNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

func (s *JobStore) AppendHistory(ctx context.Context, entry model.JobHistoryEntry) error {
	if result := s.getDB(ctx).Create(&entry); result.Error != nil {
		return fmt.Errorf("appending job history: %w", result.Error)
	}
	return nil
}

func (s *JobStore) History(ctx context.Context, jobID uuid.UUID) ([]model.JobHistoryEntry, error) {
	var entries []model.JobHistoryEntry
	result := s.getDB(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

func (s *JobStore) LastEscalation(ctx context.Context, jobID uuid.UUID, breachType string) (*model.JobHistoryEntry, error) {
	// the breach type lives inside the metadata json; filter in Go so the
	// query stays portable across the pgsql and sqlite dialects
	var entries []model.JobHistoryEntry
	result := s.getDB(ctx).
		Where("job_id = ? AND status = ?", jobID, model.HistoryStatusSLAEscalated).
		Order("id DESC").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	for i := range entries {
		if entries[i].BreachType() == breachType {
			return &entries[i], nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *JobStore) ActiveCountByAppraiser(ctx context.Context) (map[uuid.UUID]int, error) {
	var rows []struct {
		AssignedAppraiserID uuid.UUID
		Total               int
	}
	result := s.getDB(ctx).Model(&model.Job{}).
		Select("assigned_appraiser_id, COUNT(*) AS total").
		Where("assigned_appraiser_id IS NOT NULL AND status IN ?", activeJobStatuses).
		Group("assigned_appraiser_id").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("counting active jobs: %w", result.Error)
	}

	counts := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		counts[r.AssignedAppraiserID] = r.Total
	}
	return counts, nil
}

func (s *JobStore) CountByStatus(ctx context.Context, statuses ...string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	result := s.getDB(ctx).Model(&model.Job{}).
		Select("status, COUNT(*) AS total").
		Where("status IN ?", statuses).
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("counting jobs by status: %w", result.Error)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (s *JobStore) CountEscalationsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.JobHistoryEntry{}).
		Where("status = ? AND created_at >= ?", model.HistoryStatusSLAEscalated, since).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
