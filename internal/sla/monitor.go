// Package sla sweeps active jobs for deadline breaches and raises tiered
// escalations. The sweep owns no cursor: every invocation re-derives full
// state from current job records, so skipped or concurrent runs cause no
// drift, only delayed detection.
package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldval/dispatch-engine/internal/notify"
	"github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/fieldval/dispatch-engine/pkg/metrics"
	"go.uber.org/zap"
)

const defaultBatchSize = 500

// Breach is a deadline violation detected during a sweep. It is derived
// fresh each run and persisted only as a history entry plus notifications.
type Breach struct {
	JobID        string
	BreachType   string
	Level        string
	HoursOverdue float64
}

// Result summarizes one sweep for observability.
type Result struct {
	Breached  int
	Escalated int
	Breaches  []Breach
}

type Monitor struct {
	store       store.Store
	producer    *notify.Producer
	batchSize   int
	adminEmails []string
	nowFn       func() time.Time
}

type Option func(m *Monitor)

func WithBatchSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func WithAdminEmails(emails []string) Option {
	return func(m *Monitor) {
		m.adminEmails = emails
	}
}

// WithClock overrides the time source, used to age jobs in tests.
func WithClock(nowFn func() time.Time) Option {
	return func(m *Monitor) {
		m.nowFn = nowFn
	}
}

func New(s store.Store, producer *notify.Producer, opts ...Option) *Monitor {
	m := &Monitor{
		store:     s,
		producer:  producer,
		batchSize: defaultBatchSize,
		nowFn:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var sweepStatuses = []string{
	model.JobStatusPendingDispatch,
	model.JobStatusDispatched,
	model.JobStatusAccepted,
	model.JobStatusInProgress,
	model.JobStatusSubmitted,
}

// CheckAndEscalate runs all deadline checks over the oldest active jobs and
// escalates every breach whose level is not already the latest recorded one.
func (m *Monitor) CheckAndEscalate(ctx context.Context) (Result, error) {
	now := m.nowFn()

	// snapshot semantics: only jobs that existed at the sweep instant
	jobs, err := m.store.Job().List(ctx,
		store.NewJobQueryFilter().ByStatus(sweepStatuses...).CreatedBefore(now),
		store.NewJobQueryOptions().OldestFirst().WithLimit(m.batchSize),
	)
	if err != nil {
		return Result{}, fmt.Errorf("listing jobs for sweep: %w", err)
	}

	result := Result{}
	for _, job := range jobs {
		for _, check := range ChecksForJob(job, now) {
			if !check.Overdue() {
				continue
			}
			result.Breached++
			result.Breaches = append(result.Breaches, Breach{
				JobID:        job.ID.String(),
				BreachType:   check.BreachType,
				Level:        check.Level(),
				HoursOverdue: check.HoursOverdue(),
			})

			escalated, err := m.escalate(ctx, job, check)
			if err != nil {
				zap.S().Named("sla_monitor").Errorw("failed to escalate breach",
					"error", err, "job_id", job.ID, "breach_type", check.BreachType)
				continue
			}
			if escalated {
				result.Escalated++
			}
		}
	}

	zap.S().Named("sla_monitor").Infow("sweep finished",
		"jobs", len(jobs), "breached", result.Breached, "escalated", result.Escalated)
	return result, nil
}

// escalate records one breach unless the job's most recent escalation entry
// for this breach type already carries the same level. Checks are tracked
// per type so a job under two overdue checks does not re-escalate each sweep.
// Returns whether an escalation was raised.
func (m *Monitor) escalate(ctx context.Context, job model.Job, check PhaseCheck) (bool, error) {
	level := check.Level()

	last, err := m.store.Job().LastEscalation(ctx, job.ID, check.BreachType)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return false, err
	}
	if last != nil && last.EscalationLevel() == level {
		return false, nil
	}

	entry := model.JobHistoryEntry{
		JobID:  job.ID,
		Status: model.HistoryStatusSLAEscalated,
		Metadata: model.MakeJSONField(map[string]any{
			model.MetaEscalationLevel: level,
			model.MetaBreachType:      check.BreachType,
			model.MetaHoursOverdue:    check.HoursOverdue(),
		}),
	}
	if err := m.store.Job().AppendHistory(ctx, entry); err != nil {
		return false, err
	}

	audit := model.AuditEntry{
		Actor:  "sla-monitor",
		Action: "sla.escalated",
		JobID:  &job.ID,
		Detail: model.MakeJSONField(map[string]any{
			model.MetaEscalationLevel: level,
			model.MetaBreachType:      check.BreachType,
			model.MetaHoursOverdue:    check.HoursOverdue(),
		}),
	}
	if err := m.store.Audit().Create(ctx, audit); err != nil {
		zap.S().Named("sla_monitor").Errorw("failed to write audit entry", "error", err, "job_id", job.ID)
	}

	metrics.IncreaseSlaBreachesTotalMetric(check.BreachType, level)
	m.notifyBreach(ctx, job, check, level)
	return true, nil
}

// notifyBreach fans out notifications scaled to severity: assigned appraiser
// and requesting client from LEVEL_2 up, admins only on CRITICAL.
func (m *Monitor) notifyBreach(ctx context.Context, job model.Job, check PhaseCheck, level string) {
	payload := map[string]any{
		"job_id":        job.ID.String(),
		"breach_type":   check.BreachType,
		"level":         level,
		"hours_overdue": check.HoursOverdue(),
	}

	if LevelRank(level) >= LevelRank(LevelTwo) {
		if job.AssignedAppraiserID != nil {
			if profile, err := m.store.Appraiser().Get(ctx, *job.AssignedAppraiserID); err == nil {
				m.producer.Push(notify.KindSLAEscalation, profile.OwnerUserID, payload)
			}
		}
		m.producer.Push(notify.KindSLAEscalation, job.ClientUserID, payload)
	}

	if level == LevelCritical {
		for _, email := range m.adminEmails {
			m.producer.Email(notify.KindSLAEscalation, email, payload)
		}
	}
}
