package dispatch

import (
	"context"
	"time"

	"github.com/fieldval/dispatch-engine/internal/sla"
	"github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/google/uuid"
)

// SLA health states in rising order of concern.
const (
	SLAOnTrack  = "ON_TRACK"
	SLAAtRisk   = "AT_RISK"
	SLABreached = "BREACHED"
)

const atRiskRatio = 0.8

// statsSampleLimit bounds how many recent jobs feed the timing averages.
const statsSampleLimit = 1000

// JobSLAStatus is the point-in-time deadline health of a single job.
type JobSLAStatus struct {
	JobID      uuid.UUID
	Status     string
	BreachType string
	DueInHours float64
}

// Stats is an operational snapshot of the dispatch pipeline.
type Stats struct {
	JobsByStatus         map[string]int64
	ActiveJobs           int64
	SLABreachesToday     int64
	AvgDispatchMinutes   float64
	AvgAcceptanceMinutes float64
}

// GetJobSLAStatus evaluates the job's current-phase deadline checks and
// reports the worst one. Terminal jobs and jobs with no applicable check are
// on track.
func (o *Orchestrator) GetJobSLAStatus(ctx context.Context, jobID uuid.UUID) (*JobSLAStatus, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &JobSLAStatus{JobID: job.ID, Status: SLAOnTrack}

	checks := sla.ChecksForJob(*job, o.nowFn())
	if len(checks) == 0 {
		return status, nil
	}

	worst := checks[0]
	for _, c := range checks[1:] {
		if c.Ratio() > worst.Ratio() {
			worst = c
		}
	}

	status.DueInHours = (worst.Budget - worst.Elapsed).Hours()
	switch {
	case worst.Overdue():
		status.Status = SLABreached
		status.BreachType = worst.BreachType
	case worst.Ratio() >= atRiskRatio:
		status.Status = SLAAtRisk
		status.BreachType = worst.BreachType
	}
	return status, nil
}

// GetStats aggregates counts and average phase timings across the pipeline.
// Averages are computed over a bounded sample of jobs carrying the relevant
// timestamps.
func (o *Orchestrator) GetStats(ctx context.Context) (*Stats, error) {
	byStatus, err := o.store.Job().CountByStatus(ctx,
		model.JobStatusPendingDispatch,
		model.JobStatusDispatched,
		model.JobStatusAccepted,
		model.JobStatusInProgress,
		model.JobStatusSubmitted,
		model.JobStatusUnderReview,
		model.JobStatusCompleted,
		model.JobStatusCancelled,
	)
	if err != nil {
		return nil, err
	}

	now := o.nowFn()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	breachesToday, err := o.store.Job().CountEscalationsSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	avgDispatch, err := o.avgMinutes(ctx,
		store.NewJobQueryFilter().WithDispatchTimes(),
		func(j model.Job) (time.Time, time.Time) { return j.CreatedAt, *j.DispatchedAt })
	if err != nil {
		return nil, err
	}
	avgAcceptance, err := o.avgMinutes(ctx,
		store.NewJobQueryFilter().WithAcceptanceTimes(),
		func(j model.Job) (time.Time, time.Time) { return *j.DispatchedAt, *j.AcceptedAt })
	if err != nil {
		return nil, err
	}

	return &Stats{
		JobsByStatus: byStatus,
		ActiveJobs: byStatus[model.JobStatusAccepted] +
			byStatus[model.JobStatusInProgress] +
			byStatus[model.JobStatusSubmitted] +
			byStatus[model.JobStatusUnderReview],
		SLABreachesToday:     breachesToday,
		AvgDispatchMinutes:   avgDispatch,
		AvgAcceptanceMinutes: avgAcceptance,
	}, nil
}

func (o *Orchestrator) avgMinutes(ctx context.Context, filter *store.JobQueryFilter, span func(model.Job) (time.Time, time.Time)) (float64, error) {
	jobs, err := o.store.Job().List(ctx, filter,
		store.NewJobQueryOptions().WithLimit(statsSampleLimit))
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	var total time.Duration
	for _, job := range jobs {
		from, to := span(job)
		total += to.Sub(from)
	}
	return total.Minutes() / float64(len(jobs)), nil
}
