// Package dispatch owns the job state machine: dispatching candidates,
// committing assignments and audited reassignment. Transitions use a
// compare-and-swap discipline against the store; notifications follow the
// committed transition and never roll it back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldval/dispatch-engine/internal/matcher"
	"github.com/fieldval/dispatch-engine/internal/notify"
	"github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/fieldval/dispatch-engine/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DispatchResult reports the outcome of a dispatch or auto-assign call.
// Success=false with a nil error is a legitimate no-candidates outcome.
type DispatchResult struct {
	Success             bool
	MatchedAppraisers   []matcher.MatchedAppraiser
	AssignedAppraiserID *uuid.UUID
	Message             string
}

// ReassignResult reports the outcome of a reassignment.
type ReassignResult struct {
	Success bool
	Message string
}

type Orchestrator struct {
	store    store.Store
	matcher  *matcher.Matcher
	producer *notify.Producer
	nowFn    func() time.Time
}

type Option func(o *Orchestrator)

// WithClock overrides the time source, used to pin timestamps in tests.
func WithClock(nowFn func() time.Time) Option {
	return func(o *Orchestrator) {
		o.nowFn = nowFn
	}
}

func New(s store.Store, m *matcher.Matcher, producer *notify.Producer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    s,
		matcher:  m,
		producer: producer,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch finds candidates for a pending job and notifies them, moving the
// job to DISPATCHED. Zero matches leaves the job untouched apart from a
// NO_MATCHES history entry and returns failure without error.
func (o *Orchestrator) Dispatch(ctx context.Context, jobID uuid.UUID, opts matcher.Options) (*DispatchResult, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPendingDispatch {
		return nil, NewErrInvalidTransition(jobID, job.Status, model.JobStatusDispatched)
	}

	matches, err := o.matcher.FindMatches(ctx, *job, opts)
	if err != nil {
		return nil, fmt.Errorf("matching job %s: %w", jobID, err)
	}

	if len(matches) == 0 {
		entry := model.JobHistoryEntry{
			JobID:  job.ID,
			Status: model.JobStatusNoMatches,
			Metadata: model.MakeJSONField(map[string]any{
				model.MetaMatchCount: 0,
			}),
		}
		if err := o.store.Job().AppendHistory(ctx, entry); err != nil {
			return nil, err
		}
		metrics.IncreaseDispatchesTotalMetric("no_matches")
		return &DispatchResult{
			Success:           false,
			MatchedAppraisers: []matcher.MatchedAppraiser{},
			Message:           "no eligible appraisers found",
		}, nil
	}

	now := o.nowFn()
	job.Status = model.JobStatusDispatched
	if job.DispatchedAt == nil {
		job.DispatchedAt = &now
	}
	if err := o.updateJob(ctx, job, model.JobStatusPendingDispatch); err != nil {
		return nil, err
	}

	entry := model.JobHistoryEntry{
		JobID:  job.ID,
		Status: model.JobStatusDispatched,
		Metadata: model.MakeJSONField(map[string]any{
			model.MetaMatchCount: len(matches),
		}),
	}
	if err := o.store.Job().AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	o.notifyCandidates(ctx, job, matches)
	metrics.IncreaseDispatchesTotalMetric("dispatched")

	return &DispatchResult{
		Success:           true,
		MatchedAppraisers: matches,
		Message:           fmt.Sprintf("dispatched to %d appraisers", len(matches)),
	}, nil
}

// AutoAssign dispatches and immediately commits the top-ranked candidate.
func (o *Orchestrator) AutoAssign(ctx context.Context, jobID uuid.UUID, opts matcher.Options) (*DispatchResult, error) {
	result, err := o.Dispatch(ctx, jobID, opts)
	if err != nil || !result.Success {
		return result, err
	}

	top := result.MatchedAppraisers[0]

	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := o.nowFn()
	job.Status = model.JobStatusAccepted
	job.AssignedAppraiserID = &top.AppraiserID
	if job.AcceptedAt == nil {
		job.AcceptedAt = &now
	}
	if err := o.updateJob(ctx, job, model.JobStatusDispatched); err != nil {
		return nil, err
	}

	entry := model.JobHistoryEntry{
		JobID:  job.ID,
		Status: model.JobStatusAccepted,
		Metadata: model.MakeJSONField(map[string]any{
			model.MetaAssignedAppraiser: top.AppraiserID.String(),
		}),
	}
	if err := o.store.Job().AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	o.notifyAppraiser(ctx, notify.KindJobAssigned, top.AppraiserID, job)
	metrics.IncreaseDispatchesTotalMetric("auto_assigned")

	result.AssignedAppraiserID = &top.AppraiserID
	result.Message = fmt.Sprintf("assigned to appraiser %s", top.AppraiserID)
	return result, nil
}

// Reassign changes or clears the job's assignee. A nil id returns the job to
// PENDING_DISPATCH for re-dispatch. Every path appends an audited history
// entry recording the previous holder and the reason.
func (o *Orchestrator) Reassign(ctx context.Context, jobID uuid.UUID, newAppraiserID *uuid.UUID, reason string) (*ReassignResult, error) {
	job, err := o.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, NewErrInvalidTransition(jobID, job.Status, model.JobStatusAccepted)
	}

	previous := ""
	if job.AssignedAppraiserID != nil {
		previous = job.AssignedAppraiserID.String()
	}
	expectedStatus := job.Status
	now := o.nowFn()

	var entry model.JobHistoryEntry
	if newAppraiserID != nil {
		profile, err := o.store.Appraiser().Get(ctx, *newAppraiserID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrAppraiserNotFound(*newAppraiserID)
			}
			return nil, err
		}
		if profile.VerificationStatus != model.VerificationStatusVerified {
			return nil, NewErrAppraiserNotVerified(*newAppraiserID)
		}

		job.Status = model.JobStatusAccepted
		job.AssignedAppraiserID = newAppraiserID
		if job.AcceptedAt == nil {
			job.AcceptedAt = &now
		}
		entry = model.JobHistoryEntry{
			JobID:  job.ID,
			Status: model.HistoryStatusReassigned,
			Metadata: model.MakeJSONField(map[string]any{
				model.MetaPreviousAppraiser: previous,
				model.MetaAssignedAppraiser: newAppraiserID.String(),
				model.MetaReason:            reason,
			}),
		}
	} else {
		job.Status = model.JobStatusPendingDispatch
		job.AssignedAppraiserID = nil
		entry = model.JobHistoryEntry{
			JobID:  job.ID,
			Status: model.HistoryStatusUnassigned,
			Metadata: model.MakeJSONField(map[string]any{
				model.MetaPreviousAppraiser: previous,
				model.MetaReason:            reason,
			}),
		}
	}

	if err := o.updateJob(ctx, job, expectedStatus); err != nil {
		return nil, err
	}
	if err := o.store.Job().AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	audit := model.AuditEntry{
		Actor:  "dispatch-orchestrator",
		Action: "job.reassigned",
		JobID:  &job.ID,
		Detail: model.MakeJSONField(map[string]any{
			model.MetaPreviousAppraiser: previous,
			model.MetaReason:            reason,
		}),
	}
	if err := o.store.Audit().Create(ctx, audit); err != nil {
		zap.S().Named("dispatch").Errorw("failed to write audit entry", "error", err, "job_id", job.ID)
	}

	if newAppraiserID != nil {
		o.notifyAppraiser(ctx, notify.KindJobReassigned, *newAppraiserID, job)
	}

	return &ReassignResult{Success: true, Message: "reassignment recorded"}, nil
}

func (o *Orchestrator) getJob(ctx context.Context, jobID uuid.UUID) (*model.Job, error) {
	job, err := o.store.Job().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}
	return job, nil
}

func (o *Orchestrator) updateJob(ctx context.Context, job *model.Job, expectedStatus string) error {
	if err := o.store.Job().Update(ctx, job, expectedStatus); err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return NewErrStaleStatus(job.ID)
		}
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrJobNotFound(job.ID)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) notifyCandidates(ctx context.Context, job *model.Job, matches []matcher.MatchedAppraiser) {
	for _, m := range matches {
		o.notifyAppraiser(ctx, notify.KindJobDispatched, m.AppraiserID, job)
	}
}

func (o *Orchestrator) notifyAppraiser(ctx context.Context, kind string, appraiserID uuid.UUID, job *model.Job) {
	profile, err := o.store.Appraiser().Get(ctx, appraiserID)
	if err != nil {
		zap.S().Named("dispatch").Errorw("failed to resolve appraiser for notification",
			"error", err, "appraiser_id", appraiserID)
		return
	}
	o.producer.Push(kind, profile.OwnerUserID, map[string]any{
		"job_id":   job.ID.String(),
		"job_type": job.Type,
	})
}
