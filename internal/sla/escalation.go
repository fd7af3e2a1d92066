package sla

import (
	"time"

	"github.com/fieldval/dispatch-engine/internal/store/model"
)

// Breach types, one per deadline check.
const (
	BreachDispatchDelayed   = "DISPATCH_DELAYED"
	BreachAcceptanceOverdue = "ACCEPTANCE_OVERDUE"
	BreachCompletionOverdue = "COMPLETION_OVERDUE"
	BreachEvidenceOverdue   = "EVIDENCE_OVERDUE"
)

// Escalation levels, least to most severe.
const (
	LevelOne      = "LEVEL_1"
	LevelTwo      = "LEVEL_2"
	LevelThree    = "LEVEL_3"
	LevelCritical = "CRITICAL"
)

var levelRanks = map[string]int{
	LevelOne:      1,
	LevelTwo:      2,
	LevelThree:    3,
	LevelCritical: 4,
}

// LevelRank returns the severity ordinal of a level, 0 for unknown levels.
func LevelRank(level string) int {
	return levelRanks[level]
}

// LevelForRatio maps how far elapsed time exceeds the budget to a level.
func LevelForRatio(ratio float64) string {
	switch {
	case ratio >= 4.0:
		return LevelCritical
	case ratio >= 2.5:
		return LevelThree
	case ratio >= 1.5:
		return LevelTwo
	default:
		return LevelOne
	}
}

// UrgencyForJob derives the urgency tier from proximity to the job's
// deadline. Jobs without a deadline are normal.
func UrgencyForJob(job model.Job, now time.Time) string {
	if job.SLADueAt == nil {
		return model.UrgencyNormal
	}
	untilDue := job.SLADueAt.Sub(now)
	switch {
	case untilDue <= 4*time.Hour:
		return model.UrgencyCritical
	case untilDue <= 12*time.Hour:
		return model.UrgencyUrgent
	default:
		return model.UrgencyNormal
	}
}

var dispatchBudgets = map[string]time.Duration{
	model.UrgencyNormal:   time.Hour,
	model.UrgencyUrgent:   30 * time.Minute,
	model.UrgencyCritical: 15 * time.Minute,
}

var acceptanceBudgets = map[string]time.Duration{
	model.UrgencyNormal:   4 * time.Hour,
	model.UrgencyUrgent:   2 * time.Hour,
	model.UrgencyCritical: time.Hour,
}

var evidenceBudgets = map[string]time.Duration{
	model.UrgencyNormal:   24 * time.Hour,
	model.UrgencyUrgent:   12 * time.Hour,
	model.UrgencyCritical: 6 * time.Hour,
}

var completionDefaults = map[string]time.Duration{
	model.JobTypeSitePhotoCapture:   30 * time.Minute,
	model.JobTypeExteriorInspection: 48 * time.Hour,
	model.JobTypeCertifiedAppraisal: 72 * time.Hour,
}

// PhaseCheck is one deadline check applied to a job's current phase.
type PhaseCheck struct {
	BreachType string
	Elapsed    time.Duration
	Budget     time.Duration
}

func (c PhaseCheck) Ratio() float64 {
	if c.Budget <= 0 {
		return 0
	}
	return float64(c.Elapsed) / float64(c.Budget)
}

func (c PhaseCheck) Overdue() bool {
	return c.Elapsed > c.Budget
}

func (c PhaseCheck) HoursOverdue() float64 {
	overdue := c.Elapsed - c.Budget
	if overdue < 0 {
		return 0
	}
	return overdue.Hours()
}

// Level returns the escalation level for an overdue check.
func (c PhaseCheck) Level() string {
	return LevelForRatio(c.Ratio())
}

// ChecksForJob returns the deadline checks governing the job's current
// phase. Jobs in progress face both the completion and evidence-submission
// deadlines.
func ChecksForJob(job model.Job, now time.Time) []PhaseCheck {
	urgency := UrgencyForJob(job, now)

	var checks []PhaseCheck
	switch job.Status {
	case model.JobStatusPendingDispatch:
		checks = append(checks, PhaseCheck{
			BreachType: BreachDispatchDelayed,
			Elapsed:    now.Sub(job.CreatedAt),
			Budget:     dispatchBudgets[urgency],
		})
	case model.JobStatusDispatched:
		if job.DispatchedAt != nil {
			checks = append(checks, PhaseCheck{
				BreachType: BreachAcceptanceOverdue,
				Elapsed:    now.Sub(*job.DispatchedAt),
				Budget:     acceptanceBudgets[urgency],
			})
		}
	case model.JobStatusAccepted, model.JobStatusSubmitted:
		if c := completionCheck(job, now); c != nil {
			checks = append(checks, *c)
		}
	case model.JobStatusInProgress:
		if c := completionCheck(job, now); c != nil {
			checks = append(checks, *c)
		}
		if job.StartedAt != nil {
			checks = append(checks, PhaseCheck{
				BreachType: BreachEvidenceOverdue,
				Elapsed:    now.Sub(*job.StartedAt),
				Budget:     evidenceBudgets[urgency],
			})
		}
	}
	return checks
}

// completionCheck prefers the budget implied by the job's own deadline,
// falling back to the per-type default.
func completionCheck(job model.Job, now time.Time) *PhaseCheck {
	if job.AcceptedAt == nil {
		return nil
	}

	budget, ok := completionDefaults[job.Type]
	if !ok {
		budget = completionDefaults[model.JobTypeExteriorInspection]
	}
	if job.SLADueAt != nil && job.SLADueAt.After(*job.AcceptedAt) {
		budget = job.SLADueAt.Sub(*job.AcceptedAt)
	}

	return &PhaseCheck{
		BreachType: BreachCompletionOverdue,
		Elapsed:    now.Sub(*job.AcceptedAt),
		Budget:     budget,
	}
}
