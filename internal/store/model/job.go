package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job lifecycle statuses. The happy path runs top to bottom; CANCELLED and
// NO_MATCHES are terminal alternates.
const (
	JobStatusPendingDispatch = "PENDING_DISPATCH"
	JobStatusDispatched      = "DISPATCHED"
	JobStatusAccepted        = "ACCEPTED"
	JobStatusInProgress      = "IN_PROGRESS"
	JobStatusSubmitted       = "SUBMITTED"
	JobStatusUnderReview     = "UNDER_REVIEW"
	JobStatusCompleted       = "COMPLETED"
	JobStatusCancelled       = "CANCELLED"
	JobStatusNoMatches       = "NO_MATCHES"
)

// Job types.
const (
	JobTypeSitePhotoCapture   = "site-photo-capture"
	JobTypeExteriorInspection = "exterior-inspection"
	JobTypeCertifiedAppraisal = "certified-appraisal"
)

// Urgency tiers, derived from proximity to a job's deadline.
const (
	UrgencyNormal   = "NORMAL"
	UrgencyUrgent   = "URGENT"
	UrgencyCritical = "CRITICAL"
)

// History entry statuses that never appear on the job record itself.
const (
	HistoryStatusUnassigned   = "UNASSIGNED"
	HistoryStatusReassigned   = "REASSIGNED"
	HistoryStatusSLAEscalated = "SLA_ESCALATED"
)

// Metadata keys used in history entries.
const (
	MetaMatchCount        = "match_count"
	MetaPreviousAppraiser = "previous_appraiser_id"
	MetaReason            = "reason"
	MetaEscalationLevel   = "escalation_level"
	MetaBreachType        = "breach_type"
	MetaHoursOverdue      = "hours_overdue"
	MetaAssignedAppraiser = "assigned_appraiser_id"
)

type Job struct {
	ID                  uuid.UUID `gorm:"primaryKey"`
	Type                string    `gorm:"not null;type:VARCHAR(100)"`
	Status              string    `gorm:"not null;index;type:VARCHAR(50)"`
	PropertyLat         float64   `gorm:"not null"`
	PropertyLon         float64   `gorm:"not null"`
	ClientUserID        uuid.UUID
	AssignedAppraiserID *uuid.UUID `gorm:"index"`
	SLADueAt            *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DispatchedAt        *time.Time
	AcceptedAt          *time.Time
	StartedAt           *time.Time
	SubmittedAt         *time.Time
	CompletedAt         *time.Time
	History             []JobHistoryEntry `gorm:"foreignKey:JobID;references:ID;constraint:OnDelete:CASCADE;"`
}

type JobList []Job

// JobHistoryEntry is one row of a job's append-only status history. The
// auto-incremented id gives the entries their total order; rows are never
// updated or deleted.
type JobHistoryEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	JobID     uuid.UUID `gorm:"not null;index"`
	Status    string    `gorm:"not null;type:VARCHAR(50)"`
	CreatedAt time.Time
	Metadata  *JSONField[map[string]any] `gorm:"type:jsonb"`
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

func NewJobFromID(id uuid.UUID) *Job {
	return &Job{ID: id}
}

// IsTerminal reports whether no further lifecycle transitions are allowed.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled, JobStatusNoMatches:
		return true
	}
	return false
}

// EscalationLevel returns the level carried by a history entry, or "" when
// the entry does not record an escalation.
func (h JobHistoryEntry) EscalationLevel() string {
	if h.Metadata == nil {
		return ""
	}
	lvl, _ := h.Metadata.Data[MetaEscalationLevel].(string)
	return lvl
}

// BreachType returns the breach type carried by an escalation entry, or ""
// for entries that do not record one.
func (h JobHistoryEntry) BreachType() string {
	if h.Metadata == nil {
		return ""
	}
	bt, _ := h.Metadata.Data[MetaBreachType].(string)
	return bt
}
