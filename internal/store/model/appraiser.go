package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// License tiers, lowest to highest. Only the top two tiers may perform
// certified appraisal work.
const (
	LicenseTierTrainee          = "trainee"
	LicenseTierLicensed         = "licensed"
	LicenseTierCertified        = "certified"
	LicenseTierCertifiedGeneral = "certified-general"
)

var licenseTierRank = map[string]int{
	LicenseTierTrainee:          0,
	LicenseTierLicensed:         1,
	LicenseTierCertified:        2,
	LicenseTierCertifiedGeneral: 3,
}

// LicenseTierRank returns the ordinal of a tier, -1 for unknown tiers.
func LicenseTierRank(tier string) int {
	if r, ok := licenseTierRank[tier]; ok {
		return r
	}
	return -1
}

// Verification statuses.
const (
	VerificationStatusPending  = "PENDING"
	VerificationStatusVerified = "VERIFIED"
	VerificationStatusRejected = "REJECTED"
)

const DefaultCoverageRadiusMiles = 25.0

type AppraiserProfile struct {
	ID                  uuid.UUID `gorm:"primaryKey"`
	OwnerUserID         uuid.UUID `gorm:"not null;index"`
	LicenseTier         string    `gorm:"not null;type:VARCHAR(50)"`
	LicenseExpiresAt    time.Time `gorm:"not null"`
	HomeLat             float64   `gorm:"not null"`
	HomeLon             float64   `gorm:"not null"`
	CoverageRadiusMiles float64
	VerificationStatus  string `gorm:"not null;index;type:VARCHAR(50)"`
	CompletedJobs       int
	CancelledJobs       int
	Rating              float64
	Schedule            *JSONField[WeeklySchedule] `gorm:"type:jsonb"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type AppraiserProfileList []AppraiserProfile

func (a AppraiserProfile) String() string {
	val, _ := json.Marshal(a)
	return string(val)
}

func NewAppraiserProfileFromID(id uuid.UUID) *AppraiserProfile {
	return &AppraiserProfile{ID: id}
}

// CoverageRadius returns the profile's service-area radius, falling back to
// the default when unset.
func (a AppraiserProfile) CoverageRadius() float64 {
	if a.CoverageRadiusMiles <= 0 {
		return DefaultCoverageRadiusMiles
	}
	return a.CoverageRadiusMiles
}

// WeeklySchedule returns the appraiser's schedule, zero-valued when none was
// ever set. A zero schedule falls back to default business hours everywhere.
func (a AppraiserProfile) WeeklySchedule() WeeklySchedule {
	if a.Schedule == nil {
		return WeeklySchedule{}
	}
	return a.Schedule.Data
}
