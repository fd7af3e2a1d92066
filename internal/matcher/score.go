package matcher

import (
	"errors"
	"math"
	"time"

	"github.com/fieldval/dispatch-engine/internal/store/model"
)

const (
	// defaultCompletionRate is assumed for appraisers with no history yet.
	defaultCompletionRate = 0.9
	// experienceCapJobs is the total-jobs count past which the experience
	// score maxes out.
	experienceCapJobs = 100
	// closingSoonMinutes is the window tail inside which availability starts
	// dropping off.
	closingSoonMinutes = 120.0

	highRatingThreshold = 4.5
	criticalBonus       = 1.10
)

// Weights is the scoring configuration. The components must sum to 1.0 so
// alternate weightings stay comparable; construction rejects anything else.
type Weights struct {
	Distance       float64
	Rating         float64
	CompletionRate float64
	Availability   float64
	Experience     float64
}

func DefaultWeights() Weights {
	return Weights{
		Distance:       0.30,
		Rating:         0.25,
		CompletionRate: 0.20,
		Availability:   0.15,
		Experience:     0.10,
	}
}

func (w Weights) Validate() error {
	sum := w.Distance + w.Rating + w.CompletionRate + w.Availability + w.Experience
	if math.Abs(sum-1.0) > 1e-9 {
		return errors.New("scoring weights must sum to 1.0")
	}
	return nil
}

func (w Weights) score(profile model.AppraiserProfile, distance, radius float64, window model.DayWindow, activeCount int, urgency string, now time.Time) float64 {
	score := w.Distance*distanceScore(distance, radius) +
		w.Rating*profile.Rating/5.0 +
		w.CompletionRate*completionRate(profile) +
		w.Availability*availabilityScore(window, activeCount, now) +
		w.Experience*experienceScore(profile)

	if urgency == model.UrgencyCritical && profile.Rating >= highRatingThreshold {
		score *= criticalBonus
	}
	return score
}

// distanceScore normalizes linearly against the effective radius: 1.0 at the
// property, 0.0 at the edge.
func distanceScore(distance, radius float64) float64 {
	if radius <= 0 {
		return 0
	}
	s := 1.0 - distance/radius
	if s < 0 {
		return 0
	}
	return s
}

func completionRate(profile model.AppraiserProfile) float64 {
	total := profile.CompletedJobs + profile.CancelledJobs
	if total == 0 {
		return defaultCompletionRate
	}
	return float64(profile.CompletedJobs) / float64(total)
}

// availabilityScore penalizes candidates whose window is about to close and
// those already carrying a heavy share of the concurrency cap.
func availabilityScore(window model.DayWindow, activeCount int, now time.Time) float64 {
	timeLeft := window.MinutesUntilClose(now) / closingSoonMinutes
	if timeLeft > 1.0 {
		timeLeft = 1.0
	}

	workload := 1.0 - float64(activeCount)/float64(MaxConcurrentJobs)
	if workload < 0 {
		workload = 0
	}

	return 0.5*timeLeft + 0.5*workload
}

func experienceScore(profile model.AppraiserProfile) float64 {
	total := profile.CompletedJobs + profile.CancelledJobs
	if total > experienceCapJobs {
		total = experienceCapJobs
	}
	return float64(total) / float64(experienceCapJobs)
}
