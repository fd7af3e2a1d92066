// Package matcher finds and ranks eligible appraisers for a job. Candidates
// are filtered on geography, license, workload and schedule, then scored
// with a weighted model and returned best first.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fieldval/dispatch-engine/internal/geo"
	"github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/fieldval/dispatch-engine/pkg/metrics"
	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxRadiusMiles bounds the search when the caller gives no radius.
	DefaultMaxRadiusMiles = 25.0
	// MaxConcurrentJobs is the per-appraiser workload cap.
	MaxConcurrentJobs = 5
	// MaxResults caps the ranked candidate list.
	MaxResults = 10

	defaultParallelism = 8
)

// Options narrows and biases a single matching call.
type Options struct {
	MaxRadiusMiles      float64
	Urgency             string
	PreferredAppraisers []uuid.UUID
	ExcludedAppraisers  []uuid.UUID
}

// MatchedAppraiser is one ranked candidate. It lives only for the duration
// of a matching call and is never persisted.
type MatchedAppraiser struct {
	AppraiserID         uuid.UUID
	DistanceMiles       float64
	Score               float64
	EstimatedArrivalMin int
}

type Matcher struct {
	store       store.Store
	weights     Weights
	parallelism int
	nowFn       func() time.Time
}

type Option func(m *Matcher)

func WithParallelism(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// WithClock overrides the time source, used to pin schedules in tests.
func WithClock(nowFn func() time.Time) Option {
	return func(m *Matcher) {
		m.nowFn = nowFn
	}
}

func New(s store.Store, weights Weights, opts ...Option) (*Matcher, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	m := &Matcher{
		store:       s,
		weights:     weights,
		parallelism: defaultParallelism,
		nowFn:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// FindMatches returns eligible appraisers for the job ranked by score,
// preferred ids first. An empty result is a legitimate outcome, not an
// error.
func (m *Matcher) FindMatches(ctx context.Context, job model.Job, opts Options) ([]MatchedAppraiser, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveMatchDurationMetric(time.Since(start))
	}()

	radius := opts.MaxRadiusMiles
	if radius <= 0 {
		radius = DefaultMaxRadiusMiles
	}

	filter := store.NewAppraiserQueryFilter().
		ByVerificationStatus(model.VerificationStatusVerified).
		ExcludeIDs(opts.ExcludedAppraisers)
	profiles, err := m.store.Appraiser().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing appraisers: %w", err)
	}

	activeCounts, err := m.store.Job().ActiveCountByAppraiser(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active job counts: %w", err)
	}

	property := geo.Point{Lat: job.PropertyLat, Lon: job.PropertyLon}
	box := geo.NewBoundingBox(property, radius)
	now := m.nowFn()

	// Candidate evaluation has no ordering dependency; fan out bounded and
	// join into a positional slice so ties keep the iteration order.
	results := make([]*MatchedAppraiser, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, profile := range profiles {
		i, profile := i, profile
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.evaluate(job, profile, property, box, radius, activeCounts[profile.ID], opts.Urgency, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matched := make([]MatchedAppraiser, 0, len(results))
	for _, r := range results {
		if r != nil {
			matched = append(matched, *r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		pi := funk.Contains(opts.PreferredAppraisers, matched[i].AppraiserID)
		pj := funk.Contains(opts.PreferredAppraisers, matched[j].AppraiserID)
		if pi != pj {
			return pi
		}
		return matched[i].Score > matched[j].Score
	})

	if len(matched) > MaxResults {
		matched = matched[:MaxResults]
	}
	return matched, nil
}

// evaluate runs one candidate through the eligibility gates and scores the
// survivors. It returns nil when the candidate is ineligible.
func (m *Matcher) evaluate(job model.Job, profile model.AppraiserProfile, property geo.Point, box geo.BoundingBox, radius float64, activeCount int, urgency string, now time.Time) *MatchedAppraiser {
	home := geo.Point{Lat: profile.HomeLat, Lon: profile.HomeLon}
	if !box.Contains(home) {
		return nil
	}

	distance := geo.Distance(property, home)
	if distance > radius {
		return nil
	}
	if !geo.IsWithinServiceArea(property, home, profile.CoverageRadius()) {
		return nil
	}

	if !licenseEligible(profile, job.Type, now) {
		return nil
	}

	if activeCount >= MaxConcurrentJobs {
		return nil
	}

	window := profile.WeeklySchedule().WindowAt(now)
	if !window.Contains(now) {
		return nil
	}

	return &MatchedAppraiser{
		AppraiserID:         profile.ID,
		DistanceMiles:       distance,
		Score:               m.weights.score(profile, distance, radius, window, activeCount, urgency, now),
		EstimatedArrivalMin: geo.EstimateTravelTime(home, property, 1.0),
	}
}

// licenseEligible gates on expiry and tier: certified appraisals need one of
// the top two tiers, inspection-only work accepts any known tier.
func licenseEligible(profile model.AppraiserProfile, jobType string, now time.Time) bool {
	if !profile.LicenseExpiresAt.After(now) {
		return false
	}

	rank := model.LicenseTierRank(profile.LicenseTier)
	if rank < 0 {
		return false
	}
	if jobType == model.JobTypeCertifiedAppraisal {
		return rank >= model.LicenseTierRank(model.LicenseTierCertified)
	}
	return true
}
