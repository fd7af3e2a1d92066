package matcher_test

import (
	"context"
	"time"

	"github.com/fieldval/dispatch-engine/internal/config"
	"github.com/fieldval/dispatch-engine/internal/matcher"
	st "github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("matcher", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
		m      *matcher.Matcher
	)

	// a Monday mid-morning, inside default business hours
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	austin := model.Job{
		Type:        model.JobTypeExteriorInspection,
		PropertyLat: 30.2672,
		PropertyLon: -97.7431,
	}

	newProfile := func(lat, lon float64) model.AppraiserProfile {
		return model.AppraiserProfile{
			OwnerUserID:        uuid.New(),
			LicenseTier:        model.LicenseTierLicensed,
			LicenseExpiresAt:   now.Add(365 * 24 * time.Hour),
			HomeLat:            lat,
			HomeLon:            lon,
			VerificationStatus: model.VerificationStatusVerified,
			Rating:             4.0,
			CompletedJobs:      20,
		}
	}

	BeforeAll(func() {
		cfg := config.NewDefault()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())
		gormDB = db

		store = st.NewStore(db)
		Expect(store.InitialMigration()).To(Succeed())

		m, err = matcher.New(store, matcher.DefaultWeights(), matcher.WithClock(func() time.Time { return now }))
		Expect(err).To(BeNil())
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM job_history_entries;")
		gormDB.Exec("DELETE FROM jobs;")
		gormDB.Exec("DELETE FROM appraiser_profiles;")
	})

	Context("eligibility gates", func() {
		It("keeps only the candidate passing every gate", func() {
			expired := newProfile(30.28, -97.75)
			expired.LicenseExpiresAt = now.Add(-time.Hour)
			_, err := store.Appraiser().Create(context.TODO(), expired)
			Expect(err).To(BeNil())

			overloaded, err := store.Appraiser().Create(context.TODO(), newProfile(30.29, -97.72))
			Expect(err).To(BeNil())
			for i := 0; i < matcher.MaxConcurrentJobs; i++ {
				_, err = store.Job().Create(context.TODO(), model.Job{
					Type:                model.JobTypeExteriorInspection,
					Status:              model.JobStatusAccepted,
					AssignedAppraiserID: &overloaded.ID,
				})
				Expect(err).To(BeNil())
			}

			eligible, err := store.Appraiser().Create(context.TODO(), newProfile(30.30, -97.70))
			Expect(err).To(BeNil())

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].AppraiserID).To(Equal(eligible.ID))
			Expect(matches[0].DistanceMiles).To(BeNumerically(">", 0))
			Expect(matches[0].EstimatedArrivalMin).To(BeNumerically(">", 0))
		})

		It("rejects candidates outside the search radius", func() {
			// Houston is ~146 miles from the Austin property
			_, err := store.Appraiser().Create(context.TODO(), newProfile(29.7604, -95.3698))
			Expect(err).To(BeNil())

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(matches).To(BeEmpty())
		})

		It("requires a certified tier for certified appraisals", func() {
			licensed, err := store.Appraiser().Create(context.TODO(), newProfile(30.28, -97.75))
			Expect(err).To(BeNil())

			certified := newProfile(30.29, -97.72)
			certified.LicenseTier = model.LicenseTierCertifiedGeneral
			certifiedProfile, err := store.Appraiser().Create(context.TODO(), certified)
			Expect(err).To(BeNil())

			job := austin
			job.Type = model.JobTypeCertifiedAppraisal
			matches, err := m.FindMatches(context.TODO(), job, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].AppraiserID).To(Equal(certifiedProfile.ID))
			Expect(matches[0].AppraiserID).NotTo(Equal(licensed.ID))
		})

		It("rejects candidates whose schedule is closed", func() {
			closed := newProfile(30.28, -97.75)
			closed.Schedule = model.MakeJSONField(model.WeeklySchedule{
				ByDay: map[time.Weekday]model.DayWindow{
					time.Monday: {Closed: true},
				},
			})
			_, err := store.Appraiser().Create(context.TODO(), closed)
			Expect(err).To(BeNil())

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(matches).To(BeEmpty())
		})

		It("honors the exclusion list", func() {
			excluded, err := store.Appraiser().Create(context.TODO(), newProfile(30.28, -97.75))
			Expect(err).To(BeNil())

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{
				ExcludedAppraisers: []uuid.UUID{excluded.ID},
			})
			Expect(err).To(BeNil())
			Expect(matches).To(BeEmpty())
		})
	})

	Context("ranking", func() {
		It("orders by score, best first", func() {
			weak := newProfile(30.40, -97.60)
			weak.Rating = 2.0
			weakProfile, err := store.Appraiser().Create(context.TODO(), weak)
			Expect(err).To(BeNil())

			strong := newProfile(30.28, -97.75)
			strong.Rating = 5.0
			strong.CompletedJobs = 100
			strongProfile, err := store.Appraiser().Create(context.TODO(), strong)
			Expect(err).To(BeNil())

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].AppraiserID).To(Equal(strongProfile.ID))
			Expect(matches[1].AppraiserID).To(Equal(weakProfile.ID))
			Expect(matches[0].Score).To(BeNumerically(">", matches[1].Score))
		})

		It("ranks preferred appraisers ahead of higher scores", func() {
			weak := newProfile(30.40, -97.60)
			weak.Rating = 2.0
			weakProfile, err := store.Appraiser().Create(context.TODO(), weak)
			Expect(err).To(BeNil())

			strong := newProfile(30.28, -97.75)
			strong.Rating = 5.0
			_, err = store.Appraiser().Create(context.TODO(), strong)
			Expect(err).To(BeNil())

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{
				PreferredAppraisers: []uuid.UUID{weakProfile.ID},
			})
			Expect(err).To(BeNil())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].AppraiserID).To(Equal(weakProfile.ID))
		})

		It("returns an identical ordering across repeated runs", func() {
			// identical profiles score identically, so ordering is decided
			// purely by the tie rule
			for i := 0; i < 6; i++ {
				_, err := store.Appraiser().Create(context.TODO(), newProfile(30.28, -97.75))
				Expect(err).To(BeNil())
			}

			first, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(first).To(HaveLen(6))
			for _, match := range first[1:] {
				Expect(match.Score).To(Equal(first[0].Score))
			}

			second, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(second).To(Equal(first))

			// ties keep the store's listing order
			profiles, err := store.Appraiser().List(context.TODO(),
				st.NewAppraiserQueryFilter().ByVerificationStatus(model.VerificationStatusVerified))
			Expect(err).To(BeNil())
			for i, profile := range profiles {
				Expect(first[i].AppraiserID).To(Equal(profile.ID))
			}
		})

		It("caps the result list", func() {
			for i := 0; i < matcher.MaxResults+3; i++ {
				_, err := store.Appraiser().Create(context.TODO(), newProfile(30.28, -97.75))
				Expect(err).To(BeNil())
			}

			matches, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			Expect(matches).To(HaveLen(matcher.MaxResults))
		})

		It("boosts high-rated candidates on critical jobs", func() {
			top := newProfile(30.28, -97.75)
			top.Rating = 4.8
			_, err := store.Appraiser().Create(context.TODO(), top)
			Expect(err).To(BeNil())

			normal, err := m.FindMatches(context.TODO(), austin, matcher.Options{})
			Expect(err).To(BeNil())
			critical, err := m.FindMatches(context.TODO(), austin, matcher.Options{
				Urgency: model.UrgencyCritical,
			})
			Expect(err).To(BeNil())

			Expect(critical[0].Score).To(BeNumerically("~", normal[0].Score*1.10, 1e-9))
		})
	})

	Context("weights", func() {
		It("rejects weights that do not sum to 1.0", func() {
			_, err := matcher.New(store, matcher.Weights{Distance: 0.5, Rating: 0.6})
			Expect(err).To(HaveOccurred())
		})
	})
})
