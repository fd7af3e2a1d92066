package store_test

import (
	"context"
	"time"

	"github.com/fieldval/dispatch-engine/internal/config"
	st "github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/internal/store/model"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("job store", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())
		gormDB = db

		store = st.NewStore(db)
		Expect(store.InitialMigration()).To(Succeed())
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM job_history_entries;")
		gormDB.Exec("DELETE FROM jobs;")
	})

	Context("Create", func() {
		It("defaults the id and status", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{
				Type:        model.JobTypeExteriorInspection,
				PropertyLat: 30.2672,
				PropertyLon: -97.7431,
			})
			Expect(err).To(BeNil())
			Expect(job.ID).NotTo(Equal(uuid.UUID{}))
			Expect(job.Status).To(Equal(model.JobStatusPendingDispatch))
		})

		It("keeps a caller-provided id and status", func() {
			id := uuid.New()
			job, err := store.Job().Create(context.TODO(), model.Job{
				ID:     id,
				Type:   model.JobTypeSitePhotoCapture,
				Status: model.JobStatusDispatched,
			})
			Expect(err).To(BeNil())
			Expect(job.ID).To(Equal(id))
			Expect(job.Status).To(Equal(model.JobStatusDispatched))
		})
	})

	Context("Update", func() {
		It("applies a conditional update when the status matches", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			now := time.Now()
			job.Status = model.JobStatusDispatched
			job.DispatchedAt = &now
			err = store.Job().Update(context.TODO(), job, model.JobStatusPendingDispatch)
			Expect(err).To(BeNil())

			got, err := store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusDispatched))
			Expect(got.DispatchedAt).NotTo(BeNil())
		})

		It("reports a stale status when the row moved on", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			job.Status = model.JobStatusAccepted
			err = store.Job().Update(context.TODO(), job, model.JobStatusDispatched)
			Expect(err).To(MatchError(st.ErrStaleStatus))

			got, err := store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusPendingDispatch))
		})

		It("reports a missing record distinctly", func() {
			missing := model.NewJobFromID(uuid.New())
			missing.Status = model.JobStatusDispatched
			err := store.Job().Update(context.TODO(), missing, model.JobStatusPendingDispatch)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("History", func() {
		It("appends entries and returns them in order", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			statuses := []string{
				model.JobStatusDispatched,
				model.JobStatusAccepted,
				model.HistoryStatusReassigned,
			}
			for _, status := range statuses {
				err = store.Job().AppendHistory(context.TODO(), model.JobHistoryEntry{
					JobID:  job.ID,
					Status: status,
				})
				Expect(err).To(BeNil())
			}

			entries, err := store.Job().History(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(3))
			for i, status := range statuses {
				Expect(entries[i].Status).To(Equal(status))
			}
		})

		It("preloads history on Get", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			err = store.Job().AppendHistory(context.TODO(), model.JobHistoryEntry{
				JobID:  job.ID,
				Status: model.JobStatusDispatched,
				Metadata: model.MakeJSONField(map[string]any{
					model.MetaMatchCount: 3,
				}),
			})
			Expect(err).To(BeNil())

			got, err := store.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.History).To(HaveLen(1))
			Expect(got.History[0].Metadata.Data[model.MetaMatchCount]).To(BeEquivalentTo(3))
		})
	})

	Context("LastEscalation", func() {
		appendEscalation := func(jobID uuid.UUID, breachType, level string) {
			err := store.Job().AppendHistory(context.TODO(), model.JobHistoryEntry{
				JobID:  jobID,
				Status: model.HistoryStatusSLAEscalated,
				Metadata: model.MakeJSONField(map[string]any{
					model.MetaBreachType:      breachType,
					model.MetaEscalationLevel: level,
				}),
			})
			Expect(err).To(BeNil())
		}

		It("returns the newest escalation entry for the breach type", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			appendEscalation(job.ID, "DISPATCH_DELAYED", "LEVEL_1")
			appendEscalation(job.ID, "DISPATCH_DELAYED", "LEVEL_2")

			last, err := store.Job().LastEscalation(context.TODO(), job.ID, "DISPATCH_DELAYED")
			Expect(err).To(BeNil())
			Expect(last.EscalationLevel()).To(Equal("LEVEL_2"))
		})

		It("tracks breach types independently", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			appendEscalation(job.ID, "COMPLETION_OVERDUE", "LEVEL_2")
			appendEscalation(job.ID, "EVIDENCE_OVERDUE", "LEVEL_3")

			completion, err := store.Job().LastEscalation(context.TODO(), job.ID, "COMPLETION_OVERDUE")
			Expect(err).To(BeNil())
			Expect(completion.EscalationLevel()).To(Equal("LEVEL_2"))

			evidence, err := store.Job().LastEscalation(context.TODO(), job.ID, "EVIDENCE_OVERDUE")
			Expect(err).To(BeNil())
			Expect(evidence.EscalationLevel()).To(Equal("LEVEL_3"))
		})

		It("reports not found when no escalation of the type exists", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			_, err = store.Job().LastEscalation(context.TODO(), job.ID, "DISPATCH_DELAYED")
			Expect(err).To(MatchError(st.ErrRecordNotFound))

			appendEscalation(job.ID, "COMPLETION_OVERDUE", "LEVEL_1")
			_, err = store.Job().LastEscalation(context.TODO(), job.ID, "DISPATCH_DELAYED")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("ActiveCountByAppraiser", func() {
		It("counts only active statuses per appraiser", func() {
			busy := uuid.New()
			idle := uuid.New()

			for _, status := range []string{
				model.JobStatusAccepted,
				model.JobStatusInProgress,
			} {
				_, err := store.Job().Create(context.TODO(), model.Job{
					Type:                model.JobTypeExteriorInspection,
					Status:              status,
					AssignedAppraiserID: &busy,
				})
				Expect(err).To(BeNil())
			}
			_, err := store.Job().Create(context.TODO(), model.Job{
				Type:                model.JobTypeExteriorInspection,
				Status:              model.JobStatusCompleted,
				AssignedAppraiserID: &idle,
			})
			Expect(err).To(BeNil())

			counts, err := store.Job().ActiveCountByAppraiser(context.TODO())
			Expect(err).To(BeNil())
			Expect(counts[busy]).To(Equal(2))
			Expect(counts).NotTo(HaveKey(idle))
		})
	})

	Context("CountByStatus", func() {
		It("groups counts by status", func() {
			for i := 0; i < 2; i++ {
				_, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
				Expect(err).To(BeNil())
			}
			_, err := store.Job().Create(context.TODO(), model.Job{
				Type:   model.JobTypeExteriorInspection,
				Status: model.JobStatusCompleted,
			})
			Expect(err).To(BeNil())

			counts, err := store.Job().CountByStatus(context.TODO(),
				model.JobStatusPendingDispatch, model.JobStatusCompleted)
			Expect(err).To(BeNil())
			Expect(counts[model.JobStatusPendingDispatch]).To(BeEquivalentTo(2))
			Expect(counts[model.JobStatusCompleted]).To(BeEquivalentTo(1))
		})
	})

	Context("CountEscalationsSince", func() {
		It("counts only escalation entries after the cutoff", func() {
			job, err := store.Job().Create(context.TODO(), model.Job{Type: model.JobTypeExteriorInspection})
			Expect(err).To(BeNil())

			err = store.Job().AppendHistory(context.TODO(), model.JobHistoryEntry{
				JobID:  job.ID,
				Status: model.HistoryStatusSLAEscalated,
			})
			Expect(err).To(BeNil())
			err = store.Job().AppendHistory(context.TODO(), model.JobHistoryEntry{
				JobID:  job.ID,
				Status: model.JobStatusDispatched,
			})
			Expect(err).To(BeNil())

			count, err := store.Job().CountEscalationsSince(context.TODO(), time.Now().Add(-time.Hour))
			Expect(err).To(BeNil())
			Expect(count).To(BeEquivalentTo(1))

			count, err = store.Job().CountEscalationsSince(context.TODO(), time.Now().Add(time.Hour))
			Expect(err).To(BeNil())
			Expect(count).To(BeEquivalentTo(0))
		})
	})

	Context("List", func() {
		It("filters by status oldest first with a limit", func() {
			older, err := store.Job().Create(context.TODO(), model.Job{
				Type:      model.JobTypeExteriorInspection,
				CreatedAt: time.Now().Add(-2 * time.Hour),
			})
			Expect(err).To(BeNil())
			_, err = store.Job().Create(context.TODO(), model.Job{
				Type:      model.JobTypeExteriorInspection,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			})
			Expect(err).To(BeNil())
			_, err = store.Job().Create(context.TODO(), model.Job{
				Type:   model.JobTypeExteriorInspection,
				Status: model.JobStatusCompleted,
			})
			Expect(err).To(BeNil())

			jobs, err := store.Job().List(context.TODO(),
				st.NewJobQueryFilter().ByStatus(model.JobStatusPendingDispatch),
				st.NewJobQueryOptions().OldestFirst().WithLimit(1),
			)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal(older.ID))
		})

		It("filters by assigned appraiser and creation cutoff", func() {
			mine := uuid.New()
			other := uuid.New()

			recent, err := store.Job().Create(context.TODO(), model.Job{
				Type:                model.JobTypeExteriorInspection,
				Status:              model.JobStatusAccepted,
				AssignedAppraiserID: &mine,
				CreatedAt:           time.Now().Add(-time.Hour),
			})
			Expect(err).To(BeNil())
			_, err = store.Job().Create(context.TODO(), model.Job{
				Type:                model.JobTypeExteriorInspection,
				Status:              model.JobStatusAccepted,
				AssignedAppraiserID: &other,
				CreatedAt:           time.Now().Add(-time.Hour),
			})
			Expect(err).To(BeNil())
			_, err = store.Job().Create(context.TODO(), model.Job{
				Type:                model.JobTypeExteriorInspection,
				Status:              model.JobStatusAccepted,
				AssignedAppraiserID: &mine,
			})
			Expect(err).To(BeNil())

			jobs, err := store.Job().List(context.TODO(),
				st.NewJobQueryFilter().
					ByAssignedAppraiser(mine).
					CreatedBefore(time.Now().Add(-30*time.Minute)),
				nil,
			)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal(recent.ID))
		})
	})
})
