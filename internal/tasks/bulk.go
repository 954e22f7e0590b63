package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/events"
	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

// bulkConflictMessage is recorded on a job cancelled because another bulk
// visibility job already holds the site.
const bulkConflictMessage = "cancelled: another bulk visibility job is already in progress for this site"

// VisibilityJobRunner changes the visibility of a site and all of its content
// in one pass. Index scheduling for the site is paused for the duration, so
// the per-row writes do not fan out into thousands of sync tasks; one full
// site resync is scheduled at the end instead.
type VisibilityJobRunner struct {
	db    *storage.DB
	sched events.Scheduler
	log   *zap.Logger

	mu sync.Mutex
}

func NewVisibilityJobRunner(db *storage.DB, sched events.Scheduler, log *zap.Logger) *VisibilityJobRunner {
	return &VisibilityJobRunner{db: db, sched: sched, log: log}
}

// Run executes one bulk visibility change and returns its job record. When
// another job for the same site is still in progress, the new request is
// recorded as cancelled with an explanatory message and no data changes.
func (r *VisibilityJobRunner) Run(ctx context.Context, siteID string, vis storage.Visibility) (*storage.BulkVisibilityJob, error) {
	now := time.Now().UTC()
	job := &storage.BulkVisibilityJob{
		ID:           uuid.NewString(),
		SiteID:       siteID,
		Visibility:   vis,
		Status:       storage.JobInProgress,
		Created:      now,
		LastModified: now,
	}

	// The check and the insert must be atomic against concurrent runners in
	// this process; the status index guards against a second process.
	r.mu.Lock()
	active, err := r.db.GetActiveBulkVisibilityJob(siteID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if active != nil {
		job.Status = storage.JobCancelled
		job.Message = bulkConflictMessage
		err := r.db.CreateBulkVisibilityJob(job)
		r.mu.Unlock()
		if err != nil {
			return nil, err
		}
		r.log.Warn("bulk visibility job cancelled",
			zap.String("site_id", siteID),
			zap.String("job_id", job.ID),
			zap.String("in_progress_job_id", active.ID))
		return job, nil
	}
	if err := r.db.CreateBulkVisibilityJob(job); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	if err := events.Pause(r.db, siteID); err != nil {
		return r.fail(job, err)
	}
	updateErr := r.db.BulkSetVisibility(siteID, vis, time.Now().UTC())
	if err := events.Unpause(r.db, siteID); err != nil {
		r.log.Error("unpause failed after bulk update", zap.String("site_id", siteID), zap.Error(err))
	}
	if updateErr != nil {
		return r.fail(job, updateErr)
	}

	r.scheduleResync(siteID)

	if err := r.db.SetBulkVisibilityJobStatus(job.ID, storage.JobComplete, ""); err != nil {
		return nil, err
	}
	job.Status = storage.JobComplete
	r.log.Info("bulk visibility job complete",
		zap.String("site_id", siteID),
		zap.String("job_id", job.ID),
		zap.Int("visibility", int(vis)))
	return job, nil
}

func (r *VisibilityJobRunner) fail(job *storage.BulkVisibilityJob, cause error) (*storage.BulkVisibilityJob, error) {
	if err := r.db.SetBulkVisibilityJobStatus(job.ID, storage.JobFailed, cause.Error()); err != nil {
		r.log.Error("marking bulk job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	job.Status = storage.JobFailed
	job.Message = cause.Error()
	return job, cause
}

// scheduleResync brings the index back in step with everything the bulk
// update touched: all site content, the site's own document, and the parent
// language whose eligibility may have flipped.
func (r *VisibilityJobRunner) scheduleResync(siteID string) {
	for _, tag := range []string{index.TagDictionaryEntry, index.TagSong, index.TagStory, index.TagMedia} {
		r.sched.EnqueueSiteRebuild(tag, siteID)
	}
	r.sched.EnqueueSync(index.TagSite, siteID)

	site, err := r.db.GetSite(siteID)
	if err != nil {
		r.log.Warn("site lookup failed after bulk update", zap.String("site_id", siteID), zap.Error(err))
		return
	}
	if site != nil && site.LanguageID != "" {
		r.sched.EnqueueSync(index.TagLanguage, site.LanguageID)
	}
}
