package storage

import (
	"database/sql"
	"time"
)

// CreateBulkVisibilityJob inserts a new job record.
func (d *DB) CreateBulkVisibilityJob(j *BulkVisibilityJob) error {
	_, err := d.db.Exec(`
	INSERT INTO bulk_visibility_jobs (id, site_id, visibility, status, message, created, last_modified)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.SiteID, int(j.Visibility), string(j.Status), j.Message, j.Created, j.LastModified)
	return err
}

// SetBulkVisibilityJobStatus advances a job to a new status.
func (d *DB) SetBulkVisibilityJobStatus(id string, status BulkJobStatus, message string) error {
	_, err := d.db.Exec(`
	UPDATE bulk_visibility_jobs SET status = ?, message = ?, last_modified = ? WHERE id = ?
	`, string(status), message, time.Now().UTC(), id)
	return err
}

// GetBulkVisibilityJob retrieves a job by id, returning nil when it does not
// exist.
func (d *DB) GetBulkVisibilityJob(id string) (*BulkVisibilityJob, error) {
	return d.scanBulkJob(d.db.QueryRow(`
	SELECT id, site_id, visibility, status, message, created, last_modified
	FROM bulk_visibility_jobs WHERE id = ?`, id))
}

// GetActiveBulkVisibilityJob returns the in-progress job for a site, or nil
// when none is running.
func (d *DB) GetActiveBulkVisibilityJob(siteID string) (*BulkVisibilityJob, error) {
	return d.scanBulkJob(d.db.QueryRow(`
	SELECT id, site_id, visibility, status, message, created, last_modified
	FROM bulk_visibility_jobs WHERE site_id = ? AND status = ?
	ORDER BY created DESC LIMIT 1`, siteID, string(JobInProgress)))
}

func (d *DB) scanBulkJob(row *sql.Row) (*BulkVisibilityJob, error) {
	j := &BulkVisibilityJob{}
	var status string
	err := row.Scan(&j.ID, &j.SiteID, &j.Visibility, &status, &j.Message, &j.Created, &j.LastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Status = BulkJobStatus(status)
	return j, nil
}

// BulkSetVisibility updates the site row and every visibility-bearing content
// row on the site in one transaction. Media rows carry no visibility of their
// own and are untouched.
func (d *DB) BulkSetVisibility(siteID string, vis Visibility, now time.Time) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE sites SET visibility = ? WHERE id = ?`, int(vis), siteID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`UPDATE dictionary_entries SET visibility = ?, last_modified = ? WHERE site_id = ?`,
		int(vis), now, siteID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`UPDATE songs SET visibility = ?, last_modified = ? WHERE site_id = ?`,
		int(vis), now, siteID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`UPDATE stories SET visibility = ?, last_modified = ? WHERE site_id = ?`,
		int(vis), now, siteID); err != nil {
		return err
	}
	return tx.Commit()
}
