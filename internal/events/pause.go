package events

import "github.com/openlangarchive/langsearch/internal/storage"

// FeatureIndexingPaused is the site feature key that suppresses index
// scheduling for a site's content, used during bulk imports.
const FeatureIndexingPaused = "indexing_paused"

// Pause suppresses index scheduling for one site until Unpause. Events fired
// while paused are skipped, not buffered; callers resync the site afterwards.
func Pause(db *storage.DB, siteID string) error {
	return db.SetSiteFeature(siteID, FeatureIndexingPaused, true)
}

// Unpause re-enables index scheduling for one site.
func Unpause(db *storage.DB, siteID string) error {
	return db.SetSiteFeature(siteID, FeatureIndexingPaused, false)
}

// IsPaused reports whether index scheduling is suppressed for a site.
func IsPaused(db *storage.DB, siteID string) (bool, error) {
	return db.GetSiteFeature(siteID, FeatureIndexingPaused)
}
