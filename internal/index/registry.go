package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/storage"
)

// Registry routes manager tags to document managers and coordinates the
// rebuilds that span more than one manager. The language index has two
// managers (languages and language-less sites) writing into it, so rebuilds
// group managers by backing index rather than assuming one each.
type Registry struct {
	store *Store
	log   *zap.Logger

	byTag   map[string]Manager
	byIndex map[string][]Manager
}

// NewRegistry builds the full manager set over one database and store.
func NewRegistry(db *storage.DB, store *Store, log *zap.Logger) *Registry {
	managers := []Manager{
		&dictionaryEntryManager{db: db, store: store, log: log},
		&songManager{db: db, store: store, log: log},
		&storyManager{db: db, store: store, log: log},
		&mediaManager{db: db, store: store, log: log},
		&languageManager{db: db, store: store, log: log},
		&siteManager{db: db, store: store, log: log},
	}
	r := &Registry{
		store:   store,
		log:     log,
		byTag:   make(map[string]Manager, len(managers)),
		byIndex: make(map[string][]Manager),
	}
	for _, m := range managers {
		r.byTag[m.Tag()] = m
		r.byIndex[m.IndexName()] = append(r.byIndex[m.IndexName()], m)
	}
	return r
}

// Get returns the manager registered under tag.
func (r *Registry) Get(tag string) (Manager, bool) {
	m, ok := r.byTag[tag]
	return m, ok
}

// Tags lists every registered manager tag.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	return tags
}

// RebuildIndex rebuilds one logical index from scratch: every manager backing
// it streams its documents into a fresh generation, which then replaces the
// live one.
func (r *Registry) RebuildIndex(ctx context.Context, name string) error {
	managers, ok := r.byIndex[name]
	if !ok {
		return fmt.Errorf("unknown index %q", name)
	}
	start := time.Now()
	err := r.store.Rebuild(name, func(add func(id string, doc Document) error) error {
		for _, m := range managers {
			if err := m.fill(ctx, "", add); err != nil {
				return fmt.Errorf("fill %s: %w", m.Tag(), err)
			}
		}
		return nil
	})
	if err != nil {
		indexFailures.WithLabelValues("rebuild", name).Inc()
		return err
	}
	rebuildDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	count, countErr := r.store.DocCount(name)
	if countErr == nil {
		r.log.Info("index rebuilt", zap.String("index", name), zap.Uint64("documents", count), zap.Duration("took", time.Since(start)))
	}
	return nil
}

// RebuildAll rebuilds every logical index in sequence.
func (r *Registry) RebuildAll(ctx context.Context) error {
	for _, name := range LogicalIndices {
		if err := r.RebuildIndex(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// PurgeSite removes every document belonging to a deleted site from all
// content indices and drops the site's own document from the language index.
// The parent language document, if any, is re-synced separately by the
// caller.
func (r *Registry) PurgeSite(ctx context.Context, siteID string) error {
	for _, name := range []string{IndexDictionaryEntries, IndexSongs, IndexStories, IndexMedia} {
		if err := r.store.DeleteBySite(ctx, name, siteID); err != nil {
			return fmt.Errorf("purge %s: %w", name, err)
		}
	}
	return r.store.Delete(IndexLanguages, siteID)
}
