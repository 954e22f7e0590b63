package index

import (
	"context"

	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/storage"
)

// Manager tags, the routing keys used by the task queue and event dispatcher.
const (
	TagDictionaryEntry = "dictionary_entry"
	TagSong            = "song"
	TagStory           = "story"
	TagMedia           = "media"
	TagLanguage        = "language"
	TagSite            = "site"
)

// Manager keeps one document type in sync with the database. All operations
// are idempotent: syncing an unchanged entity, removing an absent document,
// or repeating either after a crash converges on the same index state.
type Manager interface {
	// Tag is the routing key this manager is registered under.
	Tag() string
	// IndexName is the logical index this manager writes to.
	IndexName() string
	// SyncInIndex rebuilds the document for one entity from current database
	// state. A missing or ineligible entity removes the document instead.
	SyncInIndex(ctx context.Context, id string) error
	// RemoveFromIndex deletes the document. Absent documents are a success.
	RemoveFromIndex(ctx context.Context, id string) error
	// RebuildSite re-syncs every document of this type belonging to a site.
	RebuildSite(ctx context.Context, siteID string) error

	// fill streams all documents for a rebuild. siteID restricts to one site;
	// empty means everything.
	fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error
}

// siteCache avoids re-reading the site row for every entity during bulk fills.
type siteCache map[string]*storage.Site

func (c siteCache) get(db *storage.DB, id string) (*storage.Site, error) {
	if s, ok := c[id]; ok {
		return s, nil
	}
	s, err := db.GetSite(id)
	if err != nil {
		return nil, err
	}
	c[id] = s
	return s, nil
}

type dictionaryEntryManager struct {
	db    *storage.DB
	store *Store
	log   *zap.Logger
}

func (m *dictionaryEntryManager) Tag() string       { return TagDictionaryEntry }
func (m *dictionaryEntryManager) IndexName() string { return IndexDictionaryEntries }

func (m *dictionaryEntryManager) SyncInIndex(ctx context.Context, id string) error {
	e, err := m.db.GetDictionaryEntry(id)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if e == nil {
		m.log.Debug("entity gone, removing document", zap.String("tag", m.Tag()), zap.String("id", id))
		return m.RemoveFromIndex(ctx, id)
	}
	site, err := m.db.GetSite(e.SiteID)
	if err != nil {
		return err
	}
	if site == nil {
		return m.RemoveFromIndex(ctx, id)
	}
	doc, err := BuildDictionaryEntryDocument(m.db, site, e)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if err := m.store.Upsert(m.IndexName(), id, doc); err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("sync", m.IndexName()).Inc()
	return nil
}

func (m *dictionaryEntryManager) RemoveFromIndex(ctx context.Context, id string) error {
	if err := m.store.Delete(m.IndexName(), id); err != nil {
		indexFailures.WithLabelValues("remove", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("remove", m.IndexName()).Inc()
	return nil
}

func (m *dictionaryEntryManager) RebuildSite(ctx context.Context, siteID string) error {
	return m.fill(ctx, siteID, func(id string, doc Document) error {
		return m.store.Upsert(m.IndexName(), id, doc)
	})
}

func (m *dictionaryEntryManager) fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error {
	ids, err := m.db.ListDictionaryEntryIDs(siteID)
	if err != nil {
		return err
	}
	sites := siteCache{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := m.db.GetDictionaryEntry(id)
		if err != nil {
			return err
		}
		if e == nil {
			continue
		}
		site, err := sites.get(m.db, e.SiteID)
		if err != nil {
			return err
		}
		if site == nil {
			continue
		}
		doc, err := BuildDictionaryEntryDocument(m.db, site, e)
		if err != nil {
			return err
		}
		if err := add(id, doc); err != nil {
			return err
		}
	}
	return nil
}

type songManager struct {
	db    *storage.DB
	store *Store
	log   *zap.Logger
}

func (m *songManager) Tag() string       { return TagSong }
func (m *songManager) IndexName() string { return IndexSongs }

func (m *songManager) SyncInIndex(ctx context.Context, id string) error {
	s, err := m.db.GetSong(id)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if s == nil {
		m.log.Debug("entity gone, removing document", zap.String("tag", m.Tag()), zap.String("id", id))
		return m.RemoveFromIndex(ctx, id)
	}
	site, err := m.db.GetSite(s.SiteID)
	if err != nil {
		return err
	}
	if site == nil {
		return m.RemoveFromIndex(ctx, id)
	}
	doc, err := BuildSongDocument(m.db, site, s)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if err := m.store.Upsert(m.IndexName(), id, doc); err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("sync", m.IndexName()).Inc()
	return nil
}

func (m *songManager) RemoveFromIndex(ctx context.Context, id string) error {
	if err := m.store.Delete(m.IndexName(), id); err != nil {
		indexFailures.WithLabelValues("remove", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("remove", m.IndexName()).Inc()
	return nil
}

func (m *songManager) RebuildSite(ctx context.Context, siteID string) error {
	return m.fill(ctx, siteID, func(id string, doc Document) error {
		return m.store.Upsert(m.IndexName(), id, doc)
	})
}

func (m *songManager) fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error {
	ids, err := m.db.ListSongIDs(siteID)
	if err != nil {
		return err
	}
	sites := siteCache{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := m.db.GetSong(id)
		if err != nil {
			return err
		}
		if s == nil {
			continue
		}
		site, err := sites.get(m.db, s.SiteID)
		if err != nil {
			return err
		}
		if site == nil {
			continue
		}
		doc, err := BuildSongDocument(m.db, site, s)
		if err != nil {
			return err
		}
		if err := add(id, doc); err != nil {
			return err
		}
	}
	return nil
}

type storyManager struct {
	db    *storage.DB
	store *Store
	log   *zap.Logger
}

func (m *storyManager) Tag() string       { return TagStory }
func (m *storyManager) IndexName() string { return IndexStories }

func (m *storyManager) SyncInIndex(ctx context.Context, id string) error {
	st, err := m.db.GetStory(id)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if st == nil {
		m.log.Debug("entity gone, removing document", zap.String("tag", m.Tag()), zap.String("id", id))
		return m.RemoveFromIndex(ctx, id)
	}
	site, err := m.db.GetSite(st.SiteID)
	if err != nil {
		return err
	}
	if site == nil {
		return m.RemoveFromIndex(ctx, id)
	}
	doc, err := BuildStoryDocument(m.db, site, st)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if err := m.store.Upsert(m.IndexName(), id, doc); err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("sync", m.IndexName()).Inc()
	return nil
}

func (m *storyManager) RemoveFromIndex(ctx context.Context, id string) error {
	if err := m.store.Delete(m.IndexName(), id); err != nil {
		indexFailures.WithLabelValues("remove", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("remove", m.IndexName()).Inc()
	return nil
}

func (m *storyManager) RebuildSite(ctx context.Context, siteID string) error {
	return m.fill(ctx, siteID, func(id string, doc Document) error {
		return m.store.Upsert(m.IndexName(), id, doc)
	})
}

func (m *storyManager) fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error {
	ids, err := m.db.ListStoryIDs(siteID)
	if err != nil {
		return err
	}
	sites := siteCache{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := m.db.GetStory(id)
		if err != nil {
			return err
		}
		if st == nil {
			continue
		}
		site, err := sites.get(m.db, st.SiteID)
		if err != nil {
			return err
		}
		if site == nil {
			continue
		}
		doc, err := BuildStoryDocument(m.db, site, st)
		if err != nil {
			return err
		}
		if err := add(id, doc); err != nil {
			return err
		}
	}
	return nil
}

type mediaManager struct {
	db    *storage.DB
	store *Store
	log   *zap.Logger
}

func (m *mediaManager) Tag() string       { return TagMedia }
func (m *mediaManager) IndexName() string { return IndexMedia }

func (m *mediaManager) SyncInIndex(ctx context.Context, id string) error {
	md, err := m.db.GetMedia(id)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if md == nil {
		m.log.Debug("entity gone, removing document", zap.String("tag", m.Tag()), zap.String("id", id))
		return m.RemoveFromIndex(ctx, id)
	}
	site, err := m.db.GetSite(md.SiteID)
	if err != nil {
		return err
	}
	if site == nil {
		return m.RemoveFromIndex(ctx, id)
	}
	doc, err := BuildMediaDocument(m.db, site, md)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if err := m.store.Upsert(m.IndexName(), id, doc); err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("sync", m.IndexName()).Inc()
	return nil
}

func (m *mediaManager) RemoveFromIndex(ctx context.Context, id string) error {
	if err := m.store.Delete(m.IndexName(), id); err != nil {
		indexFailures.WithLabelValues("remove", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("remove", m.IndexName()).Inc()
	return nil
}

func (m *mediaManager) RebuildSite(ctx context.Context, siteID string) error {
	return m.fill(ctx, siteID, func(id string, doc Document) error {
		return m.store.Upsert(m.IndexName(), id, doc)
	})
}

func (m *mediaManager) fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error {
	ids, err := m.db.ListMediaIDs(siteID)
	if err != nil {
		return err
	}
	sites := siteCache{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		md, err := m.db.GetMedia(id)
		if err != nil {
			return err
		}
		if md == nil {
			continue
		}
		site, err := sites.get(m.db, md.SiteID)
		if err != nil {
			return err
		}
		if site == nil {
			continue
		}
		doc, err := BuildMediaDocument(m.db, site, md)
		if err != nil {
			return err
		}
		if err := add(id, doc); err != nil {
			return err
		}
	}
	return nil
}

type languageManager struct {
	db    *storage.DB
	store *Store
	log   *zap.Logger
}

func (m *languageManager) Tag() string       { return TagLanguage }
func (m *languageManager) IndexName() string { return IndexLanguages }

func (m *languageManager) SyncInIndex(ctx context.Context, id string) error {
	l, err := m.db.GetLanguage(id)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if l == nil {
		m.log.Debug("entity gone, removing document", zap.String("tag", m.Tag()), zap.String("id", id))
		return m.RemoveFromIndex(ctx, id)
	}
	ok, err := ShouldIndexLanguage(m.db, l.ID)
	if err != nil {
		return err
	}
	if !ok {
		return m.RemoveFromIndex(ctx, id)
	}
	doc, err := BuildLanguageDocument(m.db, l)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if err := m.store.Upsert(m.IndexName(), id, doc); err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("sync", m.IndexName()).Inc()
	return nil
}

func (m *languageManager) RemoveFromIndex(ctx context.Context, id string) error {
	if err := m.store.Delete(m.IndexName(), id); err != nil {
		indexFailures.WithLabelValues("remove", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("remove", m.IndexName()).Inc()
	return nil
}

// RebuildSite is a no-op for languages; the language index is not site-scoped.
func (m *languageManager) RebuildSite(ctx context.Context, siteID string) error {
	return nil
}

func (m *languageManager) fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error {
	if siteID != "" {
		return nil
	}
	ids, err := m.db.ListLanguageIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		l, err := m.db.GetLanguage(id)
		if err != nil {
			return err
		}
		if l == nil {
			continue
		}
		ok, err := ShouldIndexLanguage(m.db, l.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		doc, err := BuildLanguageDocument(m.db, l)
		if err != nil {
			return err
		}
		if err := add(id, doc); err != nil {
			return err
		}
	}
	return nil
}

// siteManager indexes language-less sites into the language index so they
// stay discoverable without a parent language document.
type siteManager struct {
	db    *storage.DB
	store *Store
	log   *zap.Logger
}

func (m *siteManager) Tag() string       { return TagSite }
func (m *siteManager) IndexName() string { return IndexLanguages }

func (m *siteManager) SyncInIndex(ctx context.Context, id string) error {
	s, err := m.db.GetSite(id)
	if err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	if s == nil {
		m.log.Debug("entity gone, removing document", zap.String("tag", m.Tag()), zap.String("id", id))
		return m.RemoveFromIndex(ctx, id)
	}
	if s.LanguageID != "" || !siteVisibleInLanguageIndex(s) {
		return m.RemoveFromIndex(ctx, id)
	}
	if err := m.store.Upsert(m.IndexName(), id, BuildSiteDocument(s)); err != nil {
		indexFailures.WithLabelValues("sync", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("sync", m.IndexName()).Inc()
	return nil
}

func (m *siteManager) RemoveFromIndex(ctx context.Context, id string) error {
	if err := m.store.Delete(m.IndexName(), id); err != nil {
		indexFailures.WithLabelValues("remove", m.IndexName()).Inc()
		return err
	}
	indexOps.WithLabelValues("remove", m.IndexName()).Inc()
	return nil
}

func (m *siteManager) RebuildSite(ctx context.Context, siteID string) error {
	return m.SyncInIndex(ctx, siteID)
}

func (m *siteManager) fill(ctx context.Context, siteID string, add func(id string, doc Document) error) error {
	if siteID != "" {
		return nil
	}
	sites, err := m.db.ListSitesWithoutLanguage()
	if err != nil {
		return err
	}
	for _, s := range sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !siteVisibleInLanguageIndex(s) {
			continue
		}
		if err := add(s.ID, BuildSiteDocument(s)); err != nil {
			return err
		}
	}
	return nil
}
