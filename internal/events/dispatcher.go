package events

import (
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

// Entity names for dependent rows. Root entities use their manager tags.
const (
	EntityEntryText     = "entry_text"
	EntityEntryCategory = "entry_category"
	EntityLyric         = "lyric"
	EntityStoryPage     = "story_page"
	EntityRelatedMedia  = "related_media"
	EntityCategory      = "category"
	EntityAlphabet      = "alphabet"
)

// Scheduler is the slice of the task queue the dispatcher needs. Tests
// substitute a recording fake.
type Scheduler interface {
	EnqueueSync(tag, id string)
	EnqueueRemove(tag, id string)
	EnqueueSiteRebuild(tag, siteID string)
	EnqueuePurgeSite(siteID string)
}

// siteContentTags are the managers whose documents carry site visibility.
var siteContentTags = []string{index.TagDictionaryEntry, index.TagSong, index.TagStory, index.TagMedia}

// Dispatcher connects entity lifecycle events to index scheduling. All
// scheduling is deferred to transaction commit, and all of it is suppressed
// while the owning site is paused.
type Dispatcher struct {
	db    *storage.DB
	bus   *Bus
	sched Scheduler
	log   *zap.Logger

	// CategoryRelevance gates whether a category change is worth a site-wide
	// dictionary resync. The default requires at least one public entry with
	// a translation in the category.
	CategoryRelevance func(db *storage.DB, categoryID string) (bool, error)

	tokens []int
}

func NewDispatcher(db *storage.DB, bus *Bus, sched Scheduler, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:    db,
		bus:   bus,
		sched: sched,
		log:   log,
		CategoryRelevance: func(db *storage.DB, categoryID string) (bool, error) {
			n, err := db.CountPublicEntriesWithTranslation(categoryID)
			return n > 0, err
		},
	}
}

// Connect registers every handler on the bus. Calling Connect twice doubles
// the handlers; pair each Connect with Disconnect.
func (d *Dispatcher) Connect() {
	connect := func(entity string, kind Kind, h Handler) {
		d.tokens = append(d.tokens, d.bus.Connect(entity, kind, h))
	}

	for _, tag := range []string{index.TagDictionaryEntry, index.TagSong, index.TagStory, index.TagMedia} {
		tag := tag
		connect(tag, AfterSave, d.rootSaved(tag))
		connect(tag, AfterDelete, d.rootDeleted(tag))
	}

	for _, entity := range []string{EntityEntryText, EntityEntryCategory, EntityLyric, EntityStoryPage, EntityRelatedMedia} {
		connect(entity, AfterSave, d.dependentChanged)
		connect(entity, AfterDelete, d.dependentChanged)
	}

	connect(EntityCategory, AfterSave, d.categoryChanged)
	connect(EntityCategory, AfterDelete, d.categoryChanged)
	connect(EntityAlphabet, AfterSave, d.alphabetChanged)

	connect(index.TagLanguage, AfterSave, d.languageSaved)
	connect(index.TagLanguage, AfterDelete, d.languageDeleted)

	connect(index.TagSite, BeforeSave, d.siteBeforeSave)
	connect(index.TagSite, AfterSave, d.siteSaved)
	connect(index.TagSite, AfterDelete, d.siteDeleted)
}

// Disconnect removes every handler registered by Connect.
func (d *Dispatcher) Disconnect() {
	for _, t := range d.tokens {
		d.bus.Disconnect(t)
	}
	d.tokens = nil
}

// paused reports whether scheduling for a site is currently suppressed. A
// lookup failure counts as unpaused so indexing fails open.
func (d *Dispatcher) paused(siteID string) bool {
	if siteID == "" {
		return false
	}
	p, err := IsPaused(d.db, siteID)
	if err != nil {
		d.log.Warn("pause lookup failed", zap.String("site_id", siteID), zap.Error(err))
		return false
	}
	return p
}

func (d *Dispatcher) rootSaved(tag string) Handler {
	return func(tx *Tx, ev Event) {
		if d.paused(ev.SiteID) {
			return
		}
		id := ev.ID
		tx.OnCommit(func() { d.sched.EnqueueSync(tag, id) })
	}
}

func (d *Dispatcher) rootDeleted(tag string) Handler {
	return func(tx *Tx, ev Event) {
		if d.paused(ev.SiteID) {
			return
		}
		id := ev.ID
		tx.OnCommit(func() { d.sched.EnqueueRemove(tag, id) })
	}
}

// dependentChanged re-syncs the root document a dependent row feeds.
func (d *Dispatcher) dependentChanged(tx *Tx, ev Event) {
	if ev.RootTag == "" || ev.RootID == "" {
		d.log.Warn("dependent event without root", zap.String("entity", ev.Entity), zap.String("id", ev.ID))
		return
	}
	if d.paused(ev.SiteID) {
		return
	}
	tag, id := ev.RootTag, ev.RootID
	tx.OnCommit(func() { d.sched.EnqueueSync(tag, id) })
}

// categoryChanged triggers a site-wide dictionary resync, but only when the
// category actually touches publicly searchable entries.
func (d *Dispatcher) categoryChanged(tx *Tx, ev Event) {
	if d.paused(ev.SiteID) {
		return
	}
	relevant, err := d.CategoryRelevance(d.db, ev.ID)
	if err != nil {
		d.log.Warn("category relevance check failed", zap.String("category_id", ev.ID), zap.Error(err))
		return
	}
	if !relevant {
		return
	}
	siteID := ev.SiteID
	tx.OnCommit(func() { d.sched.EnqueueSiteRebuild(index.TagDictionaryEntry, siteID) })
}

// alphabetChanged re-derives custom sort keys for every entry on the site.
func (d *Dispatcher) alphabetChanged(tx *Tx, ev Event) {
	if d.paused(ev.SiteID) {
		return
	}
	siteID := ev.SiteID
	tx.OnCommit(func() { d.sched.EnqueueSiteRebuild(index.TagDictionaryEntry, siteID) })
}

func (d *Dispatcher) languageSaved(tx *Tx, ev Event) {
	id := ev.ID
	tx.OnCommit(func() { d.sched.EnqueueSync(index.TagLanguage, id) })
}

func (d *Dispatcher) languageDeleted(tx *Tx, ev Event) {
	id := ev.ID
	tx.OnCommit(func() { d.sched.EnqueueRemove(index.TagLanguage, id) })
}

// siteBeforeSave compares the stored visibility with the incoming one and
// schedules a full content resync when they differ. The comparison is
// best-effort: a concurrent writer can change the stored row between here
// and the save, and a periodic rebuild covers the gap.
func (d *Dispatcher) siteBeforeSave(tx *Tx, ev Event) {
	next, ok := ev.Payload.(*storage.Site)
	if !ok {
		return
	}
	prev, err := d.db.GetSite(ev.ID)
	if err != nil {
		d.log.Warn("site lookup failed", zap.String("site_id", ev.ID), zap.Error(err))
		return
	}
	if prev == nil || prev.Visibility == next.Visibility {
		return
	}
	if d.paused(ev.ID) {
		return
	}
	siteID := ev.ID
	tx.OnCommit(func() {
		for _, tag := range siteContentTags {
			d.sched.EnqueueSiteRebuild(tag, siteID)
		}
	})
}

// siteSaved keeps the site's own language-index presence current, plus its
// parent language document when it has one.
func (d *Dispatcher) siteSaved(tx *Tx, ev Event) {
	id := ev.ID
	var languageID string
	if s, ok := ev.Payload.(*storage.Site); ok {
		languageID = s.LanguageID
	}
	tx.OnCommit(func() {
		d.sched.EnqueueSync(index.TagSite, id)
		if languageID != "" {
			d.sched.EnqueueSync(index.TagLanguage, languageID)
		}
	})
}

// siteDeleted purges all of the site's documents and re-syncs the parent
// language document whose site list just shrank.
func (d *Dispatcher) siteDeleted(tx *Tx, ev Event) {
	id := ev.ID
	var languageID string
	if s, ok := ev.Payload.(*storage.Site); ok {
		languageID = s.LanguageID
	}
	tx.OnCommit(func() {
		d.sched.EnqueuePurgeSite(id)
		if languageID != "" {
			d.sched.EnqueueSync(index.TagLanguage, languageID)
		}
	})
}
