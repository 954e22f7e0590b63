package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/storage"
)

type env struct {
	db       *storage.DB
	store    *Store
	registry *Registry
}

func testEnv(t *testing.T) *env {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store, err := OpenStore("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return &env{db: db, store: store, registry: NewRegistry(db, store, zap.NewNop())}
}

func (e *env) manager(t *testing.T, tag string) Manager {
	t.Helper()
	m, ok := e.registry.Get(tag)
	require.True(t, ok)
	return m
}

func makeSite(t *testing.T, db *storage.DB, vis storage.Visibility) *storage.Site {
	t.Helper()
	s := &storage.Site{
		ID:         uuid.NewString(),
		Title:      "Site",
		Slug:       "site-" + uuid.NewString()[:8],
		Visibility: vis,
	}
	require.NoError(t, db.UpsertSite(s))
	return s
}

func makeEntry(t *testing.T, db *storage.DB, siteID, title string, vis storage.Visibility) *storage.DictionaryEntry {
	t.Helper()
	now := time.Now().UTC()
	e := &storage.DictionaryEntry{
		ID:           uuid.NewString(),
		SiteID:       siteID,
		Title:        title,
		Type:         TypeWord,
		Visibility:   vis,
		Created:      now,
		LastModified: now,
	}
	require.NoError(t, db.UpsertDictionaryEntry(e))
	return e
}

// matchCount counts hits for a match query against one field.
func (e *env) matchCount(t *testing.T, indexName, field, term string) uint64 {
	t.Helper()
	q := bleve.NewMatchQuery(term)
	q.SetField(field)
	res, err := e.store.Search(context.Background(), bleve.NewSearchRequest(q), indexName)
	require.NoError(t, err)
	return res.Total
}

func TestSyncInIndexCreatesDocument(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	m := e.manager(t, TagDictionaryEntry)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))

	n, err := e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uint64(1), e.matchCount(t, IndexDictionaryEntries, FieldPrimaryLanguage, "bb"))
}

func TestSyncInIndexIsIdempotent(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	m := e.manager(t, TagDictionaryEntry)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))
	}
	n, err := e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSyncInIndexMissingEntityRemoves(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	m := e.manager(t, TagDictionaryEntry)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))
	require.NoError(t, e.db.DeleteDictionaryEntry(entry.ID))
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))

	n, err := e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemoveThenSyncRestoresLiveEntity(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	m := e.manager(t, TagDictionaryEntry)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))
	require.NoError(t, m.RemoveFromIndex(context.Background(), entry.ID))

	n, err := e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	require.Zero(t, n)

	// The row still exists, so a sync brings the document back in full.
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))
	n, err = e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uint64(1), e.matchCount(t, IndexDictionaryEntries, FieldPrimaryLanguage, "bb"))
}

func TestRemoveFromIndexAbsentIsSuccess(t *testing.T) {
	e := testEnv(t)
	m := e.manager(t, TagDictionaryEntry)
	assert.NoError(t, m.RemoveFromIndex(context.Background(), "never-indexed"))
}

func TestSyncFullyReplacesDocument(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	textID, err := e.db.AddEntryText(entry.ID, storage.TextTranslation, "two")
	require.NoError(t, err)

	m := e.manager(t, TagDictionaryEntry)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))
	require.Equal(t, uint64(1), e.matchCount(t, IndexDictionaryEntries, FieldPrimaryTranslation, "two"))

	require.NoError(t, e.db.DeleteEntryText(textID))
	_, err = e.db.AddEntryText(entry.ID, storage.TextTranslation, "ninety")
	require.NoError(t, err)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))

	// No trace of the old value survives the replacement.
	assert.Zero(t, e.matchCount(t, IndexDictionaryEntries, FieldPrimaryTranslation, "two"))
	assert.Equal(t, uint64(1), e.matchCount(t, IndexDictionaryEntries, FieldPrimaryTranslation, "ninety"))
}

func TestBuildDocumentDerivedFields(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityMembers)
	entry := makeEntry(t, e.db, site.ID, "one two three", storage.VisibilityPublic)
	_, err := e.db.AddEntryText(entry.ID, storage.TextTranslation, "a translation")
	require.NoError(t, err)

	doc, err := BuildDictionaryEntryDocument(e.db, site, entry)
	require.NoError(t, err)

	assert.Equal(t, DocTypeDictionaryEntry, doc.DocumentType)
	assert.Equal(t, int(storage.VisibilityMembers), doc.SiteVisibility)
	assert.Equal(t, int(storage.VisibilityPublic), doc.Visibility)
	assert.Equal(t, 3, doc.TitleWordCount)
	assert.True(t, doc.HasTranslation)
	assert.False(t, doc.HasAudio)
	assert.False(t, doc.HasCategories)
	// No alphabet configured: the whole title is out of vocabulary.
	assert.True(t, doc.HasUnrecognizedChars)
	assert.Equal(t, []string{"one two three"}, doc.PrimaryLanguage)
	assert.Equal(t, []string{"a translation"}, doc.PrimaryTranslation)
}

func TestHasVideoFromEmbeddedLinkOnly(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)

	plain := makeEntry(t, e.db, site.ID, "plain", storage.VisibilityPublic)
	doc, err := BuildDictionaryEntryDocument(e.db, site, plain)
	require.NoError(t, err)
	assert.False(t, doc.HasVideo)

	linked := makeEntry(t, e.db, site.ID, "linked", storage.VisibilityPublic)
	linked.RelatedVideoLinks = []string{"https://example.org/v/1"}
	require.NoError(t, e.db.UpsertDictionaryEntry(linked))
	got, err := e.db.GetDictionaryEntry(linked.ID)
	require.NoError(t, err)
	doc, err = BuildDictionaryEntryDocument(e.db, site, got)
	require.NoError(t, err)
	assert.True(t, doc.HasVideo)

	related := makeEntry(t, e.db, site.ID, "related", storage.VisibilityPublic)
	require.NoError(t, e.db.AddRelatedMedia(related.ID, uuid.NewString(), storage.MediaVideo))
	doc, err = BuildDictionaryEntryDocument(e.db, site, related)
	require.NoError(t, err)
	assert.True(t, doc.HasVideo)
}

func TestUnknownCharsRederivedFromAlphabet(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "faqs", storage.VisibilityPublic)

	ab, err := e.db.GetAlphabet(site.ID)
	require.NoError(t, err)
	ab.BaseCharacters = []string{"f", "a", "s"}
	require.NoError(t, e.db.UpsertAlphabet(site.ID, ab))

	doc, err := BuildDictionaryEntryDocument(e.db, site, entry)
	require.NoError(t, err)
	assert.True(t, doc.HasUnrecognizedChars)

	ab.BaseCharacters = []string{"f", "a", "q", "s"}
	require.NoError(t, e.db.UpsertAlphabet(site.ID, ab))
	doc, err = BuildDictionaryEntryDocument(e.db, site, entry)
	require.NoError(t, err)
	assert.False(t, doc.HasUnrecognizedChars)
}

func TestMediaDocumentAlwaysPublic(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityTeam)
	now := time.Now().UTC()
	m := &storage.Media{
		ID:           uuid.NewString(),
		SiteID:       site.ID,
		Type:         TypeAudio,
		Title:        "drum recording",
		Filename:     "drum.mp3",
		Created:      now,
		LastModified: now,
	}
	require.NoError(t, e.db.UpsertMedia(m))

	doc, err := BuildMediaDocument(e.db, site, m)
	require.NoError(t, err)
	assert.Equal(t, int(storage.VisibilityPublic), doc.Visibility)
	assert.Equal(t, int(storage.VisibilityTeam), doc.SiteVisibility)
	assert.Equal(t, TypeAudio, doc.Type)
}

func TestLanguageEligibility(t *testing.T) {
	e := testEnv(t)
	lang := &storage.Language{ID: uuid.NewString(), Title: "Example"}
	require.NoError(t, e.db.UpsertLanguage(lang))

	site := makeSite(t, e.db, storage.VisibilityTeam)
	site.LanguageID = lang.ID
	require.NoError(t, e.db.UpsertSite(site))

	m := e.manager(t, TagLanguage)

	// Only a team-visibility site: the language stays out of the index.
	require.NoError(t, m.SyncInIndex(context.Background(), lang.ID))
	n, err := e.store.DocCount(IndexLanguages)
	require.NoError(t, err)
	assert.Zero(t, n)

	site.Visibility = storage.VisibilityMembers
	require.NoError(t, e.db.UpsertSite(site))
	require.NoError(t, m.SyncInIndex(context.Background(), lang.ID))
	n, err = e.store.DocCount(IndexLanguages)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// Widening is reversible: hiding the site pulls the language back out.
	site.IsHidden = true
	require.NoError(t, e.db.UpsertSite(site))
	require.NoError(t, m.SyncInIndex(context.Background(), lang.ID))
	n, err = e.store.DocCount(IndexLanguages)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSiteWithoutLanguageIndexed(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)

	m := e.manager(t, TagSite)
	require.NoError(t, m.SyncInIndex(context.Background(), site.ID))
	n, err := e.store.DocCount(IndexLanguages)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// Assigning a language hands the site over to its language document.
	lang := &storage.Language{ID: uuid.NewString(), Title: "Example"}
	require.NoError(t, e.db.UpsertLanguage(lang))
	site.LanguageID = lang.ID
	require.NoError(t, e.db.UpsertSite(site))
	require.NoError(t, m.SyncInIndex(context.Background(), site.ID))
	n, err = e.store.DocCount(IndexLanguages)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRebuildIndexConverges(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	makeEntry(t, e.db, site.ID, "aa", storage.VisibilityPublic)
	makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	require.NoError(t, e.registry.RebuildIndex(context.Background(), IndexDictionaryEntries))
	n, err := e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	makeEntry(t, e.db, site.ID, "cc", storage.VisibilityPublic)
	require.NoError(t, e.registry.RebuildIndex(context.Background(), IndexDictionaryEntries))
	n, err = e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestRebuildUnknownIndex(t *testing.T) {
	e := testEnv(t)
	assert.Error(t, e.registry.RebuildIndex(context.Background(), "bogus"))
}

func TestPurgeSite(t *testing.T) {
	e := testEnv(t)
	keep := makeSite(t, e.db, storage.VisibilityPublic)
	drop := makeSite(t, e.db, storage.VisibilityPublic)
	kept := makeEntry(t, e.db, keep.ID, "kept", storage.VisibilityPublic)
	gone := makeEntry(t, e.db, drop.ID, "gone", storage.VisibilityPublic)

	m := e.manager(t, TagDictionaryEntry)
	require.NoError(t, m.SyncInIndex(context.Background(), kept.ID))
	require.NoError(t, m.SyncInIndex(context.Background(), gone.ID))

	require.NoError(t, e.registry.PurgeSite(context.Background(), drop.ID))

	n, err := e.store.DocCount(IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uint64(1), e.matchCount(t, IndexDictionaryEntries, FieldPrimaryLanguage, "kept"))
	assert.Zero(t, e.matchCount(t, IndexDictionaryEntries, FieldPrimaryLanguage, "gone"))
}

func TestRebuildSiteResyncsVisibility(t *testing.T) {
	e := testEnv(t)
	site := makeSite(t, e.db, storage.VisibilityPublic)
	entry := makeEntry(t, e.db, site.ID, "bb", storage.VisibilityPublic)

	m := e.manager(t, TagDictionaryEntry)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))

	site.Visibility = storage.VisibilityTeam
	require.NoError(t, e.db.UpsertSite(site))
	require.NoError(t, m.RebuildSite(context.Background(), site.ID))

	q := bleve.NewNumericRangeInclusiveQuery(ptr(float64(storage.VisibilityTeam)), ptr(float64(storage.VisibilityTeam)), ptr(true), ptr(true))
	q.SetField("site_visibility")
	res, err := e.store.Search(context.Background(), bleve.NewSearchRequest(q), IndexDictionaryEntries)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
}

func ptr[T any](v T) *T { return &v }
