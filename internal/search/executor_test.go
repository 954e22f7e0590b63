package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/alphabet"
	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

type searchEnv struct {
	db       *storage.DB
	store    *index.Store
	registry *index.Registry
	exec     *Executor
}

func newSearchEnv(t *testing.T) *searchEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store, err := index.OpenStore("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return &searchEnv{
		db:       db,
		store:    store,
		registry: index.NewRegistry(db, store, zap.NewNop()),
		exec:     NewExecutor(db, store, zap.NewNop()),
	}
}

func (e *searchEnv) site(t *testing.T, vis storage.Visibility) *storage.Site {
	t.Helper()
	s := &storage.Site{
		ID:         uuid.NewString(),
		Title:      "Site",
		Slug:       "site-" + uuid.NewString()[:8],
		Visibility: vis,
	}
	require.NoError(t, e.db.UpsertSite(s))
	return s
}

func (e *searchEnv) entry(t *testing.T, siteID, title string, vis storage.Visibility, mutate func(*storage.DictionaryEntry)) *storage.DictionaryEntry {
	t.Helper()
	now := time.Now().UTC()
	entry := &storage.DictionaryEntry{
		ID:           uuid.NewString(),
		SiteID:       siteID,
		Title:        title,
		Type:         index.TypeWord,
		Visibility:   vis,
		Created:      now,
		LastModified: now,
	}
	if mutate != nil {
		mutate(entry)
	}
	require.NoError(t, e.db.UpsertDictionaryEntry(entry))
	e.sync(t, index.TagDictionaryEntry, entry.ID)
	return entry
}

func (e *searchEnv) sync(t *testing.T, tag, id string) {
	t.Helper()
	m, ok := e.registry.Get(tag)
	require.True(t, ok)
	require.NoError(t, m.SyncInIndex(context.Background(), id))
}

func TestSearchEndToEnd(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	entry := e.entry(t, site.ID, "bb", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{Query: "bb"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, uint64(1), res.Total)

	hit := res.Results[0]
	assert.Equal(t, entry.ID, hit.ID)
	assert.Equal(t, index.DocTypeDictionaryEntry, hit.Type)

	payload, ok := hit.Entry.(*EntryPayload)
	require.True(t, ok)
	assert.Equal(t, "bb", payload.Title)
	assert.Equal(t, "public", payload.Visibility)
	assert.Empty(t, payload.Translations)
}

func TestSearchPermissions(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "secret", storage.VisibilityTeam, nil)

	// Anonymous sees nothing.
	res, err := e.exec.Search(context.Background(), Params{Query: "secret"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	// A plain member is still below the team floor.
	member := []*storage.Membership{{UserID: "u", SiteID: site.ID, Role: storage.RoleMember}}
	res, err = e.exec.Search(context.Background(), Params{Query: "secret", Memberships: member})
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	// An assistant reads team content on their own site.
	assistant := []*storage.Membership{{UserID: "u", SiteID: site.ID, Role: storage.RoleAssistant}}
	res, err = e.exec.Search(context.Background(), Params{Query: "secret", Memberships: assistant})
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
}

func TestMembershipDoesNotLeakAcrossSites(t *testing.T) {
	e := newSearchEnv(t)
	mine := e.site(t, storage.VisibilityPublic)
	other := e.site(t, storage.VisibilityPublic)
	e.entry(t, other.ID, "secret", storage.VisibilityTeam, nil)

	m := []*storage.Membership{{UserID: "u", SiteID: mine.ID, Role: storage.RoleLanguageAdmin}}
	res, err := e.exec.Search(context.Background(), Params{Query: "secret", Memberships: m})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestSearchSiteScope(t *testing.T) {
	e := newSearchEnv(t)
	s1 := e.site(t, storage.VisibilityPublic)
	s2 := e.site(t, storage.VisibilityPublic)
	e.entry(t, s1.ID, "shared", storage.VisibilityPublic, nil)
	e.entry(t, s2.ID, "shared", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{Query: "shared"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)

	res, err = e.exec.Search(context.Background(), Params{Query: "shared", SiteID: s1.ID})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, s1.ID, res.Results[0].Entry.(*EntryPayload).SiteID)
}

func TestSearchTypesFilter(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "hello", storage.VisibilityPublic, nil)
	e.entry(t, site.ID, "hello there", storage.VisibilityPublic, func(en *storage.DictionaryEntry) {
		en.Type = index.TypePhrase
	})

	res, err := e.exec.Search(context.Background(), Params{Query: "hello", Types: []string{index.TypePhrase}})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, index.TypePhrase, res.Results[0].Entry.(*EntryPayload).Type)
}

func TestSearchHasTranslationFilter(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)

	bare := e.entry(t, site.ID, "word", storage.VisibilityPublic, nil)
	translated := &storage.DictionaryEntry{}
	*translated = *bare
	translated.ID = uuid.NewString()
	translated.Title = "word two"
	require.NoError(t, e.db.UpsertDictionaryEntry(translated))
	_, err := e.db.AddEntryText(translated.ID, storage.TextTranslation, "translated")
	require.NoError(t, err)
	e.sync(t, index.TagDictionaryEntry, translated.ID)

	yes := true
	res, err := e.exec.Search(context.Background(), Params{Query: "word", HasTranslation: &yes})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, translated.ID, res.Results[0].ID)

	no := false
	res, err = e.exec.Search(context.Background(), Params{Query: "word", HasTranslation: &no})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, bare.ID, res.Results[0].ID)
}

func TestSearchKidsFilter(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "gentle", storage.VisibilityPublic, nil)
	e.entry(t, site.ID, "gentle adult", storage.VisibilityPublic, func(en *storage.DictionaryEntry) {
		en.ExcludeFromKids = true
	})

	kids := true
	res, err := e.exec.Search(context.Background(), Params{Query: "gentle", Kids: &kids})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "gentle", res.Results[0].Entry.(*EntryPayload).Title)

	// kids=false inverts the filter: only excluded entries come back.
	kids = false
	res, err = e.exec.Search(context.Background(), Params{Query: "gentle", Kids: &kids})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "gentle adult", res.Results[0].Entry.(*EntryPayload).Title)

	res, err = e.exec.Search(context.Background(), Params{Query: "gentle"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearchGamesFilter(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "round", storage.VisibilityPublic, nil)
	e.entry(t, site.ID, "round two", storage.VisibilityPublic, func(en *storage.DictionaryEntry) {
		en.ExcludeFromGames = true
	})

	games := true
	res, err := e.exec.Search(context.Background(), Params{Query: "round", Games: &games})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "round", res.Results[0].Entry.(*EntryPayload).Title)

	games = false
	res, err = e.exec.Search(context.Background(), Params{Query: "round", Games: &games})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "round two", res.Results[0].Entry.(*EntryPayload).Title)
}

func TestSearchCategoryIncludesChildren(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)

	parent := &storage.Category{ID: uuid.NewString(), SiteID: site.ID, Title: "Animals"}
	child := &storage.Category{ID: uuid.NewString(), SiteID: site.ID, Title: "Birds", ParentID: parent.ID}
	require.NoError(t, e.db.UpsertCategory(parent))
	require.NoError(t, e.db.UpsertCategory(child))

	inParent := e.entry(t, site.ID, "bear", storage.VisibilityPublic, nil)
	require.NoError(t, e.db.AddEntryCategory(inParent.ID, parent.ID))
	e.sync(t, index.TagDictionaryEntry, inParent.ID)

	inChild := e.entry(t, site.ID, "raven", storage.VisibilityPublic, nil)
	require.NoError(t, e.db.AddEntryCategory(inChild.ID, child.ID))
	e.sync(t, index.TagDictionaryEntry, inChild.ID)

	e.entry(t, site.ID, "river", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{CategoryID: parent.ID})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)

	res, err = e.exec.Search(context.Background(), Params{CategoryID: child.ID})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, inChild.ID, res.Results[0].ID)
}

func TestSiteFeatureFilterOnMedia(t *testing.T) {
	e := newSearchEnv(t)
	featured := e.site(t, storage.VisibilityPublic)
	plain := e.site(t, storage.VisibilityPublic)
	require.NoError(t, e.db.SetSiteFeature(featured.ID, "shared_media", true))

	now := time.Now().UTC()
	for _, siteID := range []string{featured.ID, plain.ID} {
		m := &storage.Media{
			ID:           uuid.NewString(),
			SiteID:       siteID,
			Type:         storage.MediaAudio,
			Title:        "drum recording",
			Filename:     "drum.mp3",
			Created:      now,
			LastModified: now,
		}
		require.NoError(t, e.db.UpsertMedia(m))
		e.sync(t, index.TagMedia, m.ID)
	}

	res, err := e.exec.Search(context.Background(), Params{
		Query:       "drum",
		Types:       []string{index.TypeAudio},
		SiteFeature: "shared_media",
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, featured.ID, res.Results[0].Entry.(*MediaPayload).SiteID)
}

func TestStartsWithCustomOrder(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)

	ab := alphabet.New()
	ab.BaseCharacters = []string{"b", "a"}
	require.NoError(t, e.db.UpsertAlphabet(site.ID, ab))

	ba := e.entry(t, site.ID, "ba", storage.VisibilityPublic, nil)
	e.entry(t, site.ID, "ab", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{SiteID: site.ID, StartsWith: "b"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ba.ID, res.Results[0].ID)
}

func TestStartsWithUnknownCharFallsBackToTitle(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)

	ab := alphabet.New()
	ab.BaseCharacters = []string{"b", "a"}
	require.NoError(t, e.db.UpsertAlphabet(site.ID, ab))

	zz := e.entry(t, site.ID, "zz", storage.VisibilityPublic, nil)
	e.entry(t, site.ID, "ba", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{SiteID: site.ID, StartsWith: "z"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, zz.ID, res.Results[0].ID)
}

func TestAlphabeticalSortUsesCustomOrder(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)

	ab := alphabet.New()
	ab.BaseCharacters = []string{"b", "a"}
	require.NoError(t, e.db.UpsertAlphabet(site.ID, ab))

	ba := e.entry(t, site.ID, "ba", storage.VisibilityPublic, nil)
	abEntry := e.entry(t, site.ID, "ab", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{SiteID: site.ID, Sort: SortAlphabetical})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	// "b" precedes "a" in this alphabet.
	assert.Equal(t, ba.ID, res.Results[0].ID)
	assert.Equal(t, abEntry.ID, res.Results[1].ID)

	res, err = e.exec.Search(context.Background(), Params{SiteID: site.ID, Sort: SortAlphabetical, SortDescending: true})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, abEntry.ID, res.Results[0].ID)
}

func TestMinMaxWordsFilter(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "one", storage.VisibilityPublic, nil)
	long := e.entry(t, site.ID, "one two", storage.VisibilityPublic, nil)

	two := 2
	res, err := e.exec.Search(context.Background(), Params{MinWords: &two})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, long.ID, res.Results[0].ID)

	one := 1
	res, err = e.exec.Search(context.Background(), Params{MaxWords: &one})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "one", res.Results[0].Entry.(*EntryPayload).Title)
}

func TestRandomSortIsSeedStable(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	for _, title := range []string{"aa", "bb", "cc", "dd", "ee"} {
		e.entry(t, site.ID, title, storage.VisibilityPublic, nil)
	}

	p := Params{Sort: SortRandom, RandomSeed: 42}
	first, err := e.exec.Search(context.Background(), p)
	require.NoError(t, err)
	second, err := e.exec.Search(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, first.Results, 5)
	for i := range first.Results {
		assert.Equal(t, first.Results[i].ID, second.Results[i].ID)
	}
}

func TestFuzzyMatchingFindsNearMisses(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "hello", storage.VisibilityPublic, nil)

	res, err := e.exec.Search(context.Background(), Params{Query: "hellp"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
}

func TestEmptyTermBrowsesWithFilters(t *testing.T) {
	e := newSearchEnv(t)
	site := e.site(t, storage.VisibilityPublic)
	e.entry(t, site.ID, "aa", storage.VisibilityPublic, nil)
	e.entry(t, site.ID, "bb", storage.VisibilityTeam, nil)

	res, err := e.exec.Search(context.Background(), Params{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "aa", res.Results[0].Entry.(*EntryPayload).Title)
}

func TestSearchUnavailableBackend(t *testing.T) {
	e := newSearchEnv(t)
	require.NoError(t, e.store.Close())

	_, err := e.exec.Search(context.Background(), Params{Query: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrUnavailable)
}

func TestLanguageSearch(t *testing.T) {
	e := newSearchEnv(t)

	lang := &storage.Language{ID: uuid.NewString(), Title: "Example Language"}
	require.NoError(t, e.db.UpsertLanguage(lang))
	site := e.site(t, storage.VisibilityPublic)
	site.LanguageID = lang.ID
	require.NoError(t, e.db.UpsertSite(site))
	e.sync(t, index.TagLanguage, lang.ID)

	res, err := e.exec.SearchLanguages(context.Background(), "example", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	payload, ok := res.Results[0].Entry.(*LanguagePayload)
	require.True(t, ok)
	assert.Equal(t, "Example Language", payload.Name)
	assert.Equal(t, []string{site.Slug}, payload.SiteSlugs)
}
