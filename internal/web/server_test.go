package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/search"
	"github.com/openlangarchive/langsearch/internal/storage"
)

type webEnv struct {
	db       *storage.DB
	store    *index.Store
	registry *index.Registry
	handler  http.Handler
}

func newWebEnv(t *testing.T) *webEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store, err := index.OpenStore("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	registry := index.NewRegistry(db, store, zap.NewNop())
	exec := search.NewExecutor(db, store, zap.NewNop())
	srv := NewServer(db, store, exec, zap.NewNop())
	return &webEnv{db: db, store: store, registry: registry, handler: srv.Handler()}
}

func (e *webEnv) seedSite(t *testing.T, slug string) *storage.Site {
	t.Helper()
	site := &storage.Site{
		ID:         uuid.NewString(),
		Title:      "Site",
		Slug:       slug,
		Visibility: storage.VisibilityPublic,
	}
	require.NoError(t, e.db.UpsertSite(site))
	return site
}

func (e *webEnv) seedEntry(t *testing.T, siteID, title string, vis storage.Visibility) *storage.DictionaryEntry {
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
	require.NoError(t, e.db.UpsertDictionaryEntry(entry))
	m, ok := e.registry.Get(index.TagDictionaryEntry)
	require.True(t, ok)
	require.NoError(t, m.SyncInIndex(context.Background(), entry.ID))
	return entry
}

func (e *webEnv) get(t *testing.T, url string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func results(t *testing.T, body map[string]any) []any {
	t.Helper()
	raw, ok := body["results"]
	require.True(t, ok)
	if raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	require.True(t, ok)
	return list
}

func TestSearchEndpoint(t *testing.T) {
	e := newWebEnv(t)
	site := e.seedSite(t, "first")
	e.seedEntry(t, site.ID, "bb", storage.VisibilityPublic)

	rec, body := e.get(t, "/api/search?q=bb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results(t, body), 1)
	assert.Equal(t, float64(1), body["total"])

	hit := results(t, body)[0].(map[string]any)
	entry := hit["entry"].(map[string]any)
	assert.Equal(t, "bb", entry["title"])
	assert.Equal(t, "public", entry["visibility"])
}

func TestSiteSearchEndpoint(t *testing.T) {
	e := newWebEnv(t)
	first := e.seedSite(t, "first")
	second := e.seedSite(t, "second")
	e.seedEntry(t, first.ID, "shared", storage.VisibilityPublic)
	e.seedEntry(t, second.ID, "shared", storage.VisibilityPublic)

	rec, body := e.get(t, "/api/sites/first/search?q=shared", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results(t, body), 1)

	hit := results(t, body)[0].(map[string]any)
	entry := hit["entry"].(map[string]any)
	assert.Equal(t, first.ID, entry["site_id"])
}

func TestSiteSearchUnknownSlug(t *testing.T) {
	e := newWebEnv(t)

	rec, body := e.get(t, "/api/sites/missing/search?q=x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "site not found", body["error"])
}

func TestSearchWithMembershipHeader(t *testing.T) {
	e := newWebEnv(t)
	site := e.seedSite(t, "first")
	e.seedEntry(t, site.ID, "secret", storage.VisibilityTeam)

	rec, body := e.get(t, "/api/search?q=secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, results(t, body))

	require.NoError(t, e.db.UpsertMembership(&storage.Membership{
		UserID: "user-1",
		SiteID: site.ID,
		Role:   storage.RoleEditor,
	}))

	rec, body = e.get(t, "/api/search?q=secret", map[string]string{"X-User-ID": "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, results(t, body), 1)
}

func TestSearchTypesParam(t *testing.T) {
	e := newWebEnv(t)
	site := e.seedSite(t, "first")
	e.seedEntry(t, site.ID, "hello", storage.VisibilityPublic)

	// Only unrecognized values in a present types param means match nothing.
	rec, body := e.get(t, "/api/search?q=hello&types=bogus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, results(t, body))

	rec, body = e.get(t, "/api/search?q=hello&types=word,bogus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, results(t, body), 1)
}

func TestSearchKidsParamBothValues(t *testing.T) {
	e := newWebEnv(t)
	site := e.seedSite(t, "first")
	e.seedEntry(t, site.ID, "gentle", storage.VisibilityPublic)

	excluded := &storage.DictionaryEntry{
		ID:              uuid.NewString(),
		SiteID:          site.ID,
		Title:           "gentle adult",
		Type:            index.TypeWord,
		Visibility:      storage.VisibilityPublic,
		ExcludeFromKids: true,
		Created:         time.Now().UTC(),
		LastModified:    time.Now().UTC(),
	}
	require.NoError(t, e.db.UpsertDictionaryEntry(excluded))
	m, ok := e.registry.Get(index.TagDictionaryEntry)
	require.True(t, ok)
	require.NoError(t, m.SyncInIndex(context.Background(), excluded.ID))

	rec, body := e.get(t, "/api/search?q=gentle&kids=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results(t, body), 1)
	hit := results(t, body)[0].(map[string]any)
	assert.Equal(t, "gentle", hit["entry"].(map[string]any)["title"])

	rec, body = e.get(t, "/api/search?q=gentle&kids=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results(t, body), 1)
	hit = results(t, body)[0].(map[string]any)
	assert.Equal(t, "gentle adult", hit["entry"].(map[string]any)["title"])

	// Absent means unfiltered.
	rec, body = e.get(t, "/api/search?q=gentle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, results(t, body), 2)
}

func TestSearchWordCountValidation(t *testing.T) {
	e := newWebEnv(t)

	rec, body := e.get(t, "/api/search?minWords=3&maxWords=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "maxWords must be at least minWords", body["error"])
}

func TestLanguagesEndpoint(t *testing.T) {
	e := newWebEnv(t)

	lang := &storage.Language{ID: uuid.NewString(), Title: "Example Language"}
	require.NoError(t, e.db.UpsertLanguage(lang))
	site := e.seedSite(t, "first")
	site.LanguageID = lang.ID
	require.NoError(t, e.db.UpsertSite(site))
	m, ok := e.registry.Get(index.TagLanguage)
	require.True(t, ok)
	require.NoError(t, m.SyncInIndex(context.Background(), lang.ID))

	rec, body := e.get(t, "/api/languages?q=example", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results(t, body), 1)

	hit := results(t, body)[0].(map[string]any)
	entry := hit["entry"].(map[string]any)
	assert.Equal(t, "Example Language", entry["name"])
}

func TestHealthEndpoint(t *testing.T) {
	e := newWebEnv(t)

	rec, body := e.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	require.NoError(t, e.store.Close())
	rec, _ = e.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchBackendUnavailable(t *testing.T) {
	e := newWebEnv(t)
	require.NoError(t, e.store.Close())

	rec, body := e.get(t, "/api/search?q=x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "search backend unavailable", body["error"])
}
