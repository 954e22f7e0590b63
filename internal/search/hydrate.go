package search

import (
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

// EntryPayload is the hydrated shape for dictionary entries, songs and
// stories.
type EntryPayload struct {
	ID               string   `json:"id"`
	SiteID           string   `json:"site_id"`
	Title            string   `json:"title"`
	TitleTranslation string   `json:"title_translation,omitempty"`
	Type             string   `json:"type"`
	Visibility       string   `json:"visibility"`
	Translations     []string `json:"translations,omitempty"`
}

// MediaPayload is the hydrated shape for media assets.
type MediaPayload struct {
	ID       string `json:"id"`
	SiteID   string `json:"site_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

// LanguagePayload is the hydrated shape for language-index hits.
type LanguagePayload struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	SiteSlugs []string `json:"site_slugs"`
}

// hydrate resolves hits back to database rows, preserving hit order. A hit
// whose row has vanished since indexing is dropped; the next sync removes
// the stale document.
func (e *Executor) hydrate(hits blevesearch.DocumentMatchCollection) ([]*Result, error) {
	// Dictionary entries are fetched in one batch; they dominate result
	// pages in practice.
	var entryIDs []string
	for _, hit := range hits {
		if hitField(hit.Fields, "document_type") == index.DocTypeDictionaryEntry {
			entryIDs = append(entryIDs, hitField(hit.Fields, "document_id"))
		}
	}
	entries := map[string]*storage.DictionaryEntry{}
	if len(entryIDs) > 0 {
		var err error
		entries, err = e.db.ListDictionaryEntries(entryIDs)
		if err != nil {
			return nil, err
		}
	}

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		docType, err := hitType(hit.Fields)
		if err != nil {
			e.log.Warn("unroutable search hit", zap.String("hit", hit.ID))
			continue
		}
		id := hitField(hit.Fields, "document_id")
		if id == "" {
			id = hit.ID
		}

		payload, err := e.hydrateOne(docType, id, entries)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			e.log.Debug("dropping stale hit", zap.String("type", docType), zap.String("id", id))
			continue
		}
		results = append(results, &Result{
			ID:    id,
			Type:  docType,
			Score: hit.Score,
			Entry: payload,
		})
	}
	return results, nil
}

func (e *Executor) hydrateOne(docType, id string, entries map[string]*storage.DictionaryEntry) (any, error) {
	switch docType {
	case index.DocTypeDictionaryEntry:
		entry, ok := entries[id]
		if !ok {
			return nil, nil
		}
		translations, err := e.db.ListEntryTexts(id, storage.TextTranslation)
		if err != nil {
			return nil, err
		}
		return &EntryPayload{
			ID:           entry.ID,
			SiteID:       entry.SiteID,
			Title:        entry.Title,
			Type:         entry.Type,
			Visibility:   entry.Visibility.String(),
			Translations: translations,
		}, nil

	case index.DocTypeSong:
		s, err := e.db.GetSong(id)
		if err != nil || s == nil {
			return nil, err
		}
		return &EntryPayload{
			ID:               s.ID,
			SiteID:           s.SiteID,
			Title:            s.Title,
			TitleTranslation: s.TitleTranslation,
			Type:             index.TypeSong,
			Visibility:       s.Visibility.String(),
		}, nil

	case index.DocTypeStory:
		st, err := e.db.GetStory(id)
		if err != nil || st == nil {
			return nil, err
		}
		return &EntryPayload{
			ID:               st.ID,
			SiteID:           st.SiteID,
			Title:            st.Title,
			TitleTranslation: st.TitleTranslation,
			Type:             index.TypeStory,
			Visibility:       st.Visibility.String(),
		}, nil

	case index.DocTypeMedia:
		m, err := e.db.GetMedia(id)
		if err != nil || m == nil {
			return nil, err
		}
		return &MediaPayload{
			ID:       m.ID,
			SiteID:   m.SiteID,
			Title:    m.Title,
			Type:     m.Type,
			Filename: m.Filename,
		}, nil

	case index.DocTypeLanguage:
		l, err := e.db.GetLanguage(id)
		if err != nil || l == nil {
			return nil, err
		}
		sites, err := e.db.ListSitesByLanguage(l.ID)
		if err != nil {
			return nil, err
		}
		slugs := []string{}
		for _, s := range sites {
			if !s.IsHidden && s.Visibility >= storage.VisibilityMembers {
				slugs = append(slugs, s.Slug)
			}
		}
		return &LanguagePayload{ID: l.ID, Name: l.Title, Type: index.DocTypeLanguage, SiteSlugs: slugs}, nil

	case index.DocTypeSite:
		s, err := e.db.GetSite(id)
		if err != nil || s == nil {
			return nil, err
		}
		return &LanguagePayload{ID: s.ID, Name: s.Title, Type: index.DocTypeSite, SiteSlugs: []string{s.Slug}}, nil
	}
	return nil, nil
}
