package index

import (
	"fmt"
	"strings"

	"github.com/openlangarchive/langsearch/internal/storage"
)

// BuildDictionaryEntryDocument projects a dictionary entry and its related
// rows into a search document. Every derived field is recomputed from the
// current database state; nothing is carried over from a previous document.
func BuildDictionaryEntryDocument(db *storage.DB, site *storage.Site, e *storage.DictionaryEntry) (*DictionaryEntryDocument, error) {
	translations, err := db.ListEntryTexts(e.ID, storage.TextTranslation)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	notes, err := db.ListEntryTexts(e.ID, storage.TextNote)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	acknowledgements, err := db.ListEntryTexts(e.ID, storage.TextAcknowledgement)
	if err != nil {
		return nil, fmt.Errorf("load acknowledgements: %w", err)
	}
	spellings, err := db.ListEntryTexts(e.ID, storage.TextAlternateSpelling)
	if err != nil {
		return nil, fmt.Errorf("load alternate spellings: %w", err)
	}
	categories, err := db.ListEntryCategoryIDs(e.ID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	ab, err := db.GetAlphabet(site.ID)
	if err != nil {
		return nil, fmt.Errorf("load alphabet: %w", err)
	}

	hasAudio, err := db.HasRelatedMedia(e.ID, storage.MediaAudio)
	if err != nil {
		return nil, err
	}
	hasDocument, err := db.HasRelatedMedia(e.ID, storage.MediaDocument)
	if err != nil {
		return nil, err
	}
	hasImage, err := db.HasRelatedMedia(e.ID, storage.MediaImage)
	if err != nil {
		return nil, err
	}
	hasVideo, err := hasRelatedVideo(db, e.ID, e.RelatedVideoLinks)
	if err != nil {
		return nil, err
	}

	doc := &DictionaryEntryDocument{
		DocumentID:     e.ID,
		DocumentType:   DocTypeDictionaryEntry,
		SiteID:         site.ID,
		SiteVisibility: int(site.Visibility),
		Visibility:     int(e.Visibility),

		Title:             e.Title,
		Type:              e.Type,
		Translation:       translations,
		AlternateSpelling: spellings,
		Note:              notes,
		Acknowledgement:   acknowledgements,

		PrimaryLanguage:      appendNonEmpty(nil, e.Title),
		PrimaryTranslation:   copyNonEmpty(translations),
		SecondaryLanguage:    copyNonEmpty(spellings),
		SecondaryTranslation: []string{},
		OtherLanguage:        []string{},
		OtherTranslation:     copyNonEmpty(append(append([]string{}, notes...), acknowledgements...)),

		CustomOrder:          ab.CustomOrder(e.Title),
		Categories:           categories,
		TitleWordCount:       len(strings.Fields(e.Title)),
		ExcludeFromGames:     e.ExcludeFromGames,
		ExcludeFromKids:      e.ExcludeFromKids,
		HasAudio:             hasAudio,
		HasDocument:          hasDocument,
		HasImage:             hasImage,
		HasVideo:             hasVideo,
		HasTranslation:       len(translations) > 0,
		HasUnrecognizedChars: ab.ContainsUnknown(e.Title),
		HasCategories:        len(categories) > 0,

		Created:      e.Created,
		LastModified: e.LastModified,
	}
	return doc, nil
}

// BuildSongDocument projects a song and its lyrics into a search document.
func BuildSongDocument(db *storage.DB, site *storage.Site, s *storage.Song) (*SongDocument, error) {
	lyrics, err := db.ListLyrics(s.ID)
	if err != nil {
		return nil, fmt.Errorf("load lyrics: %w", err)
	}
	var lyricsText, lyricsTranslation []string
	hasTranslation := s.TitleTranslation != ""
	for _, l := range lyrics {
		lyricsText = appendNonEmpty(lyricsText, l.Text)
		lyricsTranslation = appendNonEmpty(lyricsTranslation, l.Translation)
		if l.Translation != "" {
			hasTranslation = true
		}
	}

	hasAudio, err := db.HasRelatedMedia(s.ID, storage.MediaAudio)
	if err != nil {
		return nil, err
	}
	hasDocument, err := db.HasRelatedMedia(s.ID, storage.MediaDocument)
	if err != nil {
		return nil, err
	}
	hasImage, err := db.HasRelatedMedia(s.ID, storage.MediaImage)
	if err != nil {
		return nil, err
	}
	hasVideo, err := hasRelatedVideo(db, s.ID, s.RelatedVideoLinks)
	if err != nil {
		return nil, err
	}

	doc := &SongDocument{
		DocumentID:     s.ID,
		DocumentType:   DocTypeSong,
		SiteID:         site.ID,
		SiteVisibility: int(site.Visibility),
		Visibility:     int(s.Visibility),

		Title:             s.Title,
		Type:              TypeSong,
		TitleTranslation:  s.TitleTranslation,
		IntroTitle:        s.Introduction,
		IntroTranslation:  s.IntroductionTranslation,
		LyricsText:        emptyIfNil(lyricsText),
		LyricsTranslation: emptyIfNil(lyricsTranslation),
		Note:              s.Notes,
		Acknowledgement:   s.Acknowledgements,

		PrimaryLanguage:      appendNonEmpty(nil, s.Title),
		PrimaryTranslation:   appendNonEmpty(nil, s.TitleTranslation),
		SecondaryLanguage:    appendNonEmpty(copyNonEmpty(lyricsText), s.Introduction),
		SecondaryTranslation: appendNonEmpty(copyNonEmpty(lyricsTranslation), s.IntroductionTranslation),
		OtherLanguage:        []string{},
		OtherTranslation:     copyNonEmpty(append(append([]string{}, s.Notes...), s.Acknowledgements...)),

		TitleWordCount:   len(strings.Fields(s.Title)),
		ExcludeFromGames: s.ExcludeFromGames,
		ExcludeFromKids:  s.ExcludeFromKids,
		HasAudio:         hasAudio,
		HasDocument:      hasDocument,
		HasImage:         hasImage,
		HasVideo:         hasVideo,
		HasTranslation:   hasTranslation,

		Created:      s.Created,
		LastModified: s.LastModified,
	}
	return doc, nil
}

// BuildStoryDocument projects a story and its pages into a search document.
func BuildStoryDocument(db *storage.DB, site *storage.Site, st *storage.Story) (*StoryDocument, error) {
	pages, err := db.ListStoryPages(st.ID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	var pageText, pageTranslation []string
	hasTranslation := st.TitleTranslation != ""
	for _, p := range pages {
		pageText = appendNonEmpty(pageText, p.Text)
		pageTranslation = appendNonEmpty(pageTranslation, p.Translation)
		if p.Translation != "" {
			hasTranslation = true
		}
	}

	hasAudio, err := db.HasRelatedMedia(st.ID, storage.MediaAudio)
	if err != nil {
		return nil, err
	}
	hasDocument, err := db.HasRelatedMedia(st.ID, storage.MediaDocument)
	if err != nil {
		return nil, err
	}
	hasImage, err := db.HasRelatedMedia(st.ID, storage.MediaImage)
	if err != nil {
		return nil, err
	}
	hasVideo, err := hasRelatedVideo(db, st.ID, st.RelatedVideoLinks)
	if err != nil {
		return nil, err
	}

	doc := &StoryDocument{
		DocumentID:     st.ID,
		DocumentType:   DocTypeStory,
		SiteID:         site.ID,
		SiteVisibility: int(site.Visibility),
		Visibility:     int(st.Visibility),

		Title:            st.Title,
		Type:             TypeStory,
		TitleTranslation: st.TitleTranslation,
		IntroTitle:       st.Introduction,
		IntroTranslation: st.IntroductionTranslation,
		PageText:         emptyIfNil(pageText),
		PageTranslation:  emptyIfNil(pageTranslation),
		Author:           st.Author,
		Note:             st.Notes,
		Acknowledgement:  st.Acknowledgements,

		PrimaryLanguage:      appendNonEmpty(nil, st.Title),
		PrimaryTranslation:   appendNonEmpty(nil, st.TitleTranslation),
		SecondaryLanguage:    appendNonEmpty(copyNonEmpty(pageText), st.Introduction),
		SecondaryTranslation: appendNonEmpty(copyNonEmpty(pageTranslation), st.IntroductionTranslation),
		OtherLanguage:        appendNonEmpty(nil, st.Author),
		OtherTranslation:     copyNonEmpty(append(append([]string{}, st.Notes...), st.Acknowledgements...)),

		TitleWordCount:   len(strings.Fields(st.Title)),
		ExcludeFromGames: st.ExcludeFromGames,
		ExcludeFromKids:  st.ExcludeFromKids,
		HasAudio:         hasAudio,
		HasDocument:      hasDocument,
		HasImage:         hasImage,
		HasVideo:         hasVideo,
		HasTranslation:   hasTranslation,

		Created:      st.Created,
		LastModified: st.LastModified,
	}
	return doc, nil
}

// BuildMediaDocument projects a media asset into a search document. Media
// documents always carry public visibility; site visibility alone gates
// access. Site feature keys are denormalized so clients can filter on them
// without a second lookup.
func BuildMediaDocument(db *storage.DB, site *storage.Site, m *storage.Media) (*MediaDocument, error) {
	features, err := db.ListEnabledSiteFeatures(site.ID)
	if err != nil {
		return nil, fmt.Errorf("load site features: %w", err)
	}

	doc := &MediaDocument{
		DocumentID:     m.ID,
		DocumentType:   DocTypeMedia,
		SiteID:         site.ID,
		SiteVisibility: int(site.Visibility),
		Visibility:     int(storage.VisibilityPublic),

		Title:       m.Title,
		Type:        m.Type,
		Filename:    m.Filename,
		Description: m.Description,

		PrimaryLanguage:      appendNonEmpty(nil, m.Title),
		PrimaryTranslation:   []string{},
		SecondaryLanguage:    []string{},
		SecondaryTranslation: []string{},
		OtherLanguage:        appendNonEmpty(nil, m.Filename),
		OtherTranslation:     appendNonEmpty(nil, m.Description),

		SiteFeatures:     features,
		TitleWordCount:   len(strings.Fields(m.Title)),
		ExcludeFromGames: m.ExcludeFromGames,
		ExcludeFromKids:  m.ExcludeFromKids,

		Created:      m.Created,
		LastModified: m.LastModified,
	}
	return doc, nil
}

// BuildLanguageDocument projects a language and its visible sites into a
// language-index document. Callers check ShouldIndexLanguage first; a
// language with no visible sites has no document.
func BuildLanguageDocument(db *storage.DB, l *storage.Language) (*LanguageDocument, error) {
	sites, err := db.ListSitesByLanguage(l.ID)
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	var siteNames, siteSlugs []string
	for _, s := range sites {
		if siteVisibleInLanguageIndex(s) {
			siteNames = append(siteNames, s.Title)
			siteSlugs = append(siteSlugs, s.Slug)
		}
	}

	codes := splitCSV(l.LanguageCode)
	alternates := splitCSV(l.AlternateNames)
	keywords := splitCSV(l.CommunityKeywords)
	familyAlternates := splitCSV(l.FamilyAlternateNames)

	doc := &LanguageDocument{
		DocumentID:   l.ID,
		DocumentType: DocTypeLanguage,

		LanguageName:         l.Title,
		SortTitle:            strings.ToLower(l.Title),
		LanguageCode:         codes,
		AlternateNames:       alternates,
		CommunityKeywords:    keywords,
		SiteNames:            emptyIfNil(siteNames),
		SiteSlugs:            emptyIfNil(siteSlugs),
		FamilyName:           l.FamilyName,
		FamilyAlternateNames: familyAlternates,

		PrimaryLanguage:      appendNonEmpty(append(append([]string{}, codes...), siteNames...), l.Title),
		PrimaryTranslation:   []string{},
		SecondaryLanguage:    appendNonEmpty(append(append([]string{}, alternates...), familyAlternates...), l.FamilyName),
		SecondaryTranslation: []string{},
		OtherLanguage:        append(append([]string{}, keywords...), siteSlugs...),
		OtherTranslation:     []string{},
	}
	return doc, nil
}

// BuildSiteDocument projects a language-less site into the language index so
// it remains discoverable alongside languages.
func BuildSiteDocument(s *storage.Site) *LanguageDocument {
	return &LanguageDocument{
		DocumentID:   s.ID,
		DocumentType: DocTypeSite,

		LanguageName: s.Title,
		SortTitle:    strings.ToLower(s.Title),
		SiteNames:    []string{s.Title},
		SiteSlugs:    []string{s.Slug},

		PrimaryLanguage:      appendNonEmpty(nil, s.Title),
		PrimaryTranslation:   []string{},
		SecondaryLanguage:    []string{},
		SecondaryTranslation: []string{},
		OtherLanguage:        []string{s.Slug},
		OtherTranslation:     []string{},

		LanguageCode:         []string{},
		AlternateNames:       []string{},
		CommunityKeywords:    []string{},
		FamilyAlternateNames: []string{},
	}
}

// ShouldIndexLanguage reports whether a language has at least one site wide
// enough to appear in the language index.
func ShouldIndexLanguage(db *storage.DB, languageID string) (bool, error) {
	sites, err := db.ListSitesByLanguage(languageID)
	if err != nil {
		return false, err
	}
	for _, s := range sites {
		if siteVisibleInLanguageIndex(s) {
			return true, nil
		}
	}
	return false, nil
}

func siteVisibleInLanguageIndex(s *storage.Site) bool {
	return !s.IsHidden && s.Visibility >= storage.VisibilityMembers
}

// hasRelatedVideo reports whether an entity has any video at all, whether an
// uploaded asset or an embedded link.
func hasRelatedVideo(db *storage.DB, ownerID string, links []string) (bool, error) {
	if len(links) > 0 {
		return true, nil
	}
	return db.HasRelatedMedia(ownerID, storage.MediaVideo)
}

func appendNonEmpty(dst []string, values ...string) []string {
	if dst == nil {
		dst = []string{}
	}
	for _, v := range values {
		if v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}

func copyNonEmpty(values []string) []string {
	return appendNonEmpty(nil, values...)
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
