// Package index projects relational entities into denormalized search
// documents and keeps the per-type bleve indices in sync with the database.
// Documents are projections only: the database always wins, and a resync must
// converge the index whenever the two diverge.
package index

import "time"

// Logical index names. Each document type maps to exactly one backing index.
const (
	IndexDictionaryEntries = "dictionary_entries"
	IndexSongs             = "songs"
	IndexStories           = "stories"
	IndexMedia             = "media"
	IndexLanguages         = "languages"
)

// Searchable entry types, used by the types filter and index selection.
const (
	TypeWord     = "word"
	TypePhrase   = "phrase"
	TypeSong     = "song"
	TypeStory    = "story"
	TypeAudio    = "audio"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeDocument = "document"
)

// AllTypes is the default type set for queries that do not restrict types.
var AllTypes = []string{TypeWord, TypePhrase, TypeSong, TypeStory, TypeAudio, TypeImage, TypeVideo, TypeDocument}

// IndicesFor maps requested entry types to the backing indices a query must
// span. Unrecognized types are ignored; an empty result means the query can
// match nothing.
func IndicesFor(types []string) []string {
	seen := map[string]bool{}
	var indices []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			indices = append(indices, name)
		}
	}
	for _, t := range types {
		switch t {
		case TypeWord, TypePhrase:
			add(IndexDictionaryEntries)
		case TypeSong:
			add(IndexSongs)
		case TypeStory:
			add(IndexStories)
		case TypeAudio, TypeImage, TypeVideo, TypeDocument:
			add(IndexMedia)
		}
	}
	return indices
}

// Search-term bucket field names. Every searchable text field on a document
// is mirrored into one of these six buckets; the query builder boosts matches
// by bucket so primary-language hits outrank incidental note text.
const (
	FieldPrimaryLanguage      = "primary_language_search_fields"
	FieldPrimaryTranslation   = "primary_translation_search_fields"
	FieldSecondaryLanguage    = "secondary_language_search_fields"
	FieldSecondaryTranslation = "secondary_translation_search_fields"
	FieldOtherLanguage        = "other_language_search_fields"
	FieldOtherTranslation     = "other_translation_search_fields"
)

// Document is the common surface of every search document variant.
type Document interface {
	// DocID is the stable external identifier, equal to the source entity's
	// primary key. It is the idempotency key for upsert and delete.
	DocID() string
	// DocType names the concrete variant, used to hydrate mixed-type results.
	DocType() string
}

// DictionaryEntryDocument is the denormalized projection of one dictionary
// entry and its related rows.
type DictionaryEntryDocument struct {
	DocumentID     string `json:"document_id"`
	DocumentType   string `json:"document_type"`
	SiteID         string `json:"site_id"`
	SiteVisibility int    `json:"site_visibility"`
	Visibility     int    `json:"visibility"`

	Title             string   `json:"title"`
	Type              string   `json:"type"`
	Translation       []string `json:"translation"`
	AlternateSpelling []string `json:"alternate_spelling"`
	Note              []string `json:"note"`
	Acknowledgement   []string `json:"acknowledgement"`

	PrimaryLanguage      []string `json:"primary_language_search_fields"`
	PrimaryTranslation   []string `json:"primary_translation_search_fields"`
	SecondaryLanguage    []string `json:"secondary_language_search_fields"`
	SecondaryTranslation []string `json:"secondary_translation_search_fields"`
	OtherLanguage        []string `json:"other_language_search_fields"`
	OtherTranslation     []string `json:"other_translation_search_fields"`

	CustomOrder          string   `json:"custom_order"`
	Categories           []string `json:"categories"`
	TitleWordCount       int      `json:"title_word_count"`
	ExcludeFromGames     bool     `json:"exclude_from_games"`
	ExcludeFromKids      bool     `json:"exclude_from_kids"`
	HasAudio             bool     `json:"has_audio"`
	HasDocument          bool     `json:"has_document"`
	HasImage             bool     `json:"has_image"`
	HasVideo             bool     `json:"has_video"`
	HasTranslation       bool     `json:"has_translation"`
	HasUnrecognizedChars bool     `json:"has_unrecognized_chars"`
	HasCategories        bool     `json:"has_categories"`

	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

func (d *DictionaryEntryDocument) DocID() string   { return d.DocumentID }
func (d *DictionaryEntryDocument) DocType() string { return d.DocumentType }

// SongDocument is the denormalized projection of one song and its lyrics.
type SongDocument struct {
	DocumentID     string `json:"document_id"`
	DocumentType   string `json:"document_type"`
	SiteID         string `json:"site_id"`
	SiteVisibility int    `json:"site_visibility"`
	Visibility     int    `json:"visibility"`

	Title             string   `json:"title"`
	Type              string   `json:"type"`
	TitleTranslation  string   `json:"title_translation"`
	IntroTitle        string   `json:"intro_title"`
	IntroTranslation  string   `json:"intro_translation"`
	LyricsText        []string `json:"lyrics_text"`
	LyricsTranslation []string `json:"lyrics_translation"`
	Note              []string `json:"note"`
	Acknowledgement   []string `json:"acknowledgement"`

	PrimaryLanguage      []string `json:"primary_language_search_fields"`
	PrimaryTranslation   []string `json:"primary_translation_search_fields"`
	SecondaryLanguage    []string `json:"secondary_language_search_fields"`
	SecondaryTranslation []string `json:"secondary_translation_search_fields"`
	OtherLanguage        []string `json:"other_language_search_fields"`
	OtherTranslation     []string `json:"other_translation_search_fields"`

	TitleWordCount   int  `json:"title_word_count"`
	ExcludeFromGames bool `json:"exclude_from_games"`
	ExcludeFromKids  bool `json:"exclude_from_kids"`
	HasAudio         bool `json:"has_audio"`
	HasDocument      bool `json:"has_document"`
	HasImage         bool `json:"has_image"`
	HasVideo         bool `json:"has_video"`
	HasTranslation   bool `json:"has_translation"`

	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

func (d *SongDocument) DocID() string   { return d.DocumentID }
func (d *SongDocument) DocType() string { return d.DocumentType }

// StoryDocument is the denormalized projection of one story and its pages.
type StoryDocument struct {
	DocumentID     string `json:"document_id"`
	DocumentType   string `json:"document_type"`
	SiteID         string `json:"site_id"`
	SiteVisibility int    `json:"site_visibility"`
	Visibility     int    `json:"visibility"`

	Title            string   `json:"title"`
	Type             string   `json:"type"`
	TitleTranslation string   `json:"title_translation"`
	IntroTitle       string   `json:"intro_title"`
	IntroTranslation string   `json:"intro_translation"`
	PageText         []string `json:"page_text"`
	PageTranslation  []string `json:"page_translation"`
	Author           string   `json:"author"`
	Note             []string `json:"note"`
	Acknowledgement  []string `json:"acknowledgement"`

	PrimaryLanguage      []string `json:"primary_language_search_fields"`
	PrimaryTranslation   []string `json:"primary_translation_search_fields"`
	SecondaryLanguage    []string `json:"secondary_language_search_fields"`
	SecondaryTranslation []string `json:"secondary_translation_search_fields"`
	OtherLanguage        []string `json:"other_language_search_fields"`
	OtherTranslation     []string `json:"other_translation_search_fields"`

	TitleWordCount   int  `json:"title_word_count"`
	ExcludeFromGames bool `json:"exclude_from_games"`
	ExcludeFromKids  bool `json:"exclude_from_kids"`
	HasAudio         bool `json:"has_audio"`
	HasDocument      bool `json:"has_document"`
	HasImage         bool `json:"has_image"`
	HasVideo         bool `json:"has_video"`
	HasTranslation   bool `json:"has_translation"`

	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

func (d *StoryDocument) DocID() string   { return d.DocumentID }
func (d *StoryDocument) DocType() string { return d.DocumentType }

// MediaDocument is the denormalized projection of one media asset. Media has
// no per-entity visibility; documents carry the public level and access is
// governed by site visibility alone.
type MediaDocument struct {
	DocumentID     string `json:"document_id"`
	DocumentType   string `json:"document_type"`
	SiteID         string `json:"site_id"`
	SiteVisibility int    `json:"site_visibility"`
	Visibility     int    `json:"visibility"`

	Title       string `json:"title"`
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Description string `json:"description"`

	PrimaryLanguage      []string `json:"primary_language_search_fields"`
	PrimaryTranslation   []string `json:"primary_translation_search_fields"`
	SecondaryLanguage    []string `json:"secondary_language_search_fields"`
	SecondaryTranslation []string `json:"secondary_translation_search_fields"`
	OtherLanguage        []string `json:"other_language_search_fields"`
	OtherTranslation     []string `json:"other_translation_search_fields"`

	SiteFeatures     []string `json:"site_features"`
	TitleWordCount   int      `json:"title_word_count"`
	ExcludeFromGames bool     `json:"exclude_from_games"`
	ExcludeFromKids  bool     `json:"exclude_from_kids"`

	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

func (d *MediaDocument) DocID() string   { return d.DocumentID }
func (d *MediaDocument) DocType() string { return d.DocumentType }

// LanguageDocument covers both languages and language-less sites in the
// language index; a language-less site gets a document of its own so it is
// still discoverable.
type LanguageDocument struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`

	LanguageName         string   `json:"language_name"`
	SortTitle            string   `json:"sort_title"`
	LanguageCode         []string `json:"language_code"`
	AlternateNames       []string `json:"language_alternate_names"`
	CommunityKeywords    []string `json:"language_community_keywords"`
	SiteNames            []string `json:"site_names"`
	SiteSlugs            []string `json:"site_slugs"`
	FamilyName           string   `json:"language_family_name"`
	FamilyAlternateNames []string `json:"language_family_alternate_names"`

	PrimaryLanguage      []string `json:"primary_language_search_fields"`
	PrimaryTranslation   []string `json:"primary_translation_search_fields"`
	SecondaryLanguage    []string `json:"secondary_language_search_fields"`
	SecondaryTranslation []string `json:"secondary_translation_search_fields"`
	OtherLanguage        []string `json:"other_language_search_fields"`
	OtherTranslation     []string `json:"other_translation_search_fields"`
}

func (d *LanguageDocument) DocID() string   { return d.DocumentID }
func (d *LanguageDocument) DocType() string { return d.DocumentType }
