package index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Document type tags stored on every document. Mixed-index results are
// hydrated by dispatching on this field rather than on the hit's index name.
const (
	DocTypeDictionaryEntry = "dictionary_entry"
	DocTypeSong            = "song"
	DocTypeStory           = "story"
	DocTypeMedia           = "media"
	DocTypeLanguage        = "language"
	DocTypeSite            = "site"
)

// buildIndexMapping returns the shared mapping used by every logical index.
// Documents only populate the fields they carry, so one mapping covering the
// union of all variants keeps the indices interchangeable behind the alias.
func buildIndexMapping() mapping.IndexMapping {
	keywordField := bleve.NewKeywordFieldMapping()
	keywordField.Store = false

	storedKeyword := bleve.NewKeywordFieldMapping()
	storedKeyword.Store = true

	textField := bleve.NewTextFieldMapping()
	textField.Store = false

	storedText := bleve.NewTextFieldMapping()
	storedText.Store = true

	boolField := bleve.NewBooleanFieldMapping()
	boolField.Store = false

	numField := bleve.NewNumericFieldMapping()
	numField.Store = false

	dateField := bleve.NewDateTimeFieldMapping()
	dateField.Store = false

	doc := bleve.NewDocumentMapping()

	// Identity and routing fields, stored for hydration.
	doc.AddFieldMappingsAt("document_id", storedKeyword)
	doc.AddFieldMappingsAt("document_type", storedKeyword)
	doc.AddFieldMappingsAt("site_id", storedKeyword)
	doc.AddFieldMappingsAt("type", storedKeyword)
	doc.AddFieldMappingsAt("title", storedText)

	// Permission fields.
	doc.AddFieldMappingsAt("visibility", numField)
	doc.AddFieldMappingsAt("site_visibility", numField)

	// Search-term buckets.
	doc.AddFieldMappingsAt(FieldPrimaryLanguage, textField)
	doc.AddFieldMappingsAt(FieldPrimaryTranslation, textField)
	doc.AddFieldMappingsAt(FieldSecondaryLanguage, textField)
	doc.AddFieldMappingsAt(FieldSecondaryTranslation, textField)
	doc.AddFieldMappingsAt(FieldOtherLanguage, textField)
	doc.AddFieldMappingsAt(FieldOtherTranslation, textField)

	// Filter and sort fields.
	doc.AddFieldMappingsAt("custom_order", keywordField)
	doc.AddFieldMappingsAt("sort_title", keywordField)
	doc.AddFieldMappingsAt("categories", keywordField)
	doc.AddFieldMappingsAt("site_features", keywordField)
	doc.AddFieldMappingsAt("site_slugs", keywordField)
	doc.AddFieldMappingsAt("title_word_count", numField)
	doc.AddFieldMappingsAt("exclude_from_games", boolField)
	doc.AddFieldMappingsAt("exclude_from_kids", boolField)
	doc.AddFieldMappingsAt("has_audio", boolField)
	doc.AddFieldMappingsAt("has_document", boolField)
	doc.AddFieldMappingsAt("has_image", boolField)
	doc.AddFieldMappingsAt("has_video", boolField)
	doc.AddFieldMappingsAt("has_translation", boolField)
	doc.AddFieldMappingsAt("has_unrecognized_chars", boolField)
	doc.AddFieldMappingsAt("has_categories", boolField)
	doc.AddFieldMappingsAt("created", dateField)
	doc.AddFieldMappingsAt("last_modified", dateField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = "standard"
	return m
}
