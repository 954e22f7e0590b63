package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/openlangarchive/langsearch/internal/alphabet"
	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

// Relevance boosts per bucket. Exact matches in primary fields outrank
// everything; fuzzy matches in incidental text barely register.
const (
	boostExactPrimary   = 5.0
	boostExactSecondary = 4.0
	boostFuzzyPrimary   = 3.0
	boostFuzzySecondary = 2.0
	boostExactOther     = 1.5
	boostFuzzyOther     = 1.0

	fuzziness = 2

	// fuzzyCutoffRunes is the longest term that still gets fuzzy clauses.
	// Longer terms match exactly only, keeping edit-distance expansion off
	// pathological inputs.
	fuzzyCutoffRunes = 60
)

// Builder turns Params into executable bleve queries. It reads the database
// for the pieces a query needs at build time: the site alphabet for
// starts-with and the category tree for category filters.
type Builder struct {
	db *storage.DB
}

func NewBuilder(db *storage.DB) *Builder {
	return &Builder{db: db}
}

// Request is a built query and the logical indices it must run against.
type Request struct {
	Query   query.Query
	Indices []string
}

// Build assembles the query for one request. Filters are independent
// mandatory clauses; adding a filter can only narrow the result set. The
// search term contributes the only scored clause.
func (b *Builder) Build(p Params) (*Request, error) {
	p.normalize()

	types := p.Types
	if types == nil {
		types = index.AllTypes
	}
	indices := index.IndicesFor(types)
	if len(indices) == 0 {
		// Every requested type was unrecognized: match nothing rather than
		// silently widening to everything.
		return &Request{
			Query:   bleve.NewMatchNoneQuery(),
			Indices: []string{index.IndexDictionaryEntries},
		}, nil
	}

	clauses := []query.Query{VisibilityFilter(p.Memberships)}

	if p.SiteID != "" {
		clauses = append(clauses, termFilter("site_id", p.SiteID))
	}

	if len(types) < len(index.AllTypes) {
		typeClause := bleve.NewDisjunctionQuery()
		typeClause.SetMin(1)
		for _, t := range types {
			typeClause.AddQuery(termFilter("type", t))
		}
		clauses = append(clauses, typeClause)
	}

	if p.Kids != nil {
		clauses = append(clauses, boolFilter("exclude_from_kids", !*p.Kids))
	}
	if p.Games != nil {
		clauses = append(clauses, boolFilter("exclude_from_games", !*p.Games))
	}

	if len(p.Visibility) > 0 {
		visClause := bleve.NewDisjunctionQuery()
		visClause.SetMin(1)
		for _, v := range p.Visibility {
			visClause.AddQuery(numericEquals("visibility", float64(v)))
		}
		clauses = append(clauses, visClause)
	}

	flagFilters := []struct {
		field string
		value *bool
	}{
		{"has_audio", p.HasAudio},
		{"has_document", p.HasDocument},
		{"has_image", p.HasImage},
		{"has_video", p.HasVideo},
		{"has_translation", p.HasTranslation},
		{"has_unrecognized_chars", p.HasUnrecognizedChars},
	}
	for _, f := range flagFilters {
		if f.value != nil {
			clauses = append(clauses, boolFilter(f.field, *f.value))
		}
	}

	if p.SiteFeature != "" {
		clauses = append(clauses, termFilter("site_features", p.SiteFeature))
	}

	if p.CategoryID != "" {
		catClause, err := b.categoryFilter(p.CategoryID)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, catClause)
	}

	if p.StartsWith != "" {
		swClause, err := b.startsWithFilter(p.SiteID, p.StartsWith)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, swClause)
	}

	if p.MinWords != nil || p.MaxWords != nil {
		clauses = append(clauses, wordCountFilter(p.MinWords, p.MaxWords))
	}

	cleaned := strings.TrimSpace(alphabet.NFC(p.Query))
	boolQ := bleve.NewBooleanQuery()
	for _, c := range clauses {
		boolQ.AddMust(c)
	}
	if cleaned != "" {
		boolQ.AddMust(TermQuery(cleaned, p.Domain))
	}
	return &Request{Query: boolQ, Indices: indices}, nil
}

// TermQuery is the scored clause for one cleaned search term. Each bucket
// contributes an exact phrase clause and, for short terms, a fuzzy clause at
// a lower boost; one match in any bucket is enough.
func TermQuery(term, domain string) query.Query {
	type bucket struct {
		field string
		exact float64
		fuzzy float64
	}
	buckets := []bucket{
		{index.FieldPrimaryLanguage, boostExactPrimary, boostFuzzyPrimary},
		{index.FieldPrimaryTranslation, boostExactPrimary, boostFuzzyPrimary},
		{index.FieldSecondaryLanguage, boostExactSecondary, boostFuzzySecondary},
		{index.FieldSecondaryTranslation, boostExactSecondary, boostFuzzySecondary},
		{index.FieldOtherLanguage, boostExactOther, boostFuzzyOther},
		{index.FieldOtherTranslation, boostExactOther, boostFuzzyOther},
	}

	withFuzzy := utf8.RuneCountInString(term) <= fuzzyCutoffRunes

	dis := bleve.NewDisjunctionQuery()
	dis.SetMin(1)
	for _, bk := range buckets {
		if !inDomain(bk.field, domain) {
			continue
		}
		exact := bleve.NewMatchPhraseQuery(term)
		exact.SetField(bk.field)
		exact.SetBoost(bk.exact)
		dis.AddQuery(exact)

		if withFuzzy {
			fz := bleve.NewMatchQuery(term)
			fz.SetField(bk.field)
			fz.SetFuzziness(fuzziness)
			fz.SetBoost(bk.fuzzy)
			dis.AddQuery(fz)
		}
	}
	return dis
}

func inDomain(field, domain string) bool {
	switch domain {
	case DomainLanguage:
		return strings.HasSuffix(field, "_language_search_fields")
	case DomainTranslation:
		return strings.HasSuffix(field, "_translation_search_fields")
	default:
		return true
	}
}

// categoryFilter matches the category itself or any of its direct children.
func (b *Builder) categoryFilter(categoryID string) (query.Query, error) {
	children, err := b.db.ListChildCategoryIDs(categoryID)
	if err != nil {
		return nil, fmt.Errorf("load child categories: %w", err)
	}
	dis := bleve.NewDisjunctionQuery()
	dis.SetMin(1)
	dis.AddQuery(termFilter("categories", categoryID))
	for _, id := range children {
		dis.AddQuery(termFilter("categories", id))
	}
	return dis, nil
}

// startsWithFilter prefixes on the custom sort key when the site's alphabet
// recognizes every character, falling back to a plain title prefix otherwise.
// Confusable spellings are rewritten to their canonical characters first so a
// lookalike keystroke still lands on the canonical prefix.
func (b *Builder) startsWithFilter(siteID, startsWith string) (query.Query, error) {
	if siteID != "" {
		ab, err := b.db.GetAlphabet(siteID)
		if err != nil {
			return nil, fmt.Errorf("load alphabet: %w", err)
		}
		startsWith = ab.CleanConfusables(startsWith)
		if len(ab.BaseCharacters) > 0 && !ab.ContainsUnknown(startsWith) {
			q := bleve.NewPrefixQuery(ab.CustomOrder(startsWith))
			q.SetField("custom_order")
			return q, nil
		}
	}
	q := bleve.NewPrefixQuery(strings.ToLower(startsWith))
	q.SetField("title")
	return q, nil
}

func wordCountFilter(min, max *int) query.Query {
	var lo, hi *float64
	if min != nil {
		v := float64(*min)
		lo = &v
	}
	if max != nil {
		v := float64(*max)
		hi = &v
	}
	incl := true
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &incl, &incl)
	q.SetField("title_word_count")
	return q
}

func termFilter(field, value string) query.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

func boolFilter(field string, value bool) query.Query {
	q := bleve.NewBoolFieldQuery(value)
	q.SetField(field)
	return q
}

func numericEquals(field string, value float64) query.Query {
	incl := true
	q := bleve.NewNumericRangeInclusiveQuery(&value, &value, &incl, &incl)
	q.SetField(field)
	return q
}
