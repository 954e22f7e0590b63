// Package search builds and executes queries against the document indices.
// The query layer never decides access on its own: every query carries a
// visibility filter derived from the caller's memberships, including the
// anonymous caller's empty set.
package search

import (
	"github.com/openlangarchive/langsearch/internal/storage"
)

// Search domains restrict the term query to one side of the language.
const (
	DomainBoth        = "both"
	DomainLanguage    = "language"
	DomainTranslation = "translation"
)

// Sort orders.
const (
	SortRelevance    = "relevance"
	SortAlphabetical = "alphabetical"
	SortCreated      = "created"
	SortModified     = "modified"
	SortRandom       = "random"
)

// Params is one search request after parsing. Pointer fields are tri-state:
// nil means the filter is absent.
type Params struct {
	// Query is the raw search term; empty means filter-only browsing.
	Query string
	// Types restricts results to entry types. Nil means all types;
	// unrecognized names have already been dropped by the parser, so an
	// empty non-nil slice means nothing can match.
	Types []string
	// SiteID scopes the search to one site; empty means cross-site.
	SiteID string
	// Domain is one of the Domain constants.
	Domain string

	// Kids filters by the kids-site exclusion flag: true keeps kid-safe
	// entries, false keeps only excluded ones. Games works the same way for
	// the games exclusion flag.
	Kids  *bool
	Games *bool

	Visibility []storage.Visibility

	HasAudio             *bool
	HasDocument          *bool
	HasImage             *bool
	HasVideo             *bool
	HasTranslation       *bool
	HasUnrecognizedChars *bool

	// SiteFeature filters media documents to sites carrying a feature key.
	SiteFeature string
	// CategoryID filters dictionary entries to a category and its children.
	CategoryID string
	// StartsWith filters by leading character in the site's custom order.
	StartsWith string
	MinWords   *int
	MaxWords   *int

	Sort           string
	SortDescending bool
	// RandomSeed makes random ordering reproducible across pages of the same
	// request.
	RandomSeed int64

	Page     int
	PageSize int

	// Memberships is the caller's full membership set; empty for anonymous.
	Memberships []*storage.Membership
}

// normalize applies defaults shared by every caller.
func (p *Params) normalize() {
	if p.Domain == "" {
		p.Domain = DomainBoth
	}
	if p.Sort == "" {
		p.Sort = SortRelevance
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 25
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}
