package search

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/alphabet"
	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

// randomWindow caps how many hits a random-ordered request pulls before
// shuffling. Pages past the window come back empty.
const randomWindow = 500

// storedFields are retrieved with every hit for hydration and routing.
var storedFields = []string{"document_id", "document_type", "site_id", "title", "type"}

// Executor runs built queries and hydrates hits back into API payloads.
type Executor struct {
	db      *storage.DB
	store   *index.Store
	builder *Builder
	log     *zap.Logger
}

func NewExecutor(db *storage.DB, store *index.Store, log *zap.Logger) *Executor {
	return &Executor{db: db, store: store, builder: NewBuilder(db), log: log}
}

// Results is one page of search results.
type Results struct {
	Total    uint64    `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Results  []*Result `json:"results"`
}

// Result is one hit with its hydrated payload.
type Result struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Entry any     `json:"entry"`
}

// Search executes one content search request.
func (e *Executor) Search(ctx context.Context, p Params) (*Results, error) {
	p.normalize()
	start := time.Now()

	req, err := e.builder.Build(p)
	if err != nil {
		return nil, err
	}

	from := (p.Page - 1) * p.PageSize
	size := p.PageSize
	if p.Sort == SortRandom {
		// Pull a window and shuffle executor-side; the seed keeps pages of
		// the same request consistent with each other.
		from, size = 0, randomWindow
	}

	sr := bleve.NewSearchRequestOptions(req.Query, size, from, false)
	sr.Fields = storedFields
	applySort(sr, p)

	res, err := e.store.Search(ctx, sr, req.Indices...)
	if err != nil {
		searchFailures.Inc()
		return nil, err
	}

	hits := res.Hits
	if p.Sort == SortRandom {
		rng := rand.New(rand.NewSource(p.RandomSeed))
		rng.Shuffle(len(hits), func(i, j int) { hits[i], hits[j] = hits[j], hits[i] })
		lo := (p.Page - 1) * p.PageSize
		if lo > len(hits) {
			lo = len(hits)
		}
		hi := lo + p.PageSize
		if hi > len(hits) {
			hi = len(hits)
		}
		hits = hits[lo:hi]
	}

	results, err := e.hydrate(hits)
	if err != nil {
		return nil, err
	}

	searchRequests.Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	return &Results{
		Total:    res.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Results:  results,
	}, nil
}

func applySort(sr *bleve.SearchRequest, p Params) {
	field := ""
	switch p.Sort {
	case SortAlphabetical:
		field = "custom_order"
	case SortCreated:
		field = "created"
	case SortModified:
		field = "last_modified"
	default:
		return
	}
	if p.SortDescending {
		field = "-" + field
	}
	sr.SortBy([]string{field, "-_score"})
}

// SearchLanguages queries the language index. Language documents only exist
// for languages and sites already wide enough to show, so no per-caller
// visibility clause applies here.
func (e *Executor) SearchLanguages(ctx context.Context, term string, page, pageSize int) (*Results, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 25
	}

	cleaned := strings.TrimSpace(alphabet.NFC(term))
	var sr *bleve.SearchRequest
	if cleaned == "" {
		sr = bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, (page-1)*pageSize, false)
		sr.SortBy([]string{"sort_title"})
	} else {
		sr = bleve.NewSearchRequestOptions(TermQuery(cleaned, DomainBoth), pageSize, (page-1)*pageSize, false)
	}
	sr.Fields = storedFields

	res, err := e.store.Search(ctx, sr, index.IndexLanguages)
	if err != nil {
		searchFailures.Inc()
		return nil, err
	}
	results, err := e.hydrate(res.Hits)
	if err != nil {
		return nil, err
	}
	searchRequests.Inc()
	return &Results{Total: res.Total, Page: page, PageSize: pageSize, Results: results}, nil
}

func hitField(fields map[string]interface{}, name string) string {
	v, _ := fields[name].(string)
	return v
}

func hitType(fields map[string]interface{}) (string, error) {
	t := hitField(fields, "document_type")
	if t == "" {
		return "", fmt.Errorf("hit missing document_type")
	}
	return t, nil
}
