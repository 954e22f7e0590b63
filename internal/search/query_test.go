package search

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlangarchive/langsearch/internal/alphabet"
	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/storage"
)

func testBuilder(t *testing.T) (*Builder, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBuilder(db), db
}

func TestTermQueryBucketsAndBoosts(t *testing.T) {
	q := TermQuery("hello", DomainBoth)
	dis, ok := q.(*query.DisjunctionQuery)
	require.True(t, ok)
	// Six buckets, exact plus fuzzy each.
	assert.Len(t, dis.Disjuncts, 12)
}

func TestTermQueryFuzzyCutoff(t *testing.T) {
	atCutoff := strings.Repeat("x", fuzzyCutoffRunes)
	dis := TermQuery(atCutoff, DomainBoth).(*query.DisjunctionQuery)
	assert.Len(t, dis.Disjuncts, 12, "a term exactly at the cutoff keeps fuzzy clauses")

	pastCutoff := strings.Repeat("x", fuzzyCutoffRunes+1)
	dis = TermQuery(pastCutoff, DomainBoth).(*query.DisjunctionQuery)
	assert.Len(t, dis.Disjuncts, 6, "one rune past the cutoff drops fuzzy clauses")
}

func TestTermQueryCutoffCountsRunesNotBytes(t *testing.T) {
	// 60 multi-byte runes is still at the cutoff.
	term := strings.Repeat("é", fuzzyCutoffRunes)
	dis := TermQuery(term, DomainBoth).(*query.DisjunctionQuery)
	assert.Len(t, dis.Disjuncts, 12)
}

func TestTermQueryDomainRestriction(t *testing.T) {
	dis := TermQuery("hello", DomainLanguage).(*query.DisjunctionQuery)
	assert.Len(t, dis.Disjuncts, 6)

	dis = TermQuery("hello", DomainTranslation).(*query.DisjunctionQuery)
	assert.Len(t, dis.Disjuncts, 6)
}

func TestBuildNoRecognizedTypesMatchesNothing(t *testing.T) {
	b, _ := testBuilder(t)
	req, err := b.Build(Params{Query: "hello", Types: []string{}})
	require.NoError(t, err)
	_, ok := req.Query.(*query.MatchNoneQuery)
	assert.True(t, ok)
}

func TestBuildSelectsIndicesFromTypes(t *testing.T) {
	b, _ := testBuilder(t)

	req, err := b.Build(Params{Types: []string{index.TypeWord, index.TypePhrase}})
	require.NoError(t, err)
	assert.Equal(t, []string{index.IndexDictionaryEntries}, req.Indices)

	req, err = b.Build(Params{Types: []string{index.TypeSong, index.TypeAudio}})
	require.NoError(t, err)
	assert.Equal(t, []string{index.IndexSongs, index.IndexMedia}, req.Indices)

	req, err = b.Build(Params{})
	require.NoError(t, err)
	assert.Len(t, req.Indices, 4)
}

func TestBuildEmptyTermIsFilterOnly(t *testing.T) {
	b, _ := testBuilder(t)
	req, err := b.Build(Params{Query: "   "})
	require.NoError(t, err)

	boolQ, ok := req.Query.(*query.BooleanQuery)
	require.True(t, ok)
	must, ok := boolQ.Must.(*query.ConjunctionQuery)
	require.True(t, ok)
	// Only the visibility clause; no scored term clause.
	assert.Len(t, must.Conjuncts, 1)
}

func TestBuildTermAddsScoredClause(t *testing.T) {
	b, _ := testBuilder(t)
	req, err := b.Build(Params{Query: "hello", SiteID: "s1"})
	require.NoError(t, err)

	boolQ := req.Query.(*query.BooleanQuery)
	must := boolQ.Must.(*query.ConjunctionQuery)
	// Visibility clause, site clause, term clause.
	assert.Len(t, must.Conjuncts, 3)
}

func TestVisibilityFilterAnonymous(t *testing.T) {
	q := VisibilityFilter(nil)
	dis, ok := q.(*query.DisjunctionQuery)
	require.True(t, ok)
	require.Len(t, dis.Disjuncts, 1)

	public, ok := dis.Disjuncts[0].(*query.ConjunctionQuery)
	require.True(t, ok)
	assert.Len(t, public.Conjuncts, 2)
}

func TestVisibilityFilterRoleFloors(t *testing.T) {
	memberships := []*storage.Membership{
		{UserID: "u", SiteID: "s1", Role: storage.RoleMember},
		{UserID: "u", SiteID: "s2", Role: storage.RoleAssistant},
	}
	dis := VisibilityFilter(memberships).(*query.DisjunctionQuery)
	require.Len(t, dis.Disjuncts, 3)

	memberClause := dis.Disjuncts[1].(*query.ConjunctionQuery)
	rangeQ := memberClause.Conjuncts[1].(*query.NumericRangeQuery)
	require.NotNil(t, rangeQ.Min)
	assert.Equal(t, float64(storage.VisibilityMembers), *rangeQ.Min)
	assert.Nil(t, rangeQ.Max)

	assistantClause := dis.Disjuncts[2].(*query.ConjunctionQuery)
	rangeQ = assistantClause.Conjuncts[1].(*query.NumericRangeQuery)
	require.NotNil(t, rangeQ.Min)
	assert.Equal(t, float64(storage.VisibilityTeam), *rangeQ.Min)
}

func TestStartsWithFilterCleansConfusables(t *testing.T) {
	b, db := testBuilder(t)
	ab := alphabet.New()
	ab.BaseCharacters = []string{"x̱", "a"}
	ab.ConfusableMap = map[string]string{"x_": "x̱"}
	require.NoError(t, db.UpsertAlphabet("s1", ab))

	// The lookalike "x_" is rewritten to the canonical character before the
	// alphabet check, so the filter prefixes on custom_order.
	q, err := b.startsWithFilter("s1", "x_a")
	require.NoError(t, err)
	prefix, ok := q.(*query.PrefixQuery)
	require.True(t, ok)
	assert.Equal(t, "custom_order", prefix.FieldVal)
	assert.Equal(t, ab.CustomOrder("x̱a"), prefix.Prefix)

	// A character the alphabet truly lacks still falls back to the title.
	q, err = b.startsWithFilter("s1", "z")
	require.NoError(t, err)
	prefix = q.(*query.PrefixQuery)
	assert.Equal(t, "title", prefix.FieldVal)
	assert.Equal(t, "z", prefix.Prefix)
}

func TestCategoryFilterIncludesChildren(t *testing.T) {
	b, db := testBuilder(t)
	require.NoError(t, db.UpsertCategory(&storage.Category{ID: "parent", SiteID: "s", Title: "Animals"}))
	require.NoError(t, db.UpsertCategory(&storage.Category{ID: "child", SiteID: "s", Title: "Birds", ParentID: "parent"}))

	q, err := b.categoryFilter("parent")
	require.NoError(t, err)
	dis := q.(*query.DisjunctionQuery)
	require.Len(t, dis.Disjuncts, 2)
	assert.Equal(t, "parent", dis.Disjuncts[0].(*query.TermQuery).Term)
	assert.Equal(t, "child", dis.Disjuncts[1].(*query.TermQuery).Term)
}
