package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/openlangarchive/langsearch/internal/storage"
)

// VisibilityFilter builds the mandatory access clause for one caller. The
// anonymous caller gets the public clause alone; each membership widens
// access on its own site according to the role. The clause is always present
// so a bug elsewhere in query assembly cannot widen access.
func VisibilityFilter(memberships []*storage.Membership) query.Query {
	dis := bleve.NewDisjunctionQuery()
	dis.SetMin(1)

	// Public sites expose their public documents to everyone.
	public := bleve.NewConjunctionQuery(
		numericEquals("site_visibility", float64(storage.VisibilityPublic)),
		numericEquals("visibility", float64(storage.VisibilityPublic)),
	)
	dis.AddQuery(public)

	for _, m := range memberships {
		floor := roleFloor(m.Role)
		clause := bleve.NewConjunctionQuery(
			termFilter("site_id", m.SiteID),
			numericAtLeast("visibility", float64(floor)),
		)
		dis.AddQuery(clause)
	}
	return dis
}

// roleFloor is the narrowest visibility level a role may read on its site.
func roleFloor(r storage.Role) storage.Visibility {
	if r == storage.RoleMember {
		return storage.VisibilityMembers
	}
	return storage.VisibilityTeam
}

func numericAtLeast(field string, min float64) query.Query {
	incl := true
	q := bleve.NewNumericRangeInclusiveQuery(&min, nil, &incl, nil)
	q.SetField(field)
	return q
}
