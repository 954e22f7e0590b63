package storage

import "time"

// Visibility is the access level of a site or of an individual entity.
// Values are spaced so range comparisons ("members or wider") work.
type Visibility int

const (
	VisibilityTeam    Visibility = 0
	VisibilityMembers Visibility = 10
	VisibilityPublic  Visibility = 20
)

// ParseVisibility maps an API string to a Visibility. Unrecognized values
// return ok=false and are ignored by callers.
func ParseVisibility(s string) (Visibility, bool) {
	switch s {
	case "team":
		return VisibilityTeam, true
	case "members":
		return VisibilityMembers, true
	case "public":
		return VisibilityPublic, true
	}
	return 0, false
}

func (v Visibility) String() string {
	switch v {
	case VisibilityMembers:
		return "members"
	case VisibilityPublic:
		return "public"
	default:
		return "team"
	}
}

// Role is a user's membership role on one site.
type Role int

const (
	RoleMember Role = iota
	RoleAssistant
	RoleEditor
	RoleLanguageAdmin
)

// Membership links a user to a site with a role.
type Membership struct {
	UserID string
	SiteID string
	Role   Role
}

// Site is the owning container for all content entities.
type Site struct {
	ID         string
	Title      string
	Slug       string
	Visibility Visibility
	IsHidden   bool
	LanguageID string // empty when the site has no language assigned
}

// Language groups sites under one language family.
type Language struct {
	ID                   string
	Title                string
	LanguageCode         string
	AlternateNames       string // comma-separated
	CommunityKeywords    string // comma-separated
	FamilyName           string
	FamilyAlternateNames string
}

// DictionaryEntry is a word or phrase belonging to a site.
type DictionaryEntry struct {
	ID                string
	SiteID            string
	Title             string
	Type              string // "word" or "phrase"
	Visibility        Visibility
	CustomOrder       string
	ExcludeFromGames  bool
	ExcludeFromKids   bool
	RelatedVideoLinks []string
	Created           time.Time
	LastModified      time.Time
}

// Category is a dictionary category; categories form one level of nesting via
// ParentID.
type Category struct {
	ID       string
	SiteID   string
	Title    string
	ParentID string
}

// Song is a site song with per-line lyrics stored separately.
type Song struct {
	ID                      string
	SiteID                  string
	Title                   string
	TitleTranslation        string
	Introduction            string
	IntroductionTranslation string
	Notes                   []string
	Acknowledgements        []string
	Visibility              Visibility
	ExcludeFromGames        bool
	ExcludeFromKids         bool
	RelatedVideoLinks       []string
	Created                 time.Time
	LastModified            time.Time
}

// Lyric is one line of a song.
type Lyric struct {
	ID          string
	SongID      string
	Text        string
	Translation string
	Ordering    int
}

// Story is a site story with ordered pages stored separately.
type Story struct {
	ID                      string
	SiteID                  string
	Title                   string
	TitleTranslation        string
	Introduction            string
	IntroductionTranslation string
	Author                  string
	Notes                   []string
	Acknowledgements        []string
	Visibility              Visibility
	ExcludeFromGames        bool
	ExcludeFromKids         bool
	RelatedVideoLinks       []string
	Created                 time.Time
	LastModified            time.Time
}

// StoryPage is one page of a story.
type StoryPage struct {
	ID          string
	StoryID     string
	Text        string
	Translation string
	Ordering    int
}

// Media kinds, also used as related-media relation kinds.
const (
	MediaAudio    = "audio"
	MediaImage    = "image"
	MediaVideo    = "video"
	MediaDocument = "document"
)

// Media is an uploaded audio/image/video/document asset.
type Media struct {
	ID               string
	SiteID           string
	Type             string
	Title            string
	Description      string
	Filename         string
	ExcludeFromGames bool
	ExcludeFromKids  bool
	Created          time.Time
	LastModified     time.Time
}

// BulkJobStatus is the lifecycle state of a long-running bulk operation.
type BulkJobStatus string

const (
	JobInProgress BulkJobStatus = "in_progress"
	JobComplete   BulkJobStatus = "complete"
	JobCancelled  BulkJobStatus = "cancelled"
	JobFailed     BulkJobStatus = "failed"
)

// BulkVisibilityJob records one site-wide visibility change. At most one job
// per site may be in progress; a conflicting request is recorded as cancelled
// with a message rather than silently discarded.
type BulkVisibilityJob struct {
	ID           string
	SiteID       string
	Visibility   Visibility
	Status       BulkJobStatus
	Message      string
	Created      time.Time
	LastModified time.Time
}
