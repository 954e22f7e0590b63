// Package web exposes the search API over HTTP.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/index"
	"github.com/openlangarchive/langsearch/internal/search"
	"github.com/openlangarchive/langsearch/internal/storage"
)

// userHeader identifies the caller. Authentication happens upstream; an
// absent header means anonymous.
const userHeader = "X-User-ID"

type Server struct {
	db    *storage.DB
	store *index.Store
	exec  *search.Executor
	log   *zap.Logger
}

func NewServer(db *storage.DB, store *index.Store, exec *search.Executor, log *zap.Logger) *Server {
	return &Server{db: db, store: store, exec: exec, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/sites/{slug}/search", s.handleSiteSearch)
	r.Get("/api/languages", s.handleLanguageSearch)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts := map[string]uint64{}
	for _, name := range index.LogicalIndices {
		n, err := s.store.DocCount(name)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "index unavailable")
			return
		}
		counts[name] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "documents": counts})
}

// handleSearch is the cross-site search endpoint.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseParams(w, r)
	if !ok {
		return
	}
	s.runSearch(w, r, p)
}

// handleSiteSearch scopes the search to one site addressed by slug.
func (s *Server) handleSiteSearch(w http.ResponseWriter, r *http.Request) {
	site, err := s.db.GetSiteBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		s.log.Error("site lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	p, ok := s.parseParams(w, r)
	if !ok {
		return
	}
	p.SiteID = site.ID
	s.runSearch(w, r, p)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, p search.Params) {
	res, err := s.exec.Search(r.Context(), p)
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "search backend unavailable")
			return
		}
		s.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLanguageSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	res, err := s.exec.SearchLanguages(r.Context(), q.Get("q"), page, pageSize)
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "search backend unavailable")
			return
		}
		s.log.Error("language search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseParams reads the shared query parameters. Unrecognized enum values
// are dropped rather than rejected, matching filter semantics: a filter can
// only narrow.
func (s *Server) parseParams(w http.ResponseWriter, r *http.Request) (search.Params, bool) {
	q := r.URL.Query()
	p := search.Params{
		Query:       q.Get("q"),
		Domain:      q.Get("domain"),
		SiteFeature: q.Get("hasSiteFeature"),
		CategoryID:  q.Get("category"),
		StartsWith:  q.Get("startsWithChar"),
		Sort:        q.Get("sort"),
	}

	if raw, ok := q["types"]; ok {
		recognized := []string{}
		for _, t := range splitList(raw) {
			switch t {
			case index.TypeWord, index.TypePhrase, index.TypeSong, index.TypeStory,
				index.TypeAudio, index.TypeImage, index.TypeVideo, index.TypeDocument:
				recognized = append(recognized, t)
			default:
				s.log.Debug("dropping unrecognized type", zap.String("type", t))
			}
		}
		p.Types = recognized
	}

	for _, v := range splitList(q["visibility"]) {
		if vis, ok := storage.ParseVisibility(v); ok {
			p.Visibility = append(p.Visibility, vis)
		}
	}

	p.Kids = parseBoolPtr(q.Get("kids"))
	p.Games = parseBoolPtr(q.Get("games"))
	p.SortDescending = q.Get("sortDescending") == "true"

	p.HasAudio = parseBoolPtr(q.Get("hasAudio"))
	p.HasDocument = parseBoolPtr(q.Get("hasDocument"))
	p.HasImage = parseBoolPtr(q.Get("hasImage"))
	p.HasVideo = parseBoolPtr(q.Get("hasVideo"))
	p.HasTranslation = parseBoolPtr(q.Get("hasTranslation"))
	p.HasUnrecognizedChars = parseBoolPtr(q.Get("hasUnrecognizedChars"))

	p.MinWords = parseIntPtr(q.Get("minWords"))
	p.MaxWords = parseIntPtr(q.Get("maxWords"))
	if p.MinWords != nil && p.MaxWords != nil && *p.MaxWords < *p.MinWords {
		writeError(w, http.StatusBadRequest, "maxWords must be at least minWords")
		return p, false
	}

	p.Page, _ = strconv.Atoi(q.Get("page"))
	p.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	if seed := q.Get("seed"); seed != "" {
		if n, err := strconv.ParseInt(seed, 10, 64); err == nil {
			p.RandomSeed = n
		}
	} else {
		p.RandomSeed = time.Now().UnixNano()
	}

	if userID := r.Header.Get(userHeader); userID != "" {
		memberships, err := s.db.ListMemberships(userID)
		if err != nil {
			s.log.Error("membership lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return p, false
		}
		p.Memberships = memberships
	}

	return p, true
}

// splitList flattens repeated and comma-separated parameter values.
func splitList(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseBoolPtr(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func parseIntPtr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
