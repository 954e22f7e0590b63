package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the search backend cannot serve a request.
// Callers map it to a service-unavailable response rather than a query error.
var ErrUnavailable = errors.New("search index unavailable")

// LogicalIndices lists every index the store manages.
var LogicalIndices = []string{
	IndexDictionaryEntries,
	IndexSongs,
	IndexStories,
	IndexMedia,
	IndexLanguages,
}

// Store owns one bleve index per logical index name. Rebuilds write into a
// fresh timestamped index and swap it in atomically, so readers never see a
// partially built index.
type Store struct {
	path string // "" means in-memory, used by tests
	log  *zap.Logger

	mu      sync.RWMutex
	indices map[string]bleve.Index
	dirs    map[string]string
}

// OpenStore opens or creates every logical index under path. An empty path
// keeps all indices in memory.
func OpenStore(path string, log *zap.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		log:     log,
		indices: make(map[string]bleve.Index),
		dirs:    make(map[string]string),
	}
	for _, name := range LogicalIndices {
		idx, dir, err := s.openLatest(name)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open index %s: %w", name, err)
		}
		s.indices[name] = idx
		s.dirs[name] = dir
	}
	return s, nil
}

// openLatest opens the newest generation of a logical index, creating the
// first generation when none exists.
func (s *Store) openLatest(name string) (bleve.Index, string, error) {
	if s.path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		return idx, "", err
	}

	entries, err := os.ReadDir(s.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, "", err
	}
	var generations []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), name+"-") {
			generations = append(generations, e.Name())
		}
	}
	if len(generations) > 0 {
		sort.Strings(generations)
		dir := filepath.Join(s.path, generations[len(generations)-1])
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", dir, err)
		}
		return idx, dir, nil
	}

	dir := s.generationDir(name)
	idx, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", dir, err)
	}
	return idx, dir, nil
}

func (s *Store) generationDir(name string) string {
	return filepath.Join(s.path, fmt.Sprintf("%s-%d", name, time.Now().UnixNano()))
}

// Close closes every open index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, idx := range s.indices {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.indices, name)
	}
	return firstErr
}

func (s *Store) index(name string) (bleve.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown index %s", ErrUnavailable, name)
	}
	return idx, nil
}

// Upsert adds or fully replaces the document with the given id. Replacement
// is total: no field from a previous generation of the document survives.
func (s *Store) Upsert(name, id string, doc Document) error {
	idx, err := s.index(name)
	if err != nil {
		return err
	}
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("index %s/%s: %w", name, id, err)
	}
	return nil
}

// Delete removes the document with the given id. Deleting an absent document
// succeeds; the desired end state already holds.
func (s *Store) Delete(name, id string) error {
	idx, err := s.index(name)
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", name, id, err)
	}
	return nil
}

// Search runs a request across the given logical indices through a federated
// alias, so scores and pagination behave as if there were one index.
func (s *Store) Search(ctx context.Context, req *bleve.SearchRequest, names ...string) (*bleve.SearchResult, error) {
	s.mu.RLock()
	alias := bleve.NewIndexAlias()
	for _, name := range names {
		idx, ok := s.indices[name]
		if !ok {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: unknown index %s", ErrUnavailable, name)
		}
		alias.Add(idx)
	}
	s.mu.RUnlock()

	res, err := alias.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}

// DocCount reports the number of documents in one logical index.
func (s *Store) DocCount(name string) (uint64, error) {
	idx, err := s.index(name)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Rebuild builds a fresh generation of the named index from scratch. The
// fill callback receives a batch-add function; once fill returns, the new
// generation replaces the old one and the old one is dropped. The live index
// keeps serving reads until the swap.
func (s *Store) Rebuild(name string, fill func(add func(id string, doc Document) error) error) error {
	var (
		next bleve.Index
		dir  string
		err  error
	)
	if s.path == "" {
		next, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		dir = s.generationDir(name)
		next, err = bleve.New(dir, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	batch := next.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := next.Batch(batch); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		batch.Reset()
		return nil
	}
	add := func(id string, doc Document) error {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", id, err)
		}
		if batch.Size() >= 500 {
			return flush()
		}
		return nil
	}

	if err := fill(add); err != nil {
		next.Close()
		if dir != "" {
			os.RemoveAll(dir)
		}
		return err
	}
	if err := flush(); err != nil {
		next.Close()
		if dir != "" {
			os.RemoveAll(dir)
		}
		return err
	}

	s.mu.Lock()
	old := s.indices[name]
	oldDir := s.dirs[name]
	s.indices[name] = next
	s.dirs[name] = dir
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.log.Warn("closing previous index generation", zap.String("index", name), zap.Error(err))
		}
	}
	if oldDir != "" {
		if err := os.RemoveAll(oldDir); err != nil {
			s.log.Warn("removing previous index generation", zap.String("dir", oldDir), zap.Error(err))
		}
	}
	return nil
}

// DeleteBySite removes every document belonging to a site from one logical
// index.
func (s *Store) DeleteBySite(ctx context.Context, name, siteID string) error {
	idx, err := s.index(name)
	if err != nil {
		return err
	}

	q := bleve.NewTermQuery(siteID)
	q.SetField("site_id")
	for {
		req := bleve.NewSearchRequestOptions(q, 500, 0, false)
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("delete site %s from %s: %w", siteID, name, err)
		}
	}
}
