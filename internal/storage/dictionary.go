package storage

import (
	"database/sql"

	"github.com/google/uuid"
)

// Entry text kinds stored in entry_texts.
const (
	TextTranslation       = "translation"
	TextNote              = "note"
	TextAcknowledgement   = "acknowledgement"
	TextAlternateSpelling = "alternate_spelling"
)

// UpsertDictionaryEntry inserts or updates a dictionary entry.
func (d *DB) UpsertDictionaryEntry(e *DictionaryEntry) error {
	_, err := d.db.Exec(`
	INSERT INTO dictionary_entries (
		id, site_id, title, type, visibility, custom_order,
		exclude_from_games, exclude_from_kids, related_video_links, created, last_modified
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		site_id = excluded.site_id,
		title = excluded.title,
		type = excluded.type,
		visibility = excluded.visibility,
		custom_order = excluded.custom_order,
		exclude_from_games = excluded.exclude_from_games,
		exclude_from_kids = excluded.exclude_from_kids,
		related_video_links = excluded.related_video_links,
		created = excluded.created,
		last_modified = excluded.last_modified
	`, e.ID, e.SiteID, e.Title, e.Type, int(e.Visibility), e.CustomOrder,
		boolToInt(e.ExcludeFromGames), boolToInt(e.ExcludeFromKids),
		marshalStrings(e.RelatedVideoLinks), e.Created, e.LastModified)
	return err
}

// GetDictionaryEntry retrieves an entry by id, returning nil when it does not
// exist.
func (d *DB) GetDictionaryEntry(id string) (*DictionaryEntry, error) {
	e := &DictionaryEntry{}
	var links string
	var games, kids int
	err := d.db.QueryRow(`
	SELECT id, site_id, title, type, visibility, COALESCE(custom_order, ''),
	       exclude_from_games, exclude_from_kids, related_video_links, created, last_modified
	FROM dictionary_entries WHERE id = ?`, id).Scan(
		&e.ID, &e.SiteID, &e.Title, &e.Type, &e.Visibility, &e.CustomOrder,
		&games, &kids, &links, &e.Created, &e.LastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ExcludeFromGames = games != 0
	e.ExcludeFromKids = kids != 0
	e.RelatedVideoLinks = unmarshalStrings(links)
	return e, nil
}

// DeleteDictionaryEntry removes an entry and its dependent rows.
func (d *DB) DeleteDictionaryEntry(id string) error {
	if _, err := d.db.Exec(`DELETE FROM entry_texts WHERE entry_id = ?`, id); err != nil {
		return err
	}
	if _, err := d.db.Exec(`DELETE FROM entry_categories WHERE entry_id = ?`, id); err != nil {
		return err
	}
	_, err := d.db.Exec(`DELETE FROM dictionary_entries WHERE id = ?`, id)
	return err
}

// ListDictionaryEntryIDs returns all entry ids, optionally scoped to one site.
func (d *DB) ListDictionaryEntryIDs(siteID string) ([]string, error) {
	if siteID == "" {
		return d.listIDs(`SELECT id FROM dictionary_entries`)
	}
	return d.listIDs(`SELECT id FROM dictionary_entries WHERE site_id = ?`, siteID)
}

// ListDictionaryEntries fetches full entries for a set of ids, used for
// hydration of search hits.
func (d *DB) ListDictionaryEntries(ids []string) (map[string]*DictionaryEntry, error) {
	out := make(map[string]*DictionaryEntry, len(ids))
	for _, id := range ids {
		e, err := d.GetDictionaryEntry(id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out[id] = e
		}
	}
	return out, nil
}

// AddEntryText attaches a translation/note/acknowledgement/alternate spelling
// to an entry and returns the new row id.
func (d *DB) AddEntryText(entryID, kind, text string) (string, error) {
	id := uuid.NewString()
	_, err := d.db.Exec(`INSERT INTO entry_texts (id, entry_id, kind, text) VALUES (?, ?, ?, ?)`,
		id, entryID, kind, text)
	return id, err
}

// DeleteEntryText removes one attached text row.
func (d *DB) DeleteEntryText(id string) error {
	_, err := d.db.Exec(`DELETE FROM entry_texts WHERE id = ?`, id)
	return err
}

// ListEntryTexts returns the attached texts of one kind, insertion-ordered.
// The result is never nil.
func (d *DB) ListEntryTexts(entryID, kind string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT text FROM entry_texts WHERE entry_id = ? AND kind = ? ORDER BY rowid`, entryID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	texts := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

// UpsertCategory inserts or updates a category.
func (d *DB) UpsertCategory(c *Category) error {
	_, err := d.db.Exec(`
	INSERT INTO categories (id, site_id, title, parent_id) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		site_id = excluded.site_id, title = excluded.title, parent_id = excluded.parent_id
	`, c.ID, c.SiteID, c.Title, nullIfEmpty(c.ParentID))
	return err
}

// GetCategory retrieves a category by id, returning nil when it does not exist.
func (d *DB) GetCategory(id string) (*Category, error) {
	c := &Category{}
	err := d.db.QueryRow(
		`SELECT id, site_id, title, COALESCE(parent_id, '') FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.SiteID, &c.Title, &c.ParentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListChildCategoryIDs returns the ids of a category's direct children.
func (d *DB) ListChildCategoryIDs(categoryID string) ([]string, error) {
	return d.listIDs(`SELECT id FROM categories WHERE parent_id = ?`, categoryID)
}

// AddEntryCategory links an entry to a category.
func (d *DB) AddEntryCategory(entryID, categoryID string) error {
	_, err := d.db.Exec(
		`INSERT OR IGNORE INTO entry_categories (entry_id, category_id) VALUES (?, ?)`, entryID, categoryID)
	return err
}

// RemoveEntryCategory unlinks an entry from a category.
func (d *DB) RemoveEntryCategory(entryID, categoryID string) error {
	_, err := d.db.Exec(
		`DELETE FROM entry_categories WHERE entry_id = ? AND category_id = ?`, entryID, categoryID)
	return err
}

// ListEntryCategoryIDs returns the category ids attached to an entry. The
// result is never nil.
func (d *DB) ListEntryCategoryIDs(entryID string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT category_id FROM entry_categories WHERE entry_id = ? ORDER BY category_id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountPublicEntriesWithTranslation counts the publicly visible dictionary
// entries in a category that have at least one translation. The dispatcher's
// category relevance gate is built on this.
func (d *DB) CountPublicEntriesWithTranslation(categoryID string) (int, error) {
	var n int
	err := d.db.QueryRow(`
	SELECT COUNT(DISTINCT e.id)
	FROM dictionary_entries e
	JOIN entry_categories ec ON ec.entry_id = e.id
	JOIN entry_texts t ON t.entry_id = e.id AND t.kind = ?
	WHERE ec.category_id = ? AND e.visibility = ?
	`, TextTranslation, categoryID, int(VisibilityPublic)).Scan(&n)
	return n, err
}

// HasRelatedMedia reports whether an owning entity has at least one related
// media row of the given kind.
func (d *DB) HasRelatedMedia(ownerID, kind string) (bool, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM related_media WHERE owner_id = ? AND kind = ?`, ownerID, kind).Scan(&n)
	return n > 0, err
}

// AddRelatedMedia links a media asset to an owning entity.
func (d *DB) AddRelatedMedia(ownerID, mediaID, kind string) error {
	_, err := d.db.Exec(
		`INSERT OR IGNORE INTO related_media (owner_id, media_id, kind) VALUES (?, ?, ?)`,
		ownerID, mediaID, kind)
	return err
}

func (d *DB) listIDs(query string, args ...any) ([]string, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
