package storage

import "database/sql"

// UpsertMedia inserts or updates a media asset.
func (d *DB) UpsertMedia(m *Media) error {
	_, err := d.db.Exec(`
	INSERT INTO media (
		id, site_id, type, title, description, filename,
		exclude_from_games, exclude_from_kids, created, last_modified
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		site_id = excluded.site_id,
		type = excluded.type,
		title = excluded.title,
		description = excluded.description,
		filename = excluded.filename,
		exclude_from_games = excluded.exclude_from_games,
		exclude_from_kids = excluded.exclude_from_kids,
		created = excluded.created,
		last_modified = excluded.last_modified
	`, m.ID, m.SiteID, m.Type, m.Title, m.Description, m.Filename,
		boolToInt(m.ExcludeFromGames), boolToInt(m.ExcludeFromKids), m.Created, m.LastModified)
	return err
}

// GetMedia retrieves a media asset by id, returning nil when it does not exist.
func (d *DB) GetMedia(id string) (*Media, error) {
	m := &Media{}
	var games, kids int
	err := d.db.QueryRow(`
	SELECT id, site_id, type, title, COALESCE(description, ''), COALESCE(filename, ''),
	       exclude_from_games, exclude_from_kids, created, last_modified
	FROM media WHERE id = ?`, id).Scan(
		&m.ID, &m.SiteID, &m.Type, &m.Title, &m.Description, &m.Filename,
		&games, &kids, &m.Created, &m.LastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.ExcludeFromGames = games != 0
	m.ExcludeFromKids = kids != 0
	return m, nil
}

// DeleteMedia removes a media asset and any relations pointing at it.
func (d *DB) DeleteMedia(id string) error {
	if _, err := d.db.Exec(`DELETE FROM related_media WHERE media_id = ?`, id); err != nil {
		return err
	}
	_, err := d.db.Exec(`DELETE FROM media WHERE id = ?`, id)
	return err
}

// ListMediaIDs returns all media ids, optionally scoped to one site.
func (d *DB) ListMediaIDs(siteID string) ([]string, error) {
	if siteID == "" {
		return d.listIDs(`SELECT id FROM media`)
	}
	return d.listIDs(`SELECT id FROM media WHERE site_id = ?`, siteID)
}
