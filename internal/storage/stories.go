package storage

import "database/sql"

// UpsertStory inserts or updates a story.
func (d *DB) UpsertStory(s *Story) error {
	_, err := d.db.Exec(`
	INSERT INTO stories (
		id, site_id, title, title_translation, introduction, introduction_translation,
		author, notes, acknowledgements, visibility, exclude_from_games, exclude_from_kids,
		related_video_links, created, last_modified
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		site_id = excluded.site_id,
		title = excluded.title,
		title_translation = excluded.title_translation,
		introduction = excluded.introduction,
		introduction_translation = excluded.introduction_translation,
		author = excluded.author,
		notes = excluded.notes,
		acknowledgements = excluded.acknowledgements,
		visibility = excluded.visibility,
		exclude_from_games = excluded.exclude_from_games,
		exclude_from_kids = excluded.exclude_from_kids,
		related_video_links = excluded.related_video_links,
		created = excluded.created,
		last_modified = excluded.last_modified
	`, s.ID, s.SiteID, s.Title, s.TitleTranslation, s.Introduction, s.IntroductionTranslation,
		s.Author, marshalStrings(s.Notes), marshalStrings(s.Acknowledgements), int(s.Visibility),
		boolToInt(s.ExcludeFromGames), boolToInt(s.ExcludeFromKids),
		marshalStrings(s.RelatedVideoLinks), s.Created, s.LastModified)
	return err
}

// GetStory retrieves a story by id, returning nil when it does not exist.
func (d *DB) GetStory(id string) (*Story, error) {
	s := &Story{}
	var notes, acks, links string
	var games, kids int
	err := d.db.QueryRow(`
	SELECT id, site_id, title, COALESCE(title_translation, ''), COALESCE(introduction, ''),
	       COALESCE(introduction_translation, ''), COALESCE(author, ''), notes, acknowledgements,
	       visibility, exclude_from_games, exclude_from_kids, related_video_links, created, last_modified
	FROM stories WHERE id = ?`, id).Scan(
		&s.ID, &s.SiteID, &s.Title, &s.TitleTranslation, &s.Introduction,
		&s.IntroductionTranslation, &s.Author, &notes, &acks,
		&s.Visibility, &games, &kids, &links, &s.Created, &s.LastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Notes = unmarshalStrings(notes)
	s.Acknowledgements = unmarshalStrings(acks)
	s.RelatedVideoLinks = unmarshalStrings(links)
	s.ExcludeFromGames = games != 0
	s.ExcludeFromKids = kids != 0
	return s, nil
}

// DeleteStory removes a story and its pages.
func (d *DB) DeleteStory(id string) error {
	if _, err := d.db.Exec(`DELETE FROM story_pages WHERE story_id = ?`, id); err != nil {
		return err
	}
	_, err := d.db.Exec(`DELETE FROM stories WHERE id = ?`, id)
	return err
}

// ListStoryIDs returns all story ids, optionally scoped to one site.
func (d *DB) ListStoryIDs(siteID string) ([]string, error) {
	if siteID == "" {
		return d.listIDs(`SELECT id FROM stories`)
	}
	return d.listIDs(`SELECT id FROM stories WHERE site_id = ?`, siteID)
}

// UpsertStoryPage inserts or updates one story page.
func (d *DB) UpsertStoryPage(p *StoryPage) error {
	_, err := d.db.Exec(`
	INSERT INTO story_pages (id, story_id, text, translation, ordering) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		story_id = excluded.story_id, text = excluded.text,
		translation = excluded.translation, ordering = excluded.ordering
	`, p.ID, p.StoryID, p.Text, p.Translation, p.Ordering)
	return err
}

// DeleteStoryPage removes one story page.
func (d *DB) DeleteStoryPage(id string) error {
	_, err := d.db.Exec(`DELETE FROM story_pages WHERE id = ?`, id)
	return err
}

// ListStoryPages returns a story's pages in order. The result is never nil.
func (d *DB) ListStoryPages(storyID string) ([]*StoryPage, error) {
	rows, err := d.db.Query(`
	SELECT id, story_id, text, COALESCE(translation, ''), ordering
	FROM story_pages WHERE story_id = ? ORDER BY ordering, rowid`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages := []*StoryPage{}
	for rows.Next() {
		p := &StoryPage{}
		if err := rows.Scan(&p.ID, &p.StoryID, &p.Text, &p.Translation, &p.Ordering); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
