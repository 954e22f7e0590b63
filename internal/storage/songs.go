package storage

import "database/sql"

// UpsertSong inserts or updates a song.
func (d *DB) UpsertSong(s *Song) error {
	_, err := d.db.Exec(`
	INSERT INTO songs (
		id, site_id, title, title_translation, introduction, introduction_translation,
		notes, acknowledgements, visibility, exclude_from_games, exclude_from_kids,
		related_video_links, created, last_modified
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		site_id = excluded.site_id,
		title = excluded.title,
		title_translation = excluded.title_translation,
		introduction = excluded.introduction,
		introduction_translation = excluded.introduction_translation,
		notes = excluded.notes,
		acknowledgements = excluded.acknowledgements,
		visibility = excluded.visibility,
		exclude_from_games = excluded.exclude_from_games,
		exclude_from_kids = excluded.exclude_from_kids,
		related_video_links = excluded.related_video_links,
		created = excluded.created,
		last_modified = excluded.last_modified
	`, s.ID, s.SiteID, s.Title, s.TitleTranslation, s.Introduction, s.IntroductionTranslation,
		marshalStrings(s.Notes), marshalStrings(s.Acknowledgements), int(s.Visibility),
		boolToInt(s.ExcludeFromGames), boolToInt(s.ExcludeFromKids),
		marshalStrings(s.RelatedVideoLinks), s.Created, s.LastModified)
	return err
}

// GetSong retrieves a song by id, returning nil when it does not exist.
func (d *DB) GetSong(id string) (*Song, error) {
	s := &Song{}
	var notes, acks, links string
	var games, kids int
	err := d.db.QueryRow(`
	SELECT id, site_id, title, COALESCE(title_translation, ''), COALESCE(introduction, ''),
	       COALESCE(introduction_translation, ''), notes, acknowledgements, visibility,
	       exclude_from_games, exclude_from_kids, related_video_links, created, last_modified
	FROM songs WHERE id = ?`, id).Scan(
		&s.ID, &s.SiteID, &s.Title, &s.TitleTranslation, &s.Introduction,
		&s.IntroductionTranslation, &notes, &acks, &s.Visibility,
		&games, &kids, &links, &s.Created, &s.LastModified)
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

// DeleteSong removes a song and its lyrics.
func (d *DB) DeleteSong(id string) error {
	if _, err := d.db.Exec(`DELETE FROM lyrics WHERE song_id = ?`, id); err != nil {
		return err
	}
	_, err := d.db.Exec(`DELETE FROM songs WHERE id = ?`, id)
	return err
}

// ListSongIDs returns all song ids, optionally scoped to one site.
func (d *DB) ListSongIDs(siteID string) ([]string, error) {
	if siteID == "" {
		return d.listIDs(`SELECT id FROM songs`)
	}
	return d.listIDs(`SELECT id FROM songs WHERE site_id = ?`, siteID)
}

// UpsertLyric inserts or updates one lyric line.
func (d *DB) UpsertLyric(l *Lyric) error {
	_, err := d.db.Exec(`
	INSERT INTO lyrics (id, song_id, text, translation, ordering) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		song_id = excluded.song_id, text = excluded.text,
		translation = excluded.translation, ordering = excluded.ordering
	`, l.ID, l.SongID, l.Text, l.Translation, l.Ordering)
	return err
}

// DeleteLyric removes one lyric line.
func (d *DB) DeleteLyric(id string) error {
	_, err := d.db.Exec(`DELETE FROM lyrics WHERE id = ?`, id)
	return err
}

// ListLyrics returns a song's lyric lines in order. The result is never nil.
func (d *DB) ListLyrics(songID string) ([]*Lyric, error) {
	rows, err := d.db.Query(`
	SELECT id, song_id, text, COALESCE(translation, ''), ordering
	FROM lyrics WHERE song_id = ? ORDER BY ordering, rowid`, songID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lyrics := []*Lyric{}
	for rows.Next() {
		l := &Lyric{}
		if err := rows.Scan(&l.ID, &l.SongID, &l.Text, &l.Translation, &l.Ordering); err != nil {
			return nil, err
		}
		lyrics = append(lyrics, l)
	}
	return lyrics, rows.Err()
}
