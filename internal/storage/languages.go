package storage

import "database/sql"

// UpsertLanguage inserts or updates a language.
func (d *DB) UpsertLanguage(l *Language) error {
	_, err := d.db.Exec(`
	INSERT INTO languages (
		id, title, language_code, alternate_names, community_keywords,
		family_name, family_alternate_names
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		language_code = excluded.language_code,
		alternate_names = excluded.alternate_names,
		community_keywords = excluded.community_keywords,
		family_name = excluded.family_name,
		family_alternate_names = excluded.family_alternate_names
	`, l.ID, l.Title, l.LanguageCode, l.AlternateNames, l.CommunityKeywords,
		l.FamilyName, l.FamilyAlternateNames)
	return err
}

// GetLanguage retrieves a language by id, returning nil when it does not
// exist.
func (d *DB) GetLanguage(id string) (*Language, error) {
	l := &Language{}
	err := d.db.QueryRow(`
	SELECT id, title, COALESCE(language_code, ''), COALESCE(alternate_names, ''),
	       COALESCE(community_keywords, ''), COALESCE(family_name, ''),
	       COALESCE(family_alternate_names, '')
	FROM languages WHERE id = ?`, id).Scan(
		&l.ID, &l.Title, &l.LanguageCode, &l.AlternateNames, &l.CommunityKeywords,
		&l.FamilyName, &l.FamilyAlternateNames)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteLanguage removes a language row.
func (d *DB) DeleteLanguage(id string) error {
	_, err := d.db.Exec(`DELETE FROM languages WHERE id = ?`, id)
	return err
}

// ListLanguageIDs returns all language ids.
func (d *DB) ListLanguageIDs() ([]string, error) {
	return d.listIDs(`SELECT id FROM languages`)
}
