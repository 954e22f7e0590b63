package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openlangarchive/langsearch/internal/alphabet"
)

// UpsertSite inserts or updates a site.
func (d *DB) UpsertSite(s *Site) error {
	_, err := d.db.Exec(`
	INSERT INTO sites (id, title, slug, visibility, is_hidden, language_id)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		slug = excluded.slug,
		visibility = excluded.visibility,
		is_hidden = excluded.is_hidden,
		language_id = excluded.language_id
	`, s.ID, s.Title, s.Slug, int(s.Visibility), boolToInt(s.IsHidden), nullIfEmpty(s.LanguageID))
	return err
}

// GetSite retrieves a site by id, returning nil when it does not exist.
func (d *DB) GetSite(id string) (*Site, error) {
	return d.scanSite(d.db.QueryRow(
		`SELECT id, title, slug, visibility, is_hidden, COALESCE(language_id, '') FROM sites WHERE id = ?`, id))
}

// GetSiteBySlug retrieves a site by slug, returning nil when it does not exist.
func (d *DB) GetSiteBySlug(slug string) (*Site, error) {
	return d.scanSite(d.db.QueryRow(
		`SELECT id, title, slug, visibility, is_hidden, COALESCE(language_id, '') FROM sites WHERE slug = ?`, slug))
}

func (d *DB) scanSite(row *sql.Row) (*Site, error) {
	s := &Site{}
	var hidden int
	err := row.Scan(&s.ID, &s.Title, &s.Slug, &s.Visibility, &hidden, &s.LanguageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.IsHidden = hidden != 0
	return s, nil
}

// DeleteSite removes a site row. Related content rows are the caller's
// responsibility; index cleanup happens through the dispatcher.
func (d *DB) DeleteSite(id string) error {
	_, err := d.db.Exec(`DELETE FROM sites WHERE id = ?`, id)
	return err
}

// ListSitesByLanguage returns all sites assigned to a language.
func (d *DB) ListSitesByLanguage(languageID string) ([]*Site, error) {
	rows, err := d.db.Query(
		`SELECT id, title, slug, visibility, is_hidden, COALESCE(language_id, '') FROM sites WHERE language_id = ?`,
		languageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSites(rows)
}

// ListSitesWithoutLanguage returns sites with no language assigned; these get
// their own documents in the language index.
func (d *DB) ListSitesWithoutLanguage() ([]*Site, error) {
	rows, err := d.db.Query(
		`SELECT id, title, slug, visibility, is_hidden, '' FROM sites WHERE language_id IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSites(rows)
}

func scanSites(rows *sql.Rows) ([]*Site, error) {
	var sites []*Site
	for rows.Next() {
		s := &Site{}
		var hidden int
		if err := rows.Scan(&s.ID, &s.Title, &s.Slug, &s.Visibility, &hidden, &s.LanguageID); err != nil {
			return nil, err
		}
		s.IsHidden = hidden != 0
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// SetSiteFeature enables or disables a feature flag for a site, creating the
// row if needed. Idempotent.
func (d *DB) SetSiteFeature(siteID, key string, enabled bool) error {
	_, err := d.db.Exec(`
	INSERT INTO site_features (site_id, key, is_enabled) VALUES (?, ?, ?)
	ON CONFLICT(site_id, key) DO UPDATE SET is_enabled = excluded.is_enabled
	`, siteID, key, boolToInt(enabled))
	return err
}

// GetSiteFeature reports whether a feature flag is enabled. A missing row is
// disabled.
func (d *DB) GetSiteFeature(siteID, key string) (bool, error) {
	var enabled int
	err := d.db.QueryRow(
		`SELECT is_enabled FROM site_features WHERE site_id = ? AND key = ?`, siteID, key).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return enabled != 0, nil
}

// ListEnabledSiteFeatures returns the keys of all enabled features for a site.
func (d *DB) ListEnabledSiteFeatures(siteID string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT key FROM site_features WHERE site_id = ? AND is_enabled = 1 ORDER BY key`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UpsertMembership records a user's role on a site.
func (d *DB) UpsertMembership(m *Membership) error {
	_, err := d.db.Exec(`
	INSERT INTO memberships (user_id, site_id, role) VALUES (?, ?, ?)
	ON CONFLICT(user_id, site_id) DO UPDATE SET role = excluded.role
	`, m.UserID, m.SiteID, int(m.Role))
	return err
}

// ListMemberships returns all memberships for a user.
func (d *DB) ListMemberships(userID string) ([]*Membership, error) {
	rows, err := d.db.Query(`SELECT user_id, site_id, role FROM memberships WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ms []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.UserID, &m.SiteID, &m.Role); err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// UpsertAlphabet stores a site's orthography configuration.
func (d *DB) UpsertAlphabet(siteID string, a *alphabet.Alphabet) error {
	base, _ := json.Marshal(a.BaseCharacters)
	variants, _ := json.Marshal(a.VariantMap)
	ignorable, _ := json.Marshal(a.IgnorableCharacters)
	confusables, _ := json.Marshal(a.ConfusableMap)
	_, err := d.db.Exec(`
	INSERT INTO alphabets (site_id, base_characters, variant_map, ignorable_characters, confusable_map)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(site_id) DO UPDATE SET
		base_characters = excluded.base_characters,
		variant_map = excluded.variant_map,
		ignorable_characters = excluded.ignorable_characters,
		confusable_map = excluded.confusable_map
	`, siteID, string(base), string(variants), string(ignorable), string(confusables))
	return err
}

// GetAlphabet returns the site's alphabet, or an empty alphabet when none has
// been configured yet.
func (d *DB) GetAlphabet(siteID string) (*alphabet.Alphabet, error) {
	var base, variants, ignorable, confusables string
	err := d.db.QueryRow(`
	SELECT base_characters, variant_map, ignorable_characters, confusable_map
	FROM alphabets WHERE site_id = ?`, siteID).
		Scan(&base, &variants, &ignorable, &confusables)
	if err == sql.ErrNoRows {
		return alphabet.New(), nil
	}
	if err != nil {
		return nil, err
	}

	a := alphabet.New()
	if err := json.Unmarshal([]byte(base), &a.BaseCharacters); err != nil {
		return nil, fmt.Errorf("decode alphabet for site %s: %w", siteID, err)
	}
	if err := json.Unmarshal([]byte(variants), &a.VariantMap); err != nil {
		return nil, fmt.Errorf("decode alphabet for site %s: %w", siteID, err)
	}
	if err := json.Unmarshal([]byte(ignorable), &a.IgnorableCharacters); err != nil {
		return nil, fmt.Errorf("decode alphabet for site %s: %w", siteID, err)
	}
	if err := json.Unmarshal([]byte(confusables), &a.ConfusableMap); err != nil {
		return nil, fmt.Errorf("decode alphabet for site %s: %w", siteID, err)
	}
	return a, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
