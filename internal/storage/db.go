// Package storage is the relational source of truth. The search index is only
// ever a projection of rows held here; on any divergence the database wins.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps SQLite database operations.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path. Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	storage := &DB{db: db}
	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return storage, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// initSchema creates tables if they don't exist.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS languages (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		language_code TEXT,
		alternate_names TEXT,
		community_keywords TEXT,
		family_name TEXT,
		family_alternate_names TEXT
	);

	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		visibility INTEGER NOT NULL,
		is_hidden INTEGER NOT NULL DEFAULT 0,
		language_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_features (
		site_id TEXT NOT NULL,
		key TEXT NOT NULL,
		is_enabled INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (site_id, key)
	);

	CREATE TABLE IF NOT EXISTS memberships (
		user_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		role INTEGER NOT NULL,
		PRIMARY KEY (user_id, site_id)
	);

	CREATE TABLE IF NOT EXISTS alphabets (
		site_id TEXT PRIMARY KEY,
		base_characters TEXT NOT NULL DEFAULT '[]',
		variant_map TEXT NOT NULL DEFAULT '{}',
		ignorable_characters TEXT NOT NULL DEFAULT '[]',
		confusable_map TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS dictionary_entries (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		visibility INTEGER NOT NULL,
		custom_order TEXT,
		exclude_from_games INTEGER NOT NULL DEFAULT 0,
		exclude_from_kids INTEGER NOT NULL DEFAULT 0,
		related_video_links TEXT NOT NULL DEFAULT '[]',
		created TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_site ON dictionary_entries(site_id);

	CREATE TABLE IF NOT EXISTS entry_texts (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		kind TEXT NOT NULL, -- translation | note | acknowledgement | alternate_spelling
		text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entry_texts ON entry_texts(entry_id, kind);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		title TEXT NOT NULL,
		parent_id TEXT
	);

	CREATE TABLE IF NOT EXISTS entry_categories (
		entry_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		PRIMARY KEY (entry_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		title TEXT NOT NULL,
		title_translation TEXT,
		introduction TEXT,
		introduction_translation TEXT,
		notes TEXT NOT NULL DEFAULT '[]',
		acknowledgements TEXT NOT NULL DEFAULT '[]',
		visibility INTEGER NOT NULL,
		exclude_from_games INTEGER NOT NULL DEFAULT 0,
		exclude_from_kids INTEGER NOT NULL DEFAULT 0,
		related_video_links TEXT NOT NULL DEFAULT '[]',
		created TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_songs_site ON songs(site_id);

	CREATE TABLE IF NOT EXISTS lyrics (
		id TEXT PRIMARY KEY,
		song_id TEXT NOT NULL,
		text TEXT NOT NULL,
		translation TEXT,
		ordering INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_lyrics_song ON lyrics(song_id);

	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		title TEXT NOT NULL,
		title_translation TEXT,
		introduction TEXT,
		introduction_translation TEXT,
		author TEXT,
		notes TEXT NOT NULL DEFAULT '[]',
		acknowledgements TEXT NOT NULL DEFAULT '[]',
		visibility INTEGER NOT NULL,
		exclude_from_games INTEGER NOT NULL DEFAULT 0,
		exclude_from_kids INTEGER NOT NULL DEFAULT 0,
		related_video_links TEXT NOT NULL DEFAULT '[]',
		created TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stories_site ON stories(site_id);

	CREATE TABLE IF NOT EXISTS story_pages (
		id TEXT PRIMARY KEY,
		story_id TEXT NOT NULL,
		text TEXT NOT NULL,
		translation TEXT,
		ordering INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_pages_story ON story_pages(story_id);

	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		filename TEXT,
		exclude_from_games INTEGER NOT NULL DEFAULT 0,
		exclude_from_kids INTEGER NOT NULL DEFAULT 0,
		created TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_media_site ON media(site_id);

	CREATE TABLE IF NOT EXISTS related_media (
		owner_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (owner_id, media_id)
	);
	CREATE INDEX IF NOT EXISTS idx_related_media ON related_media(owner_id, kind);

	CREATE TABLE IF NOT EXISTS bulk_visibility_jobs (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		visibility INTEGER NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created TIMESTAMP NOT NULL,
		last_modified TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bulk_jobs_site ON bulk_visibility_jobs(site_id, status);
	`

	_, err := d.db.Exec(schema)
	return err
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(s string) []string {
	var out []string
	if s == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
