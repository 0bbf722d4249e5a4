package linksave

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Categories a link may be filed under.
var Categories = []string{"web", "pwn", "re", "crypto", "misc"}

// ValidCategory reports whether the category is one of the allowed values.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Link is one archived entry.
type Link struct {
	ID          int64
	URL         string
	Title       string
	Description string
	Image       string
	Category    string
	SavedBy     string
	SavedAt     time.Time
}

// Archive is the SQLite-backed store of saved links.
type Archive struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS links (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	url         TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL,
	saved_by    TEXT NOT NULL,
	saved_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_category ON links(category);
`

// OpenArchive opens (and if needed creates) the archive database at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open link archive %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init link archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Save records a link and returns it with its assigned id.
func (a *Archive) Save(ctx context.Context, link *Link) (*Link, error) {
	if link.SavedAt.IsZero() {
		link.SavedAt = time.Now()
	}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO links (url, title, description, image, category, saved_by, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.URL, link.Title, link.Description, link.Image, link.Category, link.SavedBy, link.SavedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("save link: %w", err)
	}
	link.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("save link id: %w", err)
	}
	return link, nil
}

// ByCategory lists saved links in a category, newest first.
func (a *Archive) ByCategory(ctx context.Context, category string) ([]*Link, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, url, title, description, image, category, saved_by, saved_at
		 FROM links WHERE category = ? ORDER BY saved_at DESC, id DESC`, category)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		var (
			link    Link
			savedAt int64
		)
		if err := rows.Scan(&link.ID, &link.URL, &link.Title, &link.Description,
			&link.Image, &link.Category, &link.SavedBy, &savedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		link.SavedAt = time.Unix(savedAt, 0)
		links = append(links, &link)
	}
	return links, rows.Err()
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
