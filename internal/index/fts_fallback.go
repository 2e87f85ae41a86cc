//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

// Without FTS5 the plots table itself is searched with LIKE.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _ PlotRow) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches query as a substring of the title, species names, address
// or keywords.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, plot_id, title,
		       trim(common_name || ' ' || scientific_name || ' ' || address)
		FROM plots
		WHERE title LIKE ? OR common_name LIKE ? OR scientific_name LIKE ?
		   OR address LIKE ? OR keywords LIKE ?
		ORDER BY path
		LIMIT ?
	`, like, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.PlotID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
