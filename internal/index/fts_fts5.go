//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS plots_fts USING fts5(
			path UNINDEXED,
			title,
			species,
			address,
			keywords,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, r PlotRow) error {
	_, _ = tx.Exec(`DELETE FROM plots_fts WHERE path = ?`, r.Path)
	_, err := tx.Exec(`INSERT INTO plots_fts (path, title, species, address, keywords) VALUES (?, ?, ?, ?, ?)`,
		r.Path, r.Title, strings.TrimSpace(r.CommonName+" "+r.ScientificName), r.Address, strings.Join(r.Keywords, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM plots_fts WHERE path = ?`, path)
}

// matchQuery turns free text into an FTS5 expression: each whitespace
// separated term becomes a quoted prefix match, so dotted field keys and
// operators in user input are not parsed as FTS syntax.
func matchQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}

// Search runs an FTS5 match and returns hits ranked by relevance with a
// highlighted species or address snippet.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match := matchQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT f.path,
		       p.plot_id,
		       f.title,
		       snippet(plots_fts, -1, '<b>', '</b>', '...', 16)
		FROM plots_fts f
		JOIN plots p ON p.path = f.path
		WHERE plots_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
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
