package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/arbor/internal/apperr"
)

// PlotRow is one row of the plots table.
type PlotRow struct {
	Path           string    `json:"path"`
	PlotID         int       `json:"plot_id"`
	Title          string    `json:"title"`
	Checksum       string    `json:"checksum"`
	HasTree        bool      `json:"has_tree"`
	Pending        bool      `json:"pending"`
	PendingKeys    []string  `json:"pending_keys"`
	CommonName     string    `json:"common_name"`
	ScientificName string    `json:"scientific_name"`
	Address        string    `json:"address"`
	Keywords       []string  `json:"keywords,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	PlotID  int    `json:"plot_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ListFilter narrows ListPlots. Nil flags match everything.
type ListFilter struct {
	Limit   int
	Offset  int
	HasTree *bool
	Pending *bool
}

const plotColumns = `path, plot_id, title, checksum, has_tree, pending, pending_keys,
	common_name, scientific_name, address, keywords, updated_at`

// UpsertPlot inserts or replaces a plot row and its FTS entry.
func (db *DB) UpsertPlot(r PlotRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if r.PendingKeys == nil {
		r.PendingKeys = []string{}
	}
	keysJSON, err := json.Marshal(r.PendingKeys)
	if err != nil {
		return fmt.Errorf("index: encode pending keys: %w", err)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	keywords := strings.Join(r.Keywords, " ")

	_, err = tx.Exec(`
		INSERT INTO plots (`+plotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			plot_id         = excluded.plot_id,
			title           = excluded.title,
			checksum        = excluded.checksum,
			has_tree        = excluded.has_tree,
			pending         = excluded.pending,
			pending_keys    = excluded.pending_keys,
			common_name     = excluded.common_name,
			scientific_name = excluded.scientific_name,
			address         = excluded.address,
			keywords        = excluded.keywords,
			updated_at      = excluded.updated_at
	`, r.Path, r.PlotID, r.Title, r.Checksum, r.HasTree, r.Pending, string(keysJSON),
		r.CommonName, r.ScientificName, r.Address, keywords, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert plot: %w", err)
	}

	if err := ftsUpsert(tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePlot removes a plot row and its FTS entry.
func (db *DB) DeletePlot(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM plots WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete plot: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum, or "" when the path is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM plots WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetPlot returns the row for path, or apperr.ErrNotFound.
func (db *DB) GetPlot(path string) (*PlotRow, error) {
	row := db.conn.QueryRow(`SELECT `+plotColumns+` FROM plots WHERE path = ?`, path)
	r, err := scanPlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: plot %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get plot: %w", err)
	}
	return r, nil
}

// PathForID returns the stored path of the plot with the given server id.
func (db *DB) PathForID(plotID int) (string, error) {
	var p string
	err := db.conn.QueryRow(`SELECT path FROM plots WHERE plot_id = ? ORDER BY path LIMIT 1`, plotID).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: plot id %d: %w", plotID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("index: path for id: %w", err)
	}
	return p, nil
}

// ListPlots returns one page of rows ordered by most recently updated, and
// the total number of rows matching the filter.
func (db *DB) ListPlots(f ListFilter) ([]PlotRow, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var where []string
	var args []any
	if f.HasTree != nil {
		where = append(where, "has_tree = ?")
		args = append(args, *f.HasTree)
	}
	if f.Pending != nil {
		where = append(where, "pending = ?")
		args = append(args, *f.Pending)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM plots`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count plots: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+plotColumns+` FROM plots`+clause+
		` ORDER BY updated_at DESC, path LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list plots: %w", err)
	}
	defer rows.Close()

	var out []PlotRow
	for rows.Next() {
		r, err := scanPlot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan plot: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed plot.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM plots`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlot(s scanner) (*PlotRow, error) {
	var (
		r        PlotRow
		keysJSON string
		keywords string
	)
	err := s.Scan(&r.Path, &r.PlotID, &r.Title, &r.Checksum, &r.HasTree, &r.Pending, &keysJSON,
		&r.CommonName, &r.ScientificName, &r.Address, &keywords, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keysJSON), &r.PendingKeys); err != nil {
		return nil, fmt.Errorf("decode pending keys: %w", err)
	}
	r.Keywords = strings.Fields(keywords)
	return &r, nil
}
