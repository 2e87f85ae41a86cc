package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/parser"
	"github.com/starford/arbor/internal/storage"
)

// Sync brings the index in line with the store: changed plot files are
// re-parsed and upserted, rows whose files are gone are removed. Files that
// fail to parse are logged and skipped.
func Sync(idx PlotIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}
	checksums, err := idx.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	indexed := 0
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(idx, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
	}

	removed := 0
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := idx.DeletePlot(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	logger.Info("sync: done",
		slog.Int("files", len(metas)),
		slog.Int("indexed", indexed),
		slog.Int("removed", removed))
	return nil
}

// IndexFile parses a plot file and upserts its summary row.
func IndexFile(idx PlotIndex, path string, data []byte) (*parser.Result, error) {
	res, err := parser.Parse(path, data)
	if err != nil {
		return nil, err
	}
	if err := idx.UpsertPlot(RowFromResult(path, checksum.Sum(data), res)); err != nil {
		return nil, fmt.Errorf("index: %s: %w", path, err)
	}
	return res, nil
}

// RowFromResult builds the index row for a parsed plot file.
func RowFromResult(path, sum string, res *parser.Result) PlotRow {
	return PlotRow{
		Path:           path,
		PlotID:         res.PlotID,
		Title:          res.Title,
		Checksum:       sum,
		HasTree:        res.HasTree,
		Pending:        res.Pending,
		PendingKeys:    res.PendingKeys,
		CommonName:     res.CommonName,
		ScientificName: res.ScientificName,
		Address:        res.Address,
		Keywords:       res.Keywords,
		UpdatedAt:      time.Now(),
	}
}
