// Package plotservice coordinates the local plot store, the SQLite index and
// the remote inventory server.
package plotservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/parser"
	"github.com/starford/arbor/internal/storage"
)

// Remote fetches authoritative plots from the inventory server.
type Remote interface {
	FetchPlot(ctx context.Context, id int) (*models.Plot, error)
}

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	idx    index.PlotIndex
	remote Remote
	geoRev models.GeoRevSource
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRemote enables Refresh against an inventory server.
func WithRemote(r Remote) Option {
	return func(s *Service) { s.remote = r }
}

// WithGeoRevSource sets the fallback geo-revision attached to loaded plots.
func WithGeoRevSource(src models.GeoRevSource) Option {
	return func(s *Service) { s.geoRev = src }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a service over store and idx.
func NewService(store storage.Provider, idx index.PlotIndex, opts ...Option) *Service {
	s := &Service{store: store, idx: idx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkPath(path string) error {
	if !storage.IsPlotFile(path) {
		return fmt.Errorf("plotservice: %q is not a plot file: %w", path, apperr.ErrInvalid)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.ErrNotFound
	}
	return err
}

// LoadPlot reads and decodes the plot at path and returns it with the
// checksum of the stored bytes.
func (s *Service) LoadPlot(_ context.Context, path string) (*models.Plot, string, error) {
	if err := checkPath(path); err != nil {
		return nil, "", err
	}
	data, err := s.store.Read(path)
	if err != nil {
		return nil, "", notFound(err)
	}
	doc, err := parser.Decode(path, data)
	if err != nil {
		return nil, "", fmt.Errorf("plotservice: %s: %w", path, err)
	}
	return s.wrap(doc), checksum.Sum(data), nil
}

func (s *Service) wrap(doc document.Object) *models.Plot {
	p := models.WrapPlot(doc)
	if s.geoRev != nil {
		p.WithGeoRevSource(s.geoRev)
	}
	return p
}

// GetPlot returns the detail projection of the plot at path.
func (s *Service) GetPlot(ctx context.Context, path string) (*PlotDetail, error) {
	plot, sum, err := s.LoadPlot(ctx, path)
	if err != nil {
		return nil, err
	}
	return Project(path, sum, plot), nil
}

// CreatePlot stores a new plot document. It fails with ErrAlreadyExists when
// path is taken.
func (s *Service) CreatePlot(_ context.Context, path string, doc document.Object) (*PlotDetail, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	exists, err := s.store.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrAlreadyExists
	}
	return s.save(path, s.wrap(doc))
}

// UpdatePlot replaces the plot at path. A non-empty ifMatch must equal the
// checksum of the stored bytes, otherwise ErrConflict is returned.
func (s *Service) UpdatePlot(_ context.Context, path string, doc document.Object, ifMatch string) (*PlotDetail, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	existing, err := s.store.Read(path)
	if err != nil {
		return nil, notFound(err)
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	return s.save(path, s.wrap(doc))
}

// DeletePlot removes the plot from storage and index.
func (s *Service) DeletePlot(_ context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if err := s.store.Delete(path); err != nil {
		return notFound(err)
	}
	return s.idx.DeletePlot(path)
}

// ListPlots returns one page of index rows and the total matching count.
func (s *Service) ListPlots(_ context.Context, f index.ListFilter) ([]index.PlotRow, int, error) {
	rows, total, err := s.idx.ListPlots(f)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		if rows[i].PendingKeys == nil {
			rows[i].PendingKeys = []string{}
		}
	}
	return rows, total, nil
}

// Search delegates to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.idx.Search(query, limit)
}

// PendingEdit returns the pending edit description for key on the plot at
// path, or ErrNotFound when the plot has none for that key.
func (s *Service) PendingEdit(ctx context.Context, path, key string) (*models.PendingEditDescription, error) {
	plot, _, err := s.LoadPlot(ctx, path)
	if err != nil {
		return nil, err
	}
	desc, err := plot.PendingEditForKey(key)
	if err != nil {
		return nil, fmt.Errorf("plotservice: pending edit %q: %w", key, err)
	}
	if desc == nil {
		return nil, fmt.Errorf("plotservice: pending edit %q: %w", key, apperr.ErrNotFound)
	}
	return desc, nil
}

// Refresh fetches plot id from the remote and stores it, at its existing
// path when already indexed, otherwise at plots/<id>.json.
func (s *Service) Refresh(ctx context.Context, id int) (*PlotDetail, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("plotservice: refresh: no remote configured: %w", apperr.ErrInvalid)
	}
	plot, err := s.remote.FetchPlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("plotservice: refresh %d: %w", id, err)
	}
	path, err := s.idx.PathForID(id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		path = "plots/" + strconv.Itoa(id) + ".json"
	}
	s.logger.Info("plotservice: refreshed", slog.Int("plot_id", id), slog.String("path", path))
	return s.save(path, plot)
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(path string, data []byte) error {
	_, err := index.IndexFile(s.idx, path, data)
	return err
}

// Validate checks the fields the store relies on.
func Validate(plot *models.Plot) error {
	if !plot.HasDetails() {
		return fmt.Errorf("plot: details object is missing: %w", apperr.ErrInvalid)
	}
	width, length := plot.Width(), plot.Length()
	err := validation.Errors{
		"width":  validation.Validate(width, validation.Min(int64(0))),
		"length": validation.Validate(length, validation.Min(int64(0))),
	}.Filter()
	if err != nil {
		return fmt.Errorf("plot: %w: %w", apperr.ErrInvalid, err)
	}
	if plot.HasTree() {
		if tree, err := plot.Tree(); err != nil || tree == nil {
			return fmt.Errorf("plot: has_tree is set without a tree object: %w", apperr.ErrInvalid)
		}
	}
	return nil
}

func (s *Service) save(path string, plot *models.Plot) (*PlotDetail, error) {
	if err := Validate(plot); err != nil {
		return nil, err
	}
	data, err := encode(path, plot.ToDocument())
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, data); err != nil {
		return nil, err
	}
	return Project(path, checksum.Sum(data), plot), nil
}

func encode(path string, doc document.Object) ([]byte, error) {
	if parser.IsYAML(path) {
		return document.MarshalYAML(doc)
	}
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return nil, fmt.Errorf("plotservice: encode: %w", err)
	}
	return data, nil
}
