package index

// PlotIndex is the set of index operations the service layer depends on.
type PlotIndex interface {
	UpsertPlot(r PlotRow) error
	DeletePlot(path string) error
	GetChecksum(path string) (string, error)
	GetPlot(path string) (*PlotRow, error)
	PathForID(plotID int) (string, error)
	ListPlots(f ListFilter) ([]PlotRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ PlotIndex = (*DB)(nil)
