package editfeed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/arbor/internal/models"
)

// DefaultPageSize is the number of edits requested per page.
const DefaultPageSize = 5

// FailureMessage is shown to the user when a page cannot be loaded.
const FailureMessage = "Could not retrieve user edits"

// Fetcher retrieves one page of a user's edits.
type Fetcher interface {
	FetchUserEdits(ctx context.Context, user *models.User, offset, limit int) ([]*models.EditEntry, error)
}

// Store receives fetched pages.
type Store interface {
	Merge(entries []*models.EditEntry) int
}

// Page is the outcome of one successful fetch.
type Page struct {
	Entries []*models.EditEntry `json:"entries"`
	Offset  int                 `json:"offset"`
	Added   int                 `json:"added"`
}

// FetchError is a failed page load. It is always safe to retry.
type FetchError struct {
	Err error
}

// Error implements error.
func (e *FetchError) Error() string { return FailureMessage + ": " + e.Err.Error() }

// Unwrap returns the transport error.
func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports that the load may be attempted again.
func (e *FetchError) Retryable() bool { return true }

// Message returns the user-visible text for the failure.
func (e *FetchError) Message() string { return FailureMessage }

// Loader pages through a user's edits into a Store. At most one fetch is in
// flight at a time; requests made while one is outstanding do nothing.
type Loader struct {
	fetcher  Fetcher
	store    Store
	user     *models.User
	pageSize int
	logger   *slog.Logger

	loading atomic.Bool

	mu     sync.Mutex
	offset int
	gen    uint64 // bumped by Reset
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// WithLogger sets the logger used for fetch outcomes.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader returns a loader for user's edits.
func NewLoader(fetcher Fetcher, store Store, user *models.User, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:  fetcher,
		store:    store,
		user:     user,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Loading reports whether a fetch is outstanding.
func (l *Loader) Loading() bool { return l.loading.Load() }

// Offset returns the offset of the next page.
func (l *Loader) Offset() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Reset restarts paging from the first page. Cached entries are kept. A fetch
// already in flight still merges its entries but no longer moves the offset.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.offset = 0
	l.gen++
	l.mu.Unlock()
}

// LoadMore fetches and merges the next page. It returns (nil, nil) without
// fetching when another fetch is in flight. On failure nothing is merged, the
// offset is unchanged and the error is a *FetchError.
func (l *Loader) LoadMore(ctx context.Context) (*Page, error) {
	if !l.loading.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer l.loading.Store(false)
	return l.fetch(ctx)
}

// Go starts LoadMore in a new goroutine and calls done with its outcome. It
// returns false, and never calls done, when a fetch is already in flight.
func (l *Loader) Go(ctx context.Context, done func(*Page, error)) bool {
	if !l.loading.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		page, err := l.fetch(ctx)
		l.loading.Store(false)
		if done != nil {
			done(page, err)
		}
	}()
	return true
}

func (l *Loader) fetch(ctx context.Context) (*Page, error) {
	l.mu.Lock()
	offset, gen := l.offset, l.gen
	l.mu.Unlock()

	entries, err := l.fetcher.FetchUserEdits(ctx, l.user, offset, l.pageSize)
	if err != nil {
		l.logger.Warn("editfeed: fetch failed",
			slog.Int("offset", offset),
			slog.String("error", err.Error()))
		return nil, &FetchError{Err: err}
	}

	added := l.store.Merge(entries)

	l.mu.Lock()
	if l.gen == gen {
		l.offset = offset + l.pageSize
	}
	l.mu.Unlock()

	l.logger.Debug("editfeed: page merged",
		slog.Int("offset", offset),
		slog.Int("received", len(entries)),
		slog.Int("added", added))
	return &Page{Entries: entries, Offset: offset, Added: added}, nil
}
