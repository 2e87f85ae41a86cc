package models

import (
	"context"
	"errors"

	"github.com/starford/arbor/internal/document"
)

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// MostRecentPhoto returns the photo with the highest id among photos that
// carry a nonzero id and both an image and a thumbnail. It returns nil when
// the plot has no tree, no photos, or no eligible photo. On equal ids the
// first one seen is kept.
func (p *Plot) MostRecentPhoto() document.Object {
	if !p.HasTree() {
		return nil
	}
	photos := document.GetOr[[]any](p.data, nil, KeyPhotos)
	var best document.Object
	var bestID int64
	for _, raw := range photos {
		photo, ok := document.AsObject(raw)
		if !ok {
			continue
		}
		id := document.GetOr[int64](photo, 0, KeyID)
		if id == 0 || !document.Has(photo, KeyImage) || !document.Has(photo, KeyThumbnail) {
			continue
		}
		if best == nil || id > bestID {
			best, bestID = photo, id
		}
	}
	return best
}

// AssignNewTreePhoto appends photo to the photo list, creating it if absent
// or null. A photos value that is not an array is left untouched and the
// call fails with document.ErrMalformedField.
func (p *Plot) AssignNewTreePhoto(photo document.Object) error {
	photos, err := document.Get[[]any](p.data, KeyPhotos)
	if err != nil && !errors.Is(err, document.ErrMissingField) {
		return err
	}
	p.data[KeyPhotos] = append(photos, photo)
	return nil
}

// TreeThumbnail fetches the thumbnail of the most recent photo. It returns
// nil without fetching when there is no such photo.
func (p *Plot) TreeThumbnail(ctx context.Context, f ImageFetcher) ([]byte, error) {
	return p.treeImage(ctx, f, KeyThumbnail)
}

// TreePhoto fetches the full image of the most recent photo.
func (p *Plot) TreePhoto(ctx context.Context, f ImageFetcher) ([]byte, error) {
	return p.treeImage(ctx, f, KeyImage)
}

func (p *Plot) treeImage(ctx context.Context, f ImageFetcher, key string) ([]byte, error) {
	photo := p.MostRecentPhoto()
	if photo == nil {
		return nil, nil
	}
	url := document.GetOr(photo, "", key)
	if url == "" {
		return nil, nil
	}
	return f.FetchImage(ctx, url)
}
