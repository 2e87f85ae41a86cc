package plotservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/storage"
)

var photoExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// AddTreePhoto stores image bytes under the photo directory and appends a
// photo entry to the plot at plotPath. The plot must have a tree and
// contentType must be an accepted image type. The new entry takes the next
// free photo id, so it becomes the plot's most recent photo.
func (s *Service) AddTreePhoto(ctx context.Context, plotPath, contentType string, data []byte) (document.Object, *PlotDetail, error) {
	if !models.IsImageType(contentType) {
		return nil, nil, fmt.Errorf("plotservice: content type %q: %w", contentType, apperr.ErrInvalid)
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("plotservice: empty photo: %w", apperr.ErrInvalid)
	}
	plot, sum, err := s.LoadPlot(ctx, plotPath)
	if err != nil {
		return nil, nil, err
	}
	if !plot.HasTree() {
		return nil, nil, fmt.Errorf("plotservice: %s has no tree: %w", plotPath, apperr.ErrInvalid)
	}

	name := path.Join(storage.PhotoDir, uuid.NewString()+photoExt[contentType])
	if err := s.store.Write(name, data); err != nil {
		return nil, nil, fmt.Errorf("plotservice: write photo: %w", err)
	}

	photo := document.Object{
		models.KeyID:        nextPhotoID(plot),
		models.KeyImage:     name,
		models.KeyThumbnail: name,
	}
	if err := plot.AssignNewTreePhoto(photo); err != nil {
		_ = s.store.Delete(name)
		return nil, nil, fmt.Errorf("plotservice: %s photos: %w", plotPath, err)
	}

	detail, err := s.save(plotPath, plot)
	if err != nil {
		_ = s.store.Delete(name)
		return nil, nil, err
	}
	s.logger.Debug("plotservice: photo added",
		slog.String("plot", plotPath),
		slog.String("photo", name),
		slog.String("previous_checksum", sum))
	return photo, detail, nil
}

func nextPhotoID(plot *models.Plot) int64 {
	var highest int64
	for _, raw := range document.GetOr[[]any](plot.ToDocument(), nil, models.KeyPhotos) {
		photo, ok := document.AsObject(raw)
		if !ok {
			continue
		}
		if id := document.GetOr[int64](photo, 0, models.KeyID); id > highest {
			highest = id
		}
	}
	return highest + 1
}

// Photo returns the bytes of a stored tree photo.
func (s *Service) Photo(_ context.Context, name string) ([]byte, error) {
	clean := path.Clean(name)
	if path.Dir(clean) != storage.PhotoDir {
		return nil, fmt.Errorf("plotservice: %q is not a photo: %w", name, apperr.ErrInvalid)
	}
	data, err := s.store.Read(clean)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}
