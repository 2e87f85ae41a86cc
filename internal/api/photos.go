package api

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/starford/arbor/internal/plotservice"
	"github.com/starford/arbor/internal/storage"
)

const maxPhotoBytes = 50 << 20

// PhotoHandler accepts and serves tree photos.
type PhotoHandler struct {
	svc    *plotservice.Service
	events Publisher
}

// NewPhotoHandler creates a photo handler. A nil events publisher is allowed.
func NewPhotoHandler(svc *plotservice.Service, events Publisher) *PhotoHandler {
	if events == nil {
		events = nopPublisher{}
	}
	return &PhotoHandler{svc: svc, events: events}
}

// Upload handles POST /api/photos?path=<plot>. The image comes either as the
// "file" field of a multipart form or as the raw request body; its content
// type must be jpeg, png or gif.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	plot := r.URL.Query().Get("path")
	if plot == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)

	contentType, data, ok := readPhoto(w, r)
	if !ok {
		return
	}
	photo, detail, err := h.svc.AddTreePhoto(r.Context(), plot, contentType, data)
	if err != nil {
		writeError(w, "upload photo", err)
		return
	}
	h.events.PublishPlotEvent("updated", plot)
	writeJSON(w, http.StatusCreated, PhotoUploadResponse{Photo: photo, Plot: detail})
}

func readPhoto(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing or invalid Content-Type"))
		return "", nil, false
	}

	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("photo too large or unreadable"))
			return "", nil, false
		}
		return mediaType, data, true
	}

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return "", nil, false
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return "", nil, false
	}
	partType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(partType); err == nil {
		partType = mt
	}
	if partType == "" || partType == "application/octet-stream" {
		partType = http.DetectContentType(buf.Bytes())
	}
	return partType, buf.Bytes(), true
}

// Serve handles GET /api/photos/{name}, the URL form of a photo's image and
// thumbnail entries.
func (h *PhotoHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := path.Join(storage.PhotoDir, plotPath(r))
	data, err := h.svc.Photo(r.Context(), name)
	if err != nil {
		writeError(w, "serve photo", err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(data)
}
