package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/feedpress/apiserver/internal/services"
	"github.com/feedpress/apiserver/internal/storage"
	"github.com/feedpress/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxImageBytes     = 10 << 20
	maxMultipartBytes = maxImageBytes + 1<<20
	formFieldImage    = "image"
	formFieldOldPath  = "oldPath"
	sniffLen          = 512
)

// ImageStore saves, serves and removes post images. Saved keys record the
// uploader.
type ImageStore interface {
	Save(ctx context.Context, ownerID int64, filename string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, path string) (storage.Object, error)
	Remove(ctx context.Context, path string) error
	OwnedBy(path string, userID int64) bool
}

// ImageResponse is the upload result. FilePath is empty when no file was
// sent.
type ImageResponse struct {
	Message  string `json:"message"`
	FilePath string `json:"filePath,omitempty"`
}

// ImageHandler serves image uploads and downloads. A nil store disables
// both.
type ImageHandler struct {
	images ImageStore
	logger *slog.Logger
}

// NewImageHandler constructs an ImageHandler with the provided dependencies.
func NewImageHandler(images ImageStore, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: loggerOrDefault(logger)}
}

// ImageRouter registers the upload route and the image file server.
func ImageRouter(r chi.Router, images ImageStore, logger *slog.Logger) {
	handler := NewImageHandler(images, logger)

	r.Put("/post-image", handler.Upload)
	r.Get("/images/*", handler.Serve)
}

// Upload stores the multipart "image" file and removes the image named by
// "oldPath" when the requester uploaded it.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	state := AuthStateFromContext(r.Context())
	if err := services.RequireAuth(state); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.images == nil {
		writeStatus(w, http.StatusServiceUnavailable, "image storage is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			writeJSON(w, http.StatusOK, ImageResponse{Message: "No file provided!"})
			return
		}
		writeStatus(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeJSON(w, http.StatusOK, ImageResponse{Message: "No file provided!"})
			return
		}
		writeStatus(w, http.StatusBadRequest, "invalid image file")
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		writeStatus(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}

	body, contentType, err := detectContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid image file")
		return
	}

	path, err := h.images.Save(r.Context(), state.UserID, header.Filename, body, header.Size, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			writeError(w, h.logger, types.NewInvalidInput([]types.FieldError{{Message: "image must be a png or jpeg file"}}))
			return
		}
		writeError(w, h.logger, err)
		return
	}

	if oldPath := r.FormValue(formFieldOldPath); oldPath != "" && oldPath != path && h.images.OwnedBy(oldPath, state.UserID) {
		if err := h.images.Remove(r.Context(), oldPath); err != nil {
			h.logger.Warn("remove replaced image", slog.String("path", oldPath), slog.Any("error", err))
		}
	}

	writeJSON(w, http.StatusCreated, ImageResponse{Message: "File stored.", FilePath: path})
}

// Serve streams a stored image.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeStatus(w, http.StatusNotFound, "image not found")
		return
	}

	obj, err := h.images.Open(r.Context(), storage.ImagePrefix+chi.URLParam(r, "*"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeStatus(w, http.StatusNotFound, "image not found")
			return
		}
		writeError(w, h.logger, err)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}

// detectContentType trusts the part header when present, otherwise sniffs
// the first bytes. The returned reader yields the whole file.
func detectContentType(file io.Reader, declared string) (io.Reader, string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return file, declared, nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), file), http.DetectContentType(head), nil
}
