package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/qrlink/pkg/qrlink"
	"github.com/tendant/qrlink/pkg/qrlink/contentkey"
)

const (
	// DiagnosticsLimit is how many objects the diagnostics endpoint lists.
	DiagnosticsLimit = 5

	// DefaultMaxUploadBytes caps a POST /store body. Base64 inflates the
	// largest accepted file by a third.
	DefaultMaxUploadBytes int64 = qrlink.MaxVideoBytes*4/3 + 64*1024
)

// GatewayHandler serves the store, file redirect and diagnostics endpoints.
type GatewayHandler struct {
	store          qrlink.BlobStore
	storer         qrlink.Storer
	lookup         *qrlink.LookupService
	resolver       *qrlink.Resolver
	backendName    string
	maxUploadBytes int64
}

// Option configures a GatewayHandler.
type Option func(*GatewayHandler)

// WithMaxUploadBytes caps the request body of POST /store.
func WithMaxUploadBytes(n int64) Option {
	return func(h *GatewayHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithBackendName names the backend in diagnostics and health output.
func WithBackendName(name string) Option {
	return func(h *GatewayHandler) {
		h.backendName = name
	}
}

func NewGatewayHandler(store qrlink.BlobStore, storer qrlink.Storer, lookup *qrlink.LookupService, resolver *qrlink.Resolver, opts ...Option) *GatewayHandler {
	h := &GatewayHandler{
		store:          store,
		storer:         storer,
		lookup:         lookup,
		resolver:       resolver,
		backendName:    "default",
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for gateway endpoints
func (h *GatewayHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/store", h.StoreFile)
	r.Get("/file/{fileId}", h.ServeFile)
	r.Get("/diagnostics/blob", h.Diagnostics)
	r.Post("/resolve", h.Resolve)
	r.Get("/health", h.Health)
	return r
}

// StoreFileRequest is the body of POST /store
type StoreFileRequest struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Data   string `json:"data"`
}

// StoreFileResponse is returned after a successful store
type StoreFileResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"fileId"`
	URL     string `json:"url"`
}

// ErrorResponse carries a failure message
type ErrorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// StoreFile persists a base64 data URI under "{fileId}.{name}"
func (h *GatewayHandler) StoreFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req StoreFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			slog.Error("Upload body too large", "limit", maxErr.Limit)
			writeError(w, r, http.StatusRequestEntityTooLarge, "File too large, maximum size is "+qrlink.FormatFileSize(maxErr.Limit))
			return
		}
		slog.Error("Failed to decode request", "error", err)
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	slog.Info("Storing file", "file_id", req.FileID, "name", req.Name)

	if req.FileID == "" || req.Name == "" || req.Type == "" || req.Data == "" {
		slog.Error("Missing required fields", "file_id", req.FileID, "name", req.Name)
		writeError(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !contentkey.Valid(req.FileID) {
		slog.Error("Invalid file ID", "file_id", req.FileID)
		writeError(w, r, http.StatusBadRequest, "Invalid file ID")
		return
	}
	if req.Name != path.Base(req.Name) || req.Name == "." || req.Name == ".." {
		slog.Error("Invalid file name", "name", req.Name)
		writeError(w, r, http.StatusBadRequest, "Invalid file name")
		return
	}

	uri, err := qrlink.ParseDataURI(req.Data)
	if err != nil {
		slog.Error("Failed to decode file data", "file_id", req.FileID, "error", err)
		writeError(w, r, http.StatusBadRequest, "Invalid file data")
		return
	}

	result, err := h.storer.Store(r.Context(), req.FileID, req.Name, req.Type, uri.Data)
	if err != nil {
		slog.Error("Error storing file", "file_id", req.FileID, "error", err)
		switch {
		case errors.Is(err, qrlink.ErrValidation):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case qrlink.IsConfigurationError(err):
			writeError(w, r, http.StatusInternalServerError, "Storage is not configured")
		default:
			writeError(w, r, http.StatusInternalServerError, "Failed to store file")
		}
		return
	}

	url := result.URL
	if url == "" {
		url = h.resolver.LocatorURL(req.FileID)
	}

	slog.Info("Stored file", "file_id", req.FileID, "name", req.Name, "url", url)
	render.JSON(w, r, StoreFileResponse{
		Success: true,
		FileID:  req.FileID,
		URL:     url,
	})
}

// ServeFile redirects to the stored object for a content key. Backends without
// public URLs get the bytes served directly.
func (h *GatewayHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	object, err := h.lookup.Resolve(r.Context(), fileID)
	if err != nil {
		switch {
		case errors.Is(err, qrlink.ErrNotFound):
			slog.Info("File not found", "file_id", fileID)
			http.Error(w, "File not found: "+fileID, http.StatusNotFound)
		case qrlink.IsConfigurationError(err):
			slog.Error("Storage is not configured", "file_id", fileID, "error", err)
			http.Error(w, "Storage is not configured: "+configurationReason(err), http.StatusInternalServerError)
		default:
			slog.Error("Error serving file", "file_id", fileID, "error", err)
			http.Error(w, "Error serving file", http.StatusInternalServerError)
		}
		return
	}

	if object.URL != "" {
		slog.Debug("Redirecting to stored object", "file_id", fileID, "url", object.URL)
		http.Redirect(w, r, object.URL, http.StatusFound)
		return
	}

	h.serveObject(w, r, fileID, object)
}

func (h *GatewayHandler) serveObject(w http.ResponseWriter, r *http.Request, fileID string, object *qrlink.StorageObject) {
	reader, err := h.store.Download(r.Context(), object.Pathname)
	if err != nil {
		slog.Error("Error serving file", "file_id", fileID, "key", object.Pathname, "error", err)
		if errors.Is(err, qrlink.ErrNotFound) {
			http.Error(w, "File not found: "+fileID, http.StatusNotFound)
			return
		}
		http.Error(w, "Error serving file", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	contentType := object.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", displayName(fileID, object.Pathname)))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	if object.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", object.Size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to write file", "file_id", fileID, "error", err)
	}
}

func configurationReason(err error) string {
	var storageErr *qrlink.StorageError
	if errors.As(err, &storageErr) {
		return storageErr.Err.Error()
	}
	return err.Error()
}

// displayName strips the "{fileId}." prefix from a canonical key.
func displayName(fileID, pathname string) string {
	if len(pathname) > len(fileID)+1 && pathname[:len(fileID)+1] == fileID+"." {
		return pathname[len(fileID)+1:]
	}
	return pathname
}

// BlobSummary is one object in the diagnostics listing
type BlobSummary struct {
	Pathname string `json:"pathname"`
	Size     int64  `json:"size"`
}

// DiagnosticsResponse reports whether the backend can be listed
type DiagnosticsResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Backend   string        `json:"backend"`
	BlobCount int           `json:"blobCount"`
	Blobs     []BlobSummary `json:"blobs"`
}

// Diagnostics lists a few objects to verify backend configuration
func (h *GatewayHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	slog.Info("Testing blob storage configuration", "backend", h.backendName)

	objects, err := h.store.List(r.Context(), qrlink.ListParams{Limit: DiagnosticsLimit})
	if err != nil {
		slog.Error("Error testing blob storage", "backend", h.backendName, "error", err)
		success := false
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Success: &success,
			Error:   err.Error(),
			Message: "Blob storage configuration error. Check STORAGE_URL and the backend credentials.",
		})
		return
	}

	blobs := make([]BlobSummary, 0, len(objects))
	for _, o := range objects {
		blobs = append(blobs, BlobSummary{Pathname: o.Pathname, Size: o.Size})
	}

	slog.Info("Blob storage reachable", "backend", h.backendName, "blob_count", len(blobs))
	render.JSON(w, r, DiagnosticsResponse{
		Success:   true,
		Message:   "Blob storage is configured correctly",
		Backend:   h.backendName,
		BlobCount: len(blobs),
		Blobs:     blobs,
	})
}

// ResolveRequest describes one selection to resolve
type ResolveRequest struct {
	ContentType string               `json:"contentType"`
	URL         string               `json:"url"`
	File        *qrlink.UploadedFile `json:"file,omitempty"`
}

// Resolve computes the payload for a selection without touching storage
func (h *GatewayHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind, err := qrlink.ParseContentKind(req.ContentType)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.File != nil && req.File.ByteLength < 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid file size")
		return
	}

	render.JSON(w, r, h.resolver.Explain(kind, req.URL, req.File))
}

// HealthResponse reports liveness and the storage backend
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Health reports that the gateway is up
func (h *GatewayHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "ok", Storage: h.backendName})
}
