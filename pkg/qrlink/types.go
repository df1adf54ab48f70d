package qrlink

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind is the active content selection. Exactly one kind is active per session.
type ContentKind string

const (
	KindURL      ContentKind = "url"
	KindImage    ContentKind = "image"
	KindVideo    ContentKind = "video"
	KindDocument ContentKind = "document"
)

// ParseContentKind converts a wire value into a ContentKind.
func ParseContentKind(s string) (ContentKind, error) {
	switch k := ContentKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindURL, KindImage, KindVideo, KindDocument:
		return k, nil
	case "":
		return KindURL, nil
	default:
		return "", &ValidationError{Field: "contentType", Reason: fmt.Sprintf("unknown content type %q", s)}
	}
}

// IsFile reports whether the kind is backed by an uploaded file.
func (k ContentKind) IsFile() bool {
	return k == KindImage || k == KindVideo || k == KindDocument
}

// UploadedFile is the metadata and payload of the single active upload.
//
// Data holds the raw bytes as a base64 data URI. ContentKey is assigned before
// the store call; StoredURL is only set once the store has succeeded. Values are
// replaced wholesale, never mutated in place.
type UploadedFile struct {
	DisplayName string `json:"name"`
	MimeType    string `json:"type"`
	ByteLength  int64  `json:"size"`
	Data        string `json:"data,omitempty"`
	ContentKey  string `json:"fileId,omitempty"`
	StoredURL   string `json:"fileUrl,omitempty"`
}

// WithStoredURL returns a copy of f carrying the durable URL.
func (f UploadedFile) WithStoredURL(url string) *UploadedFile {
	f.StoredURL = url
	return &f
}

// StorageObject is a backend-owned blob as seen through listing.
type StorageObject struct {
	Pathname    string    `json:"pathname"`
	URL         string    `json:"url,omitempty"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt,omitempty"`
}

// CanonicalKey builds the storage key "{contentKey}.{displayName}".
func CanonicalKey(contentKey, displayName string) string {
	return contentKey + "." + displayName
}

// UploadState tracks the lifecycle of the active upload.
type UploadState string

const (
	UploadIdle       UploadState = "IDLE"
	UploadValidating UploadState = "VALIDATING"
	UploadUploading  UploadState = "UPLOADING"
	UploadReady      UploadState = "READY"
	UploadFailed     UploadState = "FAILED"
)

// StoreResult is returned after a successful store.
type StoreResult struct {
	ContentKey string
	Pathname   string
	URL        string
}
