package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tendant/qrlink/pkg/qrlink"
)

const metaDir = ".meta"

// Backend is a filesystem implementation of the qrlink.BlobStore interface
type Backend struct {
	mu        sync.RWMutex
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Optional public URL prefix the directory is served under
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(filepath.Join(config.BaseDir, metaDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || !filepath.IsLocal(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}

// Put writes the object to the filesystem and records its content type
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, params qrlink.PutParams) (*qrlink.StorageObject, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Write beside the sidecars and rename, so a failed copy never leaves a
	// truncated object under the key.
	tmp, err := os.CreateTemp(filepath.Join(b.baseDir, metaDir), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	metaPath := filepath.Join(b.baseDir, metaDir, key)
	if params.ContentType != "" {
		if err := os.WriteFile(metaPath, []byte(params.ContentType), 0644); err != nil {
			return nil, fmt.Errorf("failed to write content type: %w", err)
		}
	} else {
		_ = os.Remove(metaPath)
	}

	filePath := filepath.Join(b.baseDir, key)
	if err := os.Rename(tmpPath, filePath); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	return b.object(key, info), nil
}

// List returns files whose name starts with the prefix, in name order
func (b *Backend) List(ctx context.Context, params qrlink.ListParams) ([]qrlink.StorageObject, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var result []qrlink.StorageObject
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), params.Prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, *b.object(entry.Name(), info))
		if params.Limit > 0 && len(result) >= params.Limit {
			break
		}
	}
	return result, nil
}

// Download opens the file for reading
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, qrlink.ErrNotFound
	}

	file, err := os.Open(filepath.Join(b.baseDir, key))
	if os.IsNotExist(err) {
		return nil, qrlink.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (b *Backend) object(key string, info os.FileInfo) *qrlink.StorageObject {
	obj := &qrlink.StorageObject{
		Pathname:    key,
		Size:        info.Size(),
		ContentType: b.contentType(key),
		UploadedAt:  info.ModTime(),
	}
	if b.urlPrefix != "" {
		obj.URL = b.urlPrefix + "/" + url.PathEscape(key)
	}
	return obj
}

// contentType returns the recorded type, falling back to content sniffing
func (b *Backend) contentType(key string) string {
	if recorded, err := os.ReadFile(filepath.Join(b.baseDir, metaDir, key)); err == nil && len(recorded) > 0 {
		return string(recorded)
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filepath.Join(b.baseDir, key)); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}
	return contentType
}
