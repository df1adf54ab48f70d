package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/qrlink/pkg/qrlink"
	"github.com/tendant/qrlink/pkg/qrlink/api"
	"github.com/tendant/qrlink/pkg/qrlink/storage/memory"
)

// setupGateway starts a gateway over an in-memory store.
func setupGateway(t *testing.T) (*httptest.Server, *memory.Backend) {
	t.Helper()
	store := memory.New()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := api.NewGatewayHandler(store, qrlink.NewStorageClient(store),
			qrlink.NewLookupService(store), qrlink.NewResolver(server.URL))
		handler.Routes().ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server, store
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestUpload_SmallTextIsInline(t *testing.T) {
	server, _ := setupGateway(t)
	path := writeTempFile(t, "hi.txt", []byte("hi there!\n"))

	stdout, _, err := runCLI(t, "upload", path, "--gateway", server.URL, "--no-wait")
	require.NoError(t, err)
	assert.Equal(t, "hi there!\n\n", stdout)
}

func TestUpload_LargeDocumentReference(t *testing.T) {
	server, store := setupGateway(t)
	path := writeTempFile(t, "report.pdf", bytes.Repeat([]byte("%PDF"), 4096))

	stdout, _, err := runCLI(t, "upload", path, "--gateway", server.URL, "--key-format", "uuid")
	require.NoError(t, err)

	payload := strings.TrimSpace(stdout)
	require.True(t, strings.HasPrefix(payload, server.URL+"/file/"), payload)
	contentKey := strings.TrimPrefix(payload, server.URL+"/file/")

	objects, err := store.List(context.Background(), qrlink.ListParams{Prefix: contentKey})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, contentKey+".report.pdf", objects[0].Pathname)
}

func TestUpload_RejectsWrongKind(t *testing.T) {
	server, _ := setupGateway(t)
	path := writeTempFile(t, "notes.txt", []byte("hello"))

	_, _, err := runCLI(t, "upload", path, "--gateway", server.URL, "--kind", "image")
	assert.ErrorIs(t, err, qrlink.ErrValidation)
}

func TestUpload_UnreachableGateway(t *testing.T) {
	path := writeTempFile(t, "report.pdf", make([]byte, 4096))

	_, _, err := runCLI(t, "upload", path, "--gateway", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	stdout, _, err := runCLI(t, "resolve", "--url", "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org\n", stdout)

	stdout, _, err = runCLI(t, "resolve", "--base-url", "https://qr.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://qr.example.com\n", stdout)

	path := writeTempFile(t, "hi.txt", []byte("hi"))
	stdout, stderr, err := runCLI(t, "resolve", path, "--explain")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)
	assert.Contains(t, stderr, "source=inline")
}

func TestResolve_EnvBaseURL(t *testing.T) {
	t.Setenv("QRLINK_BASE_URL", "https://env.example.com")

	stdout, _, err := runCLI(t, "resolve")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com\n", stdout)
}

func TestResolve_Remote(t *testing.T) {
	server, _ := setupGateway(t)

	stdout, _, err := runCLI(t, "resolve", "--remote", "--gateway", server.URL, "--url", "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org\n", stdout)

	// The gateway's own base URL wins over --base-url.
	stdout, _, err = runCLI(t, "resolve", "--remote", "--gateway", server.URL, "--base-url", "https://qr.example.com")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"\n", stdout)

	path := writeTempFile(t, "hi.txt", []byte("hi"))
	stdout, stderr, err := runCLI(t, "resolve", path, "--remote", "--gateway", server.URL, "--explain")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)
	assert.Contains(t, stderr, "source=inline")

	_, _, err = runCLI(t, "resolve", "--remote", "--gateway", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestLocateAndBlobs(t *testing.T) {
	server, store := setupGateway(t)
	_, err := store.Put(context.Background(), "abc.notes.txt", strings.NewReader("hello"), qrlink.PutParams{ContentType: "text/plain"})
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "locate", "abc", "--gateway", server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/file/abc\n", stdout)

	_, _, err = runCLI(t, "locate", "nonexistent", "--gateway", server.URL)
	assert.ErrorIs(t, err, qrlink.ErrNotFound)

	stdout, _, err = runCLI(t, "blobs", "--gateway", server.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Blob storage is configured correctly (1 objects)")
	assert.Contains(t, stdout, "abc.notes.txt")
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", detectMimeType("hi.txt", nil))
	assert.Equal(t, "application/pdf", detectMimeType("report.pdf", nil))
	assert.Equal(t, "image/png", detectMimeType("noext", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, qrlink.KindImage, kindForMimeType("image/png"))
	assert.Equal(t, qrlink.KindVideo, kindForMimeType("video/mp4"))
	assert.Equal(t, qrlink.KindDocument, kindForMimeType("application/pdf"))
}
