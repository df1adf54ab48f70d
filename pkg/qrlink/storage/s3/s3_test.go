package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/qrlink/pkg/qrlink"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("Defaults", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			PublicBaseURL:   "https://cdn.example.com/",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.Equal(t, time.Duration(maxPresignSeconds)*time.Second, backend.presignDuration)
		assert.Equal(t, "https://cdn.example.com", backend.config.PublicBaseURL)
	})

	t.Run("PresignDurationClamped", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			PresignDuration: 3600,
		})
		require.NoError(t, err)
		assert.Equal(t, time.Hour, backend.presignDuration)
	})
}

func TestS3Backend_ObjectURL(t *testing.T) {
	ctx := context.Background()

	t.Run("PublicBaseURL", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			PublicBaseURL:   "https://cdn.example.com",
		})
		require.NoError(t, err)

		u, err := backend.objectURL(ctx, "file_1_abc.my notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/file_1_abc.my%20notes.txt", u)
	})

	t.Run("Presigned", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)

		u, err := backend.objectURL(ctx, "file_1_abc.notes.txt")
		require.NoError(t, err)
		assert.Contains(t, u, "http://localhost:9000/test-bucket/file_1_abc.notes.txt")
		assert.Contains(t, u, "X-Amz-Signature=")
	})
}

const listBucketResult = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>test-bucket</Name>
  <Prefix>file_1_abc</Prefix>
  <KeyCount>1</KeyCount>
  <MaxKeys>10</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>file_1_abc.big.pdf</Key>
    <LastModified>2025-01-01T00:00:00.000Z</LastModified>
    <ETag>&quot;etag&quot;</ETag>
    <Size>4</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

// newS3Sink accepts every upload and answers listings with one object.
func newS3Sink(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			_, _ = io.Copy(io.Discard, r.Body)
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, listBucketResult)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestS3Backend_PutWithoutPublicURL(t *testing.T) {
	sink := newS3Sink(t)
	backend, err := New(Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        sink.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := backend.Put(ctx, "file_1_abc.big.pdf", bytes.NewReader([]byte("%PDF")), qrlink.PutParams{ContentType: "application/pdf", Size: 4})
	require.NoError(t, err)
	assert.Empty(t, obj.URL)

	result, err := qrlink.NewStorageClient(backend).Store(ctx, "file_1_abc", "big.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Empty(t, result.URL)
	assert.Equal(t, "file_1_abc.big.pdf", result.Pathname)

	// Listings still carry a freshly signed redirect target.
	objects, err := backend.List(ctx, qrlink.ListParams{Prefix: "file_1_abc", Limit: 10})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Contains(t, objects[0].URL, sink.URL+"/test-bucket/file_1_abc.big.pdf")
	assert.Contains(t, objects[0].URL, "X-Amz-Signature=")
}

func TestS3Backend_PutWithPublicURL(t *testing.T) {
	sink := newS3Sink(t)
	backend, err := New(Config{
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        sink.URL,
		UsePathStyle:    true,
		PublicBaseURL:   "https://cdn.example.com",
	})
	require.NoError(t, err)

	obj, err := backend.Put(context.Background(), "file_1_abc.big.pdf", bytes.NewReader([]byte("%PDF")), qrlink.PutParams{Size: 4})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/file_1_abc.big.pdf", obj.URL)
}

func TestClassifyError(t *testing.T) {
	t.Run("CredentialCodes", func(t *testing.T) {
		for _, code := range []string{"InvalidAccessKeyId", "AccessDenied", "NoSuchBucket"} {
			err := classifyError(&smithy.GenericAPIError{Code: code, Message: "denied"})
			assert.ErrorIs(t, err, qrlink.ErrStorageUnavailable, code)
		}
	})

	t.Run("TransientError", func(t *testing.T) {
		err := classifyError(&smithy.GenericAPIError{Code: "SlowDown", Message: "throttled"})
		assert.False(t, errors.Is(err, qrlink.ErrStorageUnavailable))
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		err := classifyError(fmt.Errorf("operation error S3: ListObjectsV2, failed to retrieve credentials"))
		assert.ErrorIs(t, err, qrlink.ErrStorageUnavailable)
	})
}

// TestS3Backend_Integration runs against a live S3-compatible endpoint when
// S3_TEST_ENDPOINT is set, e.g. a local MinIO.
func TestS3Backend_Integration(t *testing.T) {
	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_TEST_ENDPOINT not set")
	}

	backend, err := New(Config{
		Bucket:                 getEnvOrDefault("S3_TEST_BUCKET", "qrlink-test"),
		AccessKeyID:            getEnvOrDefault("S3_TEST_ACCESS_KEY", "minioadmin"),
		SecretAccessKey:        getEnvOrDefault("S3_TEST_SECRET_KEY", "minioadmin"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	prefix := fmt.Sprintf("file_%d_it", time.Now().UnixNano())
	key := prefix + ".notes.txt"
	data := []byte("integration data")

	obj, err := backend.Put(ctx, key, bytes.NewReader(data), qrlink.PutParams{ContentType: "text/plain", Size: int64(len(data))})
	require.NoError(t, err)
	assert.Empty(t, obj.URL)

	objects, err := backend.List(ctx, qrlink.ListParams{Prefix: prefix, Limit: 10})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, key, objects[0].Pathname)
	assert.Equal(t, int64(len(data)), objects[0].Size)
	assert.NotEmpty(t, objects[0].URL)

	reader, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = backend.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(backend.bucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
