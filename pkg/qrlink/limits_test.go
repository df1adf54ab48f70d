package qrlink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/qrlink/pkg/qrlink"
)

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 Bytes", qrlink.FormatFileSize(0))
	assert.Equal(t, "10 Bytes", qrlink.FormatFileSize(10))
	assert.Equal(t, "1.5 KB", qrlink.FormatFileSize(1536))
	assert.Equal(t, "5 MB", qrlink.FormatFileSize(qrlink.MaxImageBytes))
	assert.Equal(t, "10 MB", qrlink.FormatFileSize(qrlink.MaxDocumentBytes))
	assert.Equal(t, "1.23 GB", qrlink.FormatFileSize(1320702444))
}

func TestValidateUpload(t *testing.T) {
	policies := qrlink.DefaultPolicies

	tests := []struct {
		name     string
		kind     qrlink.ContentKind
		fileName string
		mimeType string
		size     int64
		field    string
	}{
		{"image ok", qrlink.KindImage, "cat.png", "image/png", 1024, ""},
		{"image too large", qrlink.KindImage, "cat.png", "image/png", qrlink.MaxImageBytes + 1, "size"},
		{"image wrong type", qrlink.KindImage, "clip.mp4", "video/mp4", 1024, "type"},
		{"video ok", qrlink.KindVideo, "clip.mp4", "video/mp4", 40 * 1024 * 1024, ""},
		{"document by extension", qrlink.KindDocument, "Report.PDF", "application/octet-stream", 1024, ""},
		{"document text", qrlink.KindDocument, "hi.txt", "text/plain", 10, ""},
		{"document wrong extension", qrlink.KindDocument, "archive.zip", "application/zip", 1024, "type"},
		{"document at limit", qrlink.KindDocument, "big.pdf", "application/pdf", qrlink.MaxDocumentBytes, ""},
		{"url kind rejects files", qrlink.KindURL, "hi.txt", "text/plain", 10, "contentType"},
		{"missing name", qrlink.KindImage, "", "image/png", 10, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := qrlink.ValidateUpload(policies, tt.kind, tt.fileName, tt.mimeType, tt.size)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, qrlink.ErrValidation)
			var ve *qrlink.ValidationError
			if assert.ErrorAs(t, err, &ve) {
				assert.Equal(t, tt.field, ve.Field)
			}
		})
	}
}

func TestValidateUpload_SizeMessage(t *testing.T) {
	err := qrlink.ValidateUpload(qrlink.DefaultPolicies, qrlink.KindImage, "a.png", "image/png", qrlink.MaxImageBytes+1)
	assert.EqualError(t, err, "invalid size: file size too large, maximum size is 5 MB")
}

func TestParseContentKind(t *testing.T) {
	kind, err := qrlink.ParseContentKind("Document")
	assert.NoError(t, err)
	assert.Equal(t, qrlink.KindDocument, kind)

	kind, err = qrlink.ParseContentKind("")
	assert.NoError(t, err)
	assert.Equal(t, qrlink.KindURL, kind)

	_, err = qrlink.ParseContentKind("audio")
	assert.ErrorIs(t, err, qrlink.ErrValidation)
}
