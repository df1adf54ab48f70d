package qrlink

import (
	"mime"
	"strings"
)

// InlineThreshold is the byte length at and above which content is never inlined.
const InlineThreshold = 2048

// Classification decides whether content is embedded or referenced.
type Classification string

const (
	Inline    Classification = "INLINE"
	Reference Classification = "REFERENCE"
)

// MimeClass groups mime types by how they can be inlined.
type MimeClass int

const (
	MimeOther MimeClass = iota
	MimeText
	MimeImage
)

// MimeClassOf maps a mime type to its class. Only text/plain counts as text.
func MimeClassOf(mimeType string) MimeClass {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	switch {
	case mediaType == "text/plain":
		return MimeText
	case strings.HasPrefix(mediaType, "image/"):
		return MimeImage
	default:
		return MimeOther
	}
}

// Classify returns Inline for text/plain and image/* content shorter than
// InlineThreshold, and Reference for everything else.
func Classify(mimeType string, byteLength int64) Classification {
	if byteLength < 0 || byteLength >= InlineThreshold {
		return Reference
	}
	switch MimeClassOf(mimeType) {
	case MimeText, MimeImage:
		return Inline
	default:
		return Reference
	}
}

// ClassifyFile classifies an uploaded file by its declared type and length.
func ClassifyFile(f *UploadedFile) Classification {
	if f == nil {
		return Reference
	}
	return Classify(f.MimeType, f.ByteLength)
}
