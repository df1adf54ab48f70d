package qrlink

import (
	"encoding/base64"
	"net/url"
	"strings"
	"unicode/utf8"
)

// DataURI is a parsed RFC 2397 data URI.
type DataURI struct {
	MediaType string
	Base64    bool
	Data      []byte
}

// ParseDataURI decodes "data:[<mediatype>][;base64],<data>".
func ParseDataURI(s string) (*DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, &DecodeError{Reason: "missing data: scheme"}
	}
	// Browsers emit a bare "data:" for empty files.
	if rest == "" {
		return &DataURI{}, nil
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, &DecodeError{Reason: "missing payload separator"}
	}

	uri := &DataURI{MediaType: meta}
	if mediaType, isBase64 := strings.CutSuffix(meta, ";base64"); isBase64 {
		uri.MediaType = mediaType
		uri.Base64 = true
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, &DecodeError{Reason: "invalid base64", Err: err}
		}
		uri.Data = data
		return uri, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid percent-encoding", Err: err}
	}
	uri.Data = []byte(unescaped)
	return uri, nil
}

// EncodeDataURI renders data as a base64 data URI.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeInlineText decodes a text data URI to its UTF-8 content.
func DecodeInlineText(dataURI string) (string, error) {
	uri, err := ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(uri.Data) {
		return "", &DecodeError{Reason: "payload is not valid UTF-8"}
	}
	return string(uri.Data), nil
}

// InlineImage returns the image data URI unchanged.
func InlineImage(dataURI string) string {
	return dataURI
}

// InlinePayload renders an Inline-classified file into its embeddable form.
func InlinePayload(f *UploadedFile) (string, error) {
	switch MimeClassOf(f.MimeType) {
	case MimeText:
		return DecodeInlineText(f.Data)
	case MimeImage:
		if !strings.HasPrefix(f.Data, "data:") {
			return "", &DecodeError{Reason: "image payload is not a data URI"}
		}
		return InlineImage(f.Data), nil
	default:
		return "", &DecodeError{Reason: "content type cannot be inlined: " + f.MimeType}
	}
}
