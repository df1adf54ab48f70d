package qrlink

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// KindPolicy lists what a file kind accepts. Accept entries starting with "."
// match the file name suffix, anything else matches the mime type prefix with
// "*" removed.
type KindPolicy struct {
	Accept   []string
	MaxBytes int64
}

const (
	MaxImageBytes    int64 = 5 * 1024 * 1024
	MaxVideoBytes    int64 = 50 * 1024 * 1024
	MaxDocumentBytes int64 = 10 * 1024 * 1024
)

// DefaultPolicies are the upload policies per file kind.
var DefaultPolicies = map[ContentKind]KindPolicy{
	KindImage:    {Accept: []string{"image/*"}, MaxBytes: MaxImageBytes},
	KindVideo:    {Accept: []string{"video/*"}, MaxBytes: MaxVideoBytes},
	KindDocument: {Accept: []string{".pdf", ".doc", ".docx", ".txt", ".rtf"}, MaxBytes: MaxDocumentBytes},
}

// Accepts reports whether a file with the given name and type matches the policy.
func (p KindPolicy) Accepts(name, mimeType string) bool {
	for _, accept := range p.Accept {
		accept = strings.TrimSpace(accept)
		if strings.HasPrefix(accept, ".") {
			if strings.HasSuffix(strings.ToLower(name), strings.ToLower(accept)) {
				return true
			}
			continue
		}
		if strings.HasPrefix(mimeType, strings.Replace(accept, "*", "", 1)) {
			return true
		}
	}
	return false
}

// ValidateUpload checks type and size for kind before any network call.
func ValidateUpload(policies map[ContentKind]KindPolicy, kind ContentKind, name, mimeType string, size int64) error {
	policy, ok := policies[kind]
	if !ok || !kind.IsFile() {
		return &ValidationError{Field: "contentType", Reason: fmt.Sprintf("%s does not accept file uploads", kind)}
	}
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "file name is required"}
	}
	if size < 0 {
		return &ValidationError{Field: "size", Reason: "negative size"}
	}
	if !policy.Accepts(name, mimeType) {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("invalid file type, please select a %s file", kind)}
	}
	if size > policy.MaxBytes {
		return &ValidationError{Field: "size", Reason: "file size too large, maximum size is " + FormatFileSize(policy.MaxBytes)}
	}
	return nil
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count like "1.5 KB" or "10 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}
