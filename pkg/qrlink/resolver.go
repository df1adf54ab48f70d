package qrlink

import (
	"fmt"
	"net/url"
	"strings"
)

// Source names the branch of the decision table that produced a payload.
type Source string

const (
	SourceURL         Source = "url"
	SourceDefault     Source = "default"
	SourceStored      Source = "stored"
	SourceInline      Source = "inline"
	SourceLocator     Source = "locator"
	SourcePlaceholder Source = "placeholder"
)

// Resolution is a resolved payload together with how it was derived.
type Resolution struct {
	Payload        string         `json:"payload"`
	Source         Source         `json:"source"`
	Classification Classification `json:"classification,omitempty"`
}

// Resolver produces the barcode payload from the current selection. It only
// reads fields that are already available and never blocks.
type Resolver struct {
	baseURL string
}

// NewResolver creates a resolver whose default payload and locator URLs are
// rooted at baseURL.
func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// BaseURL returns the process default base address.
func (r *Resolver) BaseURL() string {
	return r.baseURL
}

// LocatorURL points at the file gateway for contentKey.
func (r *Resolver) LocatorURL(contentKey string) string {
	return r.baseURL + "/file/" + url.PathEscape(contentKey)
}

// Resolve returns the payload string for the selection.
func (r *Resolver) Resolve(kind ContentKind, urlText string, file *UploadedFile) string {
	return r.Explain(kind, urlText, file).Payload
}

// Explain resolves the selection and reports which rule applied.
func (r *Resolver) Explain(kind ContentKind, urlText string, file *UploadedFile) Resolution {
	if kind == KindURL || !kind.IsFile() {
		if urlText != "" {
			return Resolution{Payload: urlText, Source: SourceURL}
		}
		return Resolution{Payload: r.baseURL, Source: SourceDefault}
	}
	if file == nil {
		return Resolution{Payload: r.baseURL, Source: SourceDefault}
	}

	class := ClassifyFile(file)
	if file.StoredURL != "" {
		return Resolution{Payload: file.StoredURL, Source: SourceStored, Classification: class}
	}

	if class == Inline {
		payload, err := InlinePayload(file)
		if err == nil {
			return Resolution{Payload: payload, Source: SourceInline, Classification: Inline}
		}
		// Undecodable inline content is treated as a reference.
		class = Reference
	}

	if file.ContentKey != "" {
		return Resolution{Payload: r.LocatorURL(file.ContentKey), Source: SourceLocator, Classification: class}
	}
	return Resolution{Payload: r.placeholder(file), Source: SourcePlaceholder, Classification: class}
}

func (r *Resolver) placeholder(file *UploadedFile) string {
	return fmt.Sprintf("File: %s (%.1fKB)\n\nProcessing file upload...\n\nVisit: %s",
		file.DisplayName, float64(file.ByteLength)/1024, r.baseURL)
}
