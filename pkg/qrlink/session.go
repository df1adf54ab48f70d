package qrlink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/qrlink/pkg/qrlink/contentkey"
)

// DefaultStoreTimeout bounds a background store.
const DefaultStoreTimeout = 2 * time.Minute

// FileInput is a file picked by the user.
type FileInput struct {
	Name     string
	MimeType string
	Data     []byte
}

// Session is the single-owner editing state: the active content kind, the
// typed URL and at most one uploaded file. A new selection replaces the
// previous one atomically; results of superseded uploads are discarded.
type Session struct {
	mu         sync.Mutex
	resolver   *Resolver
	storer     Storer
	keys       contentkey.Generator
	policies   map[ContentKind]KindPolicy
	timeout    time.Duration
	kind       ContentKind
	urlText    string
	file       *UploadedFile
	state      UploadState
	lastErr    error
	generation uint64
	done       chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithKeyGenerator sets the content key generator.
func WithKeyGenerator(g contentkey.Generator) SessionOption {
	return func(s *Session) {
		s.keys = g
	}
}

// WithPolicies overrides the per-kind upload policies.
func WithPolicies(p map[ContentKind]KindPolicy) SessionOption {
	return func(s *Session) {
		s.policies = p
	}
}

// WithStoreTimeout bounds each background store.
func WithStoreTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

// NewSession creates a session that starts on the URL kind.
func NewSession(resolver *Resolver, storer Storer, opts ...SessionOption) *Session {
	s := &Session{
		resolver: resolver,
		storer:   storer,
		keys:     contentkey.NewLegacyGenerator(),
		policies: DefaultPolicies,
		timeout:  DefaultStoreTimeout,
		kind:     KindURL,
		state:    UploadIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select switches the active kind. Switching discards the active file.
func (s *Session) Select(kind ContentKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == s.kind {
		return
	}
	s.kind = kind
	s.discardLocked()
}

// SetURL sets the typed URL text.
func (s *Session) SetURL(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlText = text
}

// Remove drops the active file.
func (s *Session) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

func (s *Session) discardLocked() {
	s.generation++
	s.file = nil
	s.state = UploadIdle
	s.lastErr = nil
	s.done = nil
}

// Upload validates in and makes it the active file, then stores it in the
// background. The returned file already carries its content key. Validation
// failures leave the active file untouched.
func (s *Session) Upload(ctx context.Context, in FileInput) (*UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevState := s.state
	s.state = UploadValidating
	if err := ValidateUpload(s.policies, s.kind, in.Name, in.MimeType, int64(len(in.Data))); err != nil {
		if s.file != nil {
			s.state = prevState
		} else {
			s.state = UploadFailed
			s.lastErr = err
		}
		return nil, err
	}

	file := &UploadedFile{
		DisplayName: in.Name,
		MimeType:    in.MimeType,
		ByteLength:  int64(len(in.Data)),
		Data:        EncodeDataURI(in.MimeType, in.Data),
		ContentKey:  s.keys.NewKey(),
	}

	s.generation++
	gen := s.generation
	done := make(chan struct{})
	s.file = file
	s.state = UploadUploading
	s.lastErr = nil
	s.done = done

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	active := *file
	go func() {
		defer cancel()
		defer close(done)
		result, err := s.storer.Store(storeCtx, active.ContentKey, active.DisplayName, active.MimeType, in.Data)
		s.complete(gen, result, err)
	}()

	copied := *file
	return &copied, nil
}

func (s *Session) complete(gen uint64, result *StoreResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.file == nil {
		slog.Debug("Discarding superseded store result", "generation", gen, "error", err)
		return
	}
	if err != nil {
		slog.Error("Failed to store upload", "content_key", s.file.ContentKey, "error", err)
		s.state = UploadFailed
		s.lastErr = err
		return
	}
	// Inline payloads never depend on the backend, so only references pick
	// up the stored URL.
	if result.URL != "" && ClassifyFile(s.file) == Reference {
		s.file = s.file.WithStoredURL(result.URL)
	}
	s.state = UploadReady
}

// State returns the upload state and the last upload error, if any.
func (s *Session) State() (UploadState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

// Kind returns the active content kind.
func (s *Session) Kind() ContentKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// File returns a copy of the active file, or nil.
func (s *Session) File() *UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	copied := *s.file
	return &copied
}

// Payload resolves the current selection. It never waits for a store.
func (s *Session) Payload() string {
	s.mu.Lock()
	kind, urlText := s.kind, s.urlText
	var file *UploadedFile
	if s.file != nil {
		copied := *s.file
		file = &copied
	}
	s.mu.Unlock()
	return s.resolver.Resolve(kind, urlText, file)
}

// Wait blocks until the current upload leaves UPLOADING or ctx is done.
func (s *Session) Wait(ctx context.Context) (UploadState, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return UploadUploading, ctx.Err()
		}
	}
	return s.State()
}
