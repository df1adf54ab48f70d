package qrlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// DefaultCandidateLimit bounds the prefix listing per lookup.
const DefaultCandidateLimit = 10

// sharedLookupTimeout bounds a backend listing shared by concurrent callers.
const sharedLookupTimeout = 30 * time.Second

// LookupService resolves a content key to the stored object it names.
//
// The backend only supports prefix listing, so a key may match several
// objects. Canonical "{contentKey}.{name}" keys win over other prefix matches;
// among equals the backend order decides.
//
// An index hit that carries a URL is returned without asking the backend, so
// an object deleted out of band keeps resolving until its index entry expires.
// Index entries without a URL are only hints and always fall through to the
// backend listing, which mints any short-lived URL at lookup time.
type LookupService struct {
	store       BlobStore
	backendName string
	index       Index
	limit       int
	observer    Observer
	group       singleflight.Group
}

// LookupOption configures a LookupService.
type LookupOption func(*LookupService)

// WithCandidateLimit sets how many prefix matches are considered.
func WithCandidateLimit(limit int) LookupOption {
	return func(s *LookupService) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithLookupIndex consults idx before listing the backend.
func WithLookupIndex(idx Index) LookupOption {
	return func(s *LookupService) {
		s.index = idx
	}
}

// WithLookupObserver reports lookup telemetry to o.
func WithLookupObserver(o Observer) LookupOption {
	return func(s *LookupService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLookupBackendName labels errors with the backend name.
func WithLookupBackendName(name string) LookupOption {
	return func(s *LookupService) {
		s.backendName = name
	}
}

// NewLookupService creates a lookup service. A nil store behaves as unconfigured.
func NewLookupService(store BlobStore, opts ...LookupOption) *LookupService {
	s := &LookupService{
		store:       store,
		backendName: "default",
		limit:       DefaultCandidateLimit,
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type lookupResult struct {
	object  StorageObject
	outcome string
}

// Resolve returns the object stored for contentKey, or ErrNotFound.
func (s *LookupService) Resolve(ctx context.Context, contentKey string) (object *StorageObject, err error) {
	ctx, span := tracer.Start(ctx, "qrlink.Lookup")
	span.SetAttributes(attribute.String("qrlink.content_key", contentKey))
	start := time.Now()
	outcome := OutcomeError
	defer func() {
		s.observer.RecordLookup(time.Since(start), outcome)
		span.SetAttributes(attribute.String("qrlink.outcome", outcome))
		endSpan(span, err)
	}()

	if contentKey == "" {
		return nil, &ValidationError{Field: "fileId", Reason: "content key is required"}
	}
	if s.store == nil {
		return nil, &StorageError{Backend: s.backendName, Key: contentKey, Op: "lookup", Err: ErrStorageUnavailable}
	}

	if s.index != nil {
		indexed, err := s.index.Get(ctx, contentKey)
		switch {
		case err == nil && indexed.URL != "":
			outcome = OutcomeIndexHit
			return indexed, nil
		case err == nil:
			slog.Debug("Index entry has no URL, listing backend", "content_key", contentKey)
		case !errors.Is(err, ErrNotFound):
			slog.Warn("Index lookup failed, falling back to prefix search", "content_key", contentKey, "error", err)
		}
	}

	// The listing outlives any single caller; each caller only stops waiting.
	ch := s.group.DoChan(contentKey, func() (interface{}, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return s.resolvePrefix(listCtx, contentKey)
	})
	var shared singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case shared = <-ch:
	}
	if shared.Err != nil {
		if errors.Is(shared.Err, ErrNotFound) {
			outcome = OutcomeNotFound
		}
		return nil, shared.Err
	}

	res := shared.Val.(lookupResult)
	outcome = res.outcome
	found := res.object
	return &found, nil
}

func (s *LookupService) resolvePrefix(ctx context.Context, contentKey string) (lookupResult, error) {
	candidates, err := s.store.List(ctx, ListParams{Prefix: contentKey, Limit: s.limit})
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return lookupResult{}, &StorageError{Backend: s.backendName, Key: contentKey, Op: "lookup", Err: err}
		}
		return lookupResult{}, &StorageError{Backend: s.backendName, Key: contentKey, Op: "lookup", Err: fmt.Errorf("%w: %w", ErrLookupFailed, err)}
	}

	slog.Debug("Listed lookup candidates", "content_key", contentKey, "count", len(candidates))

	object, canonical, ok := SelectCandidate(contentKey, candidates)
	if !ok {
		return lookupResult{}, ErrNotFound
	}
	outcome := OutcomePrefix
	if canonical {
		outcome = OutcomeCanonical
	} else {
		slog.Warn("Resolved content key by bare prefix match", "content_key", contentKey, "pathname", object.Pathname)
	}
	return lookupResult{object: object, outcome: outcome}, nil
}

// SelectCandidate applies the disambiguation rules to a backend listing: the
// first canonical "{contentKey}." match, else the first prefix match. The
// second result reports whether the match was canonical.
func SelectCandidate(contentKey string, candidates []StorageObject) (StorageObject, bool, bool) {
	canonicalPrefix := contentKey + "."
	var fallback *StorageObject
	for i := range candidates {
		c := candidates[i]
		if strings.HasPrefix(c.Pathname, canonicalPrefix) {
			return c, true, true
		}
		if fallback == nil && strings.HasPrefix(c.Pathname, contentKey) {
			fallback = &candidates[i]
		}
	}
	if fallback != nil {
		return *fallback, false, true
	}
	return StorageObject{}, false, false
}
