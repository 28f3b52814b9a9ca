package attrs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TransformType names an external transform whose output can be cached.
type TransformType string

const (
	TransformWebpage          TransformType = "webpage_transform"
	TransformPDF              TransformType = "pdf"
	TransformImage            TransformType = "image"
	TransformWebSearchSerpAPI TransformType = "web_search_serp_api"
	TransformWebSearchSerper  TransformType = "web_search"
	TransformMapsSearch       TransformType = "map_search"
	TransformCustomAPI        TransformType = "custom_api"
	TransformOCR              TransformType = "ocr"
)

// TransformErrorType classifies a transform failure.
type TransformErrorType string

const (
	TransformErrInvalidInput      TransformErrorType = "INVALID_INPUT"
	TransformErrTransform         TransformErrorType = "ENRICHMENT_ERROR"
	TransformErrTimeout           TransformErrorType = "ENRICHMENT_TIMEOUT"
	TransformErrMaxRetriesReached TransformErrorType = "MAX_RETRIES_REACHED"
	TransformErrAPI               TransformErrorType = "ENRICHMENT_API_ERROR"
)

// TransformError is a failed transform on one row.
type TransformError struct {
	Type    TransformErrorType
	Message string
}

func (e *TransformError) Error() string { return string(e.Type) + ": " + e.Message }

// TransformCacheEntry is one cached transform invocation.
type TransformCacheEntry struct {
	Kind           TransformType  `json:"transform_name"`
	Params         map[string]any `json:"transform_params"`
	Input          map[string]any `json:"input"`
	Output         map[string]any `json:"output,omitempty"`
	CreationTimeMs int64          `json:"creation_time_ms"`
	TTLMs          int64          `json:"ttl_ms"` // < 0 never expires
}

// NewTransformCacheEntry returns an entry with no output and the given ttl.
// A negative ttl never expires.
func NewTransformCacheEntry(kind TransformType, params, input map[string]any, ttl time.Duration) *TransformCacheEntry {
	ttlMs := int64(-1)
	if ttl >= 0 {
		ttlMs = ttl.Milliseconds()
	}
	return &TransformCacheEntry{Kind: kind, Params: params, Input: input, CreationTimeMs: -1, TTLMs: ttlMs}
}

// ID is the hex sha256 of the canonical JSON of (kind, params, input).
// Object keys are sorted, so equal inputs give equal IDs.
func (e *TransformCacheEntry) ID() (string, error) {
	b, err := json.Marshal([]any{e.Kind, e.Params, e.Input})
	if err != nil {
		return "", fmt.Errorf("hash transform cache entry: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Expired reports whether the entry is older than its ttl at now.
func (e *TransformCacheEntry) Expired(now time.Time) bool {
	if e.TTLMs < 0 {
		return false
	}
	if e.CreationTimeMs < 0 {
		return true
	}
	return now.UnixMilli()-e.CreationTimeMs > e.TTLMs
}

// Remaining is the time left before expiry; 0 for entries that never expire.
func (e *TransformCacheEntry) Remaining(now time.Time) time.Duration {
	if e.TTLMs < 0 {
		return 0
	}
	left := e.CreationTimeMs + e.TTLMs - now.UnixMilli()
	if left <= 0 {
		return time.Millisecond
	}
	return time.Duration(left) * time.Millisecond
}

// TransformCache stores transform outputs by entry ID.
type TransformCache interface {
	// Lookup returns the cached output or ErrCacheMiss.
	Lookup(ctx context.Context, entry *TransformCacheEntry) (map[string]any, error)
	Store(ctx context.Context, entry *TransformCacheEntry) error
}

// MemoryTransformCache is an in-process TransformCache.
type MemoryTransformCache struct {
	mu      sync.Mutex
	entries map[string]TransformCacheEntry
	now     func() time.Time
}

func NewMemoryTransformCache() *MemoryTransformCache {
	return &MemoryTransformCache{entries: map[string]TransformCacheEntry{}, now: time.Now}
}

func (c *MemoryTransformCache) Lookup(_ context.Context, entry *TransformCacheEntry) (map[string]any, error) {
	id, err := entry.ID()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.entries[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	if cached.Expired(c.now()) {
		delete(c.entries, id)
		return nil, ErrCacheMiss
	}
	return cached.Output, nil
}

func (c *MemoryTransformCache) Store(_ context.Context, entry *TransformCacheEntry) error {
	id, err := entry.ID()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = *entry
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryTransformCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedTransform returns the cached output of entry or runs fn, attaches
// its output to entry and stores it. Failures of fn that are not already a
// *TransformError are reported as ENRICHMENT_ERROR. Backend failures are
// logged to log (slog.Default() when nil) and do not fail the call.
func CachedTransform(ctx context.Context, cache TransformCache, entry *TransformCacheEntry, log *slog.Logger, fn func(context.Context) (map[string]any, error)) (map[string]any, error) {
	if log == nil {
		log = slog.Default()
	}
	out, err := cache.Lookup(ctx, entry)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn("transform cache lookup failed", "kind", entry.Kind, "error", err)
	}

	out, err = fn(ctx)
	if err != nil {
		var te *TransformError
		if errors.As(err, &te) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransformError{Type: TransformErrTimeout, Message: err.Error()}
		}
		return nil, &TransformError{Type: TransformErrTransform, Message: err.Error()}
	}

	entry.Output = out
	entry.CreationTimeMs = time.Now().UnixMilli()
	if err := cache.Store(ctx, entry); err != nil {
		log.Warn("transform cache store failed", "kind", entry.Kind, "error", err)
	}
	return out, nil
}
