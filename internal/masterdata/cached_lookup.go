package masterdata

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/payables/internal/platform/cache"
)

type sourceError struct{ err error }

func (e sourceError) Error() string { return e.err.Error() }

type lookupEntry struct {
	ID *uuid.UUID `json:"id"`
}

// CachedLookup fronts a Lookup with Redis and coalesces concurrent misses.
// Cache failures fall back to the underlying lookup.
type CachedLookup struct {
	next   Lookup
	cache  *cache.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewCachedLookup wraps next.
func NewCachedLookup(next Lookup, c *cache.Cache, logger *slog.Logger) *CachedLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLookup{next: next, cache: c, logger: logger}
}

// FirstActive implements Lookup.
func (c *CachedLookup) FirstActive(ctx context.Context, kind LookupKind) (*uuid.UUID, error) {
	key, err := c.cache.BuildKey(ctx, "masterdata", "first_active", string(kind))
	if err != nil {
		c.logger.Warn("lookup cache key", slog.String("kind", string(kind)), slog.Any("error", err))
		return c.next.FirstActive(ctx, kind)
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		var entry lookupEntry
		loadErr := c.cache.FetchJSON(ctx, key, &entry, func(ctx context.Context) (any, error) {
			id, err := c.next.FirstActive(ctx, kind)
			if err != nil {
				return nil, sourceError{err}
			}
			return lookupEntry{ID: id}, nil
		})
		return entry, loadErr
	})
	var srcErr sourceError
	if errors.As(err, &srcErr) {
		return nil, srcErr.err
	}
	if err != nil {
		c.logger.Warn("lookup cache fetch", slog.String("kind", string(kind)), slog.Any("error", err))
		return c.next.FirstActive(ctx, kind)
	}
	return res.(lookupEntry).ID, nil
}

// Invalidate drops every cached default.
func (c *CachedLookup) Invalidate(ctx context.Context) error {
	return c.cache.Bump(ctx)
}
