package chat

import (
	"fmt"
	"time"
)

// DurationClass selects the provider-side cache window.
type DurationClass string

const (
	CacheShort DurationClass = "5m" // 5-minute ephemeral cache
	CacheLong  DurationClass = "1h" // 1-hour ephemeral cache
)

// Window returns the wall-clock validity window for the class.
func (d DurationClass) Window() time.Duration {
	if d == CacheLong {
		return time.Hour
	}
	return 5 * time.Minute
}

// TTL returns the wire value for the cache_control annotation.
func (d DurationClass) TTL() string { return string(d) }

// ParseDurationClass accepts "5m"/"1h" and the bare minute forms "5"/"60".
func ParseDurationClass(s string) (DurationClass, error) {
	switch s {
	case "5m", "5", "":
		return CacheShort, nil
	case "1h", "60":
		return CacheLong, nil
	}
	return "", fmt.Errorf("unknown cache duration %q (want 5m or 1h)", s)
}

// CacheState records the current cache boundary. The boundary is a position
// in the log, not a content hash: the provider keys on a byte-identical
// prefix, so appending after the boundary is cheap while rewriting before it
// invalidates the cache implicitly. The tracker never tries to detect that.
type CacheState struct {
	BoundaryIndex  int           `json:"boundary_index"`
	CreatedAt      time.Time     `json:"created_at"`
	Duration       DurationClass `json:"duration_class"`
	CreationTokens int           `json:"creation_token_count"`
	LastHitTokens  int           `json:"last_hit_token_count"`
	LastHitAt      time.Time     `json:"last_hit_at,omitzero"`
}

// CacheStatusKind is the derived lifecycle state of the cache boundary.
type CacheStatusKind int

const (
	CacheAbsent CacheStatusKind = iota
	CacheActive
	CacheStale
)

func (k CacheStatusKind) String() string {
	switch k {
	case CacheActive:
		return "active"
	case CacheStale:
		return "stale"
	}
	return "absent"
}

// CacheStatus is a point-in-time snapshot derived from CacheState and the
// clock. Staleness is never stored.
type CacheStatus struct {
	Kind           CacheStatusKind
	Age            time.Duration
	Duration       DurationClass
	CachedMessages int
	CreationTokens int
	LastHitTokens  int
}

// SetCacheBoundary marks the last message in the log as the cache boundary,
// clearing any previous marker. Token counts stay unknown until the next
// response reports them. Returns the boundary index.
func (c *Conversation) SetCacheBoundary(d DurationClass, now time.Time) (int, error) {
	if len(c.Messages) == 0 {
		return 0, ErrEmptyConversation
	}
	c.clearCacheMarker()
	idx := len(c.Messages) - 1
	c.Messages[idx].CacheControl = &CacheControl{Type: "ephemeral", TTL: d.TTL()}
	c.Cache = &CacheState{
		BoundaryIndex: idx,
		CreatedAt:     now,
		Duration:      d,
	}
	return idx, nil
}

// ClearCacheBoundary removes the boundary and its marker.
func (c *Conversation) ClearCacheBoundary() {
	c.clearCacheMarker()
	c.Cache = nil
}

func (c *Conversation) clearCacheMarker() {
	if c.Cache == nil {
		return
	}
	if i := c.Cache.BoundaryIndex; i >= 0 && i < len(c.Messages) {
		c.Messages[i].CacheControl = nil
	}
}

// CacheStatus derives the boundary's lifecycle state at the given instant.
// The boundary is stale once its creation time is older than the duration
// class window; the last hit time plays no part in staleness.
func (c *Conversation) CacheStatus(now time.Time) CacheStatus {
	if c.Cache == nil {
		return CacheStatus{Kind: CacheAbsent}
	}
	s := CacheStatus{
		Kind:           CacheActive,
		Age:            now.Sub(c.Cache.CreatedAt),
		Duration:       c.Cache.Duration,
		CachedMessages: c.Cache.BoundaryIndex + 1,
		CreationTokens: c.Cache.CreationTokens,
		LastHitTokens:  c.Cache.LastHitTokens,
	}
	if s.Age > c.Cache.Duration.Window() {
		s.Kind = CacheStale
	}
	return s
}

// RecordCacheHit folds cache usage from a completed turn into the tracker.
// No-op when no boundary is set or the response reports no cache activity.
func (c *Conversation) RecordCacheHit(u Usage, now time.Time) {
	if c.Cache == nil {
		return
	}
	if u.CacheCreationTokens > 0 {
		c.Cache.CreationTokens = u.CacheCreationTokens
		c.Cache.LastHitAt = now
	}
	if u.CacheReadTokens > 0 {
		c.Cache.LastHitTokens = u.CacheReadTokens
		c.Cache.LastHitAt = now
	}
}
