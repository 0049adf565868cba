package remotestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"mtreport-backend/internal/assert"
	"mtreport-backend/internal/telemetry"

	"github.com/antzucaro/matchr"
	"github.com/google/uuid"
)

var ErrIdentityCacheUnavailable = errors.New("restaurant identity cache unavailable")

const (
	report_identity_load    = "identity_cache.load"
	report_identity_resolve = "identity_cache.resolve"
)

// Restaurant is a row of the remote master_restaurant table.
type Restaurant struct {
	ID      uuid.UUID
	Name    string
	OrgCode string
}

// LoadFunc fetches every restaurant known to the remote store.
type LoadFunc func(ctx context.Context) ([]Restaurant, error)

// IdentityCache maps org codes and display names to remote restaurant ids.
// It is filled once on first use and only refreshed through Invalidate or
// Reload, lookups and refreshes never run concurrently.
type IdentityCache struct {
	load    LoadFunc
	aliases map[string]string
	reverse map[string]string
	tel     telemetry.API

	mutex    sync.Mutex
	loaded   bool
	byCode   map[string]uuid.UUID
	byName   map[string]uuid.UUID
	names    []string
	misses   int
	reported map[string]struct{}
}

// NewIdentityCache creates a cache. aliases maps report store names to the
// canonical names stored remotely.
func NewIdentityCache(load LoadFunc, aliases map[string]string, tel telemetry.API) *IdentityCache {
	assert.NotNil(load, "load")
	assert.NotNil(tel, "telemetry")

	// several report spellings may share one canonical name, the smallest
	// one becomes the local name so the choice never depends on map order
	reverse := map[string]string{}
	for source, canonical := range aliases {
		current, ok := reverse[canonical]
		if !ok || source < current {
			reverse[canonical] = source
		}
	}

	return &IdentityCache{
		load:     load,
		aliases:  aliases,
		reverse:  reverse,
		tel:      tel,
		reported: map[string]struct{}{},
	}
}

func (c *IdentityCache) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	restaurants, err := c.load(ctx)
	if err != nil {
		c.tel.ReportBroken(report_identity_load, err)
		return fmt.Errorf("%w: %w", ErrIdentityCacheUnavailable, err)
	}

	c.byCode = map[string]uuid.UUID{}
	c.byName = map[string]uuid.UUID{}
	c.names = c.names[:0]
	for _, r := range restaurants {
		if r.OrgCode != "" {
			c.byCode[r.OrgCode] = r.ID
		}
		if r.Name != "" {
			if _, dup := c.byName[r.Name]; !dup {
				c.names = append(c.names, r.Name)
			}
			c.byName[r.Name] = r.ID
		}
	}
	slices.Sort(c.names)
	c.loaded = true
	c.tel.ReportCount("identity_cache.size", int64(len(restaurants)))
	return nil
}

// Load fills the cache if it has not been filled yet.
func (c *IdentityCache) Load(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ensureLoaded(ctx)
}

// Invalidate drops the cached tables, the next lookup reloads them.
func (c *IdentityCache) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.loaded = false
}

// Reload refetches the cached tables immediately.
func (c *IdentityCache) Reload(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.loaded = false
	return c.ensureLoaded(ctx)
}

func (c *IdentityCache) miss(identity string) {
	c.misses++
	if _, ok := c.reported[identity]; ok {
		return
	}
	c.reported[identity] = struct{}{}
	c.tel.ReportWarning(report_identity_resolve, identity)
}

// ResolveCode returns the restaurant id registered for an org code.
func (c *IdentityCache) ResolveCode(ctx context.Context, code string) (uuid.UUID, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return uuid.Nil, false, err
	}
	id, ok := c.byCode[code]
	if !ok {
		c.miss(code)
	}
	return id, ok, nil
}

// ResolveName returns the restaurant id for a display name, trying the alias
// table, then an exact name match, then names containing or contained in it.
func (c *IdentityCache) ResolveName(ctx context.Context, name string) (uuid.UUID, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.ensureLoaded(ctx); err != nil {
		return uuid.Nil, false, err
	}

	if canonical, ok := c.aliases[name]; ok {
		if id, ok := c.byName[canonical]; ok {
			return id, true, nil
		}
	}
	if id, ok := c.byName[name]; ok {
		return id, true, nil
	}
	if match, ok := c.bestContaining(name); ok {
		return c.byName[match], true, nil
	}

	c.miss(name)
	return uuid.Nil, false, nil
}

// bestContaining picks among the cached names containing name or contained
// in it the one most similar to name, ties go to the smallest name.
func (c *IdentityCache) bestContaining(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	best := ""
	bestScore := -1.0
	for _, candidate := range c.names {
		if !strings.Contains(candidate, name) && !strings.Contains(name, candidate) {
			continue
		}
		score := matchr.JaroWinkler(name, candidate, false)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, bestScore >= 0
}

// LocalName translates a canonical remote name back to the name the reports
// print, names without an alias are returned unchanged.
func (c *IdentityCache) LocalName(remote string) string {
	if source, ok := c.reverse[remote]; ok {
		return source
	}
	return remote
}

// Misses is the number of lookups that resolved nothing.
func (c *IdentityCache) Misses() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.misses
}
