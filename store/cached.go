package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tailored-agentic-units/chattutor/session"
)

const (
	DefaultCacheTTL     = time.Hour
	DefaultCacheCleanup = 10 * time.Minute
)

// Cached is a write-through cache in front of a SessionStore. Concurrent
// loads of the same id share one backend read. Callers receive clones, so
// cached states are never mutated in place.
type Cached struct {
	next  SessionStore
	cache *cache.Cache
	group singleflight.Group
}

// NewCached wraps next with an expiring cache.
func NewCached(next SessionStore, ttl, cleanup time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, cleanup),
	}
}

func (c *Cached) Save(ctx context.Context, st *session.State) (string, error) {
	loc, err := c.next.Save(ctx, st)
	if err != nil {
		c.cache.Delete(st.ID)
		return "", err
	}
	c.cache.Set(st.ID, restorable(st), cache.DefaultExpiration)
	return loc, nil
}

func (c *Cached) Load(ctx context.Context, id string) (*session.State, error) {
	if x, found := c.cache.Get(id); found {
		return x.(*session.State).Clone(), nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		st, err := c.next.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache.Set(id, st, cache.DefaultExpiration)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.State).Clone(), nil
}

func (c *Cached) SaveNote(ctx context.Context, st *session.State) (string, error) {
	return c.next.SaveNote(ctx, st)
}

func (c *Cached) List(ctx context.Context) ([]Info, error) {
	return c.next.List(ctx)
}

// Invalidate drops id from the cache.
func (c *Cached) Invalidate(id string) {
	c.cache.Delete(id)
}

// Len reports the number of cached sessions.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}

// restorable mirrors what a backend Load returns: turn-local fields reset.
func restorable(st *session.State) *session.State {
	c := st.Clone()
	c.Plan = nil
	c.ShouldExit = false
	c.Outputs = session.Outputs{}
	return c
}
