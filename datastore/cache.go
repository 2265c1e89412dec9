/*
DESCRIPTION
  Entity caching for stores.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package datastore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache defines the caching interface used by CachedStore.
type Cache interface {
	Set(key *Key, src Entity) error // Set adds or updates a value to the cache.
	Get(key *Key, dst Entity) error // Get retrieves a value from the cache, or returns ErrCacheMiss.
	Delete(key *Key)                // Delete removes a value from the cache.
	Reset()                         // Reset resets (clears) the cache.
}

// EntityCache, which implements Cache, represents a cache for holding
// entities indexed by key. Entries optionally expire.
type EntityCache struct {
	data  map[Key]cacheEntry
	ttl   time.Duration
	now   func() time.Time
	mutex sync.RWMutex
}

type cacheEntry struct {
	entity  Entity
	expires time.Time
}

// ErrCacheMiss is the type of error returned when a key is not found in the cache.
type ErrCacheMiss struct {
	key Key
}

// Error returns an error string for errors of type ErrCacheMiss.
func (e ErrCacheMiss) Error() string {
	return fmt.Sprintf("cache miss for key: %v", e.key)
}

// CacheOption configures an EntityCache.
type CacheOption func(*EntityCache)

// WithTTL sets how long entries live. A zero TTL means forever.
func WithTTL(d time.Duration) CacheOption {
	return func(c *EntityCache) { c.ttl = d }
}

// NewEntityCache returns a new EntityCache.
func NewEntityCache(opts ...CacheOption) *EntityCache {
	c := &EntityCache{data: make(map[Key]cacheEntry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set adds or updates a value to the cache.
func (c *EntityCache) Set(key *Key, src Entity) error {
	v, err := src.Copy(nil)
	if err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.data[*key] = cacheEntry{entity: v, expires: exp}
	return nil
}

// Get retrieves a value from the cache, or returns ErrCacheMiss.
// Expired entries are misses.
func (c *EntityCache) Get(key *Key, dst Entity) error {
	c.mutex.RLock()
	e, ok := c.data[*key]
	c.mutex.RUnlock()
	if !ok {
		return ErrCacheMiss{*key}
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.Delete(key)
		return ErrCacheMiss{*key}
	}
	_, err := e.entity.Copy(dst)
	return err
}

// Delete removes a value from the cache.
func (c *EntityCache) Delete(key *Key) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data, *key)
}

// Reset resets (clears) the cache.
func (c *EntityCache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = map[Key]cacheEntry{}
}

// CachedStore wraps a Store and caches entities of selected kinds.
// Writes through the CachedStore keep the cache current; writes by
// other processes are seen once the cached entry expires.
type CachedStore struct {
	Store
	caches map[string]Cache
}

// NewCachedStore returns s wrapped with a cache per kind, each created
// with the given options.
func NewCachedStore(s Store, kinds []string, opts ...CacheOption) *CachedStore {
	cs := &CachedStore{Store: s, caches: make(map[string]Cache)}
	for _, k := range kinds {
		cs.caches[k] = NewEntityCache(opts...)
	}
	return cs
}

// Cache returns the cache for kind, or nil if kind is not cached.
func (s *CachedStore) Cache(kind string) Cache {
	return s.caches[kind]
}

func (s *CachedStore) Get(ctx context.Context, key *Key, dst Entity) error {
	c := s.caches[key.Kind]
	if c != nil && c.Get(key, dst) == nil {
		return nil
	}
	err := s.Store.Get(ctx, key, dst)
	if err == nil && c != nil {
		c.Set(key, dst)
	}
	return err
}

func (s *CachedStore) Create(ctx context.Context, key *Key, src Entity) error {
	err := s.Store.Create(ctx, key, src)
	if err == nil {
		s.set(key, src)
	}
	return err
}

func (s *CachedStore) Put(ctx context.Context, key *Key, src Entity) (*Key, error) {
	k, err := s.Store.Put(ctx, key, src)
	if err == nil {
		s.set(k, src)
	}
	return k, err
}

func (s *CachedStore) Update(ctx context.Context, key *Key, fn func(Entity), dst Entity) error {
	err := s.Store.Update(ctx, key, fn, dst)
	if err != nil {
		s.delete(key)
		return err
	}
	s.set(key, dst)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, key *Key) error {
	s.delete(key)
	return s.Store.Delete(ctx, key)
}

func (s *CachedStore) set(key *Key, src Entity) {
	if c := s.caches[key.Kind]; c != nil {
		if c.Set(key, src) != nil {
			c.Delete(key)
		}
	}
}

func (s *CachedStore) delete(key *Key) {
	if c := s.caches[key.Kind]; c != nil {
		c.Delete(key)
	}
}
