/*
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

package pin

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/ausocean/ranger/datastore"
)

// KV stores pending entries keyed by normalized email.
type KV interface {
	Get(ctx context.Context, email string) (*Entry, error)      // Returns ErrNotFound if absent.
	Put(ctx context.Context, e *Entry) error                    // Creates or replaces an entry.
	Delete(ctx context.Context, email string) error             // Deletes an entry, if present.
	DeleteBefore(ctx context.Context, t time.Time) (int, error) // Deletes entries issued before t.
}

// MemKV is a KV held in memory.
type MemKV struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemKV returns an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{entries: make(map[string]Entry)}
}

func (kv *MemKV) Get(ctx context.Context, email string) (*Entry, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.entries[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (kv *MemKV) Put(ctx context.Context, e *Entry) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.entries[e.Email] = *e
	return nil
}

func (kv *MemKV) Delete(ctx context.Context, email string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.entries, email)
	return nil
}

func (kv *MemKV) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	n := 0
	for k, e := range kv.entries {
		if e.Issued.Before(t) {
			delete(kv.entries, k)
			n++
		}
	}
	return n, nil
}

// typePIN is the collection holding pending entries.
const typePIN = "pins"

// StoreKV is a KV backed by a datastore, shared by every instance of
// the service.
type StoreKV struct {
	store datastore.Store
}

// NewStoreKV returns a StoreKV over store.
func NewStoreKV(store datastore.Store) *StoreKV {
	return &StoreKV{store: store}
}

// Copy implements datastore.Entity.
func (e *Entry) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c *Entry
	if dst == nil {
		c = new(Entry)
	} else {
		var ok bool
		c, ok = dst.(*Entry)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*c = *e
	c.Hash = append([]byte(nil), e.Hash...)
	return c, nil
}

func (kv *StoreKV) key(email string) *datastore.Key {
	return kv.store.NameKey(typePIN, url.PathEscape(email))
}

func (kv *StoreKV) Get(ctx context.Context, email string) (*Entry, error) {
	var e Entry
	err := kv.store.Get(ctx, kv.key(email), &e)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (kv *StoreKV) Put(ctx context.Context, e *Entry) error {
	_, err := kv.store.Put(ctx, kv.key(e.Email), e)
	return err
}

func (kv *StoreKV) Delete(ctx context.Context, email string) error {
	return kv.store.Delete(ctx, kv.key(email))
}

func (kv *StoreKV) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	q := kv.store.NewQuery(typePIN)
	err := q.Filter("issued <", t)
	if err != nil {
		return 0, err
	}
	var entries []Entry
	keys, err := kv.store.GetAll(ctx, q, &entries)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		err = kv.store.Delete(ctx, k)
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
