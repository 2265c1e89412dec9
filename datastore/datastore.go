/*
DESCRIPTION
  Document store abstraction used by ranger.

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

// Package datastore provides a small document store interface with a
// Firestore implementation (CloudStore) and an in-memory
// implementation (MemStore). Entities are plain structs whose
// persisted property names are given by their firestore struct tags.
// Each kind corresponds to a Firestore collection.
package datastore

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by stores.
var (
	ErrNoSuchEntity   = errors.New("no such entity")
	ErrEntityExists   = errors.New("entity exists")
	ErrWrongType      = errors.New("wrong type")
	ErrInvalidStoreID = errors.New("invalid store ID")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrInvalidField   = errors.New("invalid field")
	ErrIncompleteKey  = errors.New("incomplete key")
)

// Key identifies an entity by kind and name. A key without a name is
// incomplete; storing an entity under an incomplete key assigns it a
// name.
type Key struct {
	Kind string
	Name string
}

// Incomplete returns true if the key has no name.
func (k *Key) Incomplete() bool {
	return k.Name == ""
}

// String returns kind/name.
func (k *Key) String() string {
	return k.Kind + "/" + k.Name
}

// Entity is implemented by every stored type.
type Entity interface {
	// Copy copies the entity to dst, or returns a copy of the entity
	// when dst is nil.
	Copy(dst Entity) (Entity, error)
}

// Store defines the operations common to all stores.
type Store interface {
	NameKey(kind, name string) *Key                                          // Returns a named key.
	IncompleteKey(kind string) *Key                                          // Returns an incomplete key.
	NewQuery(kind string) Query                                              // Returns a new query over kind.
	Get(ctx context.Context, key *Key, dst Entity) error                     // Loads one entity.
	GetAll(ctx context.Context, q Query, dst interface{}) ([]*Key, error)    // Loads all entities matching q into dst, a pointer to a slice of structs.
	Create(ctx context.Context, key *Key, src Entity) error                  // Stores src, failing with ErrEntityExists if present.
	Put(ctx context.Context, key *Key, src Entity) (*Key, error)             // Creates or replaces src, returning its complete key.
	Update(ctx context.Context, key *Key, fn func(Entity), dst Entity) error // Atomically loads, modifies and stores.
	Delete(ctx context.Context, key *Key) error                              // Deletes one entity.
}

// Query defines the query methods common to all stores.
type Query interface {
	Filter(filterStr string, value interface{}) error                // Filter with "<field> <op>", e.g. "email =".
	FilterField(fieldName, operator string, value interface{}) error // Filter by field, operator and value.
	Order(fieldName string)                                          // Order by field, prefix with "-" for descending.
	Limit(limit int)                                                 // Limit the number of results.
	Offset(offset int)                                               // Skip results.
}

// NewStore returns a new store of the given kind, either "cloud" or
// "memory". For cloud stores, id is the Google Cloud project ID
// optionally followed by /<database> and url locates credentials.
// See newCloudStore. Both arguments are ignored for memory stores.
func NewStore(ctx context.Context, kind, id, url string) (Store, error) {
	switch kind {
	case "cloud":
		return newCloudStore(ctx, id, url)
	case "memory":
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store kind %q", kind)
	}
}

// splitFilter splits a "<field> <op>" filter string.
func splitFilter(filterStr string) (string, string, error) {
	var field, op string
	n, _ := fmt.Sscanf(filterStr, "%s %s", &field, &op)
	if n != 2 {
		return "", "", ErrInvalidFilter
	}
	if op == "=" {
		op = "=="
	}
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return field, op, nil
	default:
		return "", "", ErrInvalidFilter
	}
}
