/*
DESCRIPTION
  In-memory implementation of Store, used in standalone mode and tests.

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
	"cmp"
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore implements Store in memory. Entities are copied on the way
// in and on the way out so callers never share state with the store.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Entity // Kind -> name -> entity.
}

// NewMemStore returns a new, empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string]Entity)}
}

// NameKey returns a name key given a kind and a (string) name.
func (s *MemStore) NameKey(kind, name string) *Key {
	return &Key{Kind: kind, Name: name}
}

// IncompleteKey returns an incomplete key given a kind.
func (s *MemStore) IncompleteKey(kind string) *Key {
	return &Key{Kind: kind}
}

// NewQuery returns a new MemQuery over kind.
func (s *MemStore) NewQuery(kind string) Query {
	return &MemQuery{kind: kind}
}

func (s *MemStore) Get(ctx context.Context, key *Key, dst Entity) error {
	if key.Incomplete() {
		return ErrIncompleteKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key.Kind][key.Name]
	if !ok {
		return ErrNoSuchEntity
	}
	_, err := e.Copy(dst)
	return err
}

func (s *MemStore) GetAll(ctx context.Context, query Query, dst interface{}) ([]*Key, error) {
	q, ok := query.(*MemQuery)
	if !ok {
		return nil, errors.New("expected *MemQuery type")
	}
	sv, err := sliceValue(dst)
	if err != nil {
		return nil, err
	}
	elemType := sv.Type().Elem()

	s.mu.RLock()
	defer s.mu.RUnlock()

	type result struct {
		name string
		v    reflect.Value
	}
	var results []result
	for name, e := range s.data[q.kind] {
		v := reflect.ValueOf(e).Elem()
		if v.Type() != elemType {
			return nil, ErrWrongType
		}
		if q.match(v) {
			results = append(results, result{name, v})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
	for i := len(q.orders) - 1; i >= 0; i-- {
		o := q.orders[i]
		sort.SliceStable(results, func(i, j int) bool {
			c := compareFields(results[i].v, results[j].v, o.field)
			if o.desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.offset > 0 {
		results = results[min(q.offset, len(results)):]
	}
	if q.limit > 0 && q.limit < len(results) {
		results = results[:q.limit]
	}

	keys := make([]*Key, 0, len(results))
	for _, r := range results {
		e, err := s.data[q.kind][r.name].Copy(nil)
		if err != nil {
			return nil, err
		}
		sv.Set(reflect.Append(sv, reflect.ValueOf(e).Elem()))
		keys = append(keys, &Key{Kind: q.kind, Name: r.name})
	}
	return keys, nil
}

func (s *MemStore) Create(ctx context.Context, key *Key, src Entity) error {
	if key.Incomplete() {
		return ErrIncompleteKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key.Kind][key.Name]; ok {
		return ErrEntityExists
	}
	return s.put(key, src)
}

func (s *MemStore) Put(ctx context.Context, key *Key, src Entity) (*Key, error) {
	k := &Key{Kind: key.Kind, Name: key.Name}
	if k.Incomplete() {
		k.Name = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.put(k, src)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (s *MemStore) Update(ctx context.Context, key *Key, fn func(Entity), dst Entity) error {
	if key.Incomplete() {
		return ErrIncompleteKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key.Kind][key.Name]
	if !ok {
		return ErrNoSuchEntity
	}
	_, err := e.Copy(dst)
	if err != nil {
		return err
	}
	fn(dst)
	return s.put(key, dst)
}

func (s *MemStore) Delete(ctx context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[key.Kind], key.Name)
	return nil
}

// put stores a copy of src. The caller must hold the write lock.
func (s *MemStore) put(key *Key, src Entity) error {
	e, err := src.Copy(nil)
	if err != nil {
		return err
	}
	if reflect.ValueOf(e).Kind() != reflect.Ptr || reflect.ValueOf(e).Elem().Kind() != reflect.Struct {
		return ErrWrongType
	}
	if s.data[key.Kind] == nil {
		s.data[key.Kind] = make(map[string]Entity)
	}
	s.data[key.Kind][key.Name] = e
	return nil
}

// MemQuery implements Query for MemStore.
type MemQuery struct {
	kind    string
	filters []memFilter
	orders  []memOrder
	limit   int
	offset  int
}

type memFilter struct {
	field string
	op    string
	value reflect.Value
}

type memOrder struct {
	field string
	desc  bool
}

// Filter filters a query by a "<field> <op>" string. Nil values are
// ignored.
func (q *MemQuery) Filter(filterStr string, value interface{}) error {
	if value == nil {
		return nil
	}
	field, op, err := splitFilter(filterStr)
	if err != nil {
		return err
	}
	q.filters = append(q.filters, memFilter{field: field, op: op, value: indirect(reflect.ValueOf(value))})
	return nil
}

// FilterField filters a query.
func (q *MemQuery) FilterField(fieldName string, operator string, value interface{}) error {
	return q.Filter(fieldName+" "+operator, value)
}

func (q *MemQuery) Order(fieldName string) {
	if strings.HasPrefix(fieldName, "-") {
		q.orders = append(q.orders, memOrder{field: fieldName[1:], desc: true})
		return
	}
	q.orders = append(q.orders, memOrder{field: fieldName})
}

// Limit limits the number of results returned.
func (q *MemQuery) Limit(limit int) {
	q.limit = limit
}

// Offset sets the number of entities to skip before returning results.
func (q *MemQuery) Offset(offset int) {
	q.offset = offset
}

// match reports whether the struct v satisfies every filter. As with
// Firestore, entities missing a filtered field never match.
func (q *MemQuery) match(v reflect.Value) bool {
	for _, f := range q.filters {
		fv, ok := field(v, f.field)
		if !ok || !f.value.IsValid() {
			return false
		}
		c, ok := compare(fv, f.value)
		if !ok {
			return false
		}
		var m bool
		switch f.op {
		case "==":
			m = c == 0
		case "!=":
			m = c != 0
		case "<":
			m = c < 0
		case "<=":
			m = c <= 0
		case ">":
			m = c > 0
		case ">=":
			m = c >= 0
		}
		if !m {
			return false
		}
	}
	return true
}

// field returns the value of the field persisted under name, following
// pointers. Fields are named by their firestore tag, or by their Go
// name when untagged.
func field(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("firestore"), ",")
		if tag == "-" || (tag != name && (tag != "" || f.Name != name)) {
			continue
		}
		fv := indirect(v.Field(i))
		return fv, fv.IsValid()
	}
	return reflect.Value{}, false
}

// compareFields orders a and b by the named field, with missing
// values first.
func compareFields(a, b reflect.Value, name string) int {
	av, aok := field(a, name)
	bv, bok := field(b, name)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	c, _ := compare(av, bv)
	return c
}

// compare compares two values of compatible kinds. Numbers of any
// kind compare with one another.
func compare(a, b reflect.Value) (int, bool) {
	if at, ok := a.Interface().(time.Time); ok {
		bt, ok := b.Interface().(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	switch a.Kind() {
	case reflect.String:
		if b.Kind() != reflect.String {
			return 0, false
		}
		return strings.Compare(a.String(), b.String()), true
	case reflect.Bool:
		if b.Kind() != reflect.Bool {
			return 0, false
		}
		switch {
		case a.Bool() == b.Bool():
			return 0, true
		case b.Bool():
			return -1, true
		default:
			return 1, true
		}
	}
	af, aok := number(a)
	bf, bok := number(b)
	if !aok || !bok {
		return 0, false
	}
	return cmp.Compare(af, bf), true
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
