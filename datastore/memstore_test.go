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

package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	score := func(f float64) *float64 { return &f }
	entities := []*nameValue{
		{Name: "a", Value: "x", Score: score(1.5), Rank: 3, When: base},
		{Name: "b", Value: "y", Rank: 1, When: base.Add(time.Hour)},
		{Name: "c", Value: "x", Score: score(-2), Rank: 2, When: base.Add(2 * time.Hour)},
		{Name: "d", Value: "z", Score: score(0), Rank: 2, When: base.Add(-time.Hour)},
	}
	for _, e := range entities {
		_, err := s.Put(ctx, s.NameKey("NameValue", e.Name), e)
		require.NoError(t, err)
	}
}

func names(vs []nameValue) []string {
	var ns []string
	for _, v := range vs {
		ns = append(ns, v.Name)
	}
	return ns
}

func TestMemStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	seed(t, s)

	tests := []struct {
		name  string
		setup func(q Query) error
		want  []string
	}{
		{
			name:  "all",
			setup: func(q Query) error { return nil },
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:  "equality",
			setup: func(q Query) error { return q.Filter("value =", "x") },
			want:  []string{"a", "c"},
		},
		{
			name:  "missing field never matches",
			setup: func(q Query) error { return q.FilterField("score", ">=", -10) },
			want:  []string{"a", "c", "d"},
		},
		{
			name:  "nil value ignored",
			setup: func(q Query) error { return q.Filter("value =", nil) },
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name: "order descending by time",
			setup: func(q Query) error {
				q.Order("-When")
				return nil
			},
			want: []string{"c", "b", "a", "d"},
		},
		{
			name: "multiple orders",
			setup: func(q Query) error {
				q.Order("rank")
				q.Order("-name")
				return nil
			},
			want: []string{"b", "d", "c", "a"},
		},
		{
			name: "limit and offset",
			setup: func(q Query) error {
				q.Order("name")
				q.Offset(1)
				q.Limit(2)
				return nil
			},
			want: []string{"b", "c"},
		},
		{
			name: "offset beyond end",
			setup: func(q Query) error {
				q.Offset(10)
				return nil
			},
			want: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := s.NewQuery("NameValue")
			require.NoError(t, test.setup(q))
			var got []nameValue
			keys, err := s.GetAll(ctx, q, &got)
			require.NoError(t, err)
			assert.Equal(t, test.want, names(got))
			assert.Len(t, keys, len(got))
			for i := range keys {
				assert.Equal(t, got[i].Name, keys[i].Name)
			}
		})
	}
}

func TestMemStoreFilterErrors(t *testing.T) {
	q := NewMemStore().NewQuery("NameValue")
	assert.ErrorIs(t, q.Filter("value", "x"), ErrInvalidFilter)
	assert.ErrorIs(t, q.Filter("value ~", "x"), ErrInvalidFilter)
}

func TestMemStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	k, err := s.Put(ctx, s.IncompleteKey("NameValue"), &nameValue{Name: "a"})
	require.NoError(t, err)
	assert.False(t, k.Incomplete())

	err = s.Create(ctx, k, &nameValue{Name: "dup"})
	assert.ErrorIs(t, err, ErrEntityExists)

	// Mutating the source after storing must not change the stored copy.
	src := &nameValue{Name: "b", Value: "before"}
	kb := s.NameKey("NameValue", "b")
	require.NoError(t, s.Create(ctx, kb, src))
	src.Value = "after"
	var got nameValue
	require.NoError(t, s.Get(ctx, kb, &got))
	assert.Equal(t, "before", got.Value)

	err = s.Update(ctx, kb, func(e Entity) { e.(*nameValue).Value = "updated" }, &nameValue{})
	require.NoError(t, err)
	require.NoError(t, s.Get(ctx, kb, &got))
	assert.Equal(t, "updated", got.Value)

	err = s.Update(ctx, s.NameKey("NameValue", "missing"), func(Entity) {}, &nameValue{})
	assert.True(t, errors.Is(err, ErrNoSuchEntity))

	require.NoError(t, s.Delete(ctx, kb))
	assert.ErrorIs(t, s.Get(ctx, kb, &got), ErrNoSuchEntity)
	assert.ErrorIs(t, s.Get(ctx, s.IncompleteKey("NameValue"), &got), ErrIncompleteKey)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), "memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	_, err = NewStore(context.Background(), "file", "", "")
	assert.Error(t, err)
}
