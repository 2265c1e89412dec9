/*
DESCRIPTION
  Firestore implementation of Store.

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
	"fmt"
	"os"
	"reflect"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ausocean/ranger/gauth"
)

// CloudStore implements Store for Google Cloud Firestore.
type CloudStore struct {
	client *firestore.Client
}

// newCloudStore returns a new CloudStore, using the given URL to
// retrieve credentials and authenticate.
// The ID can be passed with an optional database name in the format
// <ID>/<Database_Name>, if there is no database name given, the default
// database will be used.
// To obtain credentials from a Google storage bucket, URL takes the
// form gs://bucket_name/creds. A URL without a scheme is interpreted
// as a file. If the environment variable <ID>_CREDENTIALS is defined
// it overrides the supplied URL.
func newCloudStore(ctx context.Context, id, url string) (*CloudStore, error) {
	db := firestore.DefaultDatabaseID
	parts := strings.Split(id, "/")
	switch {
	case len(parts) == 2 && parts[1] != "":
		db = parts[1]
	case len(parts) != 1:
		return nil, ErrInvalidStoreID
	}
	id = parts[0]
	if id == "" {
		return nil, ErrInvalidStoreID
	}

	ev := strings.ToUpper(id) + "_CREDENTIALS"
	if os.Getenv(ev) != "" {
		url = os.Getenv(ev)
	}

	var opts []option.ClientOption
	if url != "" {
		creds, err := readCredentials(ctx, url)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	client, err := firestore.NewClientWithDatabase(ctx, id, db, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create firestore client: %w", err)
	}
	return &CloudStore{client: client}, nil
}

// readCredentials reads credentials from a gs:// URL or a file.
func readCredentials(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "gs://") {
		return gauth.ReadGoogleStorageBucket(ctx, url)
	}
	creds, err := os.ReadFile(url)
	if err != nil {
		return nil, fmt.Errorf("cannot read credentials file %s: %w", url, err)
	}
	return creds, nil
}

// Close closes the underlying Firestore client.
func (s *CloudStore) Close() error {
	return s.client.Close()
}

// NameKey returns a name key given a kind and a (string) name.
func (s *CloudStore) NameKey(kind, name string) *Key {
	return &Key{Kind: kind, Name: name}
}

// IncompleteKey returns an incomplete key given a kind.
func (s *CloudStore) IncompleteKey(kind string) *Key {
	return &Key{Kind: kind}
}

// NewQuery returns a new CloudQuery over the collection named by kind.
func (s *CloudStore) NewQuery(kind string) Query {
	return &CloudQuery{kind: kind, query: s.client.Collection(kind).Query}
}

func (s *CloudStore) doc(key *Key) (*firestore.DocumentRef, error) {
	if key.Incomplete() {
		return nil, ErrIncompleteKey
	}
	return s.client.Collection(key.Kind).Doc(key.Name), nil
}

func (s *CloudStore) Get(ctx context.Context, key *Key, dst Entity) error {
	ref, err := s.doc(key)
	if err != nil {
		return err
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ErrNoSuchEntity
	}
	if err != nil {
		return err
	}
	return snap.DataTo(dst)
}

func (s *CloudStore) GetAll(ctx context.Context, query Query, dst interface{}) ([]*Key, error) {
	q, ok := query.(*CloudQuery)
	if !ok {
		return nil, errors.New("expected *CloudQuery type")
	}
	sv, err := sliceValue(dst)
	if err != nil {
		return nil, err
	}
	elemType := sv.Type().Elem()

	it := q.query.Documents(ctx)
	defer it.Stop()
	var keys []*Key
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return keys, err
		}
		ev := reflect.New(elemType)
		err = snap.DataTo(ev.Interface())
		if err != nil {
			return keys, fmt.Errorf("could not decode %s/%s: %w", q.kind, snap.Ref.ID, err)
		}
		sv.Set(reflect.Append(sv, ev.Elem()))
		keys = append(keys, &Key{Kind: q.kind, Name: snap.Ref.ID})
	}
	return keys, nil
}

func (s *CloudStore) Create(ctx context.Context, key *Key, src Entity) error {
	ref, err := s.doc(key)
	if err != nil {
		return err
	}
	_, err = ref.Create(ctx, src)
	if status.Code(err) == codes.AlreadyExists {
		return ErrEntityExists
	}
	return err
}

func (s *CloudStore) Put(ctx context.Context, key *Key, src Entity) (*Key, error) {
	var ref *firestore.DocumentRef
	if key.Incomplete() {
		ref = s.client.Collection(key.Kind).NewDoc()
	} else {
		ref = s.client.Collection(key.Kind).Doc(key.Name)
	}
	_, err := ref.Set(ctx, src)
	if err != nil {
		return nil, err
	}
	return &Key{Kind: key.Kind, Name: ref.ID}, nil
}

func (s *CloudStore) Update(ctx context.Context, key *Key, fn func(Entity), dst Entity) error {
	ref, err := s.doc(key)
	if err != nil {
		return err
	}
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNoSuchEntity
		}
		if err != nil {
			return err
		}
		err = snap.DataTo(dst)
		if err != nil {
			return err
		}
		fn(dst)
		return tx.Set(ref, dst)
	})
}

func (s *CloudStore) Delete(ctx context.Context, key *Key) error {
	ref, err := s.doc(key)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return err
}

// CloudQuery implements Query for Google Cloud Firestore.
type CloudQuery struct {
	kind  string
	query firestore.Query
}

// Filter filters a query by a "<field> <op>" string. Nil values are
// ignored.
func (q *CloudQuery) Filter(filterStr string, value interface{}) error {
	if value == nil {
		return nil
	}
	field, op, err := splitFilter(filterStr)
	if err != nil {
		return err
	}
	q.query = q.query.Where(field, op, value)
	return nil
}

// FilterField filters a query.
func (q *CloudQuery) FilterField(fieldName string, operator string, value interface{}) error {
	return q.Filter(fieldName+" "+operator, value)
}

func (q *CloudQuery) Order(fieldName string) {
	if strings.HasPrefix(fieldName, "-") {
		q.query = q.query.OrderBy(fieldName[1:], firestore.Desc)
		return
	}
	q.query = q.query.OrderBy(fieldName, firestore.Asc)
}

// Limit limits the number of results returned.
func (q *CloudQuery) Limit(limit int) {
	q.query = q.query.Limit(limit)
}

// Offset sets the number of documents to skip before returning results.
func (q *CloudQuery) Offset(offset int) {
	q.query = q.query.Offset(offset)
}

// sliceValue returns the slice pointed to by dst.
func sliceValue(dst interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return reflect.Value{}, ErrWrongType
	}
	return v.Elem(), nil
}
