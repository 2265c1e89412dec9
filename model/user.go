/*
DESCRIPTION
  User type and functions.

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

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ausocean/ranger/datastore"
)

// TypeUser is the name of the user collection.
const TypeUser = "users"

// User roles.
const (
	RoleRanger = "ranger"
	RoleAdmin  = "admin"
)

// User statuses.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// User represents a person permitted to submit observations. Users are
// keyed either by a stored UID or by UserKey of their email address.
type User struct {
	ID        string     `json:"id" firestore:"-"`
	UID       string     `json:"uid,omitempty" firestore:"uid,omitempty"`
	Email     string     `json:"email" firestore:"email"`
	Name      string     `json:"name,omitempty" firestore:"name,omitempty"`
	Role      string     `json:"role" firestore:"role"`
	Status    string     `json:"status" firestore:"status"`
	Created   time.Time  `json:"created" firestore:"created"`
	Updated   time.Time  `json:"updated" firestore:"updated"`
	LastLogin *time.Time `json:"last_login,omitempty" firestore:"last_login,omitempty"`
}

// Copy copies a user to dst, or returns a copy of the user when dst is nil.
func (user *User) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var u *User
	if dst == nil {
		u = new(User)
	} else {
		var ok bool
		u, ok = dst.(*User)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*u = *user
	if user.LastLogin != nil {
		t := *user.LastLogin
		u.LastLogin = &t
	}
	return u, nil
}

// Revoked returns true if the user has been revoked.
func (user *User) Revoked() bool {
	return user.Status == StatusRevoked
}

// ValidRole returns true if role is a known role.
func ValidRole(role string) bool {
	return role == RoleRanger || role == RoleAdmin
}

// ValidStatus returns true if status is a known status.
func ValidStatus(status string) bool {
	return status == StatusActive || status == StatusRevoked
}

// UserKey returns the key name derived from an email address:
// "email_" followed by the lower-cased local part with every character
// other than a-z and 0-9 replaced by an underscore.
func UserKey(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	var sb strings.Builder
	sb.WriteString("email_")
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates a user, failing with datastore.ErrEntityExists if
// a user with the same ID exists. An empty ID is derived from the
// email address.
func CreateUser(ctx context.Context, store datastore.Store, user *User) error {
	if user.ID == "" {
		user.ID = UserKey(user.Email)
	}
	if !validName(user.ID) {
		return datastore.ErrInvalidField
	}
	return store.Create(ctx, store.NameKey(TypeUser, user.ID), user)
}

// PutUser creates or replaces a user.
func PutUser(ctx context.Context, store datastore.Store, user *User) error {
	if user.ID == "" {
		user.ID = UserKey(user.Email)
	}
	if !validName(user.ID) {
		return datastore.ErrInvalidField
	}
	_, err := store.Put(ctx, store.NameKey(TypeUser, user.ID), user)
	return err
}

// GetUser returns a user by its key name.
func GetUser(ctx context.Context, store datastore.Store, id string) (*User, error) {
	if !validName(id) {
		return nil, datastore.ErrNoSuchEntity
	}
	var user User
	err := store.Get(ctx, store.NameKey(TypeUser, id), &user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return &user, nil
}

// GetUsers returns all users, ordered by email.
func GetUsers(ctx context.Context, store datastore.Store) ([]User, error) {
	q := store.NewQuery(TypeUser)
	q.Order("email")
	var users []User
	keys, err := store.GetAll(ctx, q, &users)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		users[i].ID = k.Name
	}
	return users, nil
}

// UpdateUser applies fn to the user with the given key name and
// returns the updated user.
func UpdateUser(ctx context.Context, store datastore.Store, id string, fn func(*User)) (*User, error) {
	if !validName(id) {
		return nil, datastore.ErrNoSuchEntity
	}
	var user User
	err := store.Update(ctx, store.NameKey(TypeUser, id), func(e datastore.Entity) {
		u, ok := e.(*User)
		if ok {
			fn(u)
		}
	}, &user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return &user, nil
}

// DeleteUser deletes the user with the given key name, returning
// datastore.ErrNoSuchEntity if there is none.
func DeleteUser(ctx context.Context, store datastore.Store, id string) error {
	_, err := GetUser(ctx, store, id)
	if err != nil {
		return err
	}
	return store.Delete(ctx, store.NameKey(TypeUser, id))
}

// FindUser resolves an opaque user identifier. It tries, in order, the
// identifier as a key name, the key derived by UserKey, and finally a
// scan of all users matching email (case-insensitive), uid (exact) or
// name (case-insensitive substring). It returns
// datastore.ErrNoSuchEntity when nothing matches.
func FindUser(ctx context.Context, store datastore.Store, ident string) (*User, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, datastore.ErrNoSuchEntity
	}

	for _, id := range []string{ident, UserKey(ident)} {
		user, err := GetUser(ctx, store, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, err
		}
	}

	users, err := GetUsers(ctx, store)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(ident)
	for i := range users {
		u := &users[i]
		switch {
		case strings.EqualFold(u.Email, ident),
			u.UID != "" && u.UID == ident,
			u.Name != "" && strings.Contains(strings.ToLower(u.Name), lower):
			return u, nil
		}
	}
	return nil, datastore.ErrNoSuchEntity
}

// maxKeySuffix bounds the numbered keys tried by FreeUserKey.
const maxKeySuffix = 100

// FindUserByEmail returns the user whose stored email address equals
// email, ignoring case. Unlike FindUser it never matches on a derived
// key alone, since distinct addresses can share a local part.
func FindUserByEmail(ctx context.Context, store datastore.Store, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, datastore.ErrNoSuchEntity
	}

	user, err := GetUser(ctx, store, UserKey(email))
	switch {
	case err == nil && strings.EqualFold(user.Email, email):
		return user, nil
	case err != nil && !errors.Is(err, datastore.ErrNoSuchEntity):
		return nil, err
	}

	users, err := GetUsers(ctx, store)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, datastore.ErrNoSuchEntity
}

// FreeUserKey returns UserKey(email) if no user has that key,
// otherwise the first unused of UserKey(email) suffixed with _2, _3 and
// so on.
func FreeUserKey(ctx context.Context, store datastore.Store, email string) (string, error) {
	base := UserKey(email)
	for i := 1; i <= maxKeySuffix; i++ {
		id := base
		if i > 1 {
			id = fmt.Sprintf("%s_%d", base, i)
		}
		_, err := GetUser(ctx, store, id)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", datastore.ErrEntityExists
}
