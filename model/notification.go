/*
DESCRIPTION
  Notification record type and functions.

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
	"time"

	"github.com/ausocean/ranger/datastore"
)

const typeNotification = "notifications"

// Notification records when a message of a given kind was last sent
// to a recipient.
type Notification struct {
	Key     string    `firestore:"key"`
	Updated time.Time `firestore:"updated"`
}

// Copy copies a notification to dst, or returns a copy of the
// notification when dst is nil.
func (n *Notification) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c *Notification
	if dst == nil {
		c = new(Notification)
	} else {
		var ok bool
		c, ok = dst.(*Notification)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*c = *n
	return c, nil
}

// notificationName maps a notification key, which may contain
// characters not permitted in key names, to a key name.
func notificationName(key string) string {
	b := []byte(key)
	for i, c := range b {
		if c == '/' {
			b[i] = '_'
		}
	}
	return string(b)
}

// GetNotification returns the notification record for key.
func GetNotification(ctx context.Context, store datastore.Store, key string) (*Notification, error) {
	var n Notification
	err := store.Get(ctx, store.NameKey(typeNotification, notificationName(key)), &n)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// PutNotification records that a notification for key was sent at t.
func PutNotification(ctx context.Context, store datastore.Store, key string, t time.Time) error {
	n := &Notification{Key: key, Updated: t}
	_, err := store.Put(ctx, store.NameKey(typeNotification, notificationName(key)), n)
	return err
}
