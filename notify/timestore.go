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

package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/model"
)

// TimeStore is an interface for notification persistence.
type TimeStore interface {
	Sendable(ctx context.Context, period time.Duration, key string) (bool, error) // Returns true if a message is sendable.
	Sent(ctx context.Context, key string) error                                   // Records the time a message was sent.
}

// timeStore implements a TimeStore that uses a datastore for persistence.
type timeStore struct {
	store datastore.Store
	now   func() time.Time
}

// NewTimeStore returns a TimeStore that uses a datastore for
// notification persistence.
func NewTimeStore(store datastore.Store) TimeStore {
	return &timeStore{store: store, now: time.Now}
}

// Sendable returns true either if (1) the specified period has
// elapsed since the last time a message with the given key was sent
// or (2) a message is being sent for the first time. Store errors
// permit sending.
func (ts *timeStore) Sendable(ctx context.Context, period time.Duration, key string) (bool, error) {
	n, err := model.GetNotification(ctx, ts.store, key)
	switch {
	case err == nil:
		return ts.now().Sub(n.Updated) >= period, nil
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return true, nil // No record of sending this kind of message.
	default:
		return true, err // Unexpected datastore error.
	}
}

// Sent records the time that a message with the given key was sent.
func (ts *timeStore) Sent(ctx context.Context, key string) error {
	return model.PutNotification(ctx, ts.store, key, ts.now())
}
