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
	"errors"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
)

// Option is a functional option supplied to Init.
type Option func(*Notifier) error

// WithSender sets the sender email address.
func WithSender(sender string) Option {
	return func(n *Notifier) error {
		if sender == "" {
			return errors.New("empty sender")
		}
		n.sender = sender
		return nil
	}
}

// WithRecipient adds a single recipient email address.
func WithRecipient(recipient string) Option {
	return WithRecipients([]string{recipient})
}

// WithRecipients adds multiple recipient email addresses. Blank
// entries are ignored.
func WithRecipients(recipients []string) Option {
	return func(n *Notifier) error {
		for _, r := range recipients {
			r = strings.TrimSpace(r)
			if r != "" {
				n.recipients = append(n.recipients, r)
			}
		}
		return nil
	}
}

// WithStore applies a TimeStore for notification persistence.
// See TimeStore.
func WithStore(store TimeStore) Option {
	return func(n *Notifier) error {
		n.store = store
		return nil
	}
}

// WithPeriod sets the minimum time between fire alerts to the same
// recipient. It only has an effect with WithStore.
func WithPeriod(period time.Duration) Option {
	return func(n *Notifier) error {
		if period < 0 {
			return errors.New("negative period")
		}
		n.period = period
		return nil
	}
}

// WithTransport sets the transport used to deliver messages.
func WithTransport(t Transport) Option {
	return func(n *Notifier) error {
		n.transport = t
		return nil
	}
}

// WithMapURL sets the base URL of map links.
func WithMapURL(url string) Option {
	return func(n *Notifier) error {
		n.mapURL = url
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(n *Notifier) error {
		if log == nil {
			return errors.New("nil logger")
		}
		n.log = log
		return nil
	}
}

// WithSecrets applies the secrets necessary for sending email,
// notably the public and private mail API keys. Without them, and
// without WithTransport, messages are only logged.
func WithSecrets(secrets map[string]string) Option {
	return func(n *Notifier) error {
		var ok bool
		n.publicKey, ok = secrets["mailjetPublicKey"]
		if !ok {
			return errors.New("mailjetPublicKey secret not found")
		}
		n.privateKey, ok = secrets["mailjetPrivateKey"]
		if !ok {
			return errors.New("mailjetPrivateKey secret not found")
		}
		return nil
	}
}

// ParseRecipients splits a comma-separated list of addresses.
func ParseRecipients(s string) []string {
	var rs []string
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			rs = append(rs, r)
		}
	}
	return rs
}
