/*
DESCRIPTION
  Email notification of poaching incidents and fire detections.

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

// Package notify sends email notifications. A Notifier never returns
// an error to its caller; the outcome of each delivery is reported in
// a Summary instead.
package notify

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/ranger/firms"
	"github.com/ausocean/ranger/model"
)

const (
	defaultSender = "alerts@ranger.ausocean.org"
	defaultMapURL = "https://www.google.com/maps"
	defaultPeriod = 60 * time.Minute
	maxFireLines  = 50
)

// Notification kinds, used as TimeStore key prefixes.
const (
	KindIncident = "incident"
	KindFire     = "fire"
)

// Result is the outcome of a delivery to one recipient.
type Result struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Summary aggregates the results of a notification. Success is true
// when at least one recipient succeeded.
type Summary struct {
	Success bool     `json:"success"`
	Results []Result `json:"results"`
	Error   string   `json:"error,omitempty"`
}

// Notifier sends notifications to a fixed list of recipients.
type Notifier struct {
	mutex      sync.Mutex     // Lock access.
	sender     string         // Sender email address.
	recipients []string       // Recipient email addresses.
	store      TimeStore      // Notification store (optional).
	period     time.Duration  // Minimum time between repeated fire alerts.
	transport  Transport      // Delivery mechanism, or nil to only log.
	mapURL     string         // Base URL for map links.
	log        logging.Logger // Logger.
	publicKey  string         // Public key for accessing MailJet API.
	privateKey string         // Private key for accessing MailJet API.
}

// Init initializes a notifier with the supplied options. See
// WithSender, WithRecipients, WithStore, WithPeriod, WithTransport,
// WithMapURL, WithLogger and WithSecrets for a description of the
// various options. Without secrets or a transport, messages are
// logged rather than sent. It is permissable to re-initalize a
// Notifier with different options, however missing options will
// revert to their defaults.
func (n *Notifier) Init(options ...Option) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	// Set default values.
	n.sender = defaultSender
	n.recipients = nil
	n.store = nil
	n.period = defaultPeriod
	n.transport = nil
	n.mapURL = defaultMapURL
	n.log = logging.New(logging.Info, io.Discard, true)
	n.publicKey = ""
	n.privateKey = ""

	// Apply options.
	for i, opt := range options {
		err := opt(n)
		if err != nil {
			return fmt.Errorf("could not apply option # %d, %v", i, err)
		}
	}

	if n.transport == nil && n.publicKey != "" && n.privateKey != "" {
		n.transport = NewMailjetTransport(n.publicKey, n.privateKey)
	}
	return nil
}

// Recipients returns the configured recipients.
func (n *Notifier) Recipients() []string {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]string(nil), n.recipients...)
}

// MapLink returns a map link for a coordinate pair.
func (n *Notifier) MapLink(lat, lon float64) string {
	return n.mapURL + "?q=" + strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// NotifyIncident sends one message per recipient describing an
// incident observation.
func (n *Notifier) NotifyIncident(ctx context.Context, obs *model.Observation) Summary {
	if obs == nil {
		return Summary{Error: "no observation"}
	}
	subject := "Poaching incident reported"
	if obs.IncidentType != "" {
		subject += ": " + obs.IncidentType
	}
	return n.send(ctx, KindIncident, subject, n.incidentText(obs), false)
}

func (n *Notifier) incidentText(obs *model.Observation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A poaching incident has been reported.\n\n")
	fmt.Fprintf(&sb, "Category: %s\n", obs.Category)
	fmt.Fprintf(&sb, "Incident type: %s\n", obs.IncidentType)
	if obs.PoachingType != "" {
		fmt.Fprintf(&sb, "Poaching type: %s\n", obs.PoachingType)
	}
	if obs.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", obs.Notes)
	}
	fmt.Fprintf(&sb, "Time: %s\n", obs.Timestamp.UTC().Format(time.RFC3339))
	if obs.User != "" {
		fmt.Fprintf(&sb, "Reported by: %s\n", obs.User)
	}
	if obs.Located() {
		fmt.Fprintf(&sb, "Location: %s\n", n.MapLink(*obs.Latitude, *obs.Longitude))
	} else {
		fmt.Fprintf(&sb, "Location: not recorded\n")
	}
	if obs.ID != "" {
		fmt.Fprintf(&sb, "Observation ID: %s\n", obs.ID)
	}
	return sb.String()
}

// NotifyFires sends a single consolidated alert listing fires. When a
// TimeStore is configured, recipients alerted within the period are
// skipped.
func (n *Notifier) NotifyFires(ctx context.Context, fires []firms.Fire) Summary {
	if len(fires) == 0 {
		return Summary{Error: "no fires"}
	}
	subject := fmt.Sprintf("Fire alert: %d active fire detection", len(fires))
	if len(fires) != 1 {
		subject += "s"
	}
	return n.send(ctx, KindFire, subject, n.fireText(fires), true)
}

func (n *Notifier) fireText(fires []firms.Fire) string {
	sorted := append([]firms.Fire(nil), fires...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FRP > sorted[j].FRP })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d active fire detection(s) in the alert region.\n", len(sorted))
	fmt.Fprintf(&sb, "Strongest fire radiative power: %.1f MW\n\n", sorted[0].FRP)
	for i, f := range sorted {
		if i == maxFireLines {
			fmt.Fprintf(&sb, "... and %d more\n", len(sorted)-maxFireLines)
			break
		}
		fmt.Fprintf(&sb, "- %s %s %s, FRP %.1f MW, confidence %s: %s\n",
			f.Sensor, f.AcqDate, f.AcqTime, f.FRP, f.Confidence, n.MapLink(f.Latitude, f.Longitude))
	}
	return sb.String()
}

// send delivers a message to every recipient. If throttled, the
// TimeStore is consulted per recipient.
func (n *Notifier) send(ctx context.Context, kind, subject, text string, throttled bool) Summary {
	n.mutex.Lock()
	sender, recipients, store, period, transport, log := n.sender, n.recipients, n.store, n.period, n.transport, n.log
	n.mutex.Unlock()

	if len(recipients) == 0 {
		log.Warning("no notification recipients configured", "kind", kind)
		return Summary{Error: "no recipients configured"}
	}

	var sum Summary
	for _, r := range recipients {
		res := Result{Recipient: r}
		key := kind + "." + r

		if throttled && store != nil {
			sendable, err := store.Sendable(ctx, period, key)
			if err != nil {
				log.Warning("could not check notification time", "key", key, "error", err)
			}
			if !sendable {
				log.Info("too soon to notify recipient", "kind", kind, "recipient", r)
				res.Skipped = true
				sum.Results = append(sum.Results, res)
				continue
			}
		}

		msg := Message{From: sender, To: r, Subject: subject, Text: text}
		if transport == nil {
			log.Info("notification (not sent, no transport)", "kind", kind, "recipient", r, "subject", subject, "text", text)
		} else {
			err := transport.Send(ctx, msg)
			if err != nil {
				log.Error("could not send notification", "kind", kind, "recipient", r, "error", err)
				res.Error = err.Error()
				sum.Results = append(sum.Results, res)
				continue
			}
			log.Info("sent notification", "kind", kind, "recipient", r)
		}

		res.Success = true
		sum.Success = true
		sum.Results = append(sum.Results, res)

		if throttled && store != nil {
			err := store.Sent(ctx, key)
			if err != nil {
				log.Warning("could not record notification time", "key", key, "error", err)
			}
		}
	}
	return sum
}

// Send delivers a single message to one address, bypassing the
// configured recipients and throttling. Without a transport the
// message is logged.
func (n *Notifier) Send(ctx context.Context, to, subject, text string) error {
	n.mutex.Lock()
	sender, transport, log := n.sender, n.transport, n.log
	n.mutex.Unlock()

	if transport == nil {
		log.Info("message (not sent, no transport)", "to", to, "subject", subject, "text", text)
		return nil
	}
	err := transport.Send(ctx, Message{From: sender, To: to, Subject: subject, Text: text})
	if err != nil {
		return fmt.Errorf("could not send to %s: %w", to, err)
	}
	return nil
}
