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
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/firms"
	"github.com/ausocean/ranger/gauth"
	"github.com/ausocean/ranger/model"
)

// testTransport records messages and fails for selected recipients.
type testTransport struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (tt *testTransport) Send(ctx context.Context, msg Message) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.fail[msg.To] {
		return errors.New("mailbox unavailable")
	}
	tt.sent = append(tt.sent, msg)
	return nil
}

func incident() *model.Observation {
	lat, lon := -25.1, 28.4
	return &model.Observation{
		ID:           "obs1",
		Category:     model.CategoryIncident,
		IncidentType: "Poaching - Snare",
		PoachingType: "Snare",
		Notes:        "wire snare near the river",
		Latitude:     &lat,
		Longitude:    &lon,
		Timestamp:    time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC),
		User:         "ranger1",
	}
}

func TestNotifyIncident(t *testing.T) {
	ctx := context.Background()
	tt := &testTransport{fail: map[string]bool{"b@example.org": true}}

	var n Notifier
	err := n.Init(WithLogger((*logging.TestLogger)(t)), WithTransport(tt), WithRecipients([]string{"a@example.org", " b@example.org", ""}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, n.Recipients())

	sum := n.NotifyIncident(ctx, incident())
	assert.True(t, sum.Success, "one recipient succeeded")
	require.Len(t, sum.Results, 2)
	assert.True(t, sum.Results[0].Success)
	assert.False(t, sum.Results[1].Success)
	assert.Equal(t, "mailbox unavailable", sum.Results[1].Error)

	require.Len(t, tt.sent, 1)
	msg := tt.sent[0]
	assert.Equal(t, defaultSender, msg.From)
	assert.Equal(t, "Poaching incident reported: Poaching - Snare", msg.Subject)
	assert.Contains(t, msg.Text, "https://www.google.com/maps?q=-25.1,28.4")
	assert.Contains(t, msg.Text, "Poaching type: Snare")
	assert.Contains(t, msg.Text, "2026-05-01T08:30:00Z")
}

func TestNotifyAllFail(t *testing.T) {
	tt := &testTransport{fail: map[string]bool{"a@example.org": true}}
	var n Notifier
	require.NoError(t, n.Init(WithTransport(tt), WithRecipient("a@example.org")))

	sum := n.NotifyIncident(context.Background(), incident())
	assert.False(t, sum.Success)

	require.NoError(t, n.Init(WithTransport(tt)))
	sum = n.NotifyIncident(context.Background(), incident())
	assert.False(t, sum.Success)
	assert.Equal(t, "no recipients configured", sum.Error)
}

func TestNotifyWithoutTransport(t *testing.T) {
	var n Notifier
	require.NoError(t, n.Init(WithLogger((*logging.TestLogger)(t)), WithRecipient("a@example.org"), WithMapURL("https://maps.example.org")))
	assert.Equal(t, "https://maps.example.org?q=1.5,-2", n.MapLink(1.5, -2))

	sum := n.NotifyIncident(context.Background(), incident())
	assert.True(t, sum.Success)
}

func TestSendOne(t *testing.T) {
	tt := &testTransport{fail: map[string]bool{"bad@example.org": true}}
	var n Notifier
	require.NoError(t, n.Init(WithTransport(tt), WithSender("noreply@example.org")))

	require.NoError(t, n.Send(context.Background(), "new@example.org", "Your PIN", "123456"))
	require.Len(t, tt.sent, 1)
	assert.Equal(t, Message{From: "noreply@example.org", To: "new@example.org", Subject: "Your PIN", Text: "123456"}, tt.sent[0])

	assert.Error(t, n.Send(context.Background(), "bad@example.org", "Your PIN", "123456"))
}

func TestNotifyFires(t *testing.T) {
	ctx := context.Background()
	tt := &testTransport{}
	ts := NewTimeStore(datastore.NewMemStore())

	var n Notifier
	err := n.Init(WithTransport(tt), WithRecipients([]string{"a@example.org", "b@example.org"}), WithStore(ts), WithPeriod(time.Hour))
	require.NoError(t, err)

	fires := []firms.Fire{
		{Latitude: -24.5, Longitude: 31.4, FRP: 5.3, Sensor: firms.VIIRS, AcqDate: "2026-05-01", AcqTime: "1142", Confidence: "n"},
		{Latitude: -24.9, Longitude: 31.7, FRP: 22.8, Sensor: firms.MODIS, AcqDate: "2026-05-01", AcqTime: "0112", Confidence: "80"},
	}
	sum := n.NotifyFires(ctx, fires)
	assert.True(t, sum.Success)
	require.Len(t, tt.sent, 2, "one consolidated message per recipient")
	assert.Equal(t, "Fire alert: 2 active fire detections", tt.sent[0].Subject)
	assert.Contains(t, tt.sent[0].Text, "Strongest fire radiative power: 22.8 MW")
	assert.Less(t, strings.Index(tt.sent[0].Text, "MODIS"), strings.Index(tt.sent[0].Text, "VIIRS"), "strongest fire listed first")

	// A second alert within the period is suppressed.
	sum = n.NotifyFires(ctx, fires)
	assert.False(t, sum.Success)
	require.Len(t, sum.Results, 2)
	assert.True(t, sum.Results[0].Skipped)
	assert.Len(t, tt.sent, 2)

	sum = n.NotifyFires(ctx, nil)
	assert.False(t, sum.Success)
}

func TestTimeStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ts := &timeStore{store: datastore.NewMemStore(), now: func() time.Time { return now }}

	tests := []struct {
		advance time.Duration
		send    bool
		want    bool
	}{
		{0, true, true}, // First message.
		{30 * time.Minute, false, false},
		{30 * time.Minute, true, true}, // Period elapsed.
		{time.Minute, false, false},
	}

	for i, test := range tests {
		now = now.Add(test.advance)
		ok, err := ts.Sendable(ctx, time.Hour, "fire.a@example.org")
		if err != nil {
			t.Errorf("test %d: Sendable returned unexpected error: %v", i, err)
		}
		if ok != test.want {
			t.Errorf("test %d: Sendable = %t, want %t", i, ok, test.want)
		}
		if test.send {
			if err := ts.Sent(ctx, "fire.a@example.org"); err != nil {
				t.Errorf("test %d: Sent returned unexpected error: %v", i, err)
			}
		}
	}
}

func TestOptions(t *testing.T) {
	var n Notifier
	assert.Error(t, n.Init(WithSender("")))
	assert.Error(t, n.Init(WithPeriod(-time.Second)))
	assert.Error(t, n.Init(WithSecrets(map[string]string{"mailjetPublicKey": "pub"})))
	require.NoError(t, n.Init(WithSecrets(map[string]string{"mailjetPublicKey": "pub", "mailjetPrivateKey": "priv"})))
	assert.IsType(t, &MailjetTransport{}, n.transport)

	assert.Equal(t, []string{"a@x.org", "b@x.org"}, ParseRecipients(" a@x.org, ,b@x.org,"))
}

// TestSend tests sending an actual email.
// It is recommended to run this only locally, as it sends actual emails.
func TestSend(t *testing.T) {
	if os.Getenv("RANGER_SECRETS") == "" || os.Getenv("TEST_RECIPIENT") == "" {
		t.Skip("RANGER_SECRETS and TEST_RECIPIENT required for TestSend")
	}

	ctx := context.Background()
	secrets, err := gauth.GetSecrets(ctx, "ranger", []string{"mailjetPublicKey", "mailjetPrivateKey"})
	if err != nil {
		t.Fatalf("could not get secrets: %v", err)
	}

	var n Notifier
	err = n.Init(WithSecrets(secrets), WithRecipient(os.Getenv("TEST_RECIPIENT")), WithLogger((*logging.TestLogger)(t)))
	if err != nil {
		t.Fatalf("Init failed with error: %v", err)
	}
	sum := n.NotifyIncident(ctx, incident())
	if !sum.Success {
		t.Errorf("NotifyIncident failed: %+v", sum)
	}
}
