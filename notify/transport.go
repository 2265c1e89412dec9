/*
DESCRIPTION
  Notification transports.

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
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

// Message is a plain text email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
}

// Transport delivers messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// MailjetTransport sends email using the MailJet API.
type MailjetTransport struct {
	client *mailjet.Client
}

// NewMailjetTransport returns a MailjetTransport using the given API keys.
func NewMailjetTransport(publicKey, privateKey string) *MailjetTransport {
	return &MailjetTransport{client: mailjet.NewMailjetClient(publicKey, privateKey)}
}

// Send sends msg. The MailJet client does not accept a context, so
// cancellation is only checked before sending.
func (t *MailjetTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: msg.From},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: msg.To}},
		Subject:  msg.Subject,
		TextPart: msg.Text,
	}}
	_, err := t.client.SendMailV31(&mailjet.MessagesV31{Info: info})
	if err != nil {
		return fmt.Errorf("could not send mail: %w", err)
	}
	return nil
}
