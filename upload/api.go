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


package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Timeout is the default timeout for upload requests.
const Timeout = 30 * time.Second

// Receipt describes a stored payload.
type Receipt struct {
	ID       string // Identifier assigned by the sink.
	Location string // Path or URL of the stored payload.
}

// Transport sends payloads to a sink.
type Transport interface {
	Send(ctx context.Context, p *Payload) (*Receipt, error)
}

// APIError is a non-success response from a sink.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Kind, e.Message)
}

// APITransport posts observations to the ranger backend.
type APITransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// APIOption configures an APITransport.
type APIOption func(*APITransport)

// WithAPIClient sets the HTTP client used for requests.
func WithAPIClient(c *http.Client) APIOption {
	return func(t *APITransport) { t.client = c }
}

// NewAPITransport returns a transport posting to the backend at
// baseURL, authenticating with apiKey.
func NewAPITransport(baseURL, apiKey string, opts ...APIOption) *APITransport {
	t := &APITransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: Timeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts the payload to /observations. A JSON payload with a
// photo is sent as a multipart form with the photo in the image
// field; every other payload is sent as a JSON body.
func (t *APITransport) Send(ctx context.Context, p *Payload) (*Receipt, error) {
	var body []byte
	var contentType string
	var err error
	if p.Format == FormatJSON && p.Photo != nil {
		body, contentType, err = multipartBody(p.Observation.formFields(), p.Photo)
	} else {
		body, err = p.Marshal()
		contentType = "application/json"
	}
	if err != nil {
		return nil, fmt.Errorf("could not encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/observations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not post observation: %w", err)
	}
	defer resp.Body.Close()

	var reply struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
		Data    struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	jsonErr := json.Unmarshal(b, &reply)
	if resp.StatusCode/100 != 2 || !reply.Success {
		msg := reply.Message
		if jsonErr != nil || msg == "" {
			msg = strings.TrimSpace(string(b))
		}
		return nil, &APIError{Status: resp.StatusCode, Kind: reply.Error, Message: msg}
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("could not decode response: %w", jsonErr)
	}
	return &Receipt{ID: reply.Data.ID, Location: t.baseURL + "/observations/" + reply.Data.ID}, nil
}

// multipartBody encodes fields and a photo as multipart/form-data.
func multipartBody(fields map[string]string, photo *Photo) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		err := w.WriteField(k, v)
		if err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, photo.Filename))
	h.Set("Content-Type", photo.ContentType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	_, err = part.Write(photo.Data)
	if err != nil {
		return nil, "", err
	}
	err = w.Close()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
