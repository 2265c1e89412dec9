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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// DefaultGitHubURL is the GitHub REST API root.
const DefaultGitHubURL = "https://api.github.com"

// GitHubTransport stores payloads as files in a GitHub repository
// using the Contents API.
type GitHubTransport struct {
	owner   string
	repo    string
	token   string
	dir     string
	branch  string
	baseURL string
	client  *http.Client
}

// GitHubOption configures a GitHubTransport.
type GitHubOption func(*GitHubTransport)

// WithDir sets the repository directory payloads are stored in. The
// default is "observations".
func WithDir(dir string) GitHubOption {
	return func(t *GitHubTransport) { t.dir = strings.Trim(dir, "/") }
}

// WithBranch sets the branch to commit to. The default is the
// repository's default branch.
func WithBranch(branch string) GitHubOption {
	return func(t *GitHubTransport) { t.branch = branch }
}

// WithGitHubURL sets the API root, for GitHub Enterprise or tests.
func WithGitHubURL(u string) GitHubOption {
	return func(t *GitHubTransport) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithGitHubClient sets the HTTP client used for requests.
func WithGitHubClient(c *http.Client) GitHubOption {
	return func(t *GitHubTransport) { t.client = c }
}

// NewGitHubTransport returns a transport committing to owner/repo
// with the given token.
func NewGitHubTransport(owner, repo, token string, opts ...GitHubOption) *GitHubTransport {
	t := &GitHubTransport{
		owner:   owner,
		repo:    repo,
		token:   token,
		dir:     "observations",
		baseURL: DefaultGitHubURL,
		client:  &http.Client{Timeout: Timeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send creates <dir>/<id>.<format> holding the payload. A photo is
// stored alongside as <dir>/<id>_<filename> and named in the record's
// image_filename.
func (t *GitHubTransport) Send(ctx context.Context, p *Payload) (*Receipt, error) {
	rec := *p
	if p.Photo != nil {
		name := p.ID + "_" + sanitize(p.Photo.Filename)
		_, err := t.put(ctx, path.Join(t.dir, name), p.Photo.Data, "Add photo "+name)
		if err != nil {
			return nil, fmt.Errorf("could not store photo: %w", err)
		}
		rec.Photo = nil
		switch rec.Format {
		case FormatJSON:
			o := *p.Observation
			o.ImageFilename = name
			rec.Observation = &o
		case FormatGeoJSON:
			f := *p.Feature
			props := make(map[string]interface{}, len(f.Properties)+1)
			for k, v := range f.Properties {
				props[k] = v
			}
			props["image_filename"] = name
			f.Properties = props
			rec.Feature = &f
		}
	}

	body, err := rec.Marshal()
	if err != nil {
		return nil, fmt.Errorf("could not encode payload: %w", err)
	}
	loc, err := t.put(ctx, path.Join(t.dir, p.Filename()), body, "Add observation "+p.ID)
	if err != nil {
		return nil, err
	}
	return &Receipt{ID: p.ID, Location: loc}, nil
}

// put creates a file, returning its HTML URL.
func (t *GitHubTransport) put(ctx context.Context, filePath string, content []byte, message string) (string, error) {
	reqBody := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch,omitempty"`
	}{message, base64.StdEncoding.EncodeToString(content), t.branch}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", t.baseURL, url.PathEscape(t.owner), url.PathEscape(t.repo), escapePath(filePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not create %s: %w", filePath, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}

	var reply struct {
		Message string `json:"message"`
		Content struct {
			Path    string `json:"path"`
			HTMLURL string `json:"html_url"`
		} `json:"content"`
	}
	jsonErr := json.Unmarshal(respBody, &reply)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg := reply.Message
		if jsonErr != nil || msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}
	if reply.Content.HTMLURL != "" {
		return reply.Content.HTMLURL, nil
	}
	return filePath, nil
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// sanitize keeps letters, digits, dots, dashes and underscores.
func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	s := strings.Trim(sb.String(), ".")
	if s == "" {
		return "photo"
	}
	return s
}
