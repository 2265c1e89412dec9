/*
DESCRIPTION
  Secrets lookup from a file or Google Storage bucket.

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


// Package gauth provides secrets lookup and signed session tokens.
package gauth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/ausocean/utils/filemap"
)

// gsPrefix marks a Google Cloud Storage object URL.
const gsPrefix = "gs://"

// SecretsEnv returns the name of the environment variable locating the
// secrets of the given project, e.g. RANGER_SECRETS.
func SecretsEnv(projectID string) string {
	return strings.ToUpper(projectID) + "_SECRETS"
}

// GetSecrets loads the secrets named by SecretsEnv(projectID) and
// checks that every key in keys has a value.
func GetSecrets(ctx context.Context, projectID string, keys []string) (map[string]string, error) {
	ev := SecretsEnv(projectID)
	src := os.Getenv(ev)
	if src == "" {
		return nil, fmt.Errorf("%s not set", ev)
	}
	return ReadSecrets(ctx, src, keys)
}

// ReadSecrets loads secrets from a local file or a gs://bucket/object
// URL. The content holds one key:value pair per line; blank lines and
// lines starting with # are ignored. Required keys that are missing or
// empty are reported, with the secrets read so far.
func ReadSecrets(ctx context.Context, src string, keys []string) (map[string]string, error) {
	var content []byte
	var err error
	if strings.HasPrefix(src, gsPrefix) {
		content, err = ReadGoogleStorageBucket(ctx, src)
	} else {
		content, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read secrets: %w", err)
	}

	secrets := ParseSecrets(string(content))
	var missing []string
	for _, k := range keys {
		if secrets[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return secrets, fmt.Errorf("missing secrets: %s", strings.Join(missing, ", "))
	}
	return secrets, nil
}

// ParseSecrets parses key:value lines.
func ParseSecrets(s string) map[string]string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r", ""), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return filemap.Split(strings.Join(lines, "\n"), "\n", ":")
}

// ReadGoogleStorageBucket returns the content of the object at a URL
// of the form gs://<bucket>/<object>.
func ReadGoogleStorageBucket(ctx context.Context, url string) ([]byte, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(url, gsPrefix), "/")
	if !strings.HasPrefix(url, gsPrefix) || !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("invalid storage URL %q", url)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", url, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}
