/*
DESCRIPTION
  Blob storage for observation images.

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

// Package blob stores binary objects, such as observation photos, in
// Google Cloud Storage, MinIO or memory.
package blob

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is implemented by blob stores.
type Store interface {
	// Put stores data under name and returns the stored object's path.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ObjectName returns the object name for an uploaded observation
// image: observations/<unix millis>_<sanitized filename>. Characters
// other than letters, digits, dot, hyphen and underscore are replaced
// by underscores.
func ObjectName(now time.Time, filename string) string {
	return fmt.Sprintf("observations/%d_%s", now.UnixMilli(), Sanitize(filename))
}

// Sanitize makes a filename safe for use in an object name.
func Sanitize(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "image"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filename)
}

// New returns a blob store of the given kind: "gcs", "minio" or
// "memory". For gcs, bucket names the bucket. For minio, cfg supplies
// the connection details and bucket names the bucket.
func New(ctx context.Context, kind, bucket string, cfg MinioConfig) (Store, error) {
	switch kind {
	case "gcs":
		return NewGCSStore(ctx, bucket)
	case "minio":
		cfg.Bucket = bucket
		return NewMinioStore(ctx, cfg)
	case "memory":
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unsupported blob store kind %q", kind)
	}
}
