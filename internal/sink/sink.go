// Package sink is the destination for published files: a local directory or
// an S3 compatible bucket.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	DriverFS = "fs"
	DriverS3 = "s3"
)

var ErrInvalidKey = errors.New("sink: invalid key")

type Sink interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Location describes where key ends up, for logs and summaries.
	Location(key string) string
}

// cleanKey normalises a slash separated key and rejects keys that would
// escape the sink root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func joinPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
