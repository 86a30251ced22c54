package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotExist is returned by Open when the key is unknown to the backend.
var ErrNotExist = errors.New("storage: object does not exist")

// FileStorage is the contract shared by the local and S3 backends.
// Keys are slash separated and relative to the backend root.
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey normalises a key and rejects attempts to escape the storage root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
