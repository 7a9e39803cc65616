// Package blob stores user uploads (avatars) and hands out download URLs.
package blob

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// Ref points at an uploaded object
type Ref struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	ETag        string `json:"etag,omitempty"`
}

// Store is the blob backend
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (Ref, error)
	DownloadURL(ctx context.Context, ref Ref) (string, error)
}

// ErrObjectNotFound the referenced object does not exist
var ErrObjectNotFound = errors.New("object not found", errors.CategoryNotFound).
	WithTextCode("blob/object-not-found").
	WithCode(errors.CodeNotFound)

// ErrInvalidPath object paths must be relative and non empty
var ErrInvalidPath = errors.New("invalid object path", errors.CategoryBadInput).
	WithTextCode("blob/invalid-path").
	WithCode(errors.CodeBadRequest)

// CleanPath normalizes an object path, rejecting empty and traversal paths
func CleanPath(path string) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidPath
		}
	}
	return path, nil
}

// AvatarPath is where a user's avatar lives
func AvatarPath(userID, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return "avatars/" + userID + "." + ext
}
