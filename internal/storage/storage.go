// Package storage abstracts where listing images live. The real object store
// is an external collaborator; the in-memory implementation backs tests and
// development.
package storage

import (
	"context"
	"io"
)

// Storage stores and serves listing images.
type Storage interface {
	// Upload stores the object and returns its storage key.
	Upload(ctx context.Context, key string, contentType string, r io.Reader) (string, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetURL returns a URL the client can fetch the object from.
	GetURL(ctx context.Context, key string) (string, error)
}
