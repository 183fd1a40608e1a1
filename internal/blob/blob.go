// Package blob stores uploaded contract files.
package blob

import (
	"context"
	"errors"
)

var ErrObjectNotFound = errors.New("object not found")

// Store keeps raw uploads addressed by object key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ObjectKey is the key under which a contract's upload is stored.
func ObjectKey(tenant, contractID, filename string) string {
	if tenant == "" {
		tenant = "default"
	}
	return tenant + "/" + contractID + "/" + filename
}
