package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"lexisense/internal/util"
)

type objectMeta struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	SHA256      string    `json:"sha256"`
	StoredAt    time.Time `json:"stored_at"`
}

// LocalStore keeps uploads under a directory, for development without
// object storage. Each object gets a .meta.json sidecar.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	path, err := util.SafeJoin(s.root, key)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("store object %s: %w", key, err)
	}
	meta := objectMeta{Key: key, ContentType: contentType, Size: len(data), SHA256: util.SHA256Hex(data), StoredAt: time.Now().UTC()}
	if err := util.WriteJSONAtomic(path+".meta.json", meta); err != nil {
		return fmt.Errorf("store object metadata %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := util.SafeJoin(s.root, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}
