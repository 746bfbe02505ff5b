package kvstore

import (
	"context"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"github.com/dailysync/keeper/internal/bus"
)

// Diskv is a Store backed by a diskv file tree. Every Set and Remove is
// announced on the storage topic so observers (debug panels, other caches)
// can react to raw storage changes.
type Diskv struct {
	d         *diskv.Diskv
	namespace string
	bus       *bus.Bus
}

// NewDiskv creates a disk-backed store rooted at basePath. Keys are prefixed
// with namespace to keep multiple apps sharing one directory apart.
func NewDiskv(basePath, namespace string, b *bus.Bus) (*Diskv, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}

	d := diskv.New(diskv.Options{
		BasePath: basePath,
		AdvancedTransform: func(key string) *diskv.PathKey {
			parts := strings.Split(key, "/")
			return &diskv.PathKey{
				Path:     parts[:len(parts)-1],
				FileName: parts[len(parts)-1] + ".json",
			}
		},
		InverseTransform: func(pk *diskv.PathKey) string {
			name := strings.TrimSuffix(pk.FileName, ".json")
			if len(pk.Path) == 0 {
				return name
			}
			return strings.Join(pk.Path, "/") + "/" + name
		},
		CacheSizeMax: 1024 * 1024,
	})

	return &Diskv{d: d, namespace: namespace, bus: b}, nil
}

func (s *Diskv) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + "/" + k
}

// Get reads the value at key. Missing keys map to ErrNotFound.
func (s *Diskv) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := s.d.Read(s.key(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

// Set writes the value at key and publishes a storage-changed notification.
func (s *Diskv) Set(_ context.Context, key string, value []byte) error {
	if err := s.d.Write(s.key(key), value); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicStorage, map[string]any{key: string(value)})
	}
	return nil
}

// Remove erases the key. Erasing an absent key is not an error.
func (s *Diskv) Remove(_ context.Context, key string) error {
	if err := s.d.Erase(s.key(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicStorage, map[string]any{key: nil})
	}
	return nil
}
