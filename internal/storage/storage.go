package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/deptfile/file-management/internal"
)

var ErrNotFound = errors.New("storage: object not found")

// Backend is the minimal surface the services and the safety pipeline need
// from a disk. Implementations must make Move atomic from the caller's point
// of view: after a successful Move the source no longer exists and the
// destination does.
type Backend interface {
	Exists(ctx context.Context, path string) (bool, error)
	ReadStream(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Move(ctx context.Context, from, to string) error
	Delete(ctx context.Context, path string) error
}

// Registry resolves disk identifiers to backends. The disk a file lives on is
// recorded per row and resolved at call time; there is no process-wide
// "current disk".
type Registry struct {
	disks       map[string]Backend
	defaultDisk string
}

func NewRegistry(cfg internal.StorageConfig) (*Registry, error) {
	disks := make(map[string]Backend, len(cfg.Disks))
	for name, dc := range cfg.Disks {
		switch dc.Driver {
		case "local":
			disks[name] = NewLocal(dc.Root)
		case "minio":
			backend, err := NewMinIO(dc)
			if err != nil {
				return nil, fmt.Errorf("storage: disk %q: %w", name, err)
			}
			disks[name] = backend
		default:
			return nil, fmt.Errorf("storage: disk %q has unknown driver %q", name, dc.Driver)
		}
	}
	return &Registry{disks: disks, defaultDisk: cfg.DefaultDisk}, nil
}

func NewRegistryFromBackends(defaultDisk string, disks map[string]Backend) *Registry {
	return &Registry{disks: disks, defaultDisk: defaultDisk}
}

func (r *Registry) Disk(name string) (Backend, error) {
	if backend, ok := r.disks[name]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("storage: unknown disk %q", name)
}

func (r *Registry) DefaultDisk() string {
	return r.defaultDisk
}

// Ping probes the default disk. Used by the readiness endpoint.
func (r *Registry) Ping(ctx context.Context) error {
	backend, err := r.Disk(r.defaultDisk)
	if err != nil {
		return err
	}
	_, err = backend.Exists(ctx, ".healthcheck")
	return err
}
