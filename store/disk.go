package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// DISK BACKEND - files in one data directory
// =============================================================================

const lockRetryDelay = 20 * time.Millisecond

type Disk struct {
	dir string

	mu    sync.Mutex
	files map[string]*sync.Mutex

	// beforeRename runs after the temp file is fully written and before it
	// replaces the original. Tests use it to simulate a crash.
	beforeRename func(name string) error
}

// NewDisk creates dir if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &booking.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Disk{dir: dir, files: make(map[string]*sync.Mutex)}, nil
}

// Path returns the absolute location of a named file.
func (d *Disk) Path(name string) string {
	return filepath.Join(d.dir, name)
}

func (d *Disk) ReadFile(name string) ([]byte, error) {
	p := d.Path(name)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &booking.StorageError{Op: "read", Path: p, Err: err}
	}
	return data, nil
}

func (d *Disk) WriteNew(name string, data []byte) error {
	p := d.Path(name)
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &booking.StorageError{Op: "stat", Path: p, Err: err}
	}
	if err := renameio.WriteFile(p, data, 0o644); err != nil {
		return &booking.StorageError{Op: "create", Path: p, Err: err}
	}
	return nil
}

func (d *Disk) Append(name string, data []byte) error {
	p := d.Path(name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return &booking.StorageError{Op: "append", Path: p, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return &booking.StorageError{Op: "append", Path: p, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &booking.StorageError{Op: "sync", Path: p, Err: err}
	}
	if err := f.Close(); err != nil {
		return &booking.StorageError{Op: "close", Path: p, Err: err}
	}
	return nil
}

func (d *Disk) Replace(name string, data []byte) error {
	p := d.Path(name)
	t, err := renameio.NewPendingFile(p, renameio.WithPermissions(0o644))
	if err != nil {
		return &booking.StorageError{Op: "replace", Path: p, Err: err}
	}
	defer t.Cleanup()

	if _, err := t.Write(data); err != nil {
		return &booking.StorageError{Op: "replace", Path: p, Err: err}
	}
	if d.beforeRename != nil {
		if err := d.beforeRename(name); err != nil {
			return &booking.StorageError{Op: "replace", Path: p, Err: err}
		}
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return &booking.StorageError{Op: "rename", Path: p, Err: err}
	}
	return nil
}

// Lock takes the in-process mutex for name, then an advisory file lock on
// "<name>.lock" so separate processes sharing the directory also serialize.
func (d *Disk) Lock(ctx context.Context, name string) (func(), error) {
	m := d.fileMutex(name)
	m.Lock()

	p := d.Path(name) + ".lock"
	fl := flock.New(p)
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		m.Unlock()
		if err == nil {
			err = fmt.Errorf("lock not acquired")
		}
		return nil, &booking.StorageError{Op: "lock", Path: p, Err: err}
	}
	return func() {
		_ = fl.Unlock()
		m.Unlock()
	}, nil
}

func (d *Disk) fileMutex(name string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.files[name]
	if !ok {
		m = &sync.Mutex{}
		d.files[name] = m
	}
	return m
}
