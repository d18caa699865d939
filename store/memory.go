package store

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// MEMORY BACKEND - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
	locks map[string]*sync.Mutex

	// Fail, when set, is consulted before every operation. A non-nil error
	// aborts the operation and leaves the file untouched.
	Fail func(op, name string) error
}

func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Memory) ReadFile(name string) ([]byte, error) {
	if err := m.fail("read", name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	if !ok {
		return nil, &booking.StorageError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) WriteNew(name string, data []byte) error {
	if err := m.fail("create", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		m.files[name] = append([]byte(nil), data...)
	}
	return nil
}

func (m *Memory) Append(name string, data []byte) error {
	if err := m.fail("append", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append(m.files[name], data...)
	return nil
}

func (m *Memory) Replace(name string, data []byte) error {
	if err := m.fail("replace", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Lock(_ context.Context, name string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock, nil
}

// Put seeds a file, replacing any existing contents.
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
}

func (m *Memory) fail(op, name string) error {
	if m.Fail == nil {
		return nil
	}
	if err := m.Fail(op, name); err != nil {
		return &booking.StorageError{Op: op, Path: name, Err: fmt.Errorf("injected: %w", err)}
	}
	return nil
}
