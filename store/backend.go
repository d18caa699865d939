/*
Package store implements the booking persistence interfaces over flat files.

PURPOSE:
  Each store owns exactly one file in a Backend. Reads never lock. Writers
  take the file's lock for the whole read-modify-write so concurrent
  requests (and other processes sharing the directory) never lose a write.

WRITE PATHS:
  Create (reservations)      -> Append: one encoded row, no BOM, no rewrite
  Update/Delete/Add/Remove   -> Replace: temp file + rename, all or nothing
  First touch of a file      -> WriteNew: BOM + header, only if absent

BACKENDS:
  Disk:   production, renameio for atomic replace, flock for cross-process locks
  Memory: tests; same semantics, injectable failures

SEE ALSO:
  - booking/store.go: the interfaces implemented here
  - record/: row encoding
*/
package store

import "context"

// Backend is a minimal named-file system. Errors for a missing file satisfy
// errors.Is(err, fs.ErrNotExist).
type Backend interface {
	// ReadFile returns the whole file.
	ReadFile(name string) ([]byte, error)

	// WriteNew writes data only if the file does not exist yet.
	WriteNew(name string, data []byte) error

	// Append adds data at the end of the file, creating it if needed.
	Append(name string, data []byte) error

	// Replace swaps the file contents atomically. Readers see either the
	// old or the new contents, never a mix.
	Replace(name string, data []byte) error

	// Lock serializes writers of one file. The returned func releases it.
	Lock(ctx context.Context, name string) (unlock func(), err error)
}
