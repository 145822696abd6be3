package core

import (
	"errors"
	"fmt"
)

// ErrStorage marks infrastructure failures of the build cache or the
// deployment ledger. Storage errors are fatal and never retried here.
var ErrStorage = errors.New("storage failure")

// StorageError wraps a cache or ledger I/O failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the underlying cause to errors.Is/As.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// Storagef wraps err as a StorageError for operation op.
func Storagef(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: fmt.Sprintf(format, args...), Err: err}
}
