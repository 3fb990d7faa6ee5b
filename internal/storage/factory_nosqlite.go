//go:build !sqlite

package storage

import "errors"

// DefaultStoreKind is the store used when the caller does not pick one.
func DefaultStoreKind() string { return "memory" }

func newSQLiteStore(string) (Store, error) {
	return nil, errors.New("sqlite support is not compiled in (build with -tags sqlite)")
}
