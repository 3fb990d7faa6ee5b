package storage

import "fmt"

// NewStore builds a store by kind. The sqlite kind is only available when
// the binary is built with the sqlite build tag.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store kind: %q", kind)
	}
}

// CloseIfSupported closes the store when the implementation holds external
// resources.
func CloseIfSupported(s Store) error {
	type closer interface {
		Close() error
	}
	if c, ok := s.(closer); ok {
		return c.Close()
	}
	return nil
}
