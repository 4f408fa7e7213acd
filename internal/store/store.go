// Package store provides the SQLite persistence layer for privyloop:
// platforms, privacy templates, and scan snapshots.
package store

import (
	"database/sql"

	"github.com/AustinZ21/Privyloop-sub001/internal/dbopen"
)

// Store is the privyloop database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the privyloop SQLite database at path, applies
// pragmas and the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// New wraps an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
