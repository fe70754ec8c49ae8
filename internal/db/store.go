package db

import (
	"errors"

	"gorm.io/gorm"
)

// ErrUserNotFound is returned when no user matches a Discord id.
var ErrUserNotFound = errors.New("user not found")

// Store is the persistence layer for users, settings and the superuser.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an initialized database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}
