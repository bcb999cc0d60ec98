package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrForeignKeyViolation indicates a write referenced a row that does not exist.
var ErrForeignKeyViolation = errors.New("repository: foreign key violation")
