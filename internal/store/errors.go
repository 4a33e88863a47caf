package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Common store errors that can be checked with errors.Is()
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("record already exists")

	// ErrInUse is returned when a record cannot be removed because others reference it
	ErrInUse = errors.New("record in use")
)

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Drivers without error translation surface the raw constraint message.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
