package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicateKey is returned when a write violates a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrNotApplied is returned when a conditional update matched no row.
var ErrNotApplied = errors.New("conditional update not applied")

// ErrInvalidTransition is returned for a membership status change the state
// machine does not allow.
var ErrInvalidTransition = errors.New("invalid membership transition")

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}

// translate maps driver errors onto repository sentinels. Not-found rows are
// returned unchanged as gorm.ErrRecordNotFound.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}
