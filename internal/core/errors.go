package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInteraction marks a rating gesture on a slot that does not exist.
	ErrInvalidInteraction = errors.New("invalid rating interaction")
	// ErrInvalidRecord marks a record from the expense API that breaks its contract.
	ErrInvalidRecord = errors.New("invalid expense record")
	// ErrUnsetRating is returned when a form is submitted without a rating.
	ErrUnsetRating = errors.New("satisfaction rating not selected")

	ErrNotFound    = errors.New("expense not found")
	ErrUnavailable = errors.New("expense api unavailable")

	ErrInvalidRating       = errors.New("invalid satisfaction rating")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyTitle          = errors.New("empty title")
	ErrTitleTooLong        = errors.New("title too long (max 100 characters)")
	ErrDescriptionTooLong  = errors.New("description too long (max 500 characters)")
	ErrMissingCategory     = errors.New("category not selected")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrMissingPurchaseDate = errors.New("purchase date required")
)

// InvalidInteractionError reports the offending slot index.
type InvalidInteractionError struct {
	Slot int
}

func (e *InvalidInteractionError) Error() string {
	return fmt.Sprintf("%s: slot %d out of range", ErrInvalidInteraction, e.Slot)
}

func (e *InvalidInteractionError) Unwrap() error { return ErrInvalidInteraction }

// InvalidRecordError reports which field of which record violated the contract.
type InvalidRecordError struct {
	ID    int64
	Field string
	Value string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("%s: id=%d %s=%s", ErrInvalidRecord, e.ID, e.Field, e.Value)
}

func (e *InvalidRecordError) Unwrap() error { return ErrInvalidRecord }
