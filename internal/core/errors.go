package core

import "errors"

// ErrNotFound is returned when no sale exists for the given ID.
var ErrNotFound = errors.New("sale not found")

// ErrValidation is returned when a creation request carries an invalid
// amount or an unsupported currency.
var ErrValidation = errors.New("invalid sale request")

// ErrDuplicateID is returned when the store already holds a sale with the
// freshly generated ID. Safe to retry creation; a new ID will be drawn.
var ErrDuplicateID = errors.New("duplicate sale id")

// ErrStaleTransition is returned when a compare-and-swap transition finds
// the sale no longer in the expected prior status. The store leaves the
// record untouched; callers racing toward the same target status treat
// this as success-with-current-state.
var ErrStaleTransition = errors.New("stale status transition")
