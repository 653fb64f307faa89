// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the purchase pipeline to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
    "database/sql"
    "errors"
    "fmt"
)

// ErrNotFound is returned when a lookup matches no row.  It wraps
// sql.ErrNoRows so callers may test for either.  Handlers should
// translate this into an HTTP 404 response.
var ErrNotFound = fmt.Errorf("not found: %w", sql.ErrNoRows)

// ErrConflict is returned when an update cannot be performed because the
// row is not in the expected state, such as claiming a listing that has
// already been dispatched or is being dispatched by another caller.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// notFound maps sql.ErrNoRows onto ErrNotFound and leaves other errors as is.
func notFound(err error) error {
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    return err
}
