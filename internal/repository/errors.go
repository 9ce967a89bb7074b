// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// tour service and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist.  It
// replaces sql.ErrNoRows at the repository boundary so the in-memory
// store and the MySQL store report absence the same way.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of a
// uniqueness or foreign key violation, such as creating a guide with an
// e-mail that is already registered.  Handlers translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")
