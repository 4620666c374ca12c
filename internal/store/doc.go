// Package store implements the metadata and user stores: Postgres for
// production and Memory for tests and local runs without a database.
package store

import "errors"

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("store: conflict")
