package domain

import "errors"

// ErrNotFound is returned by SessionStore.Get when no session exists for the
// chat yet.
var ErrNotFound = errors.New("not found")
