// Package sentinel holds infrastructure errors shared by every store.
package sentinel

import "errors"

// ErrNotFound is returned (optionally wrapped) when a key does not exist in a
// store. Handlers translate it to a 404; the pipeline treats it as a miss.
var ErrNotFound = errors.New("not found")
