package history

import "errors"

// ErrInvalidTransition is returned when a status update does not match the
// entry's current state (or the entry does not exist).
var ErrInvalidTransition = errors.New("invalid status transition")
