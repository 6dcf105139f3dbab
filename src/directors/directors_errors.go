package directors

import "errors"

// ErrModelNotFound is returned when no model is loaded under the requested
// cluster.database.collection key.
var ErrModelNotFound = errors.New("model not found")
