package store

import "errors"

// ErrUnknownCluster is returned when a model or relation points at a cluster
// no connection was configured for.
var ErrUnknownCluster = errors.New("unknown cluster")
