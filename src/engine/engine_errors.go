package engine

import "errors"

// ErrBadRelationFilter is returned when a substituted relation filter does
// not parse as a filter document. It is fatal for the affected document, not
// a Meta finding: a broken template is a model defect the caller must see.
var ErrBadRelationFilter = errors.New("invalid relation filter")
