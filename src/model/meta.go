package model

import "go.mongodb.org/mongo-driver/bson"

// UploadResult partitions change findings by what persisting the document
// would do.
type UploadResult string

const (
	UploadInsert UploadResult = "insert"
	UploadUpdate UploadResult = "update"
)

// Meta is the per-document side channel every pipeline stage annotates.
// It is purely additive output: a non-empty Meta never changes what the
// engine does with the document, acceptance policy belongs to the caller.
type Meta struct {
	ValidationErrors map[string][]string                `bson:"validationErrors,omitempty" json:"validationErrors,omitempty"`
	UploadResults    map[UploadResult]map[string]string `bson:"uploadResults,omitempty" json:"uploadResults,omitempty"`
	RelationFilters  map[string]string                  `bson:"relationFilters,omitempty" json:"relationFilters,omitempty"`
	RelationErrors   map[string][]string                `bson:"relationErrors,omitempty" json:"relationErrors,omitempty"`
}

// AddValidationError appends one error under the field name, keeping
// arrival order.
func (m *Meta) AddValidationError(field, message string) {
	if m.ValidationErrors == nil {
		m.ValidationErrors = make(map[string][]string)
	}
	m.ValidationErrors[field] = append(m.ValidationErrors[field], message)
}

// AddRelationError appends one relation error under the field name.
func (m *Meta) AddRelationError(field, message string) {
	if m.RelationErrors == nil {
		m.RelationErrors = make(map[string][]string)
	}
	m.RelationErrors[field] = append(m.RelationErrors[field], message)
}

// SetRelationFilter records the substituted filter used for a relation
// lookup, for diagnostics.
func (m *Meta) SetRelationFilter(field, filter string) {
	if m.RelationFilters == nil {
		m.RelationFilters = make(map[string]string)
	}
	m.RelationFilters[field] = filter
}

// AddUploadResult records one change finding under the insert or update
// partition.
func (m *Meta) AddUploadResult(result UploadResult, field, message string) {
	if m.UploadResults == nil {
		m.UploadResults = make(map[UploadResult]map[string]string)
	}
	if m.UploadResults[result] == nil {
		m.UploadResults[result] = make(map[string]string)
	}
	m.UploadResults[result][field] = message
}

// NumErrors counts the fields carrying validation errors.
func (m *Meta) NumErrors() int {
	return len(m.ValidationErrors)
}

// IsEmpty reports whether no stage recorded anything.
func (m *Meta) IsEmpty() bool {
	return len(m.ValidationErrors) == 0 &&
		len(m.UploadResults) == 0 &&
		len(m.RelationFilters) == 0 &&
		len(m.RelationErrors) == 0
}

// Document renders the meta in the shape emitted under MetaKey. Empty
// members are absent.
func (m *Meta) Document() bson.M {
	doc := bson.M{}
	if len(m.ValidationErrors) > 0 {
		doc["validationErrors"] = m.ValidationErrors
	}
	if len(m.UploadResults) > 0 {
		doc["uploadResults"] = m.UploadResults
	}
	if len(m.RelationFilters) > 0 {
		doc["relationFilters"] = m.RelationFilters
	}
	if len(m.RelationErrors) > 0 {
		doc["relationErrors"] = m.RelationErrors
	}
	return doc
}
