package model

import "go.mongodb.org/mongo-driver/bson"

// Relation points a field at another collection. Filter is a templated
// filter document in which every {fieldName} placeholder is substituted with
// the owning document's value for that field before the lookup runs.
type Relation struct {
	Cluster    string `bson:"cluster" json:"cluster"`
	Database   string `bson:"database" json:"database"`
	Collection string `bson:"collection" json:"collection"`
	Filter     string `bson:"filter" json:"filter"`
}

// Field is one schema entry of a Model.
type Field struct {
	// Name is the document key the field describes, unique within a model.
	Name string `bson:"name" json:"name"`

	// IsID marks the field as a participant of the collection's composite key.
	IsID bool `bson:"isId" json:"isId"`

	Type FieldType `bson:"type" json:"type"`

	// ArrayElementType is applied recursively to every element when Type is array.
	ArrayElementType FieldType `bson:"arrayElementType,omitempty" json:"arrayElementType,omitempty"`

	Required bool `bson:"required" json:"required"`

	// Hidden fields never get relation results embedded into the document.
	Hidden bool `bson:"hidden" json:"hidden"`

	// Regex is matched against the whole stringified value, empty string for null.
	Regex string `bson:"regex,omitempty" json:"regex,omitempty"`

	// Charset names a registered charset every character of the value must
	// be encodable in.
	Charset string `bson:"charset,omitempty" json:"charset,omitempty"`

	Encryption Encryption `bson:"encryption,omitempty" json:"encryption,omitempty"`

	Relation *Relation `bson:"relation,omitempty" json:"relation,omitempty"`

	// Virtual is a dotted path "relationField.sub.path" resolved against the
	// first result of the named relation.
	Virtual string `bson:"virtual,omitempty" json:"virtual,omitempty"`

	// IgnoreValidationChanges excludes the field from old-vs-new diffing.
	IgnoreValidationChanges bool `bson:"ignoreValidationChanges" json:"ignoreValidationChanges"`

	// JSON optionally lists keys a json-typed value must contain.
	JSON bson.M `bson:"json,omitempty" json:"json,omitempty"`
}

// EffectiveType resolves the tag actually used for dispatch. An undeclared
// type means string, matching the model documents stored without a type.
func (f Field) EffectiveType() FieldType {
	if f.Type == "" {
		return TypeString
	}
	return f.Type
}

// ElementField derives the per-element schema used when recursing into an
// array value.
func (f Field) ElementField() Field {
	elem := f
	elem.Type = f.ArrayElementType
	elem.ArrayElementType = ""
	if elem.Type == "" {
		elem.Type = TypeString
	}
	return elem
}
