package model

import "go.mongodb.org/mongo-driver/bson"

// MetaKey is the reserved document key the pipeline meta is attached under
// at the wire boundary. It never reaches the store.
const MetaKey = "_meta"

// missingField is returned for document keys the model does not declare.
var missingField = Field{Type: TypeMissing}

// Index describes one index ensured on the model's collection at load time.
type Index struct {
	Keys    bson.M `bson:"keys" json:"keys"`
	Unique  bool   `bson:"unique" json:"unique"`
	Sparse  bool   `bson:"sparse" json:"sparse"`
	Name    string `bson:"name,omitempty" json:"name,omitempty"`
	Expires *int32 `bson:"expireAfterSeconds,omitempty" json:"expireAfterSeconds,omitempty"`
}

// Model is the declarative schema of one collection. It is loaded from the
// store's model collection and treated as immutable for the lifetime of a
// pipeline run; a refresh swaps the whole model map, never a Model in place.
type Model struct {
	Cluster    string  `bson:"cluster" json:"cluster"`
	Database   string  `bson:"database" json:"database"`
	Collection string  `bson:"collection" json:"collection"`
	Fields     []Field `bson:"fields" json:"fields"`
	Indexes    []Index `bson:"indexes,omitempty" json:"indexes,omitempty"`
}

// Key identifies the model in the model map.
func (m *Model) Key() string {
	return m.Cluster + "." + m.Database + "." + m.Collection
}

// FindField returns the schema entry for name, or a field of type missing
// when the model does not declare it.
func (m *Model) FindField(name string) Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return missingField
}

// IDFields returns the fields participating in the composite key, in model
// order.
func (m *Model) IDFields() []Field {
	var ids []Field
	for _, f := range m.Fields {
		if f.IsID {
			ids = append(ids, f)
		}
	}
	return ids
}
