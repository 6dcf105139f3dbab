package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelKey(t *testing.T) {
	m := &Model{Cluster: "main", Database: "cms", Collection: "user"}
	assert.Equal(t, "main.cms.user", m.Key())
}

func TestFindFieldMissing(t *testing.T) {
	m := &Model{Fields: []Field{{Name: "name", Type: TypeString}}}

	assert.Equal(t, "name", m.FindField("name").Name)

	missing := m.FindField("nope")
	assert.Equal(t, TypeMissing, missing.Type)
	assert.Empty(t, missing.Name)
}

func TestIDFields(t *testing.T) {
	m := &Model{Fields: []Field{
		{Name: "country", IsID: true},
		{Name: "city", IsID: true},
		{Name: "population"},
	}}

	ids := m.IDFields()
	require.Len(t, ids, 2)
	assert.Equal(t, "country", ids[0].Name)
	assert.Equal(t, "city", ids[1].Name)
}

func TestEffectiveTypeDefaultsToString(t *testing.T) {
	assert.Equal(t, TypeString, Field{}.EffectiveType())
	assert.Equal(t, TypeInteger, Field{Type: TypeInteger}.EffectiveType())
}

func TestElementFieldInheritsConstraints(t *testing.T) {
	f := Field{
		Name:             "codes",
		Type:             TypeArray,
		ArrayElementType: TypeInteger,
		Required:         true,
		Regex:            "[0-9]+",
	}

	elem := f.ElementField()
	assert.Equal(t, TypeInteger, elem.Type)
	assert.Empty(t, elem.ArrayElementType)
	assert.Equal(t, "[0-9]+", elem.Regex)

	// untyped elements fall back to string
	assert.Equal(t, TypeString, Field{Type: TypeArray}.ElementField().Type)
}

func TestFieldTypeValid(t *testing.T) {
	assert.True(t, TypeGeoJSON.Valid())
	assert.True(t, TypeCron.Valid())
	assert.False(t, FieldType("blob").Valid())
}

func TestCharsetLookup(t *testing.T) {
	assert.NotNil(t, Charset("greek"))
	assert.NotNil(t, Charset("english"))
	assert.Nil(t, Charset("klingon"))
}

func TestMetaDocumentOmitsEmptyMembers(t *testing.T) {
	meta := &Meta{}
	assert.True(t, meta.IsEmpty())
	assert.Empty(t, meta.Document())

	meta.AddValidationError("age", "value is not integer")
	meta.AddValidationError("age", "required value is missing")
	meta.SetRelationFilter("userRel", "{'_id': 'x'}")

	assert.False(t, meta.IsEmpty())
	assert.Equal(t, 1, meta.NumErrors())

	doc := meta.Document()
	assert.Contains(t, doc, "validationErrors")
	assert.Contains(t, doc, "relationFilters")
	assert.NotContains(t, doc, "uploadResults")
	assert.NotContains(t, doc, "relationErrors")
	assert.Equal(t,
		[]string{"value is not integer", "required value is missing"},
		meta.ValidationErrors["age"])
}

func TestMetaUploadResultPartitions(t *testing.T) {
	meta := &Meta{}
	meta.AddUploadResult(UploadInsert, "name", "does not exist, will be inserted")
	meta.AddUploadResult(UploadUpdate, "age", "'36' -> '37'")

	assert.Equal(t, "does not exist, will be inserted", meta.UploadResults[UploadInsert]["name"])
	assert.Equal(t, "'36' -> '37'", meta.UploadResults[UploadUpdate]["age"])
	// upload findings alone are not validation errors
	assert.Equal(t, 0, meta.NumErrors())
}
