package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"cmsd/src/model"
)

func testValidator() *Validator {
	return NewValidator(zap.NewNop().Sugar())
}

func TestValidateRequiredField(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "age", Type: model.TypeInteger, Required: true},
		},
	}

	metas := testValidator().Validate([]bson.M{{}}, m)
	require.Len(t, metas, 1)
	assert.Equal(t, map[string][]string{
		"age": {"required value is missing"},
	}, metas[0].ValidationErrors)
}

func TestValidateRequiredSkipsRelationAndVirtualFields(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "role", Required: true, Relation: &model.Relation{Collection: "role", Filter: "{}"}},
			{Name: "roleName", Required: true, Virtual: "role.name"},
		},
	}

	metas := testValidator().Validate([]bson.M{{}}, m)
	assert.Empty(t, metas[0].ValidationErrors)
}

func TestValidateDuplicateIDInBatch(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "code", IsID: true, Type: model.TypeString},
		},
	}
	batch := []bson.M{
		{"code": "a1"},
		{"code": "b2"},
		{"code": "a1"},
	}

	metas := testValidator().Validate(batch, m)
	assert.Empty(t, metas[0].ValidationErrors)
	assert.Empty(t, metas[1].ValidationErrors)
	assert.Equal(t, []string{"id already exists in the batch"}, metas[2].ValidationErrors["code"])
}

func TestValidateDuplicateCompositeID(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "country", IsID: true, Type: model.TypeString},
			{Name: "city", IsID: true, Type: model.TypeString},
		},
	}
	batch := []bson.M{
		{"country": "GR", "city": "Athens"},
		{"country": "GR", "city": "Patras"},
		{"country": "GR", "city": "Athens"},
	}

	metas := testValidator().Validate(batch, m)
	assert.Empty(t, metas[0].ValidationErrors)
	assert.Empty(t, metas[1].ValidationErrors)
	assert.Equal(t, []string{"id already exists in the batch"}, metas[2].ValidationErrors["country,city"])
}

func TestValidateTypeMismatches(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "active", Type: model.TypeBoolean},
			{Name: "birthDate", Type: model.TypeDate},
			{Name: "oid", Type: model.TypeOid},
			{Name: "age", Type: model.TypeInteger},
			{Name: "balance", Type: model.TypeDecimal},
			{Name: "name", Type: model.TypeString},
		},
	}
	document := bson.M{
		"active":    "yes",
		"birthDate": "1985-06-01",
		"oid":       "nope",
		"age":       "forty",
		"balance":   "lots",
		"name":      7,
	}

	metas := testValidator().Validate([]bson.M{document}, m)
	errs := metas[0].ValidationErrors
	assert.Equal(t, []string{"not boolean"}, errs["active"])
	assert.Equal(t, []string{"not date"}, errs["birthDate"])
	assert.Equal(t, []string{"not oid"}, errs["oid"])
	assert.Equal(t, []string{"not integer"}, errs["age"])
	assert.Equal(t, []string{"not decimal"}, errs["balance"])
	assert.Equal(t, []string{"not string"}, errs["name"])
}

func TestValidateAcceptsTypedValues(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "active", Type: model.TypeBoolean},
			{Name: "birthDate", Type: model.TypeDate},
			{Name: "oid", Type: model.TypeOid},
			{Name: "age", Type: model.TypeInteger},
			{Name: "balance", Type: model.TypeDecimal},
		},
	}
	balance, err := primitive.ParseDecimal128("10.50")
	require.NoError(t, err)
	document := bson.M{
		"active":    true,
		"birthDate": time.Now(),
		"oid":       primitive.NewObjectID(),
		"age":       int64(42),
		"balance":   balance,
	}

	metas := testValidator().Validate([]bson.M{document}, m)
	assert.Empty(t, metas[0].ValidationErrors)
}

func TestValidateUnknownFieldReported(t *testing.T) {
	m := &model.Model{Fields: []model.Field{{Name: "name", Type: model.TypeString}}}

	metas := testValidator().Validate([]bson.M{{"name": "ok", "extra": 1}}, m)
	assert.Equal(t, []string{"missing from model"}, metas[0].ValidationErrors["extra"])
}

func TestValidateRegex(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "code", Type: model.TypeString, Regex: `[A-Z]{2}\d{3}`},
			{Name: "mandatory", Type: model.TypeString, Regex: `.+`},
		},
	}

	metas := testValidator().Validate([]bson.M{{"code": "AB123", "mandatory": "x"}}, m)
	assert.Empty(t, metas[0].ValidationErrors)

	// the regex also runs against absent values, stringified as ""
	metas = testValidator().Validate([]bson.M{{"code": "nope"}}, m)
	errs := metas[0].ValidationErrors
	assert.Equal(t, []string{"does not match '[A-Z]{2}\\d{3}'"}, errs["code"])
	assert.Equal(t, []string{"does not match '.+'"}, errs["mandatory"])
}

func TestValidateCharset(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "nameEl", Type: model.TypeString, Charset: "greek"},
			{Name: "nameEn", Type: model.TypeString, Charset: "english"},
		},
	}

	metas := testValidator().Validate([]bson.M{{"nameEl": "Αθήνα", "nameEn": "Athens"}}, m)
	assert.Empty(t, metas[0].ValidationErrors)

	metas = testValidator().Validate([]bson.M{{"nameEl": "東京", "nameEn": "Αθήνα"}}, m)
	assert.Len(t, metas[0].ValidationErrors["nameEl"], 1)
	assert.Len(t, metas[0].ValidationErrors["nameEn"], 1)
}

func TestValidateFormats(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "email", Type: model.TypeEmail},
			{Name: "phone", Type: model.TypePhone},
			{Name: "schedule", Type: model.TypeCron},
		},
	}

	metas := testValidator().Validate([]bson.M{{
		"email":    "ada@example.com",
		"phone":    "+30 210 1234567",
		"schedule": "0 0 12 * * ?",
	}}, m)
	assert.Empty(t, metas[0].ValidationErrors)

	metas = testValidator().Validate([]bson.M{{
		"email":    "not-an-email",
		"phone":    "call me",
		"schedule": "whenever",
	}}, m)
	errs := metas[0].ValidationErrors
	assert.Equal(t, []string{"not email"}, errs["email"])
	assert.Equal(t, []string{"not phone"}, errs["phone"])
	assert.Equal(t, []string{"not cron expression"}, errs["schedule"])
}

func TestValidateGeoJSON(t *testing.T) {
	m := &model.Model{Fields: []model.Field{{Name: "location", Type: model.TypeGeoJSON}}}

	metas := testValidator().Validate([]bson.M{{
		"location": bson.M{"type": "Point", "coordinates": []interface{}{23.72, 37.98}},
	}}, m)
	assert.Empty(t, metas[0].ValidationErrors)

	metas = testValidator().Validate([]bson.M{{"location": bson.M{"type": "Point"}}}, m)
	assert.Equal(t, []string{"geoJson without coordinates"}, metas[0].ValidationErrors["location"])

	metas = testValidator().Validate([]bson.M{{"location": "37.98,23.72"}}, m)
	assert.Equal(t, []string{"not geoJson"}, metas[0].ValidationErrors["location"])
}

func TestValidateArrayRecursesPerElement(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "scores", Type: model.TypeArray, ArrayElementType: model.TypeInteger},
		},
	}

	metas := testValidator().Validate([]bson.M{{"scores": []interface{}{int64(1), "two", int64(3)}}}, m)
	assert.Equal(t, []string{"not integer"}, metas[0].ValidationErrors["scores.1"])

	metas = testValidator().Validate([]bson.M{{"scores": "1,2,3"}}, m)
	assert.Equal(t, []string{"not array"}, metas[0].ValidationErrors["scores"])
}

func TestValidateJSONTemplate(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{
			{Name: "settings", Type: model.TypeJSON, JSON: bson.M{"theme": "", "locale": ""}},
		},
	}

	metas := testValidator().Validate([]bson.M{{"settings": bson.M{"theme": "dark"}}}, m)
	assert.Equal(t, []string{"field 'locale' is missing"}, metas[0].ValidationErrors["settings"])

	metas = testValidator().Validate([]bson.M{{"settings": "dark"}}, m)
	assert.Equal(t, []string{"not json"}, metas[0].ValidationErrors["settings"])
}

func TestValidateNeverRejects(t *testing.T) {
	m := &model.Model{
		Fields: []model.Field{{Name: "age", Type: model.TypeInteger, Required: true}},
	}

	// a fully broken batch still yields a meta per document, nothing more
	metas := testValidator().Validate([]bson.M{nil, {"junk": bson.M{"deeply": []interface{}{nil}}}}, m)
	require.Len(t, metas, 2)
	assert.NotNil(t, metas[0])
	assert.NotNil(t, metas[1])
}
