package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"cmsd/src/model"
)

// Validator checks documents against a model and reports findings into a
// Meta per document. It only annotates: a full batch always comes back with
// a meta for every document, never an error.
type Validator struct {
	logger *zap.SugaredLogger
}

func NewValidator(logger *zap.SugaredLogger) *Validator {
	return &Validator{logger: logger}
}

// Validate runs all checks over the batch in arrival order. Duplicate
// composite ids are detected within the batch itself: the first occurrence
// of a key tuple is canonical, every later occurrence is reported.
func (v *Validator) Validate(documents []bson.M, m *model.Model) []*model.Meta {
	metas := make([]*model.Meta, len(documents))
	idFields := m.IDFields()
	seenIDs := make(map[string]bool)

	for i, document := range documents {
		meta := &model.Meta{}
		metas[i] = meta
		if document == nil {
			continue
		}

		v.checkDuplicateID(document, idFields, seenIDs, meta)
		v.checkConstraints(document, m, meta)
		v.checkTypes(document, m, meta)
		v.checkRequired(document, m, meta)
	}
	return metas
}

// checkDuplicateID extracts the document's id tuple and reports it when the
// same tuple appeared earlier in the batch.
func (v *Validator) checkDuplicateID(document bson.M, idFields []model.Field, seen map[string]bool, meta *model.Meta) {
	if len(idFields) == 0 {
		return
	}
	parts := make([]string, len(idFields))
	anyPresent := false
	for i, field := range idFields {
		value, present := document[field.Name]
		if present {
			anyPresent = true
		}
		parts[i] = canonicalString(value)
	}
	if !anyPresent {
		return
	}
	key := strings.Join(parts, "\x00")
	if seen[key] {
		meta.AddValidationError(idKey(idFields), "id already exists in the batch")
		return
	}
	seen[key] = true
}

// checkConstraints applies the regex and charset rules of every model field.
// The regex also runs for absent values, against the empty string, so models
// can force non-empty values with patterns like `.+`.
func (v *Validator) checkConstraints(document bson.M, m *model.Model, meta *model.Meta) {
	for _, field := range m.Fields {
		if field.Regex != "" {
			value := canonicalString(document[field.Name])
			re, err := regexp.Compile(`\A(?:` + field.Regex + `)\z`)
			if err != nil {
				meta.AddValidationError(field.Name, fmt.Sprintf("invalid regex '%s'", field.Regex))
			} else if !re.MatchString(value) {
				meta.AddValidationError(field.Name, fmt.Sprintf("does not match '%s'", field.Regex))
			}
		}
		if field.Charset != "" {
			value, present := document[field.Name]
			if !present {
				continue
			}
			charset := model.Charset(field.Charset)
			if charset == nil {
				meta.AddValidationError(field.Name, fmt.Sprintf("unknown charset '%s'", field.Charset))
				continue
			}
			for _, r := range canonicalString(value) {
				if _, ok := charset.EncodeRune(r); !ok {
					meta.AddValidationError(field.Name, fmt.Sprintf("character '%c' not in charset '%s'", r, field.Charset))
					break
				}
			}
		}
	}
}

// checkTypes dispatches the structural check of every present field on its
// declared type. Fields the model does not declare are reported, not
// rejected.
func (v *Validator) checkTypes(document bson.M, m *model.Model, meta *model.Meta) {
	for name, value := range document {
		if name == model.MetaKey {
			continue
		}
		field := m.FindField(name)
		v.CheckValue(field, name, value, meta)
	}
}

// CheckValue checks a single value against its field's declared type and
// reports findings under name.
func (v *Validator) CheckValue(field model.Field, name string, value interface{}, meta *model.Meta) {
	switch field.EffectiveType() {
	case model.TypeMissing:
		meta.AddValidationError(name, "missing from model")

	case model.TypeBoolean:
		if _, ok := value.(bool); !ok {
			meta.AddValidationError(name, "not boolean")
		}

	case model.TypeDate:
		switch value.(type) {
		case time.Time, primitive.DateTime:
		default:
			meta.AddValidationError(name, "not date")
		}

	case model.TypeOid:
		if _, ok := value.(primitive.ObjectID); !ok {
			meta.AddValidationError(name, "not oid")
		}

	case model.TypeInteger:
		if _, err := strconv.ParseInt(canonicalString(value), 10, 64); err != nil {
			meta.AddValidationError(name, "not integer")
		}

	case model.TypeDecimal:
		if _, err := primitive.ParseDecimal128(canonicalString(value)); err != nil {
			meta.AddValidationError(name, "not decimal")
		}

	case model.TypeString:
		if _, ok := value.(string); !ok {
			meta.AddValidationError(name, "not string")
		}

	case model.TypeJSON:
		doc, isDoc := asDocument(value)
		_, isList := asList(value)
		if !isDoc && !isList {
			meta.AddValidationError(name, "not json")
		}
		if isDoc && field.JSON != nil {
			for key := range field.JSON {
				if _, ok := doc[key]; !ok {
					meta.AddValidationError(name, fmt.Sprintf("field '%s' is missing", key))
				}
			}
		}

	case model.TypeEmail:
		if !model.RegexEmail.MatchString(canonicalString(value)) {
			meta.AddValidationError(name, "not email")
		}

	case model.TypePhone:
		if !model.RegexPhone.MatchString(canonicalString(value)) {
			meta.AddValidationError(name, "not phone")
		}

	case model.TypeCron:
		s, ok := value.(string)
		if !ok {
			meta.AddValidationError(name, "not cron")
		} else if !model.RegexCron.MatchString(s) {
			meta.AddValidationError(name, "not cron expression")
		}

	case model.TypeGeoJSON:
		doc, ok := asDocument(value)
		if !ok {
			meta.AddValidationError(name, "not geoJson")
			return
		}
		if _, hasType := doc["type"]; !hasType {
			meta.AddValidationError(name, "geoJson without type")
		}
		if _, hasCoordinates := doc["coordinates"]; !hasCoordinates {
			meta.AddValidationError(name, "geoJson without coordinates")
		}

	case model.TypeArray:
		list, ok := asList(value)
		if !ok {
			meta.AddValidationError(name, "not array")
			return
		}
		elemField := field.ElementField()
		for i, elem := range list {
			v.CheckValue(elemField, fmt.Sprintf("%s.%d", name, i), elem, meta)
		}
	}
}

// checkRequired reports required model fields absent from the document.
// Relation and virtual fields are filled in by the resolver, their absence
// on the way in is expected.
func (v *Validator) checkRequired(document bson.M, m *model.Model, meta *model.Meta) {
	for _, field := range m.Fields {
		if !field.Required || field.Relation != nil || field.Virtual != "" {
			continue
		}
		if _, ok := document[field.Name]; !ok {
			meta.AddValidationError(field.Name, "required value is missing")
		}
	}
}
