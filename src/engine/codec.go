package engine

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"cmsd/src/model"
	"cmsd/src/secrets"
)

// Codec converts documents between their wire representation (strings,
// numbers, booleans, JSON) and the internal typed representation the store
// and the validator work with. Conversion is best effort: a value that does
// not parse is left unchanged so the validator can report it, instead of the
// whole document failing.
type Codec struct {
	secretKey string
	logger    *zap.SugaredLogger
}

// NewCodec creates a codec hashing and encrypting secret fields under
// secretKey.
func NewCodec(secretKey string, logger *zap.SugaredLogger) *Codec {
	return &Codec{
		secretKey: secretKey,
		logger:    logger,
	}
}

// FromWire converts every declared field of document to its internal typed
// form and applies the field's secret transform. Unknown fields pass through
// unchanged. The document is modified in place and returned.
func (c *Codec) FromWire(document bson.M, m *model.Model) (bson.M, error) {
	if document == nil {
		return nil, nil
	}
	for name, value := range document {
		field := m.FindField(name)
		decoded := decodeValue(field, value)

		switch field.Encryption {
		case model.EncryptionOneWay:
			hashed, err := secrets.HashOneWay(canonicalString(decoded), c.secretKey)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			decoded = hashed
		case model.EncryptionTwoWay:
			encrypted, err := secrets.EncryptTwoWay(canonicalString(decoded), c.secretKey)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			decoded = encrypted
		}

		document[name] = decoded
	}
	return document, nil
}

// decodeValue converts one wire value per the field's type. Parse failures
// leave the value as is.
func decodeValue(field model.Field, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	switch field.EffectiveType() {
	case model.TypeDate:
		if t, err := parseInstant(canonicalString(value)); err == nil {
			return t
		}
		return value
	case model.TypeOid:
		if oid, err := primitive.ObjectIDFromHex(canonicalString(value)); err == nil {
			return oid
		}
		return value
	case model.TypeInteger:
		if n, err := strconv.ParseInt(canonicalString(value), 10, 64); err == nil {
			return n
		}
		return value
	case model.TypeDecimal:
		if d, err := primitive.ParseDecimal128(canonicalString(value)); err == nil {
			return d
		}
		return value
	case model.TypeArray:
		list, ok := asList(value)
		if !ok {
			return value
		}
		elemField := field.ElementField()
		out := make([]interface{}, len(list))
		for i, elem := range list {
			out[i] = decodeValue(elemField, elem)
		}
		return out
	default:
		// string, boolean, json, email, phone, cron, geoJson, missing
		return value
	}
}

// ToWire converts every field of document back to its wire representation.
// One-way encrypted fields are masked, two-way encrypted fields are
// decrypted for display. The document is modified in place and returned.
func (c *Codec) ToWire(document bson.M, m *model.Model) bson.M {
	if document == nil {
		return nil
	}
	for name, value := range document {
		field := m.FindField(name)

		switch field.Encryption {
		case model.EncryptionOneWay:
			document[name] = secrets.Redacted
			continue
		case model.EncryptionTwoWay:
			plain, err := secrets.DecryptTwoWay(canonicalString(value), c.secretKey)
			if err != nil {
				// leave the stored value in place, the caller still gets a document
				c.logger.Warnw("failed to decrypt field", "field", name, "error", err)
				document[name] = value
				continue
			}
			document[name] = plain
			continue
		}

		document[name] = encodeValue(field, value)
	}
	return document
}

// encodeValue is the inverse of decodeValue for the lossy types; everything
// else passes through, recursing into lists and nested documents.
func encodeValue(field model.Field, value interface{}) interface{} {
	if field.EffectiveType() == model.TypeArray {
		if list, ok := asList(value); ok {
			elemField := field.ElementField()
			out := make([]interface{}, len(list))
			for i, elem := range list {
				out[i] = encodeValue(elemField, elem)
			}
			return out
		}
	}
	return encodeWireValue(value)
}

// encodeWireValue rewrites the typed scalars to their wire form wherever
// they appear in a value tree.
func encodeWireValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case time.Time:
		return formatInstant(v)
	case primitive.DateTime:
		return formatInstant(v.Time())
	case bson.A:
		for i, elem := range v {
			v[i] = encodeWireValue(elem)
		}
		return v
	case []interface{}:
		for i, elem := range v {
			v[i] = encodeWireValue(elem)
		}
		return v
	case []bson.M:
		for _, elem := range v {
			encodeWireValue(elem)
		}
		return v
	case bson.M:
		for key, elem := range v {
			v[key] = encodeWireValue(elem)
		}
		return v
	case map[string]interface{}:
		for key, elem := range v {
			v[key] = encodeWireValue(elem)
		}
		return v
	default:
		return value
	}
}

// parseInstant accepts ISO-8601 instants with or without fractional seconds.
func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
