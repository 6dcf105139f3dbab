package model

import (
	"regexp"

	"golang.org/x/text/encoding/charmap"
)

// FieldType is the wire-visible tag stored in the model collection for each field.
type FieldType string

const (
	// TypeMissing is the internal tag for fields that are not declared in the model.
	TypeMissing FieldType = "missing"

	TypeOid     FieldType = "oid"  // $oid - HEX
	TypeDate    FieldType = "date" // $date - ISO
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeDecimal FieldType = "decimal"
	TypeBoolean FieldType = "boolean"
	TypeJSON    FieldType = "json"
	TypeArray   FieldType = "array"
	TypeEmail   FieldType = "email"
	TypePhone   FieldType = "phone"
	TypeCron    FieldType = "cron"
	TypeGeoJSON FieldType = "geoJson"
)

// Encryption selects the secret transform applied to a field's value.
type Encryption string

const (
	EncryptionNone   Encryption = ""
	EncryptionOneWay Encryption = "oneWay"
	EncryptionTwoWay Encryption = "twoWay"
)

var fieldTypes = map[FieldType]bool{
	TypeMissing: true,
	TypeOid:     true,
	TypeDate:    true,
	TypeString:  true,
	TypeInteger: true,
	TypeDecimal: true,
	TypeBoolean: true,
	TypeJSON:    true,
	TypeArray:   true,
	TypeEmail:   true,
	TypePhone:   true,
	TypeCron:    true,
	TypeGeoJSON: true,
}

// Valid reports whether t is one of the known field type tags.
func (t FieldType) Valid() bool {
	return fieldTypes[t]
}

// Fixed validation patterns for the format-bearing types. The cron pattern
// covers the 6/7 part quartz syntax, including names for months and weekdays.
var (
	RegexEmail = regexp.MustCompile(`\A(?:[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*|"(?:[\x01-\x08\x0b\x0c\x0e-\x1f\x21\x23-\x5b\x5d-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])*")@(?:(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?|\[(?:(?:(2(5[0-5]|[0-4][0-9])|1[0-9][0-9]|[1-9]?[0-9]))\.){3}(?:(2(5[0-5]|[0-4][0-9])|1[0-9][0-9]|[1-9]?[0-9])|[a-z0-9-]*[a-z0-9]:(?:[\x01-\x08\x0b\x0c\x0e-\x1f\x21-\x5a\x53-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])+)\])\z`)
	RegexPhone = regexp.MustCompile(`\A[0-9\s+,\-.]*\z`)
	RegexCron  = regexp.MustCompile(`\A\s*($|#|\w+\s*=|(\?|\*|(?:[0-5]?\d)(?:(?:-|/|,)(?:[0-5]?\d))?(?:,(?:[0-5]?\d)(?:(?:-|/|,)(?:[0-5]?\d))?)*)\s+(\?|\*|(?:[0-5]?\d)(?:(?:-|/|,)(?:[0-5]?\d))?(?:,(?:[0-5]?\d)(?:(?:-|/|,)(?:[0-5]?\d))?)*)\s+(\?|\*|(?:[01]?\d|2[0-3])(?:(?:-|/|,)(?:[01]?\d|2[0-3]))?(?:,(?:[01]?\d|2[0-3])(?:(?:-|/|,)(?:[01]?\d|2[0-3]))?)*)\s+(\?|\*|(?:0?[1-9]|[12]\d|3[01])(?:(?:-|/|,)(?:0?[1-9]|[12]\d|3[01]))?(?:,(?:0?[1-9]|[12]\d|3[01])(?:(?:-|/|,)(?:0?[1-9]|[12]\d|3[01]))?)*)\s+(\?|\*|(?:[1-9]|1[012])(?:(?:-|/|,)(?:[1-9]|1[012]))?(?:L|W)?(?:,(?:[1-9]|1[012])(?:(?:-|/|,)(?:[1-9]|1[012]))?(?:L|W)?)*|\?|\*|(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)(?:(?:-)(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC))?(?:,(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)(?:(?:-)(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC))?)*)\s+(\?|\*|(?:[0-6])(?:(?:-|/|,|#)(?:[0-6]))?(?:L)?(?:,(?:[0-6])(?:(?:-|/|,|#)(?:[0-6]))?(?:L)?)*|\?|\*|(?:MON|TUE|WED|THU|FRI|SAT|SUN)(?:(?:-)(?:MON|TUE|WED|THU|FRI|SAT|SUN))?(?:,(?:MON|TUE|WED|THU|FRI|SAT|SUN)(?:(?:-)(?:MON|TUE|WED|THU|FRI|SAT|SUN))?)*)(|\s)+(\?|\*|(?:|\d{4})(?:(?:-|/|,)(?:|\d{4}))?(?:,(?:|\d{4})(?:(?:-|/|,)(?:|\d{4}))?)*))\z`)
)

// Named charsets usable in a field's charset constraint.
var charsets = map[string]*charmap.Charmap{
	"english": charmap.ISO8859_1,
	"greek":   charmap.ISO8859_7,
}

// Charset returns the charmap registered under name, or nil if there is none.
func Charset(name string) *charmap.Charmap {
	return charsets[name]
}
