package engine

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cmsd/src/model"
)

// BuildRelationFilter substitutes every {fieldName} placeholder of the
// relation's filter template with the document's current value for that
// field, quoted per value kind. Only fields without a relation of their own
// are eligible placeholders, a relation cannot feed another relation's
// filter.
func BuildRelationFilter(template string, document bson.M, m *model.Model) string {
	filter := template
	for _, field := range m.Fields {
		if field.Relation != nil {
			continue
		}
		placeholder := "{" + field.Name + "}"
		if !strings.Contains(filter, placeholder) {
			continue
		}
		filter = strings.ReplaceAll(filter, placeholder, queryLiteral(document[field.Name]))
	}
	return filter
}

// queryLiteral renders one document value the way the store's filter syntax
// expects it: extended JSON for object ids and dates, verbatim for decimals,
// comma-joined literals for lists, a quoted literal for everything else.
func queryLiteral(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case primitive.ObjectID:
		return fmt.Sprintf(`{"$oid": "%s"}`, v.Hex())
	case time.Time:
		return fmt.Sprintf(`{"$date": "%s"}`, formatInstant(v))
	case primitive.DateTime:
		return fmt.Sprintf(`{"$date": "%s"}`, formatInstant(v.Time()))
	case primitive.Decimal128:
		return v.String()
	default:
		if list, ok := asList(value); ok {
			parts := make([]string, len(list))
			for i, elem := range list {
				parts[i] = queryLiteral(elem)
			}
			return strings.Join(parts, ",")
		}
		return quoteLiteral(canonicalString(value))
	}
}

// quoteLiteral single-quotes s for a filter template, escaping the characters
// that would otherwise let a document value rewrite the filter's structure.
func quoteLiteral(s string) string {
	var out strings.Builder
	out.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			out.WriteString(`\\`)
		case '\'':
			out.WriteString(`\'`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		default:
			out.WriteRune(r)
		}
	}
	out.WriteByte('\'')
	return out.String()
}

// ParseFilter parses a substituted filter template into a filter document.
// Templates are written in the relaxed quoting of the store's shell, so
// single-quoted strings are normalized to proper JSON strings first.
func ParseFilter(filter string) (bson.M, error) {
	var out bson.M
	if err := bson.UnmarshalExtJSON([]byte(normalizeQuotes(filter)), false, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadRelationFilter, filter, err)
	}
	return out, nil
}

// normalizeQuotes rewrites single-quoted strings to double-quoted ones,
// leaving the contents of double-quoted strings alone.
func normalizeQuotes(s string) string {
	var out strings.Builder
	inDouble := false
	inSingle := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inSingle {
			switch ch {
			case '\'':
				out.WriteByte('"')
				inSingle = false
			case '"':
				out.WriteString(`\"`)
			case '\\':
				if i+1 == len(s) {
					out.WriteByte(ch)
					continue
				}
				i++
				switch s[i] {
				case '\'':
					// an escaped quote needs no escape in a JSON string
					out.WriteByte('\'')
				case '"':
					out.WriteString(`\"`)
				default:
					out.WriteByte(ch)
					out.WriteByte(s[i])
				}
			default:
				out.WriteByte(ch)
			}
			continue
		}

		if inDouble {
			if ch == '\\' {
				out.WriteByte(ch)
				if i+1 < len(s) {
					i++
					out.WriteByte(s[i])
				}
				continue
			}
			if ch == '"' {
				inDouble = false
			}
			out.WriteByte(ch)
			continue
		}

		switch ch {
		case '\'':
			out.WriteByte('"')
			inSingle = true
		case '"':
			out.WriteByte(ch)
			inDouble = true
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}
