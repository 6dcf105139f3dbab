package engine

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// canonicalString renders a value in its canonical wire form: nil as the
// empty string, timestamps as UTC ISO-8601, object ids as lowercase hex,
// decimals via Decimal128. Numeric representation differences (int32 vs
// int64 vs Decimal128 holding the same number) collapse to the same string.
func canonicalString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return formatInstant(v)
	case primitive.DateTime:
		return formatInstant(v.Time())
	case primitive.ObjectID:
		return v.Hex()
	case primitive.Decimal128:
		return v.String()
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	default:
		return fmt.Sprintf("%v", value)
	}
}

// formatInstant matches the ISO instant format used in the stored models and
// in $date extended JSON literals.
func formatInstant(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05.999999999Z")
}

// formatFloat drops the trailing ".0" of integral floats so a JSON-decoded 5
// stringifies the same as an int64 5.
func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", f)
}

// asList normalizes the slice shapes a document value can arrive in.
func asList(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case bson.A:
		return []interface{}(v), true
	case []interface{}:
		return v, true
	case []bson.M:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// asDocument normalizes the map shapes a nested document can arrive in.
func asDocument(value interface{}) (bson.M, bool) {
	switch v := value.(type) {
	case bson.M:
		return v, true
	case map[string]interface{}:
		return bson.M(v), true
	case bson.D:
		return v.Map(), true
	default:
		return nil, false
	}
}
