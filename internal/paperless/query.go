package paperless

import (
	"encoding/json"
	"fmt"
)

// Query is a Paperless custom_field_query predicate: a JSON array tree of
// [field, operator, operand] leaves composable with boolean operators.
// See https://docs.paperless-ngx.com/api/#filtering-by-custom-fields
type Query []any

// FieldExists matches documents where the named custom field is present
// (or absent, with exists=false).
func FieldExists(name string, exists bool) Query {
	return Query{name, "exists", exists}
}

// FieldIStartsWith matches documents whose field value starts with prefix,
// case-insensitively.
func FieldIStartsWith(name, prefix string) Query {
	return Query{name, "istartswith", prefix}
}

// Not negates a query.
func Not(q Query) Query {
	return Query{"NOT", []any(q)}
}

func (q Query) encode() (string, error) {
	data, err := json.Marshal([]any(q))
	if err != nil {
		return "", fmt.Errorf("encode custom field query: %w", err)
	}
	return string(data), nil
}
