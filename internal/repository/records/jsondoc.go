package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/mamadbah2/broiler/internal/apperror"
)

// The helpers below are shared by backends that keep documents as JSON
// (memory and sqlite). Ids live outside the body, keyed by the backend.

// EncodeJSON serialises doc for storage.
func EncodeJSON(doc Document) ([]byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}

// DecodeJSON decodes body into out and stamps the id. A body that does not
// fit out is reported as a malformed record of collection.
func DecodeJSON(collection string, body []byte, id int64, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		field := "document"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		return Malformed(collection, id, field, err)
	}
	if doc, ok := out.(Document); ok {
		doc.SetID(id)
	}
	return nil
}

// Row is a stored JSON body plus its id.
type Row struct {
	ID   int64
	Body []byte
}

// Malformed reports a stored document that could not be decoded.
func Malformed(collection string, id int64, field string, err error) error {
	return apperror.MalformedRecord(collection, id, field, "cannot be decoded").Wrap(err)
}

// DecodeAll appends every row of collection to the slice pointed to by out.
func DecodeAll(collection string, rows []Row, out any) error {
	return DecodeEach(len(rows), out, func(i int, elem any) error {
		return DecodeJSON(collection, rows[i].Body, rows[i].ID, elem)
	})
}

// DecodeEach fills the slice pointed to by out with n elements, each handed
// to decode as a pointer to a zero value.
func DecodeEach(n int, out any, decode func(i int, elem any) error) error {
	ptr := reflect.ValueOf(out)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("decode all: out must be a pointer to a slice, got %T", out)
	}
	slice := ptr.Elem()
	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Pointer
	if isPtr {
		elemType = elemType.Elem()
	}

	result := reflect.MakeSlice(slice.Type(), 0, n)
	for i := 0; i < n; i++ {
		elem := reflect.New(elemType)
		if err := decode(i, elem.Interface()); err != nil {
			return err
		}
		if isPtr {
			result = reflect.Append(result, elem)
		} else {
			result = reflect.Append(result, elem.Elem())
		}
	}
	slice.Set(result)
	return nil
}

// FieldEquals reports whether the top-level JSON field of body equals value.
// Numbers compare by value, so int64(3) matches a stored 3.0.
func FieldEquals(body []byte, field string, value any) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false, fmt.Errorf("decode document fields: %w", err)
	}
	stored, ok := fields[field]
	if !ok {
		return false, nil
	}
	want, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode index value: %w", err)
	}
	if bytes.Equal(bytes.TrimSpace(stored), want) {
		return true, nil
	}

	var a, b float64
	if json.Unmarshal(stored, &a) == nil && json.Unmarshal(want, &b) == nil {
		return a == b, nil
	}
	return false, nil
}
