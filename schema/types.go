/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/suparena/itemstore/index"
	"github.com/suparena/itemstore/registry"
)

// Built-in property type names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeUUID    = "uuid"
	TypeBinary  = "binary"
	TypeAny     = "any"
)

func init() {
	registry.RegisterType(TypeString, stringType{})
	registry.RegisterType(TypeInteger, integerType{})
	registry.RegisterType(TypeNumber, numberType{})
	registry.RegisterType(TypeBoolean, booleanType{})
	registry.RegisterType(TypeDate, dateType{})
	registry.RegisterType(TypeUUID, uuidType{})
	registry.RegisterType(TypeBinary, binaryType{})
	registry.RegisterType(TypeAny, anyType{})

	registry.RegisterIndexKind(index.KindEq, func() index.Handler {
		return index.NewEqIndex()
	})
}

func typeError(typ string, v any) error {
	return fmt.Errorf("cannot use %v (%T) as %s", v, v, typ)
}

// passthrough implements Serialize and Deserialize for types stored as-is.
type passthrough struct{}

func (passthrough) Serialize(v any, _ bool) (any, error) { return v, nil }

type stringType struct{ passthrough }

func (stringType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil, string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		return rv.String(), nil
	}
	return nil, typeError(TypeString, v)
}

func (t stringType) Deserialize(raw any) (any, error) { return t.Coerce(raw) }

type integerType struct{ passthrough }

func (integerType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil, typeError(TypeInteger, v)
		}
		return int64(f), nil
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, typeError(TypeInteger, v)
		}
		return i, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return nil, typeError(TypeInteger, v)
		}
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, typeError(TypeInteger, v)
		}
		return int64(f), nil
	}
	return nil, typeError(TypeInteger, v)
}

func (t integerType) Deserialize(raw any) (any, error) { return t.Coerce(raw) }

type numberType struct{ passthrough }

func (numberType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, typeError(TypeNumber, v)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, typeError(TypeNumber, v)
		}
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return nil, typeError(TypeNumber, v)
}

func (t numberType) Deserialize(raw any) (any, error) { return t.Coerce(raw) }

type booleanType struct{ passthrough }

func (booleanType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, typeError(TypeBoolean, v)
		}
		return b, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, typeError(TypeBoolean, v)
		}
		return f != 0, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}
	return nil, typeError(TypeBoolean, v)
}

func (t booleanType) Deserialize(raw any) (any, error) { return t.Coerce(raw) }

// dateType keeps timestamps as strfmt.DateTime and stores them in RFC3339 form.
type dateType struct{}

func (dateType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case strfmt.DateTime:
		return x, nil
	case time.Time:
		return strfmt.DateTime(x), nil
	case strfmt.Date:
		return strfmt.DateTime(time.Time(x)), nil
	case string:
		dt, err := strfmt.ParseDateTime(x)
		if err != nil {
			return nil, typeError(TypeDate, v)
		}
		return dt, nil
	}
	return nil, typeError(TypeDate, v)
}

func (t dateType) Serialize(v any, _ bool) (any, error) {
	c, err := t.Coerce(v)
	if err != nil || c == nil {
		return nil, err
	}
	return c.(strfmt.DateTime).String(), nil
}

func (t dateType) Deserialize(raw any) (any, error) { return t.Coerce(raw) }

type uuidType struct{}

func (uuidType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case strfmt.UUID:
		return parseUUID(string(x))
	case string:
		return parseUUID(x)
	}
	return nil, typeError(TypeUUID, v)
}

func parseUUID(s string) (any, error) {
	if !strfmt.IsUUID(s) {
		return nil, typeError(TypeUUID, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, typeError(TypeUUID, s)
	}
	return id, nil
}

func (t uuidType) Serialize(v any, _ bool) (any, error) {
	c, err := t.Coerce(v)
	if err != nil || c == nil {
		return nil, err
	}
	return c.(uuid.UUID).String(), nil
}

func (t uuidType) Deserialize(raw any) (any, error) { return t.Coerce(raw) }

// binaryType stores raw bytes where the adapter supports it and base64 otherwise.
type binaryType struct{}

func (binaryType) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, typeError(TypeBinary, v)
}

func (t binaryType) Serialize(v any, binary bool) (any, error) {
	c, err := t.Coerce(v)
	if err != nil || c == nil {
		return nil, err
	}
	if binary {
		return c, nil
	}
	return base64.StdEncoding.EncodeToString(c.([]byte)), nil
}

func (binaryType) Deserialize(raw any) (any, error) {
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(x)
		if err != nil {
			return nil, typeError(TypeBinary, raw)
		}
		return b, nil
	}
	return nil, typeError(TypeBinary, raw)
}

type anyType struct{ passthrough }

func (anyType) Coerce(v any) (any, error)        { return v, nil }
func (anyType) Deserialize(raw any) (any, error) { return raw, nil }
