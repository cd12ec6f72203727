/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankTime
	rankUUID
	rankBytes
	rankOther
)

// Compare orders arbitrary property values. Values of different kinds are ordered
// nil < bool < number < string < time < uuid < bytes < anything else.
func Compare(a, b any) int {
	ra, va := normalize(a)
	rb, vb := normalize(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNil:
		return 0
	case rankBool:
		x, y := va.(bool), vb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case rankNumber:
		return compareNumbers(va, vb)
	case rankString:
		return strings.Compare(va.(string), vb.(string))
	case rankTime:
		return va.(time.Time).Compare(vb.(time.Time))
	case rankUUID:
		x, y := va.(uuid.UUID), vb.(uuid.UUID)
		return bytes.Compare(x[:], y[:])
	case rankBytes:
		return bytes.Compare(va.([]byte), vb.([]byte))
	default:
		return strings.Compare(fmt.Sprint(va), fmt.Sprint(vb))
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func normalize(v any) (int, any) {
	switch x := v.(type) {
	case nil:
		return rankNil, nil
	case bool:
		return rankBool, x
	case string:
		return rankString, x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return rankNumber, i
		}
		f, err := x.Float64()
		if err != nil {
			return rankString, x.String()
		}
		return rankNumber, f
	case time.Time:
		return rankTime, x
	case strfmt.DateTime:
		return rankTime, time.Time(x)
	case strfmt.Date:
		return rankTime, time.Time(x)
	case uuid.UUID:
		return rankUUID, x
	case []byte:
		return rankBytes, x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return rankNil, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rankNumber, rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return rankNumber, float64(u)
		}
		return rankNumber, int64(u)
	case reflect.Float32, reflect.Float64:
		return rankNumber, rv.Float()
	case reflect.String:
		return rankString, rv.String()
	}
	return rankOther, v
}

func compareNumbers(a, b any) int {
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt {
		return cmpInt64(ia, ib)
	}

	fa, fb := toFloat(a), toFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	case fa == fb:
		return 0
	}
	// NaN sorts first
	return cmpInt(boolInt(!math.IsNaN(fa)), boolInt(!math.IsNaN(fb)))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v.(float64)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
