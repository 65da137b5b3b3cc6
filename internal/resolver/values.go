package resolver

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/schema"
)

// Record is one row, keyed by field name. Resolved relations are attached
// under the relation name: a Record (or nil) for single relations, a
// []Record or []any for collections.
type Record map[string]any

// coerce converts a caller-supplied value into the Go type bound for f.
// nil passes through; nullability is checked by the caller.
func coerce(f schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case schema.TypeIdentifier:
		id, err := toUUID(v)
		if err != nil {
			return nil, badValue(f, v, err)
		}
		return id, nil
	case schema.TypeShortInt:
		n, err := toInt64(v)
		if err == nil && (n < math.MinInt16 || n > math.MaxInt16) {
			err = fmt.Errorf("%d is out of the 16-bit range", n)
		}
		if err != nil {
			return nil, badValue(f, v, err)
		}
		return int16(n), nil
	case schema.TypeLongInt:
		n, err := toInt64(v)
		if err != nil {
			return nil, badValue(f, v, err)
		}
		return n, nil
	case schema.TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		return nil, badValue(f, v, fmt.Errorf("expected a string"))
	}
	return nil, errs.Errorf(errs.ErrKindInvalidField, "field %q has unknown type", f.Name)
}

func badValue(f schema.Field, v any, cause error) error {
	return errs.Wrap(errs.ErrKindInvalidInput,
		fmt.Sprintf("invalid value %v (%T) for %s field %q", v, v, f.Type, f.Name), cause)
}

func toUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case *uuid.UUID:
		if x == nil {
			return uuid.Nil, fmt.Errorf("nil identifier")
		}
		return *x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case string:
		return uuid.Parse(x)
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	case fmt.Stringer:
		return uuid.Parse(x.String())
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to an identifier", v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		return strconv.ParseInt(x.String(), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", v)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

// normalize converts what a driver scanned into the canonical Go type for f:
// uuid.UUID, int16, int64 or string.
func normalize(f schema.Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch f.Type {
	case schema.TypeIdentifier:
		out, err = toUUID(raw)
	case schema.TypeShortInt:
		var n int64
		n, err = toInt64(raw)
		out = int16(n)
	case schema.TypeLongInt:
		out, err = toInt64(raw)
	case schema.TypeText:
		switch s := raw.(type) {
		case string:
			out = s
		case []byte:
			out = string(s)
		default:
			err = fmt.Errorf("unexpected %T", raw)
		}
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed,
			fmt.Sprintf("cannot read column %q as %s", f.Name, f.Type), err)
	}
	return out, nil
}

// normalizeRow keeps the entity's columns of raw, normalised.
func normalizeRow(e *schema.Entity, raw map[string]any) (Record, error) {
	rec := make(Record, len(raw))
	for _, f := range e.Fields() {
		v, err := normalize(f, raw[f.Name])
		if err != nil {
			return nil, err
		}
		rec[f.Name] = v
	}
	return rec, nil
}

// toList spreads a slice of any element type into []any.
func toList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte and [16]byte are single values.
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
