package replay

import (
	"reflect"
	"time"
)

// Doc is the untyped state document a session evolves.
type Doc = map[string]any

// MergeDeep returns a new document with patch applied to base. Nested maps
// merge key by key; every other value, nil included, replaces the target
// wholesale. Neither input is modified and the result shares no mutable
// values with them.
func MergeDeep(base, patch Doc) Doc {
	out, _ := DeepCopy(base).(Doc)
	if out == nil {
		out = Doc{}
	}
	mergeInto(out, patch)
	return out
}

func mergeInto(dst, patch Doc) {
	for key, value := range patch {
		src, ok := value.(Doc)
		if !ok {
			dst[key] = DeepCopy(value)
			continue
		}
		existing, ok := dst[key].(Doc)
		if !ok {
			dst[key] = DeepCopy(src)
			continue
		}
		mergeInto(existing, src)
	}
}

// DeepCopy copies maps and slices recursively. Scalars, strings and
// time.Time values are returned as is.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Doc:
		if val == nil {
			return Doc(nil)
		}
		out := make(Doc, len(val))
		for k, inner := range val {
			out[k] = DeepCopy(inner)
		}
		return out
	case []any:
		if val == nil {
			return []any(nil)
		}
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = DeepCopy(inner)
		}
		return out
	case []string:
		if val == nil {
			return []string(nil)
		}
		return append([]string(nil), val...)
	case string, bool, int, int64, float64, time.Time, time.Duration:
		return val
	}
	return copyReflect(reflect.ValueOf(v)).Interface()
}

func copyReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyElem(iter.Value(), v.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyElem(v.Index(i), v.Type().Elem()))
		}
		return out
	default:
		return v
	}
}

func copyElem(v reflect.Value, typ reflect.Type) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(typ)
		}
		copied := DeepCopy(v.Interface())
		if copied == nil {
			return reflect.Zero(typ)
		}
		return reflect.ValueOf(copied)
	}
	return copyReflect(v)
}
