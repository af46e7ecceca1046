package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the type of a request attribute value
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindString
	KindBool
	KindStringList
)

// Value is a request attribute value restricted to a closed set of kinds.
// Keeping the set closed makes condition comparisons total functions.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	List []string
}

// Attributes is the opaque request attribute map a workflow instance carries.
// It is frozen at instance creation and never mutated afterwards.
type Attributes map[string]Value

// Number creates a numeric value
func Number(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// String creates a string value
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Bool creates a boolean value
func Boolean(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// StringList creates a string-list value
func StringList(items ...string) Value {
	return Value{Kind: KindStringList, List: items}
}

// Equal reports structural equality between two values
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == other.Num
	case KindString:
		return v.Str == other.Str
	case KindBool:
		return v.Bool == other.Bool
	case KindStringList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != other.List[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Compare returns -1, 0 or 1 and true when the two values are ordinally
// comparable (numbers with numbers, strings with strings). All other
// combinations report false instead of an error.
func (v Value) Compare(other Value) (int, bool) {
	if v.Kind != other.Kind {
		return 0, false
	}
	switch v.Kind {
	case KindNumber:
		switch {
		case v.Num < other.Num:
			return -1, true
		case v.Num > other.Num:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		return strings.Compare(v.Str, other.Str), true
	}
	return 0, false
}

// AsString returns the stringified form of the value
func (v Value) AsString() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindStringList:
		return strings.Join(v.List, ",")
	}
	return ""
}

// Members returns the value viewed as a set of strings for membership tests.
// Scalars behave as singleton sets.
func (v Value) Members() []string {
	if v.Kind == KindStringList {
		return v.List
	}
	return []string{v.AsString()}
}

// MarshalJSON encodes the value as its native JSON form
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindStringList:
		return json.Marshal(v.List)
	}
	return nil, fmt.Errorf("unknown value kind: %d", v.Kind)
}

// UnmarshalJSON decodes a native JSON scalar or string array into a value
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = Number(t)
	case string:
		*v = String(t)
	case bool:
		*v = Boolean(t)
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("attribute lists may only contain strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = StringList(items...)
	default:
		return fmt.Errorf("unsupported attribute value type: %T", raw)
	}
	return nil
}
