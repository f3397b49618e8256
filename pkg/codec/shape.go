package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

// Enum marks a string type whose values form a closed set. Decoding accepts
// only exact, case-sensitive members; the schema emits one literal per member.
type Enum interface {
	EnumValues() []string
}

var (
	enumType   = reflect.TypeOf((*Enum)(nil)).Elem()
	numberType = reflect.TypeOf(json.Number(""))
)

// IsEnum reports whether t declares a closed value set, with EnumValues on
// either the value or the pointer receiver.
func IsEnum(t reflect.Type) bool {
	return t.Kind() == reflect.String && (t.Implements(enumType) || reflect.PointerTo(t).Implements(enumType))
}

// EnumValues returns the declared members of an enum type in declaration order.
func EnumValues(t reflect.Type) []string {
	if !IsEnum(t) {
		return nil
	}
	return reflect.New(t).Interface().(Enum).EnumValues()
}

// PropertyName is the wire name of a struct field: the json tag name when
// present, else the Go name, with the first letter lowered. skip is true for
// unexported fields and `json:"-"`.
func PropertyName(f reflect.StructField) (name string, skip bool) {
	if !f.IsExported() && !f.Anonymous {
		return "", true
	}
	name = f.Name
	if tag, ok := f.Tag.Lookup("json"); ok {
		head, _, _ := strings.Cut(tag, ",")
		if head == "-" {
			return "", true
		}
		if head != "" {
			name = head
		}
	}
	return LowerFirst(name), false
}

func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// DecodeShape converts doc into target, which must be a non-nil pointer.
// Keys match property names case-insensitively. Failures are ArgumentErrors
// on field.
func DecodeShape(field string, doc resource.Document, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(enumHook, strictStringHook, integerRangeHook),
		TagName:    "json",
		Squash:     true,
		Result:     target,
		MatchName:  strings.EqualFold,
	})
	if err != nil {
		return resource.NewArgumentError(field, err)
	}
	if doc == nil {
		doc = resource.Document{}
	}
	if err := dec.Decode(map[string]any(doc)); err != nil {
		return resource.NewArgumentError(field, err)
	}
	return nil
}

func enumHook(from, to reflect.Type, data any) (any, error) {
	if !IsEnum(to) {
		return data, nil
	}
	if from.Kind() != reflect.String || from == numberType {
		return nil, fmt.Errorf("expected one of %v for %s, got %v", EnumValues(to), to.Name(), data)
	}
	s := reflect.ValueOf(data).String()
	allowed := EnumValues(to)
	if !slices.Contains(allowed, s) {
		return nil, fmt.Errorf("%q is not a member of %s %v", s, to.Name(), allowed)
	}
	return s, nil
}

// json.Number has string kind; without this hook a number would silently
// become the string field "3".
func strictStringHook(from, to reflect.Type, data any) (any, error) {
	if from == numberType && to.Kind() == reflect.String && to != numberType {
		return nil, fmt.Errorf("expected string, got number %v", data)
	}
	return data, nil
}

// integerRangeHook rejects numbers that do not fit the target integer kind;
// mapstructure would otherwise truncate them.
func integerRangeHook(from, to reflect.Type, data any) (any, error) {
	if from != numberType {
		return data, nil
	}
	n := data.(json.Number)
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is not a valid %s: %w", n, to, err)
		}
		if reflect.Zero(to).OverflowInt(i) {
			return nil, fmt.Errorf("%s overflows %s", n, to)
		}
		return i, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is not a valid %s: %w", n, to, err)
		}
		if reflect.Zero(to).OverflowUint(u) {
			return nil, fmt.Errorf("%s overflows %s", n, to)
		}
		return u, nil
	}
	return data, nil
}

// EncodeShape renders a typed value as a document whose keys follow
// PropertyName, recursively.
func EncodeShape(v any) (resource.Document, error) {
	if v == nil {
		return resource.Document{}, nil
	}
	raw, err := JSONDocument.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode shape: %w", err)
	}
	var out any
	if err := JSONDocument.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode shape: %w", err)
	}
	m, ok := lowerKeys(out).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("encode shape: %T does not render as an object", v)
	}
	return resource.Document(m), nil
}

func lowerKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[LowerFirst(k)] = lowerKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = lowerKeys(t[i])
		}
		return t
	default:
		return v
	}
}
