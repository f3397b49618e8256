package typespec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
)

// NotSupportedError names a member whose Go type has no schema form.
type NotSupportedError struct {
	Shape    string
	Property string
	GoType   string
	Reason   string
}

func (e *NotSupportedError) Error() string {
	msg := fmt.Sprintf("unsupported property type %s for %s.%s", e.GoType, e.Shape, e.Property)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

type cacheKey struct {
	t         reflect.Type
	sensitive bool
}

type walker struct {
	f     *Factory
	cache map[cacheKey]Ref
	// structs whose fields are being flattened right now
	flattening map[reflect.Type]bool
}

func newWalker() *walker {
	return &walker{f: &Factory{}, cache: map[cacheKey]Ref{}, flattening: map[reflect.Type]bool{}}
}

type site struct {
	shape    string
	property string
}

func (w *walker) unsupported(at site, t reflect.Type, reason string) error {
	return &NotSupportedError{Shape: at.shape, Property: at.property, GoType: t.String(), Reason: reason}
}

// ref returns the node for t, creating it on first sight.
func (w *walker) ref(t reflect.Type, sensitive bool, at site) (Ref, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if sensitive && t.Kind() != reflect.String {
		return 0, w.unsupported(at, t, "only strings can be sensitive")
	}
	key := cacheKey{t: t, sensitive: sensitive}
	if r, ok := w.cache[key]; ok {
		return r, nil
	}

	if codec.IsEnum(t) {
		return w.enum(t, at)
	}

	switch t.Kind() {
	case reflect.String:
		return w.cached(key, StringType{Sensitive: sensitive}), nil
	case reflect.Bool:
		return w.cached(key, BooleanType{}), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return w.cached(key, IntegerType{}), nil
	case reflect.Slice, reflect.Array:
		item, err := w.ref(t.Elem(), false, at)
		if err != nil {
			return 0, err
		}
		return w.cached(key, ArrayType{ItemType: item}), nil
	case reflect.Struct:
		return w.object(t)
	default:
		return 0, w.unsupported(at, t, "")
	}
}

func (w *walker) cached(key cacheKey, n Node) Ref {
	r := w.f.Create(n)
	w.cache[key] = r
	return r
}

func (w *walker) enum(t reflect.Type, at site) (Ref, error) {
	values := codec.EnumValues(t)
	if len(values) == 0 {
		return 0, w.unsupported(at, t, "enum declares no members")
	}
	elems := make([]Ref, 0, len(values))
	for _, v := range values {
		elems = append(elems, w.f.Create(StringLiteralType{Value: v}))
	}
	return w.cached(cacheKey{t: t}, UnionType{Elements: elems}), nil
}

// object reserves the slot for t before walking its fields, so a field that
// leads back to t resolves to the reserved index.
func (w *walker) object(t reflect.Type) (Ref, error) {
	r := w.f.reserve()
	w.cache[cacheKey{t: t}] = r

	props, err := w.fields(t, t.Name())
	if err != nil {
		return 0, err
	}
	w.f.fill(r, ObjectType{Name: t.Name(), Properties: props})
	return r, nil
}

// fields lists t's properties, flattening embedded structs in place. An
// embedded struct that leads back to one being flattened has no finite form.
func (w *walker) fields(t reflect.Type, shape string) (Properties, error) {
	w.flattening[t] = true
	defer delete(w.flattening, t)

	var props Properties
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, skip := codec.PropertyName(f)
		if skip {
			continue
		}
		if f.Anonymous && !hasJSONName(f) {
			et := f.Type
			for et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				if w.flattening[et] {
					return nil, &NotSupportedError{Shape: shape, Property: f.Name, GoType: f.Type.String(),
						Reason: "embedded struct embeds itself"}
				}
				inner, err := w.fields(et, shape)
				if err != nil {
					return nil, err
				}
				props = append(props, inner...)
				continue
			}
			if !f.IsExported() {
				continue
			}
		}

		meta, err := parseMeta(f)
		if err != nil {
			return nil, &NotSupportedError{Shape: shape, Property: name, GoType: f.Type.String(), Reason: err.Error()}
		}
		ref, err := w.ref(f.Type, meta.sensitive, site{shape: shape, property: name})
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Name: name, Type: ref, Flags: meta.flags, Description: meta.description})
	}
	return props, nil
}

func hasJSONName(f reflect.StructField) bool {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return false
	}
	head, _, _ := strings.Cut(tag, ",")
	return head != ""
}

type meta struct {
	flags       PropertyFlags
	sensitive   bool
	description string
}

// parseMeta reads `ext:"required,readonly,writeonly,identifier,deploytimeconstant,sensitive"`
// and `description:"..."`.
func parseMeta(f reflect.StructField) (meta, error) {
	m := meta{description: f.Tag.Get("description")}
	tag := f.Tag.Get("ext")
	if tag == "" {
		return m, nil
	}
	for _, opt := range strings.Split(tag, ",") {
		switch strings.TrimSpace(strings.ToLower(opt)) {
		case "":
		case "required":
			m.flags |= FlagRequired
		case "readonly":
			m.flags |= FlagReadOnly
		case "writeonly":
			m.flags |= FlagWriteOnly
		case "identifier":
			m.flags |= FlagIdentifier
		case "deploytimeconstant":
			m.flags |= FlagDeployTimeConstant
		case "sensitive":
			m.sensitive = true
		default:
			return m, fmt.Errorf("unknown ext option %q", opt)
		}
	}
	return m, nil
}
