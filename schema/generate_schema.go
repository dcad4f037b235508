package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Generate derives a JSON schema from a Go value using reflection. Struct
// fields map to object properties using their json tags; a field is required
// unless its tag carries omitempty or a `required` tag overrides it.
//
// Supported field tags: description, enum (comma-separated), required,
// nullable, pattern, format, minLength, maxLength, minimum, maximum,
// minItems, maxItems.
func Generate(v any) (*Schema, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil value")
	}
	prop, err := propertyFor(t)
	if err != nil {
		return nil, err
	}
	s := &Schema{Type: prop.Type}
	if prop.Type == Object {
		s.Properties = prop.Properties
		s.Required = prop.Required
		s.AdditionalProperties = prop.AdditionalProperties
	}
	return s, nil
}

func propertyFor(t reflect.Type) (*Property, error) {
	switch t.Kind() {
	case reflect.String:
		return &Property{Type: String}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Property{Type: Integer}, nil
	case reflect.Float32, reflect.Float64:
		return &Property{Type: Number}, nil
	case reflect.Bool:
		return &Property{Type: Boolean}, nil
	case reflect.Slice, reflect.Array:
		items, err := propertyFor(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("invalid element type: %w", err)
		}
		return &Property{Type: Array, Items: items}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", t.Key().Kind())
		}
		// Value constraints are not representable, so any value is allowed
		return &Property{Type: Object}, nil
	case reflect.Struct:
		return structProperty(t)
	case reflect.Pointer:
		prop, err := propertyFor(t.Elem())
		if err != nil {
			return nil, err
		}
		nullable := true
		prop.Nullable = &nullable
		return prop, nil
	case reflect.Interface:
		// Any JSON value is acceptable
		return &Property{}, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

func structProperty(t reflect.Type) (*Property, error) {
	properties := make(map[string]*Property)
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, fieldRequired := fieldName(field)
		if name == "" {
			continue
		}
		prop, err := propertyFor(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		applyFieldTags(prop, field)
		if fieldRequired {
			required = append(required, name)
		}
		properties[name] = prop
	}

	additional := false
	return &Property{
		Type:                 Object,
		Properties:           properties,
		Required:             required,
		AdditionalProperties: &additional,
	}, nil
}

// fieldName resolves the JSON name and requiredness of a struct field. An
// empty name means the field is excluded.
func fieldName(field reflect.StructField) (string, bool) {
	name := field.Name
	required := true

	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] == "-" {
			return "", false
		}
		if parts[0] != "" {
			name = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				required = false
			}
		}
	}
	if tag := field.Tag.Get("required"); tag != "" {
		if value, err := strconv.ParseBool(tag); err == nil {
			required = value
		}
	}
	return name, required
}

func applyFieldTags(prop *Property, field reflect.StructField) {
	if desc := field.Tag.Get("description"); desc != "" {
		prop.Description = desc
	}
	if enum := field.Tag.Get("enum"); enum != "" {
		prop.Enum = strings.Split(enum, ",")
	}
	if tag := field.Tag.Get("nullable"); tag != "" {
		if value, err := strconv.ParseBool(tag); err == nil {
			prop.Nullable = &value
		}
	}
	if pattern := field.Tag.Get("pattern"); pattern != "" {
		prop.Pattern = &pattern
	}
	if format := field.Tag.Get("format"); format != "" {
		prop.Format = &format
	}
	prop.MinLength = intTag(field, "minLength")
	prop.MaxLength = intTag(field, "maxLength")
	prop.Minimum = floatTag(field, "minimum")
	prop.Maximum = floatTag(field, "maximum")
	prop.MinItems = intTag(field, "minItems")
	prop.MaxItems = intTag(field, "maxItems")
}

func intTag(field reflect.StructField, name string) *int {
	tag := field.Tag.Get(name)
	if tag == "" {
		return nil
	}
	value, err := strconv.Atoi(tag)
	if err != nil {
		return nil
	}
	return &value
}

func floatTag(field reflect.StructField, name string) *float64 {
	tag := field.Tag.Get(name)
	if tag == "" {
		return nil
	}
	value, err := strconv.ParseFloat(tag, 64)
	if err != nil {
		return nil
	}
	return &value
}
