package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError describes a mismatch between a JSON value and a schema.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema validation failed: %s", e.Message)
	}
	return fmt.Sprintf("schema validation failed at %s: %s", e.Path, e.Message)
}

func newValidationError(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a decoded JSON value (as produced by encoding/json into
// map[string]any, []any, string, float64, bool, nil) against the schema.
// It returns a *ValidationError describing the first mismatch found.
func (s *Schema) Validate(value any) error {
	if s == nil {
		return nil
	}
	prop := &Property{
		Type:       s.Type,
		Properties: s.Properties,
		Required:   s.Required,
	}
	return validateValue("", prop, value)
}

func validateValue(path string, prop *Property, value any) error {
	if prop == nil || prop.Type == "" {
		return nil // untyped properties accept any value
	}
	if value == nil {
		if prop.Nullable != nil && *prop.Nullable {
			return nil
		}
		if prop.Type == Null {
			return nil
		}
		return newValidationError(path, "expected %s, got null", prop.Type)
	}

	switch prop.Type {
	case String:
		str, ok := value.(string)
		if !ok {
			return newValidationError(path, "expected string, got %T", value)
		}
		if len(prop.Enum) > 0 && !containsString(prop.Enum, str) {
			return newValidationError(path, "value %q is not one of %s", str, strings.Join(prop.Enum, ", "))
		}
		if prop.MinLength != nil && len(str) < *prop.MinLength {
			return newValidationError(path, "string is shorter than %d characters", *prop.MinLength)
		}
		if prop.MaxLength != nil && len(str) > *prop.MaxLength {
			return newValidationError(path, "string is longer than %d characters", *prop.MaxLength)
		}
		if prop.Pattern != nil {
			re, err := regexp.Compile(*prop.Pattern)
			if err != nil {
				return newValidationError(path, "invalid pattern %q: %v", *prop.Pattern, err)
			}
			if !re.MatchString(str) {
				return newValidationError(path, "value %q does not match pattern %q", str, *prop.Pattern)
			}
		}

	case Integer:
		num, ok := value.(float64)
		if !ok {
			return newValidationError(path, "expected integer, got %T", value)
		}
		if num != float64(int64(num)) {
			return newValidationError(path, "expected integer, got %v", num)
		}
		if err := validateRange(path, prop, num); err != nil {
			return err
		}

	case Number:
		num, ok := value.(float64)
		if !ok {
			return newValidationError(path, "expected number, got %T", value)
		}
		if err := validateRange(path, prop, num); err != nil {
			return err
		}

	case Boolean:
		if _, ok := value.(bool); !ok {
			return newValidationError(path, "expected boolean, got %T", value)
		}

	case Array:
		items, ok := value.([]any)
		if !ok {
			return newValidationError(path, "expected array, got %T", value)
		}
		if prop.MinItems != nil && len(items) < *prop.MinItems {
			return newValidationError(path, "array has fewer than %d items", *prop.MinItems)
		}
		if prop.MaxItems != nil && len(items) > *prop.MaxItems {
			return newValidationError(path, "array has more than %d items", *prop.MaxItems)
		}
		for i, item := range items {
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), prop.Items, item); err != nil {
				return err
			}
		}

	case Object:
		obj, ok := value.(map[string]any)
		if !ok {
			return newValidationError(path, "expected object, got %T", value)
		}
		for _, name := range prop.Required {
			if _, found := obj[name]; !found {
				return newValidationError(joinPath(path, name), "required property is missing")
			}
		}
		for name, child := range prop.Properties {
			childValue, found := obj[name]
			if !found {
				continue
			}
			if err := validateValue(joinPath(path, name), child, childValue); err != nil {
				return err
			}
		}
		if prop.AdditionalProperties != nil && !*prop.AdditionalProperties {
			for name := range obj {
				if _, known := prop.Properties[name]; !known {
					return newValidationError(joinPath(path, name), "unexpected property")
				}
			}
		}

	case Null:
		return newValidationError(path, "expected null, got %T", value)
	}
	return nil
}

func validateRange(path string, prop *Property, num float64) error {
	if prop.Minimum != nil && num < *prop.Minimum {
		return newValidationError(path, "value %v is less than minimum %v", num, *prop.Minimum)
	}
	if prop.Maximum != nil && num > *prop.Maximum {
		return newValidationError(path, "value %v is greater than maximum %v", num, *prop.Maximum)
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
