package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var value any
	require.NoError(t, json.Unmarshal([]byte(raw), &value))
	return value
}

func TestValidateObject(t *testing.T) {
	s := NewSchema(map[string]*Property{
		"city":  {Type: String, Description: "City name"},
		"units": {Type: String, Enum: []string{"celsius", "fahrenheit"}},
		"days":  {Type: Integer},
	}, "city")

	require.NoError(t, s.Validate(decode(t, `{"city":"Berlin","units":"celsius","days":3}`)))
	require.NoError(t, s.Validate(decode(t, `{"city":"Berlin"}`)))

	err := s.Validate(decode(t, `{"units":"celsius"}`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "city", verr.Path)

	err = s.Validate(decode(t, `{"city":"Berlin","units":"kelvin"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not one of")

	err = s.Validate(decode(t, `{"city":42}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected string")

	// Fractional value for an integer property
	err = s.Validate(decode(t, `{"city":"Berlin","days":1.5}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected integer")
}

func TestValidateNested(t *testing.T) {
	s := NewSchema(map[string]*Property{
		"tags": {Type: Array, Items: &Property{Type: String}},
		"location": {
			Type: Object,
			Properties: map[string]*Property{
				"lat": {Type: Number},
				"lon": {Type: Number},
			},
			Required: []string{"lat", "lon"},
		},
	})

	require.NoError(t, s.Validate(decode(t, `{"tags":["a","b"],"location":{"lat":1.5,"lon":-3}}`)))

	err := s.Validate(decode(t, `{"tags":["a",2]}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "tags[1]")

	err = s.Validate(decode(t, `{"location":{"lat":1.5}}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "location.lon")
}

func TestValidatePattern(t *testing.T) {
	pattern := "^[A-Z]{2}[0-9]+$"
	s := NewSchema(map[string]*Property{
		"code": {Type: String, Pattern: &pattern},
	}, "code")

	require.NoError(t, s.Validate(decode(t, `{"code":"AB123"}`)))

	err := s.Validate(decode(t, `{"code":"ab123"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match pattern")

	bad := "(["
	broken := NewSchema(map[string]*Property{
		"code": {Type: String, Pattern: &bad},
	}, "code")
	err = broken.Validate(decode(t, `{"code":"AB123"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid pattern")
}

func TestValidateUntyped(t *testing.T) {
	// A schema without a type accepts anything
	s := &Schema{}
	require.NoError(t, s.Validate(decode(t, `{"anything":true}`)))
	require.NoError(t, s.Validate(decode(t, `"text"`)))

	// So does a property without a type
	s = NewSchema(map[string]*Property{"payload": {}})
	require.NoError(t, s.Validate(decode(t, `{"payload":[1,2,3]}`)))
}

func TestValidateAdditionalProperties(t *testing.T) {
	disallow := false
	s := &Schema{
		Type:       Object,
		Properties: map[string]*Property{"name": {Type: String}},
	}
	require.NoError(t, s.Validate(decode(t, `{"name":"x","extra":1}`)))

	s2 := NewSchema(map[string]*Property{
		"inner": {
			Type:                 Object,
			Properties:           map[string]*Property{"name": {Type: String}},
			AdditionalProperties: &disallow,
		},
	})
	err := s2.Validate(decode(t, `{"inner":{"name":"x","extra":1}}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "inner.extra")
}
