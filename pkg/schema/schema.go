// Package schema renders JSON schemas of configuration structs.
package schema

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ToJSONSchema converts a struct to a JSON schema. Field names follow the
// yaml tags and durations are strings such as "10s".
func ToJSONSchema[T any](t T) (string, error) {
	data, err := json.Marshal(reflectSchema(t))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ToIndentedJSONSchema is ToJSONSchema with two-space indentation.
func ToIndentedJSONSchema[T any](t T) (string, error) {
	data, err := json.MarshalIndent(reflectSchema(t), "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func reflectSchema(t any) *jsonschema.Schema {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	r.FieldNameTag = "yaml"
	r.Mapper = func(typ reflect.Type) *jsonschema.Schema {
		if typ == durationType {
			return &jsonschema.Schema{
				Type:        "string",
				Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
				Description: "Go duration, for example 500ms or 10s",
			}
		}

		return nil
	}

	return r.Reflect(t)
}
