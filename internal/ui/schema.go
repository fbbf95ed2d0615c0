package ui

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// MessageDocument models the JSON contract of Message for the schema
// generator. Field values are strings, numbers, booleans or null.
type MessageDocument struct {
	Ver      int            `json:"ver" jsonschema:"required,minimum=1,description=Protocol version"`
	Type     string         `json:"type" jsonschema:"required,enum=ui,description=Message discriminator"`
	Full     bool           `json:"full" jsonschema:"description=Replace the whole overlay page instead of patching fields"`
	Document string         `json:"document,omitempty" jsonschema:"description=Layout document the fields belong to"`
	Fields   map[string]any `json:"fields" jsonschema:"required,description=Selector keyed assignments; null clears the field"`
}

// Schema reflects the JSON schema of the overlay update message.
func Schema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(MessageDocument{}))
	if schema == nil {
		return nil, fmt.Errorf("failed to reflect ui message schema")
	}
	schema.Version = jsonschema.Version
	schema.Title = "Overlay UI Update"
	schema.Description = "Selector keyed field assignments pushed to clients over the websocket."
	return schema, nil
}
