// Package schema provides JSON Schema generation for the gateway
// configuration file.
package schema

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/your-org/edge-gateway/internal/config"
)

// Generator generates the JSON schema for gateway configuration.
type Generator struct {
	reflector *jsonschema.Reflector
}

// NewGenerator creates a new schema generator.
func NewGenerator() *Generator {
	r := &jsonschema.Reflector{
		ExpandedStruct: false,
		// Fields are optional unless tagged jsonschema:"required"; they
		// all carry defaults in setDefaults
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Duration string (e.g., '30s', '5m', '1h')",
					Examples:    []interface{}{"10s", "5m", "1h", "30s"},
				}
			}
			return nil
		},
	}

	return &Generator{reflector: r}
}

// Generate produces the configuration schema as indented JSON.
func (g *Generator) Generate() ([]byte, error) {
	schema := g.reflector.Reflect(&config.Config{})
	schema.Title = "Edge Gateway Configuration"
	schema.Description = "Configuration for the edge gateway. " +
		"Every key can be overridden with a GATEWAY_-prefixed environment " +
		"variable, with dots replaced by underscores (e.g. GATEWAY_SERVER_ADDR)."

	return json.MarshalIndent(schema, "", "  ")
}
