package llm

import (
	"reflect"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// outputSchema is the JSON schema of a generation target in both forms: resolved for
// validating model output and converted for constraining the model.
type outputSchema struct {
	resolved *jsonschema.Resolved
	genai    *genai.Schema
}

var schemaCache sync.Map // reflect.Type -> *outputSchema

func schemaFor[T any]() (*outputSchema, error) {
	typ := reflect.TypeFor[T]()
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(*outputSchema), nil
	}

	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer json schema", goerr.V("type", typ.String()))
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve json schema", goerr.V("type", typ.String()))
	}
	converted, err := convertJSONSchemaToGenai(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert json schema", goerr.V("type", typ.String()))
	}

	s := &outputSchema{resolved: resolved, genai: converted}
	schemaCache.Store(typ, s)
	return s, nil
}

// schemaType picks the single type of a schema. Inferred schemas describe slices as
// ["null", "array"], which genai expresses as a nullable array.
func schemaType(schema *jsonschema.Schema) (string, bool) {
	if schema.Type != "" {
		return schema.Type, false
	}

	var typ string
	nullable := false
	for _, t := range schema.Types {
		if t == "null" {
			nullable = true
			continue
		}
		if typ == "" {
			typ = t
		}
	}
	return typ, nullable
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{}

	typ, nullable := schemaType(schema)
	switch typ {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	default:
		if typ != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", typ))
		}
	}
	if nullable {
		genaiSchema.Nullable = genai.Ptr(true)
	}

	if schema.Description != "" {
		genaiSchema.Description = schema.Description
	}

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum = append(genaiSchema.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema)
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
