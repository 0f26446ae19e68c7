package llm

import (
	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"
)

func ConvertJSONSchemaToGenaiForTest(schema *jsonschema.Schema) (*genai.Schema, error) {
	return convertJSONSchemaToGenai(schema)
}
