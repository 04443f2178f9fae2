package catalog

import "github.com/invopop/jsonschema"

// Schema reflects the catalog document format into a JSON schema so editors
// can validate authored chain files.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Document))
	schema.Title = "Emberfall Decay Chain Catalog"
	schema.Description = "Validates designer-authored decay chains in config/chains.yaml"
	return schema
}
