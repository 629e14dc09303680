package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generator reflects a JSON schema from a Go configuration type.
// Uses [github.com/invopop/jsonschema].
type Generator struct {
	value    any
	basePkg  string
	codePath string
}

// NewGenerator creates a [Generator] for value. basePkg and codePath feed
// Go doc comments into the schema descriptions.
func NewGenerator(value any, basePkg, codePath string) *Generator {
	return &Generator{
		value:    value,
		basePkg:  basePkg,
		codePath: codePath,
	}
}

// Generate returns the indented JSON schema document.
func (g *Generator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	err := r.AddGoComments(g.basePkg, g.codePath)
	if err != nil {
		return nil, fmt.Errorf("add go comments: %w", err)
	}

	s := r.Reflect(g.value)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return data, nil
}
