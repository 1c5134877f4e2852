package tool

// Schema is an LLM-compatible function-calling schema derived from Metadata.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is the object schema for a tool's arguments.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes one argument within a ParameterSchema.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Schema derives the function-calling schema for this metadata. It is a pure
// function of the metadata: it needs no initialization state and works for a
// tool that has never been invoked.
func (m Metadata) Schema() Schema {
	props := make(map[string]PropertySchema, len(m.Parameters))
	required := make([]string, 0, len(m.Parameters))

	for _, p := range m.Parameters {
		props[p.Name] = PropertySchema{
			Type:        p.Type,
			Description: p.Description,
			Enum:        p.Enum,
			Default:     p.Default,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return Schema{
		Name:        m.Name,
		Description: m.Description,
		Parameters: ParameterSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}
