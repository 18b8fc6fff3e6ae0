package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// rawSchema mirrors the YAML document before validation.
type rawSchema struct {
	Args      []rawArg           `yaml:"args"`
	Types     map[string]rawType `yaml:"types"`
	LineTypes yaml.Node          `yaml:"line_types"`
}

type rawType struct {
	Type    string      `yaml:"type"`
	Formats []rawFormat `yaml:"formats"`
}

type rawFormat struct {
	Name      string  `yaml:"name"`
	Parser    string  `yaml:"parser"`
	Format    string  `yaml:"format"`
	Normalize *string `yaml:"normalize"`
}

type rawLineType struct {
	Regex  *string           `yaml:"regex"`
	Fields map[string]string `yaml:"fields"`
}

// rawArg accepts either a bare name (required argument) or a mapping
// with name and optional default.
type rawArg struct {
	Name       string
	Default    any
	HasDefault bool
}

// UnmarshalYAML implements custom YAML unmarshaling for rawArg.
func (a *rawArg) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&a.Name)

	case yaml.MappingNode:
		var m struct {
			Name    string `yaml:"name"`
			Default any    `yaml:"default"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		a.Name = m.Name
		a.Default = m.Default
		// An explicit null default still marks the argument required.
		a.HasDefault = m.Default != nil
		return nil

	default:
		return fmt.Errorf("line %d: expected argument name or mapping", node.Line)
	}
}

// orderedLineTypes decodes the line_types mapping, keeping declaration
// order.
func orderedLineTypes(node *yaml.Node) ([]string, []rawLineType, error) {
	if node.Kind == 0 {
		return nil, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("line %d: line_types must be a mapping", node.Line)
	}

	ids := make([]string, 0, len(node.Content)/2)
	defs := make([]rawLineType, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]

		var id string
		if err := key.Decode(&id); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if _, dup := seen[id]; dup {
			return nil, nil, fmt.Errorf("line %d: duplicate line type %q", key.Line, id)
		}
		seen[id] = struct{}{}

		var def rawLineType
		if err := val.Decode(&def); err != nil {
			return nil, nil, fmt.Errorf("line type %q: %w", id, err)
		}

		ids = append(ids, id)
		defs = append(defs, def)
	}

	return ids, defs, nil
}
