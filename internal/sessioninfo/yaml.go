package sessioninfo

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/crbraun/irsdkrec/internal/model"
)

// ParseYAML converts a session-info YAML document into a Node tree. An empty
// document yields a nil tree.
func ParseYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse session info yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return FromYAMLNode(&doc)
}

// FromYAMLNode converts a decoded yaml.Node. Mappings become aggregates in
// document order, sequences become lists and scalars are typed by their
// resolved tag.
func FromYAMLNode(n *yaml.Node) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)
	case yaml.MappingNode:
		out := Aggregate()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: non-scalar mapping key at line %d", model.ErrShapeInference, key.Line)
			}
			child, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(key.Value, child)
		}
		return out, nil
	case yaml.SequenceNode:
		out := List()
		for _, item := range n.Content {
			child, err := FromYAMLNode(item)
			if err != nil {
				return nil, err
			}
			out.Append(child)
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n), nil
	default:
		return nil, fmt.Errorf("%w: yaml node kind %d at line %d", model.ErrShapeInference, n.Kind, n.Line)
	}
}

func scalarFromYAML(n *yaml.Node) *Node {
	switch n.ShortTag() {
	case "!!null":
		return Null()
	case "!!int":
		var v int64
		if err := n.Decode(&v); err == nil {
			return Int(v)
		}
	case "!!float":
		var v float64
		if err := n.Decode(&v); err == nil {
			return Double(v)
		}
	}
	return String(n.Value)
}
