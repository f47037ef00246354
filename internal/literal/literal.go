// Package literal decodes list-of-mapping literals emitted by telemetry
// collectors, e.g. [{'pid': 1, 'process_name': 'init'}]. Input is parsed as
// data only: YAML anchors, aliases, explicit tags and block style are
// rejected, unquoted scalars must be numbers, booleans or None, and scalars
// are kept as their source text.
package literal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// MaxInputSize bounds the encoded value accepted by DecodeRecords
	MaxInputSize = 1 << 20
	maxDepth     = 32
)

// ErrInvalid is wrapped by every decoding failure
var ErrInvalid = errors.New("invalid literal")

// unquoted scalars must be numbers, booleans or null; text has to be quoted
var plainScalarTags = map[string]bool{
	"!!int":   true,
	"!!float": true,
	"!!bool":  true,
	"!!null":  true,
}

var plainLiterals = map[string]bool{
	"None":  true,
	"True":  true,
	"False": true,
}

// Record is one decoded mapping. Scalars are strings holding the literal
// source text; nested containers are []interface{} and Record.
type Record map[string]interface{}

// Scalar returns the scalar text stored under key
func (r Record) Scalar(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", fmt.Errorf("%w: missing key %q", ErrInvalid, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q is not a scalar", ErrInvalid, key)
	}
	return s, nil
}

// DecodeRecords parses a flow sequence of flow mappings
func DecodeRecords(encoded string) ([]Record, error) {
	if len(encoded) > MaxInputSize {
		return nil, fmt.Errorf("%w: input of %d bytes exceeds %d", ErrInvalid, len(encoded), MaxInputSize)
	}
	trimmed := strings.TrimSpace(encoded)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, fmt.Errorf("%w: expected a bracketed list", ErrInvalid)
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(trimmed)))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing content after list", ErrInvalid)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: expected a single document", ErrInvalid)
	}
	root := doc.Content[0]
	if err := checkContainer(root, yaml.SequenceNode); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(root.Content))
	for i, item := range root.Content {
		if err := checkContainer(item, yaml.MappingNode); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		v, err := convert(item, 1)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		records = append(records, v.(Record))
	}
	return records, nil
}

func checkContainer(n *yaml.Node, kind yaml.Kind) error {
	if n.Kind != kind {
		return fmt.Errorf("%w: unexpected node kind at line %d", ErrInvalid, n.Line)
	}
	if n.Style&yaml.FlowStyle == 0 {
		return fmt.Errorf("%w: block style at line %d", ErrInvalid, n.Line)
	}
	return nil
}

func convert(n *yaml.Node, depth int) (interface{}, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrInvalid, maxDepth)
	}
	if n.Anchor != "" || n.Kind == yaml.AliasNode {
		return nil, fmt.Errorf("%w: anchors and aliases are not allowed (line %d)", ErrInvalid, n.Line)
	}
	if n.Style&yaml.TaggedStyle != 0 {
		return nil, fmt.Errorf("%w: explicit tag %s at line %d", ErrInvalid, n.Tag, n.Line)
	}

	switch n.Kind {
	case yaml.ScalarNode:
		return scalar(n)

	case yaml.SequenceNode:
		if err := checkContainer(n, yaml.SequenceNode); err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.MappingNode:
		if err := checkContainer(n, yaml.MappingNode); err != nil {
			return nil, err
		}
		out := make(Record, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: non-scalar key at line %d", ErrInvalid, k.Line)
			}
			key, err := convert(k, depth+1)
			if err != nil {
				return nil, err
			}
			val, err := convert(v, depth+1)
			if err != nil {
				return nil, err
			}
			name := key.(string)
			if _, dup := out[name]; dup {
				return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalid, name)
			}
			out[name] = val
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: unsupported node at line %d", ErrInvalid, n.Line)
}

func scalar(n *yaml.Node) (interface{}, error) {
	switch {
	case n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0:
		if n.ShortTag() != "!!str" {
			return nil, fmt.Errorf("%w: scalar type %s at line %d", ErrInvalid, n.ShortTag(), n.Line)
		}
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		return nil, fmt.Errorf("%w: block scalar at line %d", ErrInvalid, n.Line)
	case !plainScalarTags[n.ShortTag()] && !plainLiterals[n.Value]:
		return nil, fmt.Errorf("%w: unquoted text %q at line %d", ErrInvalid, n.Value, n.Line)
	}
	return n.Value, nil
}
