package frontmatter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"
)

// Fields excluded from the fingerprint because they change without the document changing.
var volatileFields = map[string]bool{
	mdfp.FingerprintField: true,
	"lastmod":             true,
	"uid":                 true,
	"aliases":             true,
}

// Fingerprint computes the canonical content fingerprint of a document.
// Frontmatter is re-serialized with sorted keys and LF newlines before hashing,
// so formatting-only edits to the YAML do not change the result.
func Fingerprint(fields map[string]any, body []byte) (string, error) {
	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		if !volatileFields[k] {
			hashed[k] = v
		}
	}

	fm := ""
	if len(hashed) > 0 {
		serialized, err := serializeSorted(hashed)
		if err != nil {
			return "", err
		}
		fm = strings.TrimSuffix(string(serialized), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(fm, string(body)), nil
}

func serializeSorted(fields map[string]any) ([]byte, error) {
	node, err := sortedNode(fields)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sortedNode builds a YAML node tree whose mappings have sorted keys.
func sortedNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		node := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range keys {
			child, err := sortedNode(x[k])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, child)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range x {
			child, err := sortedNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(v); err != nil {
			return nil, err
		}
		return node, nil
	}
}
