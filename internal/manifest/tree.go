// Package manifest holds the result tree produced by a build, the rules for
// merging trees from several source roots, and its on-disk persistence.
//
// A Tree maps entry names to records. File records are mappings of
// transformer fields plus the walker stamps `path` and `mtime`. Directory
// records are Trees holding their children alongside the same stamps.
// The kind of a record is known to the walker and is not persisted.
package manifest

import (
	"encoding/json"
	"os"
	"strings"
)

// Reserved record keys.
const (
	KeyPath    = "path"
	KeyMTime   = "mtime"
	KeyContent = "content"
)

// Tree is a mapping from entry name to record.
type Tree map[string]any

// AsTree reports whether v is a mapping and returns it as a Tree.
// Decoded manifests hold plain map[string]any values, so both forms are accepted.
func AsTree(v any) (Tree, bool) {
	switch m := v.(type) {
	case Tree:
		return m, m != nil
	case map[string]any:
		return Tree(m), m != nil
	default:
		return nil, false
	}
}

// Sub returns the record stored under name when it is a mapping, nil otherwise.
// It is safe to call on a nil Tree.
func (t Tree) Sub(name string) Tree {
	if t == nil {
		return nil
	}
	sub, _ := AsTree(t[name])
	return sub
}

// MTime returns the numeric mtime stamp of the record.
func (t Tree) MTime() (float64, bool) {
	if t == nil {
		return 0, false
	}
	return toFloat(t[KeyMTime])
}

// Path returns the output-relative directory stamp of the record.
func (t Tree) Path() string {
	s, _ := t[KeyPath].(string)
	return s
}

// HasContent reports whether a transformer set a non-nil content value.
func (t Tree) HasContent() bool {
	v, ok := t[KeyContent]
	return ok && v != nil
}

// Stamp sets the walker-owned keys on the record.
func (t Tree) Stamp(path string, mtime float64) {
	t[KeyPath] = path
	t[KeyMTime] = mtime
}

// Clone returns a deep copy of the nested mappings and slices of t.
// Scalar values are shared.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if sub, ok := AsTree(v); ok {
		return sub.Clone()
	}
	if list, ok := v.([]any); ok {
		cp := make([]any, len(list))
		for i, item := range list {
			cp[i] = cloneValue(item)
		}
		return cp
	}
	return v
}

// Lookup resolves a slash-separated path of entry names. The empty path is the tree itself.
func (t Tree) Lookup(p string) (any, bool) {
	p = strings.Trim(p, "/")
	if p == "" {
		return t, t != nil
	}
	cur := t
	parts := strings.Split(p, "/")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := AsTree(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// MTimeOf converts a file's modification time to the float seconds stored in manifests.
func MTimeOf(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
