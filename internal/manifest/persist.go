package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// DefaultFileName is the manifest written at the output root.
const DefaultFileName = "all.json"

// ErrColdStart is returned by Load when no previous manifest exists.
// Callers treat it as an empty previous tree.
var ErrColdStart = stderrors.New("manifest: no previous manifest")

// Codec serializes trees to a structured text format.
type Codec interface {
	Marshal(t Tree) ([]byte, error)
	Unmarshal(data []byte) (Tree, error)
}

// JSONCodec writes indented JSON with sorted keys and unescaped HTML.
type JSONCodec struct{}

func (JSONCodec) Marshal(t Tree) ([]byte, error) {
	if t == nil {
		t = Tree{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (JSONCodec) Unmarshal(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return normalize(t), nil
}

// YAMLCodec writes the tree as a YAML document.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(t Tree) ([]byte, error) {
	if t == nil {
		t = Tree{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(t)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Unmarshal(data []byte) (Tree, error) {
	var t map[string]any
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return normalize(Tree(t)), nil
}

// CodecFor picks a codec from the manifest file extension. JSON is the default.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}

// Save writes the tree to path. The file is replaced atomically, so a failed
// write leaves any previous manifest intact.
func Save(t Tree, path string) error {
	data, err := CodecFor(path).Marshal(t)
	if err != nil {
		return errors.ManifestError("encode manifest").
			WithContext("path", path).WithCause(err).Build()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.ManifestError("create temporary manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.ManifestError("write manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.ManifestError("sync manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.ManifestError("close manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.ManifestError("chmod manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.ManifestError("replace manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	return nil
}

// Load reads a manifest. A missing file yields ErrColdStart; every other
// failure is a classified manifest error.
func Load(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, ErrColdStart
		}
		return nil, errors.ManifestError("read manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	t, err := CodecFor(path).Unmarshal(data)
	if err != nil {
		return nil, errors.ManifestError("parse manifest").
			WithContext("path", path).WithCause(err).Build()
	}
	if t == nil {
		t = Tree{}
	}
	return t, nil
}

// LoadOrEmpty is Load with the cold start folded into an empty tree.
func LoadOrEmpty(path string) (Tree, error) {
	t, err := Load(path)
	if stderrors.Is(err, ErrColdStart) {
		return Tree{}, nil
	}
	return t, err
}

// Hash returns the sha256 of the canonical JSON encoding of t.
func Hash(t Tree) (string, error) {
	data, err := JSONCodec{}.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalize converts nested decoded mappings into Trees and integers into
// float64, so JSON and YAML manifests decode to the same values.
func normalize(t Tree) Tree {
	if t == nil {
		return nil
	}
	for k, v := range t {
		t[k] = normalizeValue(v)
	}
	return t
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return normalize(Tree(x))
	case Tree:
		return normalize(x)
	case []any:
		for i := range x {
			x[i] = normalizeValue(x[i])
		}
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return v
	}
}
