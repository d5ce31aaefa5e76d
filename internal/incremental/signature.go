package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SourceRef identifies one configured source root.
type SourceRef struct {
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// ParserRef identifies one parser registration and its options.
type ParserRef struct {
	Kind    string         `json:"kind"` // "file" or "dir"
	Name    string         `json:"name"`
	Options map[string]any `json:"options,omitempty"`
}

// BuildSignature fingerprints everything besides source mtimes that affects
// what a build produces. Cached manifest entries are only valid under the
// signature that produced them.
type BuildSignature struct {
	Sources   []SourceRef    `json:"sources"`
	Parsers   []ParserRef    `json:"parsers"`
	Tunables  map[string]any `json:"tunables,omitempty"`
	BuildHash string         `json:"build_hash"`
}

// ComputeSignature hashes the inputs. Source and parser order is significant
// (merge order and dispatch priority) and is therefore not normalized.
func ComputeSignature(sources []SourceRef, parsers []ParserRef, tunables map[string]any) (*BuildSignature, error) {
	sig := &BuildSignature{
		Sources:  sources,
		Parsers:  parsers,
		Tunables: tunables,
	}

	hash, err := computeSignatureHash(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to compute signature hash: %w", err)
	}
	sig.BuildHash = hash
	return sig, nil
}

// computeSignatureHash computes SHA256 of the signature components, excluding BuildHash.
func computeSignatureHash(sig *BuildSignature) (string, error) {
	normalized := struct {
		Sources  []SourceRef    `json:"sources"`
		Parsers  []ParserRef    `json:"parsers"`
		Tunables map[string]any `json:"tunables"`
	}{
		Sources:  sig.Sources,
		Parsers:  sig.Parsers,
		Tunables: sig.Tunables,
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to marshal signature: %w", err)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
