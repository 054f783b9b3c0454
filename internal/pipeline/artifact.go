// Package pipeline loads and evaluates an externally trained price pipeline.
//
// The artifact is a JSON object tree exported from the training job. Every
// object carries a fully qualified type name; types outside a small built-in
// set are untrusted and must be allowed explicitly before anything is built.
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	// Format identifies a pipeline artifact
	Format = "carprice/pipeline"
	// Version is the artifact layout this package understands
	Version = 1

	maxArtifactSize = 512 << 20
)

// Metadata describes how the artifact was produced. All fields are optional.
type Metadata struct {
	Algorithm string   `json:"algorithm,omitempty"`
	Library   string   `json:"library,omitempty"`
	TrainedAt string   `json:"trained_at,omitempty"`
	NSamples  int      `json:"n_samples,omitempty"`
	Target    string   `json:"target,omitempty"`
	Features  []string `json:"features,omitempty"`
}

// Node is one serialized object in the artifact tree
type Node struct {
	Type     string          `json:"type"`
	Params   json.RawMessage `json:"params,omitempty"`
	Children []Child         `json:"children,omitempty"`
}

// Child is a named edge to a nested object. Columns is only used by column transformers.
type Child struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Node    Node     `json:"node"`
}

// Artifact is a parsed but not yet constructed pipeline
type Artifact struct {
	Format   string   `json:"format"`
	Version  int      `json:"version"`
	Metadata Metadata `json:"metadata"`
	Root     Node     `json:"root"`

	source      string
	fingerprint string
}

// Open reads and parses the artifact at path. Files ending in .gz or .zst are
// decompressed first. Nothing in the tree is constructed.
func Open(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()

	return ReadArtifact(f, path)
}

// ReadArtifact parses an artifact from r. name is used to pick the
// decompression by extension and is reported as the artifact source.
func ReadArtifact(r io.Reader, name string) (*Artifact, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip artifact %s: %w", name, err)
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd artifact %s: %w", name, err)
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(io.LimitReader(r, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("artifact %s exceeds %d bytes", name, maxArtifactSize)
	}

	var a Artifact
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	if a.Format != Format {
		return nil, fmt.Errorf("artifact %s: unknown format %q", name, a.Format)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("artifact %s: unsupported version %d", name, a.Version)
	}
	if a.Root.Type == "" {
		return nil, fmt.Errorf("artifact %s: missing root object", name)
	}

	a.source = name
	a.fingerprint = fmt.Sprintf("%016x", xxhash.Sum64(data))
	return &a, nil
}

// Source returns the path or name the artifact was read from
func (a *Artifact) Source() string {
	return a.source
}

// Fingerprint returns the xxhash64 of the decoded artifact bytes
func (a *Artifact) Fingerprint() string {
	return a.fingerprint
}

// Types returns every object type in the tree, sorted and deduplicated
func (a *Artifact) Types() []string {
	seen := make(map[string]struct{})
	a.Root.walk(func(n *Node) {
		seen[n.Type] = struct{}{}
	})
	return sortedKeys(seen)
}

// UntrustedTypes returns the types in the tree that are not trusted by
// default. They must be passed to Build explicitly.
func (a *Artifact) UntrustedTypes() []string {
	seen := make(map[string]struct{})
	a.Root.walk(func(n *Node) {
		if !isDefaultTrusted(n.Type) {
			seen[n.Type] = struct{}{}
		}
	})
	return sortedKeys(seen)
}

// GetUntrustedTypes opens the artifact at path and lists its untrusted types
func GetUntrustedTypes(path string) ([]string, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}
	return a.UntrustedTypes(), nil
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for i := range n.Children {
		n.Children[i].Node.walk(fn)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
