package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedType is returned for trusted types this package cannot evaluate
var ErrUnsupportedType = errors.New("unsupported object type")

// defaultTrusted are the estimator and transformer types that are safe to
// construct without an explicit allow-list entry.
var defaultTrusted = map[string]struct{}{
	TypePipeline:          {},
	TypeColumnTransformer: {},
	TypeOneHotEncoder:     {},
	TypeStandardScaler:    {},
	TypePassthrough:       {},
	TypeDrop:              {},
	TypeRandomForest:      {},
	TypeDecisionTree:      {},
	TypeLinearRegression:  {},
	TypeRidge:             {},
	TypeTransformedTarget: {},
}

func isDefaultTrusted(t string) bool {
	_, ok := defaultTrusted[t]
	return ok
}

// DefaultTrusted lists the types trusted without an explicit allow-list entry
func DefaultTrusted() []string {
	return sortedKeys(defaultTrusted)
}

// UntrustedTypesError reports untrusted types present in an artifact but
// missing from the caller's allow list.
type UntrustedTypesError struct {
	Types []string
}

func (e *UntrustedTypesError) Error() string {
	return fmt.Sprintf("artifact contains untrusted types that were not allowed: %s", strings.Join(e.Types, ", "))
}

// Load opens the artifact at path and builds it, allowing only the listed
// untrusted types.
func Load(path string, trusted []string) (*Model, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}
	return a.Build(trusted)
}

// Build constructs the pipeline. The untrusted types of the artifact are
// enumerated first; each one must appear in trusted or nothing is built.
func (a *Artifact) Build(trusted []string) (*Model, error) {
	allowed := make(map[string]struct{}, len(trusted))
	for _, t := range trusted {
		allowed[strings.TrimSpace(t)] = struct{}{}
	}

	untrusted := a.UntrustedTypes()
	var denied, granted []string
	for _, t := range untrusted {
		if _, ok := allowed[t]; ok {
			granted = append(granted, t)
		} else {
			denied = append(denied, t)
		}
	}
	if len(denied) > 0 {
		return nil, &UntrustedTypesError{Types: denied}
	}

	obj, err := build(&a.Root, "root")
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", a.source, err)
	}
	p, ok := obj.(*pipelineModel)
	if !ok {
		return nil, fmt.Errorf("build %s: root must be %s, got %s", a.source, TypePipeline, a.Root.Type)
	}

	return &Model{
		root: p,
		info: Info{
			Source:       a.source,
			Fingerprint:  a.fingerprint,
			Metadata:     a.Metadata,
			Types:        a.Types(),
			TrustedTypes: granted,
		},
	}, nil
}
