// Package pipelinetest builds small pricing artifacts for tests.
package pipelinetest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
)

// Brands known to the fixture encoders, in one-hot order
var Brands = []string{"bmw", "porsche", "toyota"}

// Node builds an artifact node with marshalled params
func Node(typ string, params interface{}, children ...pipeline.Child) pipeline.Node {
	n := pipeline.Node{Type: typ, Children: children}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			panic(err)
		}
		n.Params = raw
	}
	return n
}

// Step names a child node
func Step(name string, n pipeline.Node) pipeline.Child {
	return pipeline.Child{Name: name, Node: n}
}

// Columns names a column transformer child and selects its columns
func Columns(name string, cols []string, n pipeline.Node) pipeline.Child {
	return pipeline.Child{Name: name, Columns: cols, Node: n}
}

// Preprocess encodes enginesize, horsepower and curbweight as-is followed by
// a one-hot CarBrand block: six features in total.
func Preprocess() pipeline.Node {
	return Node(pipeline.TypeColumnTransformer, map[string]string{"remainder": "drop"},
		Columns("num", []string{"enginesize", "horsepower", "curbweight"},
			Node(pipeline.TypePassthrough, nil)),
		Columns("brand", []string{"CarBrand"},
			Node(pipeline.TypeOneHotEncoder, map[string]interface{}{
				"categories":     [][]string{Brands},
				"handle_unknown": "ignore",
			})),
	)
}

// LinearCoef and LinearIntercept define the linear fixture:
// price = 50*enginesize + 60*horsepower + 2*curbweight + brand premium - 1000
var (
	LinearCoef      = []float64{50, 60, 2, 9000, 15000, 0}
	LinearIntercept = -1000.0
)

// Linear returns a fully trusted artifact with a linear regressor
func Linear() *pipeline.Artifact {
	return &pipeline.Artifact{
		Format:   pipeline.Format,
		Version:  pipeline.Version,
		Metadata: pipeline.Metadata{Algorithm: "LinearRegression", NSamples: 205, Target: "price"},
		Root: Node(pipeline.TypePipeline, nil,
			Step("preprocess", Preprocess()),
			Step("model", Node(pipeline.TypeLinearRegression, map[string]interface{}{
				"coef":      LinearCoef,
				"intercept": LinearIntercept,
			})),
		),
	}
}

// Tree returns a DecisionTreeRegressor node over six features with a single
// split on feature <= threshold.
func Tree(feature int, threshold, left, right float64) pipeline.Node {
	return Node(pipeline.TypeDecisionTree, map[string]interface{}{
		"n_features_in":  6,
		"children_left":  []int{1, -1, -1},
		"children_right": []int{2, -1, -1},
		"feature":        []int{feature, -2, -2},
		"threshold":      []float64{threshold, -2, -2},
		"value":          []float64{0, left, right},
	})
}

// Forest returns an artifact whose regressor is a two tree forest trained on
// log1p(price). It references numpy functions, which are untrusted by default.
//
// Tree one splits horsepower at 150 (9.0 / 10.0), tree two splits the bmw
// indicator at 0.5 (9.5 / 10.5).
func Forest() *pipeline.Artifact {
	return &pipeline.Artifact{
		Format:   pipeline.Format,
		Version:  pipeline.Version,
		Metadata: pipeline.Metadata{Algorithm: "RandomForestRegressor", NSamples: 205, Target: "price"},
		Root: Node(pipeline.TypePipeline, nil,
			Step("preprocess", Preprocess()),
			Step("model", Node(pipeline.TypeTransformedTarget, nil,
				Step("regressor", Node(pipeline.TypeRandomForest, map[string]int{"n_estimators": 2},
					Step("0", Tree(1, 150, 9.0, 10.0)),
					Step("1", Tree(3, 0.5, 9.5, 10.5)),
				)),
				Step("func", Node(pipeline.TypeLog1p, nil)),
				Step("inverse_func", Node(pipeline.TypeExpm1, nil)),
			)),
		),
	}
}

// Bytes marshals an artifact to JSON
func Bytes(t testing.TB, a *pipeline.Artifact) []byte {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	return data
}

// Write stores the artifact under dir, compressing it when name ends in .gz or .zst
func Write(t testing.TB, dir, name string, a *pipeline.Artifact) string {
	t.Helper()
	data := Bytes(t, a)

	var buf bytes.Buffer
	switch {
	case strings.HasSuffix(name, ".gz"):
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("gzip artifact: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip artifact: %v", err)
		}
	case strings.HasSuffix(name, ".zst"):
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd artifact: %v", err)
		}
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("zstd artifact: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("zstd artifact: %v", err)
		}
	default:
		buf.Write(data)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// MustBuild builds an artifact, trusting all of its untrusted types
func MustBuild(t testing.TB, a *pipeline.Artifact) *pipeline.Model {
	t.Helper()
	parsed, err := pipeline.ReadArtifact(bytes.NewReader(Bytes(t, a)), "fixture.json")
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	m, err := parsed.Build(parsed.UntrustedTypes())
	if err != nil {
		t.Fatalf("build artifact: %v", err)
	}
	return m
}
