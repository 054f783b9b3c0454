package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object types understood by the evaluator
const (
	TypePipeline          = "sklearn.pipeline.Pipeline"
	TypeColumnTransformer = "sklearn.compose.ColumnTransformer"
	TypeOneHotEncoder     = "sklearn.preprocessing.OneHotEncoder"
	TypeStandardScaler    = "sklearn.preprocessing.StandardScaler"
	TypePassthrough       = "passthrough"
	TypeDrop              = "drop"
	TypeRandomForest      = "sklearn.ensemble.RandomForestRegressor"
	TypeDecisionTree      = "sklearn.tree.DecisionTreeRegressor"
	TypeLinearRegression  = "sklearn.linear_model.LinearRegression"
	TypeRidge             = "sklearn.linear_model.Ridge"
	TypeTransformedTarget = "sklearn.compose.TransformedTargetRegressor"

	TypeLog1p = "numpy.log1p"
	TypeExpm1 = "numpy.expm1"
	TypeLog   = "numpy.log"
	TypeExp   = "numpy.exp"
)

type builderFunc func(n *Node, path string) (interface{}, error)

var builders map[string]builderFunc

func init() {
	builders = map[string]builderFunc{
		TypePipeline:          buildPipeline,
		TypeColumnTransformer: buildColumnTransformer,
		TypeOneHotEncoder:     buildOneHotEncoder,
		TypeStandardScaler:    buildStandardScaler,
		TypePassthrough:       func(*Node, string) (interface{}, error) { return passthrough{}, nil },
		TypeDrop:              func(*Node, string) (interface{}, error) { return drop{}, nil },
		TypeRandomForest:      buildRandomForest,
		TypeDecisionTree:      buildDecisionTree,
		TypeLinearRegression:  buildLinear,
		TypeRidge:             buildLinear,
		TypeTransformedTarget: buildTransformedTarget,
		TypeLog1p:             buildFunc(log1p),
		TypeExpm1:             buildFunc(expm1),
		TypeLog:               buildFunc(logFn),
		TypeExp:               buildFunc(expFn),
	}
}

// Supported lists every type the evaluator can construct
func Supported() []string {
	m := make(map[string]struct{}, len(builders))
	for t := range builders {
		m[t] = struct{}{}
	}
	return sortedKeys(m)
}

func build(n *Node, path string) (interface{}, error) {
	b, ok := builders[n.Type]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", path, ErrUnsupportedType, n.Type)
	}
	return b(n, path)
}

// decodeParams strictly decodes a node's params into v. Missing params decode
// to the zero value.
func decodeParams(n *Node, path string, v interface{}) error {
	if len(n.Params) == 0 || bytes.Equal(bytes.TrimSpace(n.Params), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(n.Params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s (%s): bad params: %w", path, n.Type, err)
	}
	return nil
}
