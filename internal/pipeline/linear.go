package pipeline

import (
	"fmt"
	"math"
)

type linearModel struct {
	coef      []float64
	intercept float64
}

func buildLinear(n *Node, path string) (interface{}, error) {
	var p struct {
		Coef      []float64 `json:"coef"`
		Intercept float64   `json:"intercept"`
		Alpha     float64   `json:"alpha"`
	}
	if err := decodeParams(n, path, &p); err != nil {
		return nil, err
	}
	if len(p.Coef) == 0 {
		return nil, fmt.Errorf("%s: linear model has no coefficients", path)
	}
	return &linearModel{coef: p.Coef, intercept: p.Intercept}, nil
}

func (m *linearModel) predict(x []float64) (float64, error) {
	if len(x) != len(m.coef) {
		return 0, fmt.Errorf("linear: expected %d features, got %d", len(m.coef), len(x))
	}
	sum := m.intercept
	for i, c := range m.coef {
		sum += c * x[i]
	}
	return sum, nil
}

// function is an element-wise numpy ufunc referenced by the artifact
type function func(float64) float64

func log1p(v float64) float64 { return math.Log1p(v) }
func expm1(v float64) float64 { return math.Expm1(v) }
func logFn(v float64) float64 { return math.Log(v) }
func expFn(v float64) float64 { return math.Exp(v) }

func buildFunc(fn function) builderFunc {
	return func(n *Node, path string) (interface{}, error) {
		if len(n.Children) > 0 {
			return nil, fmt.Errorf("%s: function %s takes no children", path, n.Type)
		}
		if err := decodeParams(n, path, &struct{}{}); err != nil {
			return nil, err
		}
		return fn, nil
	}
}

// transformedTarget fits the regressor on func(y); predictions are mapped back
// with inverse_func.
type transformedTarget struct {
	reg     regressor
	inverse function
}

func buildTransformedTarget(n *Node, path string) (interface{}, error) {
	if err := decodeParams(n, path, &struct{}{}); err != nil {
		return nil, err
	}
	t := &transformedTarget{}
	for i := range n.Children {
		c := &n.Children[i]
		childPath := fmt.Sprintf("%s/%s", path, childName(c, i))
		obj, err := build(&c.Node, childPath)
		if err != nil {
			return nil, err
		}
		switch c.Name {
		case "regressor":
			reg, ok := obj.(regressor)
			if !ok {
				return nil, fmt.Errorf("%s: %s is not a regressor", childPath, c.Node.Type)
			}
			t.reg = reg
		case "func":
			if _, ok := obj.(function); !ok {
				return nil, fmt.Errorf("%s: %s is not a function", childPath, c.Node.Type)
			}
		case "inverse_func":
			fn, ok := obj.(function)
			if !ok {
				return nil, fmt.Errorf("%s: %s is not a function", childPath, c.Node.Type)
			}
			t.inverse = fn
		default:
			return nil, fmt.Errorf("%s: unexpected child %q", childPath, c.Name)
		}
	}
	if t.reg == nil {
		return nil, fmt.Errorf("%s: missing regressor", path)
	}
	return t, nil
}

func (t *transformedTarget) predict(x []float64) (float64, error) {
	v, err := t.reg.predict(x)
	if err != nil {
		return 0, err
	}
	if t.inverse != nil {
		v = t.inverse(v)
	}
	return v, nil
}
