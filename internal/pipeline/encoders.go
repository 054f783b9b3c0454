package pipeline

import (
	"fmt"

	"github.com/IlyassOtmani/car-price-ml/internal/record"
)

// recordEncoder turns a labeled row into a feature vector
type recordEncoder interface {
	encodeRecord(rec record.Record) ([]float64, error)
}

// columnEncoder encodes the cells selected by a column transformer
type columnEncoder interface {
	encodeColumns(vals []record.Value) ([]float64, error)
}

// vectorTransformer maps a feature vector to another feature vector
type vectorTransformer interface {
	transform(x []float64) ([]float64, error)
}

// fixedWidth is implemented by encoders fitted on a known number of columns
type fixedWidth interface {
	inputs() int
}

type passthrough struct{}

func (passthrough) encodeColumns(vals []record.Value) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v.IsText {
			return nil, fmt.Errorf("passthrough: column %d holds text %q", i, v.Text)
		}
		out[i] = v.Num
	}
	return out, nil
}

func (passthrough) transform(x []float64) ([]float64, error) {
	return x, nil
}

type drop struct{}

func (drop) encodeColumns([]record.Value) ([]float64, error) {
	return nil, nil
}

type columnSpec struct {
	name    string
	columns []string
	enc     columnEncoder
}

type columnTransformer struct {
	specs     []columnSpec
	remainder string
	used      map[string]struct{}
}

func buildColumnTransformer(n *Node, path string) (interface{}, error) {
	var p struct {
		Remainder string `json:"remainder"`
	}
	if err := decodeParams(n, path, &p); err != nil {
		return nil, err
	}
	switch p.Remainder {
	case "":
		p.Remainder = TypeDrop
	case TypeDrop, TypePassthrough:
	default:
		return nil, fmt.Errorf("%s: remainder must be drop or passthrough, got %q", path, p.Remainder)
	}
	if len(n.Children) == 0 {
		return nil, fmt.Errorf("%s: column transformer has no transformers", path)
	}

	ct := &columnTransformer{remainder: p.Remainder, used: make(map[string]struct{})}
	for i := range n.Children {
		c := &n.Children[i]
		childPath := fmt.Sprintf("%s/%s", path, childName(c, i))
		if len(c.Columns) == 0 {
			return nil, fmt.Errorf("%s: no columns selected", childPath)
		}
		obj, err := build(&c.Node, childPath)
		if err != nil {
			return nil, err
		}
		enc, ok := obj.(columnEncoder)
		if !ok {
			return nil, fmt.Errorf("%s: %s cannot encode columns", childPath, c.Node.Type)
		}
		if fw, ok := enc.(fixedWidth); ok && fw.inputs() != len(c.Columns) {
			return nil, fmt.Errorf("%s: fitted on %d columns, %d selected", childPath, fw.inputs(), len(c.Columns))
		}
		for _, col := range c.Columns {
			ct.used[col] = struct{}{}
		}
		ct.specs = append(ct.specs, columnSpec{name: c.Name, columns: c.Columns, enc: enc})
	}
	return ct, nil
}

func (ct *columnTransformer) encodeRecord(rec record.Record) ([]float64, error) {
	var out []float64
	for _, s := range ct.specs {
		vals := make([]record.Value, len(s.columns))
		for i, col := range s.columns {
			v, ok := rec.Get(col)
			if !ok {
				return nil, fmt.Errorf("column %q missing from input record", col)
			}
			vals[i] = v
		}
		enc, err := s.enc.encodeColumns(vals)
		if err != nil {
			return nil, fmt.Errorf("transformer %s: %w", s.name, err)
		}
		out = append(out, enc...)
	}

	if ct.remainder == TypePassthrough {
		for _, col := range rec.Columns() {
			if _, ok := ct.used[col]; ok {
				continue
			}
			v, _ := rec.Get(col)
			if v.IsText {
				return nil, fmt.Errorf("remainder column %q holds text", col)
			}
			out = append(out, v.Num)
		}
	}
	return out, nil
}

type oneHotEncoder struct {
	categories    [][]string
	index         []map[string]int
	ignoreUnknown bool
}

func buildOneHotEncoder(n *Node, path string) (interface{}, error) {
	var p struct {
		Categories    [][]string `json:"categories"`
		HandleUnknown string     `json:"handle_unknown"`
	}
	if err := decodeParams(n, path, &p); err != nil {
		return nil, err
	}
	if len(p.Categories) == 0 {
		return nil, fmt.Errorf("%s: one-hot encoder has no categories", path)
	}

	e := &oneHotEncoder{categories: p.Categories}
	switch p.HandleUnknown {
	case "", "error":
	case "ignore", "infrequent_if_exist":
		e.ignoreUnknown = true
	default:
		return nil, fmt.Errorf("%s: unknown handle_unknown %q", path, p.HandleUnknown)
	}

	e.index = make([]map[string]int, len(p.Categories))
	for j, cats := range p.Categories {
		if len(cats) == 0 {
			return nil, fmt.Errorf("%s: column %d has no categories", path, j)
		}
		e.index[j] = make(map[string]int, len(cats))
		for k, c := range cats {
			if _, dup := e.index[j][c]; dup {
				return nil, fmt.Errorf("%s: column %d lists category %q twice", path, j, c)
			}
			e.index[j][c] = k
		}
	}
	return e, nil
}

func (e *oneHotEncoder) inputs() int {
	return len(e.categories)
}

func (e *oneHotEncoder) encodeColumns(vals []record.Value) ([]float64, error) {
	if len(vals) != len(e.categories) {
		return nil, fmt.Errorf("one-hot: expected %d columns, got %d", len(e.categories), len(vals))
	}
	width := 0
	for _, cats := range e.categories {
		width += len(cats)
	}
	out := make([]float64, width)
	offset := 0
	for j, v := range vals {
		k, ok := e.index[j][v.String()]
		switch {
		case ok:
			out[offset+k] = 1
		case !e.ignoreUnknown:
			return nil, fmt.Errorf("one-hot: unknown category %q in column %d", v.String(), j)
		}
		offset += len(e.categories[j])
	}
	return out, nil
}

type standardScaler struct {
	mean  []float64
	scale []float64
}

func buildStandardScaler(n *Node, path string) (interface{}, error) {
	var p struct {
		Mean     []float64 `json:"mean"`
		Scale    []float64 `json:"scale"`
		WithMean *bool     `json:"with_mean"`
		WithStd  *bool     `json:"with_std"`
	}
	if err := decodeParams(n, path, &p); err != nil {
		return nil, err
	}
	width := len(p.Mean)
	if width == 0 {
		width = len(p.Scale)
	}
	if width == 0 {
		return nil, fmt.Errorf("%s: scaler has neither mean nor scale", path)
	}

	s := &standardScaler{mean: make([]float64, width), scale: make([]float64, width)}
	for i := range s.scale {
		s.scale[i] = 1
	}
	if p.WithMean == nil || *p.WithMean {
		if len(p.Mean) != width {
			return nil, fmt.Errorf("%s: mean has %d entries, expected %d", path, len(p.Mean), width)
		}
		copy(s.mean, p.Mean)
	}
	if p.WithStd == nil || *p.WithStd {
		if len(p.Scale) != width {
			return nil, fmt.Errorf("%s: scale has %d entries, expected %d", path, len(p.Scale), width)
		}
		for i, v := range p.Scale {
			// zero variance features are left unscaled
			if v != 0 {
				s.scale[i] = v
			}
		}
	}
	return s, nil
}

func (s *standardScaler) inputs() int {
	return len(s.mean)
}

func (s *standardScaler) transform(x []float64) ([]float64, error) {
	if len(x) != len(s.mean) {
		return nil, fmt.Errorf("scaler: expected %d features, got %d", len(s.mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

func (s *standardScaler) encodeColumns(vals []record.Value) ([]float64, error) {
	x, err := passthrough{}.encodeColumns(vals)
	if err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	return s.transform(x)
}

func childName(c *Child, i int) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%d", i)
}
