package pipeline

import (
	"fmt"

	"github.com/IlyassOtmani/car-price-ml/internal/record"
)

// Info describes a loaded model
type Info struct {
	Source       string   `json:"source"`
	Fingerprint  string   `json:"fingerprint"`
	Metadata     Metadata `json:"metadata"`
	Types        []string `json:"types"`
	TrustedTypes []string `json:"trusted_types"`
}

// Model is a constructed pipeline. It is immutable and safe for concurrent use.
type Model struct {
	root *pipelineModel
	info Info
}

// Predict scores a single labeled row
func (m *Model) Predict(rec record.Record) (float64, error) {
	return m.root.predictRecord(rec)
}

// Info returns metadata about the model
func (m *Model) Info() Info {
	info := m.info
	info.Types = append([]string(nil), m.info.Types...)
	info.TrustedTypes = append([]string(nil), m.info.TrustedTypes...)
	return info
}

type pipelineModel struct {
	encoder recordEncoder
	steps   []vectorTransformer
	final   regressor
	names   []string
}

func buildPipeline(n *Node, path string) (interface{}, error) {
	if err := decodeParams(n, path, &struct {
		Memory  interface{} `json:"memory"`
		Verbose bool        `json:"verbose"`
	}{}); err != nil {
		return nil, err
	}
	if len(n.Children) < 2 {
		return nil, fmt.Errorf("%s: pipeline needs an encoder and a regressor", path)
	}

	p := &pipelineModel{}
	last := len(n.Children) - 1
	for i := range n.Children {
		c := &n.Children[i]
		childPath := fmt.Sprintf("%s/%s", path, childName(c, i))
		obj, err := build(&c.Node, childPath)
		if err != nil {
			return nil, err
		}
		p.names = append(p.names, childName(c, i))

		switch {
		case i == 0:
			enc, ok := obj.(recordEncoder)
			if !ok {
				return nil, fmt.Errorf("%s: first step must encode records, got %s", childPath, c.Node.Type)
			}
			p.encoder = enc
		case i == last:
			reg, ok := obj.(regressor)
			if !ok {
				return nil, fmt.Errorf("%s: last step must be a regressor, got %s", childPath, c.Node.Type)
			}
			p.final = reg
		default:
			tr, ok := obj.(vectorTransformer)
			if !ok {
				return nil, fmt.Errorf("%s: %s cannot transform features", childPath, c.Node.Type)
			}
			p.steps = append(p.steps, tr)
		}
	}
	return p, nil
}

func (p *pipelineModel) predictRecord(rec record.Record) (float64, error) {
	x, err := p.encoder.encodeRecord(rec)
	if err != nil {
		return 0, fmt.Errorf("step %s: %w", p.names[0], err)
	}
	for i, s := range p.steps {
		x, err = s.transform(x)
		if err != nil {
			return 0, fmt.Errorf("step %s: %w", p.names[i+1], err)
		}
	}
	y, err := p.final.predict(x)
	if err != nil {
		return 0, fmt.Errorf("step %s: %w", p.names[len(p.names)-1], err)
	}
	return y, nil
}
