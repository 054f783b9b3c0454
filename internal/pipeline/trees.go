package pipeline

import (
	"fmt"
)

// regressor scores a feature vector
type regressor interface {
	predict(x []float64) (float64, error)
}

const leaf = -1

// decisionTree is a fitted regression tree in sklearn's flat array layout.
// Children always have a larger index than their parent.
type decisionTree struct {
	nFeatures int
	left      []int
	right     []int
	feature   []int
	threshold []float64
	value     []float64
}

func buildDecisionTree(n *Node, path string) (interface{}, error) {
	var p struct {
		NFeaturesIn   int       `json:"n_features_in"`
		ChildrenLeft  []int     `json:"children_left"`
		ChildrenRight []int     `json:"children_right"`
		Feature       []int     `json:"feature"`
		Threshold     []float64 `json:"threshold"`
		Value         []float64 `json:"value"`
	}
	if err := decodeParams(n, path, &p); err != nil {
		return nil, err
	}

	count := len(p.Value)
	if count == 0 {
		return nil, fmt.Errorf("%s: tree has no nodes", path)
	}
	if len(p.ChildrenLeft) != count || len(p.ChildrenRight) != count ||
		len(p.Feature) != count || len(p.Threshold) != count {
		return nil, fmt.Errorf("%s: tree arrays differ in length", path)
	}
	if p.NFeaturesIn <= 0 {
		return nil, fmt.Errorf("%s: n_features_in must be positive", path)
	}

	for i := 0; i < count; i++ {
		l, r := p.ChildrenLeft[i], p.ChildrenRight[i]
		if l == leaf || r == leaf {
			if l != r {
				return nil, fmt.Errorf("%s: node %d has a single child", path, i)
			}
			continue
		}
		if l <= i || r <= i || l >= count || r >= count {
			return nil, fmt.Errorf("%s: node %d has out of order children %d/%d", path, i, l, r)
		}
		if f := p.Feature[i]; f < 0 || f >= p.NFeaturesIn {
			return nil, fmt.Errorf("%s: node %d splits on feature %d of %d", path, i, f, p.NFeaturesIn)
		}
	}

	return &decisionTree{
		nFeatures: p.NFeaturesIn,
		left:      p.ChildrenLeft,
		right:     p.ChildrenRight,
		feature:   p.Feature,
		threshold: p.Threshold,
		value:     p.Value,
	}, nil
}

func (t *decisionTree) predict(x []float64) (float64, error) {
	if len(x) != t.nFeatures {
		return 0, fmt.Errorf("tree: expected %d features, got %d", t.nFeatures, len(x))
	}
	node := 0
	for t.left[node] != leaf {
		if x[t.feature[node]] <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.value[node], nil
}

type randomForest struct {
	trees []*decisionTree
}

func buildRandomForest(n *Node, path string) (interface{}, error) {
	if err := decodeParams(n, path, &struct {
		NEstimators int `json:"n_estimators"`
		NFeaturesIn int `json:"n_features_in"`
	}{}); err != nil {
		return nil, err
	}
	if len(n.Children) == 0 {
		return nil, fmt.Errorf("%s: forest has no estimators", path)
	}

	f := &randomForest{trees: make([]*decisionTree, 0, len(n.Children))}
	for i := range n.Children {
		c := &n.Children[i]
		childPath := fmt.Sprintf("%s/%s", path, childName(c, i))
		if c.Node.Type != TypeDecisionTree {
			return nil, fmt.Errorf("%s: forest estimator must be %s, got %s", childPath, TypeDecisionTree, c.Node.Type)
		}
		obj, err := build(&c.Node, childPath)
		if err != nil {
			return nil, err
		}
		tree := obj.(*decisionTree)
		if len(f.trees) > 0 && tree.nFeatures != f.trees[0].nFeatures {
			return nil, fmt.Errorf("%s: trees disagree on feature count", childPath)
		}
		f.trees = append(f.trees, tree)
	}
	return f, nil
}

func (f *randomForest) predict(x []float64) (float64, error) {
	var sum float64
	for i, t := range f.trees {
		v, err := t.predict(x)
		if err != nil {
			return 0, fmt.Errorf("estimator %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(f.trees)), nil
}
