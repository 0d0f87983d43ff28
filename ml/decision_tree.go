package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeConfig bounds the growth of a decision tree.
type TreeConfig struct {
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`
	// MaxFeatures is the number of candidate features per split; 0 means all.
	MaxFeatures int   `json:"max_features"`
	Seed        int64 `json:"seed"`
}

// DecisionTree is a CART classifier stored as a flat node list rooted at 0.
type DecisionTree struct {
	Nodes    []TreeNode `json:"nodes"`
	Labels   []int      `json:"classes"`
	Features int        `json:"num_features"`
	Config   TreeConfig `json:"config"`
}

// TreeNode is a split or a leaf. Leaves carry the class distribution of
// their training samples, indexed like DecisionTree.Labels.
type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	ClassLabel   int       `json:"class_label"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

func NewDecisionTree(config TreeConfig) *DecisionTree {
	return &DecisionTree{Config: config}
}

func (dt *DecisionTree) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingData(features, labels); err != nil {
		return err
	}
	classes, index := classIndex(labels)
	y := make([]int, len(labels))
	for i, label := range labels {
		y[i] = index[label]
	}
	sample := make([]int, len(features))
	for i := range sample {
		sample[i] = i
	}
	dt.grow(features, y, sample, classes, rand.New(rand.NewSource(dt.Config.Seed)))
	return nil
}

// grow builds the tree from the rows in sample; y holds class indices into classes.
func (dt *DecisionTree) grow(features [][]float64, y []int, sample []int, classes []int, rng *rand.Rand) {
	dt.Labels = append([]int(nil), classes...)
	dt.Features = len(features[0])
	dt.Nodes = dt.Nodes[:0]
	b := &treeBuilder{tree: dt, features: features, labels: y, rng: rng}
	b.build(sample, 0)
}

func (dt *DecisionTree) Predict(features [][]float64) ([]int, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, dt.Labels), nil
}

func (dt *DecisionTree) PredictProba(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		dist, err := dt.distribution(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = append([]float64(nil), dist...)
	}
	return out, nil
}

func (dt *DecisionTree) Classes() []int {
	return append([]int(nil), dt.Labels...)
}

func (dt *DecisionTree) NumFeatures() int {
	return dt.Features
}

func (dt *DecisionTree) distribution(row []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(row) != dt.Features {
		return nil, fmt.Errorf("feature count mismatch: got %d, model expects %d", len(row), dt.Features)
	}
	idx := 0
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Distribution, nil
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return nil, errors.New("invalid tree state")
}

// validate checks the structure of a tree decoded from an artifact.
func (dt *DecisionTree) validate() error {
	if len(dt.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	if len(dt.Labels) == 0 {
		return errors.New("tree has no classes")
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Distribution) != len(dt.Labels) {
				return fmt.Errorf("leaf %d has %d class weights for %d classes", i, len(node.Distribution), len(dt.Labels))
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.Features {
			return fmt.Errorf("node %d splits on feature %d of %d", i, node.FeatureIdx, dt.Features)
		}
		if node.LeftChild <= i || node.LeftChild >= len(dt.Nodes) || node.RightChild <= i || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

type treeBuilder struct {
	tree     *DecisionTree
	features [][]float64
	labels   []int
	rng      *rand.Rand
}

// build appends the subtree for sample and returns its node index.
func (b *treeBuilder) build(sample []int, depth int) int {
	cfg := b.tree.Config
	counts := b.counts(sample)
	node := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, b.leaf(counts, len(sample)))

	minLeaf := max(cfg.MinSamplesLeaf, 1)
	if (cfg.MaxDepth > 0 && depth >= cfg.MaxDepth) || isPure(counts) || len(sample) < 2*minLeaf {
		return node
	}

	featureIdx, threshold, ok := b.bestSplit(sample, counts, minLeaf)
	if !ok {
		return node
	}
	left, right := splitSample(b.features, sample, featureIdx, threshold)
	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	b.tree.Nodes[node] = TreeNode{
		FeatureIdx: featureIdx,
		Threshold:  threshold,
		LeftChild:  leftIdx,
		RightChild: rightIdx,
		ClassLabel: b.tree.Labels[majorityLabel(counts)],
		IsLeaf:     false,
	}
	return node
}

func (b *treeBuilder) counts(sample []int) []int {
	counts := make([]int, len(b.tree.Labels))
	for _, i := range sample {
		counts[b.labels[i]]++
	}
	return counts
}

// bestSplit searches MaxFeatures random candidate features for the split
// with the lowest weighted gini, and keeps searching the rest when none of
// them improves on the parent.
func (b *treeBuilder) bestSplit(sample []int, parent []int, minLeaf int) (int, float64, bool) {
	order := b.rng.Perm(b.tree.Features)
	tries := b.tree.Config.MaxFeatures
	if tries <= 0 || tries > len(order) {
		tries = len(order)
	}

	parentImpurity := gini(parent, len(sample))
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := parentImpurity - 1e-12

	sorted := append([]int(nil), sample...)
	left := make([]int, len(parent))
	right := make([]int, len(parent))

	for n, featureIdx := range order {
		if n >= tries && bestFeature >= 0 {
			break
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.features[sorted[i]][featureIdx] < b.features[sorted[j]][featureIdx]
		})
		for k := range left {
			left[k] = 0
		}
		copy(right, parent)

		for pos := 0; pos < len(sorted)-1; pos++ {
			label := b.labels[sorted[pos]]
			left[label]++
			right[label]--

			nLeft := pos + 1
			nRight := len(sorted) - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			current := b.features[sorted[pos]][featureIdx]
			next := b.features[sorted[pos+1]][featureIdx]
			if current == next {
				continue
			}
			total := float64(len(sorted))
			impurity := float64(nLeft)/total*gini(left, nLeft) + float64(nRight)/total*gini(right, nRight)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = midpoint(current, next)
			}
		}
	}
	if bestFeature < 0 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitSample(features [][]float64, sample []int, featureIdx int, threshold float64) (left, right []int) {
	for _, i := range sample {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if t >= hi || math.IsInf(t, 0) {
		return lo
	}
	return t
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		p := float64(count) / float64(total)
		impurity -= p * p
	}
	return impurity
}

// leaf records the class distribution of a sample and its majority class code.
func (b *treeBuilder) leaf(counts []int, total int) TreeNode {
	dist := make([]float64, len(counts))
	for i, count := range counts {
		if total > 0 {
			dist[i] = float64(count) / float64(total)
		}
	}
	return TreeNode{
		FeatureIdx:   -1,
		LeftChild:    -1,
		RightChild:   -1,
		ClassLabel:   b.tree.Labels[majorityLabel(counts)],
		IsLeaf:       true,
		Distribution: dist,
	}
}

// majorityLabel returns the index of the largest count; ties go to the lower index.
func majorityLabel(counts []int) int {
	best := 0
	for i, count := range counts {
		if count > counts[best] {
			best = i
		}
	}
	return best
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, count := range counts {
		if count > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func argmaxLabels(proba [][]float64, labels []int) []int {
	out := make([]int, len(proba))
	for i, dist := range proba {
		best := 0
		for k, p := range dist {
			if p > dist[best] {
				best = k
			}
		}
		out[i] = labels[best]
	}
	return out
}

// classIndex returns the sorted distinct labels and each label's position.
func classIndex(labels []int) ([]int, map[int]int) {
	index := make(map[int]int)
	for _, label := range labels {
		index[label] = 0
	}
	classes := make([]int, 0, len(index))
	for label := range index {
		classes = append(classes, label)
	}
	sort.Ints(classes)
	for i, label := range classes {
		index[label] = i
	}
	return classes, index
}

func checkTrainingData(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("feature vectors are empty")
	}
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d has a non-finite feature", i)
			}
		}
	}
	return nil
}
