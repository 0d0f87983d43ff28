package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// ForestConfig configures a random forest.
type ForestConfig struct {
	Trees          int `json:"trees"`
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`
	// MaxFeatures per split; 0 means sqrt of the feature count.
	MaxFeatures int   `json:"max_features"`
	Seed        int64 `json:"seed"`
	Workers     int   `json:"-"`
}

// DefaultForestConfig mirrors the settings the production model was fit with.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:          100,
		MaxDepth:       0,
		MinSamplesLeaf: 1,
		Seed:           42,
	}
}

// RandomForest averages the class distributions of bootstrapped trees.
type RandomForest struct {
	Config   ForestConfig    `json:"config"`
	Labels   []int           `json:"classes"`
	Features int             `json:"num_features"`
	Trees    []*DecisionTree `json:"trees"`
}

func NewRandomForest(config ForestConfig) *RandomForest {
	return &RandomForest{Config: config}
}

// Fit grows every tree on a bootstrap sample. Tree i draws from a source
// seeded with Seed+i, so the result does not depend on worker scheduling.
func (f *RandomForest) Fit(features [][]float64, labels []int) error {
	if err := checkTrainingData(features, labels); err != nil {
		return err
	}
	n := f.Config.Trees
	if n <= 0 {
		n = DefaultForestConfig().Trees
	}
	width := len(features[0])
	maxFeatures := f.Config.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(int(math.Sqrt(float64(width))), 1)
	}

	classes, index := classIndex(labels)
	y := make([]int, len(labels))
	for i, label := range labels {
		y[i] = index[label]
	}

	trees := make([]*DecisionTree, n)
	workers := f.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				seed := f.Config.Seed + int64(t)
				rng := rand.New(rand.NewSource(seed))
				sample := make([]int, len(features))
				for i := range sample {
					sample[i] = rng.Intn(len(features))
				}
				tree := NewDecisionTree(TreeConfig{
					MaxDepth:       f.Config.MaxDepth,
					MinSamplesLeaf: f.Config.MinSamplesLeaf,
					MaxFeatures:    maxFeatures,
					Seed:           seed,
				})
				tree.grow(features, y, sample, classes, rng)
				trees[t] = tree
			}
		}()
	}
	for t := 0; t < n; t++ {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	f.Labels = classes
	f.Features = width
	f.Trees = trees
	return nil
}

func (f *RandomForest) Predict(features [][]float64) ([]int, error) {
	proba, err := f.PredictProba(features)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, f.Labels), nil
}

func (f *RandomForest) PredictProba(features [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	out := make([][]float64, len(features))
	for i, row := range features {
		if len(row) != f.Features {
			return nil, fmt.Errorf("row %d: feature count mismatch: got %d, model expects %d", i, len(row), f.Features)
		}
		sum := make([]float64, len(f.Labels))
		for _, tree := range f.Trees {
			dist, err := tree.distribution(row)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			for k, p := range dist {
				sum[k] += p
			}
		}
		for k := range sum {
			sum[k] /= float64(len(f.Trees))
		}
		out[i] = sum
	}
	return out, nil
}

func (f *RandomForest) Classes() []int {
	return append([]int(nil), f.Labels...)
}

func (f *RandomForest) NumFeatures() int {
	return f.Features
}

func (f *RandomForest) validate() error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	if len(f.Labels) == 0 {
		return errors.New("forest has no classes")
	}
	for i, tree := range f.Trees {
		if tree == nil {
			return fmt.Errorf("tree %d is empty", i)
		}
		if tree.Features != f.Features || len(tree.Labels) != len(f.Labels) {
			return fmt.Errorf("tree %d disagrees with forest shape", i)
		}
		if err := tree.validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
