package ml

import (
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(TreeConfig{})
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := model.Predict([][]float64{{0.15, 0.15}, {0.85, 0.85}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 0 || got[1] != 2 {
		t.Fatalf("expected labels [0 2], got %v", got)
	}
	proba, err := model.PredictProba([][]float64{{0.15, 0.15}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[0][0] != 1 {
		t.Fatalf("expected confidence 1 for class 0, got %v", proba[0])
	}
}

func TestDecisionTreeFeatureCountMismatch(t *testing.T) {
	model := NewDecisionTree(TreeConfig{})
	if err := model.Fit([][]float64{{0}, {1}}, []int{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Predict([][]float64{{0, 1}}); err == nil {
		t.Fatalf("expected feature count error")
	}
}

func TestDecisionTreeRejectsRaggedTrainingData(t *testing.T) {
	model := NewDecisionTree(TreeConfig{})
	if err := model.Fit([][]float64{{0, 1}, {1}}, []int{0, 1}); err == nil {
		t.Fatalf("expected error for ragged rows")
	}
	if err := model.Fit([][]float64{{0}}, []int{0, 1}); err == nil {
		t.Fatalf("expected error for label count mismatch")
	}
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	X, y := separableData()
	model := NewDecisionTree(TreeConfig{MaxDepth: 1})
	if err := model.Fit(X, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.Nodes) > 3 {
		t.Fatalf("depth-1 tree has %d nodes", len(model.Nodes))
	}
	if err := model.validate(); err != nil {
		t.Fatalf("fitted tree does not validate: %v", err)
	}
}

func TestDecisionTreeNodesStoreClassCodes(t *testing.T) {
	features := [][]float64{{0.1}, {0.2}, {0.3}, {0.8}, {0.9}}
	labels := []int{3, 3, 3, 7, 7}

	model := NewDecisionTree(TreeConfig{})
	if err := model.Fit(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[int]bool{}
	for i, node := range model.Nodes {
		if node.ClassLabel != 3 && node.ClassLabel != 7 {
			t.Fatalf("node %d stores class %d, want one of %v", i, node.ClassLabel, model.Labels)
		}
		if node.IsLeaf {
			seen[node.ClassLabel] = true
		}
	}
	if !seen[3] || !seen[7] {
		t.Fatalf("expected leaves for classes 3 and 7, got %v", seen)
	}
	if model.Nodes[0].ClassLabel != 3 {
		t.Fatalf("root majority class = %d, want 3", model.Nodes[0].ClassLabel)
	}
}
