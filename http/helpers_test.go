package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridguard/app"
	"gridguard/config"
	"gridguard/ml"
	"gridguard/pipeline"
)

const testKey = "s3cret-key"

// newTestApp builds an App serving model. A nil model leaves the holder empty.
func newTestApp(t *testing.T, model *ml.TrainedModel, apiKey string) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.APIKey = apiKey
	cfg.Database.Path = ""

	a, err := app.New(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	if model != nil {
		a.Models = ml.HolderFor(model)
		a.Invoker = ml.NewInvoker(a.Models)
	}
	return a
}

func testForest(t *testing.T) *ml.TrainedModel {
	t.Helper()
	X := [][]float64{
		{10, 0, 1}, {20, 1, 2}, {30, 0, 3}, {40, 1, 1},
		{1000, 0, 3}, {1100, 1, 2}, {1200, 0, 1}, {1300, 1, 3},
	}
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}
	forest := ml.NewRandomForest(ml.ForestConfig{Trees: 7, MinSamplesLeaf: 1, MaxFeatures: 3, Seed: 42})
	require.NoError(t, forest.Fit(X, y))
	target := pipeline.TargetEncoding{Kind: pipeline.TargetNumeric, PositiveClass: pipeline.DefaultPositiveClass}
	model, err := ml.NewTrainedModel(ml.ClassifierRandomForest, forest, pipeline.NewSchema([]string{"A", "B", "C"}), target, ml.Metrics{Accuracy: 1}, time.Unix(0, 0).UTC())
	require.NoError(t, err)
	return model
}

// countingClassifier records how often inference reached the model.
type countingClassifier struct {
	calls atomic.Int32
}

func (c *countingClassifier) Fit([][]float64, []int) error { return nil }
func (c *countingClassifier) Classes() []int               { return []int{0, 1} }
func (c *countingClassifier) NumFeatures() int             { return 3 }

func (c *countingClassifier) Predict(X [][]float64) ([]int, error) {
	c.calls.Add(1)
	return make([]int, len(X)), nil
}

func countingModel(t *testing.T) (*ml.TrainedModel, *countingClassifier) {
	t.Helper()
	classifier := &countingClassifier{}
	target := pipeline.TargetEncoding{Kind: pipeline.TargetNumeric, PositiveClass: pipeline.DefaultPositiveClass}
	model, err := ml.NewTrainedModel("counting", classifier, pipeline.NewSchema([]string{"A", "B", "C"}), target, ml.Metrics{}, time.Unix(0, 0).UTC())
	require.NoError(t, err)
	return model, classifier
}

// do sends a JSON request, authorized with token when it is not empty.
func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return send(t, h, method, path, body, header)
}

func send(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		req.Header[key] = values
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
