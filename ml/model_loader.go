package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gridguard/pipeline"
)

const (
	ArtifactFormat  = "gridguard.model"
	ArtifactVersion = 1

	ClassifierRandomForest = "random_forest"
	ClassifierDecisionTree = "decision_tree"
)

type artifact struct {
	Format     string                  `json:"format"`
	Version    int                     `json:"version"`
	CreatedAt  time.Time               `json:"created_at"`
	Classifier string                  `json:"classifier"`
	Forest     *RandomForest           `json:"forest,omitempty"`
	Tree       *DecisionTree           `json:"tree,omitempty"`
	Schema     pipeline.FeatureSchema  `json:"schema"`
	Target     pipeline.TargetEncoding `json:"target"`
	Metrics    Metrics                 `json:"metrics"`
}

// WriteModel serializes m as a versioned artifact.
func WriteModel(w io.Writer, m *TrainedModel) error {
	a := artifact{
		Format:     ArtifactFormat,
		Version:    ArtifactVersion,
		CreatedAt:  m.createdAt,
		Classifier: m.name,
		Schema:     m.Schema(),
		Target:     m.Target(),
		Metrics:    m.metrics,
	}
	switch c := m.classifier.(type) {
	case *RandomForest:
		a.Forest = c
	case *DecisionTree:
		a.Tree = c
	default:
		return fmt.Errorf("unsupported classifier %T", m.classifier)
	}
	return json.NewEncoder(w).Encode(a)
}

// ReadModel decodes an artifact written by WriteModel.
func ReadModel(r io.Reader) (*TrainedModel, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if a.Format != ArtifactFormat || a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported model artifact %q version %d", a.Format, a.Version)
	}

	var classifier Classifier
	switch a.Classifier {
	case ClassifierRandomForest:
		if a.Forest == nil {
			return nil, errors.New("artifact has no forest")
		}
		if err := a.Forest.validate(); err != nil {
			return nil, fmt.Errorf("corrupted forest: %w", err)
		}
		classifier = a.Forest
	case ClassifierDecisionTree:
		if a.Tree == nil {
			return nil, errors.New("artifact has no tree")
		}
		if err := a.Tree.validate(); err != nil {
			return nil, fmt.Errorf("corrupted tree: %w", err)
		}
		classifier = a.Tree
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Classifier)
	}
	return NewTrainedModel(a.Classifier, classifier, a.Schema, a.Target, a.Metrics, a.CreatedAt)
}

// SaveModel writes the artifact next to path and renames it into place.
func SaveModel(path string, m *TrainedModel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := WriteModel(tmp, m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadModel(path string) (*TrainedModel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadModel(file)
}

// ModelHolder publishes the process-wide model. Until Load has finished,
// and after a failed load, Get reports ErrModelUnavailable.
type ModelHolder struct {
	state atomic.Pointer[holderState]
}

type holderState struct {
	model *TrainedModel
	path  string
	err   error
}

func NewModelHolder() *ModelHolder {
	return &ModelHolder{}
}

// HolderFor returns a holder already serving m.
func HolderFor(m *TrainedModel) *ModelHolder {
	h := &ModelHolder{}
	h.state.Store(&holderState{model: m})
	return h
}

// Load reads the artifact at path. Only the first call has any effect; a
// failure is kept and returned by every later Get.
func (h *ModelHolder) Load(path string) error {
	if s := h.state.Load(); s != nil {
		return s.err
	}
	m, err := LoadModel(path)
	s := &holderState{model: m, path: path, err: err}
	if !h.state.CompareAndSwap(nil, s) {
		return h.state.Load().err
	}
	return err
}

func (h *ModelHolder) Get() (*TrainedModel, error) {
	s := h.state.Load()
	switch {
	case s == nil:
		return nil, fmt.Errorf("%w: model is not loaded yet", ErrModelUnavailable)
	case s.err != nil:
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, s.err)
	case s.model == nil:
		return nil, ErrModelUnavailable
	}
	return s.model, nil
}

// Loaded reports whether a model is being served.
func (h *ModelHolder) Loaded() bool {
	s := h.state.Load()
	return s != nil && s.model != nil
}

// Path returns the artifact path given to Load.
func (h *ModelHolder) Path() string {
	if s := h.state.Load(); s != nil {
		return s.path
	}
	return ""
}
