package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedModel struct {
	Name   string
	Params map[string]int
	State  *StateManager
}

func TestSaveLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trained_models", "iris", "model.gob")

	state := NewStateManager()
	state.SetFitted(4, 150)
	in := savedModel{Name: "forest", Params: map[string]int{"n_estimators": 10}, State: state}

	require.NoError(t, SaveModel(&in, path))

	var out savedModel
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, "forest", out.Name)
	assert.Equal(t, 10, out.Params["n_estimators"])
	require.NotNil(t, out.State)
	assert.True(t, out.State.IsFitted())
	nFeatures, nSamples := out.State.GetDimensions()
	assert.Equal(t, 4, nFeatures)
	assert.Equal(t, 150, nSamples)

	// no temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadModelMissing(t *testing.T) {
	var out savedModel
	err := LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(savedModel{Name: "x"}, &buf))

	var out savedModel
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, "x", out.Name)
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("DecisionTreeClassifier", "Predict")
	var nfErr *errors.NotFittedError
	require.True(t, errors.As(err, &nfErr))

	s.SetFitted(3, 10)
	assert.NoError(t, s.RequireFitted("DecisionTreeClassifier", "Predict"))

	s.Reset()
	assert.False(t, s.IsFitted())
}
