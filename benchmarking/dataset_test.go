package benchmarking

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBaseDataset(t *testing.T) {
	d := NewBaseDataset("iris")
	assert.Equal(t, "iris", d.Name())
	assert.Equal(t, "BaseDataset(name=iris)", d.String())

	_, err := d.Load()
	assert.True(t, errors.Is(err, errors.ErrNotImplemented))
}

func TestHDDDatasetMissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")
	_, err := NewHDDDataset(path, "missing")

	var pathErr *errors.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, path, pathErr.Path)
	assert.Contains(t, err.Error(), "no dataset found at path")
}

func TestHDDDatasetLoad(t *testing.T) {
	path := writeCSV(t, "sepal,petal,label\n1.0,2.5,0\n3,4,1\n5, 6.5,1\n")

	d, err := NewHDDDataset(path, "flowers")
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())
	assert.Equal(t, "flowers", d.Name())
	assert.Equal(t, "HDDDataset(name=flowers)", d.String())

	data, err := d.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, data.NSamples())
	assert.Equal(t, []string{"sepal", "petal"}, data.FeatureNames)
	assert.Equal(t, "label", data.TargetName)
	assert.Equal(t, 6.5, data.X.At(2, 1))
	assert.Equal(t, 1.0, data.Y.At(1, 0))
}

func TestHDDDatasetTargetColumn(t *testing.T) {
	path := writeCSV(t, "y,a,b\n10,1,2\n20,3,4\n")

	d, err := NewHDDDataset(path, "tbl", WithTargetColumn("y"))
	require.NoError(t, err)
	data, err := d.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, data.FeatureNames)
	assert.Equal(t, 20.0, data.Y.At(1, 0))
	assert.Equal(t, 3.0, data.X.At(1, 0))

	d, err = NewHDDDataset(path, "tbl", WithTargetColumn("z"))
	require.NoError(t, err)
	_, err = d.Load()
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"header only", "a,b\n"},
		{"single column", "a\n1\n"},
		{"non numeric", "a,b\n1,x\n"},
		{"ragged", "a,b\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.content), "")
			assert.Error(t, err)
		})
	}
}

func TestReadCSVRejectsNonFinite(t *testing.T) {
	for _, cell := range []string{"NaN", "Inf", "-inf"} {
		t.Run(cell, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader("a,b\n1,2\n3,"+cell+"\n"), "")
			var valErr *errors.ValueError
			require.True(t, errors.As(err, &valErr))
			assert.Contains(t, err.Error(), "line 3")
			assert.Contains(t, err.Error(), `column "b"`)
		})
	}
}
