// Package files stores trained models on disk.
package files

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/mlbench/core/model"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/pkg/log"
)

// DefaultRoot is the directory used when no root is configured.
const DefaultRoot = "data"

const (
	trainedModelsDir = "trained_models"
	modelExt         = ".gob"
)

// DiskOperations saves and loads trained models under
// <Root>/trained_models/<dataset>/<model>.gob.
type DiskOperations struct {
	Root string
}

// NewDiskOperations creates a DiskOperations rooted at root, or DefaultRoot
// when root is empty.
func NewDiskOperations(root string) *DiskOperations {
	if root == "" {
		root = DefaultRoot
	}
	return &DiskOperations{Root: root}
}

// ModelPath returns where a model trained on a dataset is stored.
func (d *DiskOperations) ModelPath(modelName, datasetName string) (string, error) {
	for _, part := range []string{modelName, datasetName} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", errors.NewPathError("DiskOperations", part, "invalid model or dataset name")
		}
	}
	return filepath.Join(d.Root, trainedModelsDir, datasetName, modelName+modelExt), nil
}

// SaveModel writes trainedModel and returns the file path.
func (d *DiskOperations) SaveModel(trainedModel interface{}, modelName, datasetName string) (string, error) {
	path, err := d.ModelPath(modelName, datasetName)
	if err != nil {
		return "", err
	}
	if err := model.SaveModel(trainedModel, path); err != nil {
		return "", errors.Wrapf(err, "save %s trained on %s", modelName, datasetName)
	}
	log.GetLoggerWithName("shared.files").Debug("model saved",
		log.ModelNameKey, modelName,
		log.DatasetKey, datasetName,
		log.PathKey, path,
	)
	return path, nil
}

// LoadModel reads a saved model into target. A missing file yields an error
// wrapping errors.ErrNotFound.
func (d *DiskOperations) LoadModel(target interface{}, modelName, datasetName string) error {
	path, err := d.ModelPath(modelName, datasetName)
	if err != nil {
		return err
	}
	return model.LoadModel(target, path)
}

// Exists reports whether a model has been saved for the dataset.
func (d *DiskOperations) Exists(modelName, datasetName string) bool {
	path, err := d.ModelPath(modelName, datasetName)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
