// Package benchmarking runs estimators over datasets with an outer
// cross-validation and persists predictions and fitted strategies so that
// a benchmark can be evaluated, resumed or extended later.
package benchmarking

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// Data is a loaded dataset: a feature matrix and a single target column.
type Data struct {
	X            *mat.Dense
	Y            *mat.Dense
	FeatureNames []string
	TargetName   string
}

// NSamples returns the number of rows.
func (d *Data) NSamples() int {
	r, _ := d.X.Dims()
	return r
}

// Dataset is a named source of Data.
type Dataset interface {
	Name() string
	Load() (*Data, error)
	String() string
}

// BaseDataset carries the dataset name. Concrete datasets embed it and
// provide Load.
type BaseDataset struct {
	name string
}

// NewBaseDataset creates a BaseDataset.
func NewBaseDataset(name string) *BaseDataset {
	return &BaseDataset{name: name}
}

// Name returns the dataset name.
func (d *BaseDataset) Name() string { return d.name }

// Load is abstract.
func (d *BaseDataset) Load() (*Data, error) {
	return nil, errors.Wrap(errors.ErrNotImplemented, "BaseDataset.Load")
}

func (d *BaseDataset) String() string {
	return "BaseDataset(name=" + d.name + ")"
}

// DatasetOption configures an HDDDataset.
type DatasetOption func(*HDDDataset)

// WithTargetColumn selects the target column by header name. The last
// column is used by default.
func WithTargetColumn(name string) DatasetOption {
	return func(d *HDDDataset) { d.targetColumn = name }
}

// HDDDataset is a CSV file on disk with a header row and numeric cells.
type HDDDataset struct {
	BaseDataset
	path         string
	targetColumn string
}

// NewHDDDataset creates a dataset backed by the file at path. The path must
// exist.
func NewHDDDataset(path, name string, opts ...DatasetOption) (*HDDDataset, error) {
	if err := validateDatasetPath(path); err != nil {
		return nil, err
	}
	d := &HDDDataset{BaseDataset: BaseDataset{name: name}, path: path}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func validateDatasetPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NewPathError("NewHDDDataset", path, "no dataset found at path")
		}
		return errors.Wrapf(err, "stat dataset %s", path)
	}
	return nil
}

// Path returns the file path.
func (d *HDDDataset) Path() string { return d.path }

func (d *HDDDataset) String() string {
	return "HDDDataset(name=" + d.name + ")"
}

// Load reads the CSV file.
func (d *HDDDataset) Load() (*Data, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", d.name)
	}
	defer f.Close()

	data, err := ReadCSV(f, d.targetColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %s", d.name)
	}
	return data, nil
}

// ReadCSV parses a CSV stream with a header row into Data. target names the
// target column; empty selects the last column.
func ReadCSV(r io.Reader, target string) (*Data, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.ErrEmptyData
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) < 2 {
		return nil, errors.NewValueError("ReadCSV", "need at least one feature and one target column")
	}

	targetIdx := len(header) - 1
	if target != "" {
		targetIdx = -1
		for i, h := range header {
			if strings.TrimSpace(h) == target {
				targetIdx = i
				break
			}
		}
		if targetIdx < 0 {
			return nil, errors.NewValidationError("target", "column not found in header", target)
		}
	}

	featureNames := make([]string, 0, len(header)-1)
	for i, h := range header {
		if i != targetIdx {
			featureNames = append(featureNames, strings.TrimSpace(h))
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read rows")
	}
	if len(records) == 0 {
		return nil, errors.ErrEmptyData
	}

	nFeatures := len(featureNames)
	xData := make([]float64, 0, len(records)*nFeatures)
	yData := make([]float64, 0, len(records))
	for row, rec := range records {
		for col, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				// 行番号はヘッダを1行目として数える
				return nil, errors.NewValueError("ReadCSV",
					"non-numeric cell at line "+strconv.Itoa(row+2)+", column "+strconv.Quote(header[col]))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValueError("ReadCSV",
					"non-finite cell at line "+strconv.Itoa(row+2)+", column "+strconv.Quote(header[col]))
			}
			if col == targetIdx {
				yData = append(yData, v)
			} else {
				xData = append(xData, v)
			}
		}
	}

	return &Data{
		X:            mat.NewDense(len(records), nFeatures, xData),
		Y:            mat.NewDense(len(records), 1, yData),
		FeatureNames: featureNames,
		TargetName:   strings.TrimSpace(header[targetIdx]),
	}, nil
}
