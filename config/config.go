// Package config loads benchmark definitions from YAML.
//
// A minimal file:
//
//	results_path: results
//	cv:
//	  n_splits: 5
//	  shuffle: true
//	  seed: 42
//	datasets:
//	  - name: iris
//	    path: data/iris.csv
//	strategies:
//	  - estimator: RandomForestClassifier
//	    hyperparameters:
//	      n_estimators: [10, 50]
//	      max_depth: [5, null]
package config

import (
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlbench/estimators"
	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/YuminosukeSato/mlbench/sklearn/model_selection"
)

// Backend names a Results implementation.
const (
	BackendHDD = "hdd"
	BackendKV  = "kv"
)

// Config is a complete benchmark definition.
type Config struct {
	ResultsPath string `yaml:"results_path" validate:"required"`
	Backend     string `yaml:"backend" validate:"oneof=hdd kv"`
	// ModelsPath is where estimators save their trained grid searches.
	ModelsPath string `yaml:"models_path"`
	LogLevel   string `yaml:"log_level" validate:"oneof=debug info warn error"`
	// NJobs bounds concurrent candidate fits per grid search; <= 0 uses all cores.
	NJobs int `yaml:"n_jobs"`

	CV         CVConfig         `yaml:"cv"`
	Run        RunConfig        `yaml:"run"`
	Datasets   []DatasetConfig  `yaml:"datasets" validate:"required,min=1,dive"`
	Strategies []StrategyConfig `yaml:"strategies" validate:"required,min=1,dive"`
}

// CVConfig describes the outer cross-validation.
type CVConfig struct {
	NSplits    int  `yaml:"n_splits" validate:"gte=2"`
	Shuffle    bool `yaml:"shuffle"`
	Seed       int  `yaml:"seed"`
	Stratified bool `yaml:"stratified"`
}

// RunConfig mirrors the orchestrator's run options.
type RunConfig struct {
	OverwritePredictions   bool `yaml:"overwrite_predictions"`
	OverwriteStrategies    bool `yaml:"overwrite_strategies"`
	SavePredictionsOnTrain bool `yaml:"save_predictions_on_train"`
}

// DatasetConfig points at a CSV file.
type DatasetConfig struct {
	Name string `yaml:"name" validate:"required,safename"`
	Path string `yaml:"path" validate:"required"`
	// Target is the target column; empty uses the last column.
	Target string `yaml:"target"`
}

// StrategyConfig selects an estimator and optionally overrides its grid.
type StrategyConfig struct {
	// Name defaults to Estimator.
	Name            string                    `yaml:"name" validate:"omitempty,safename"`
	Estimator       string                    `yaml:"estimator" validate:"required,estimator"`
	Hyperparameters model_selection.ParamGrid `yaml:"hyperparameters"`
	InnerCV         int                       `yaml:"inner_cv" validate:"omitempty,gte=2"`
	RandomState     *int                      `yaml:"random_state"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("estimator", validateEstimator)
	_ = validate.RegisterValidation("safename", validateSafeName)
}

func validateEstimator(fl validator.FieldLevel) bool {
	return slices.Contains(estimators.Default().Names(), fl.Field().String())
}

// safename rejects names that cannot be used as a path element.
func validateSafeName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		ResultsPath: "results",
		Backend:     BackendHDD,
		LogLevel:    "info",
		NJobs:       -1,
		CV:          CVConfig{NSplits: 5},
	}
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendHDD
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CV.NSplits == 0 {
		c.CV.NSplits = 5
	}
	for i := range c.Strategies {
		if c.Strategies[i].Name == "" {
			c.Strategies[i].Name = c.Strategies[i].Estimator
		}
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(fe.Namespace(), "failed on '"+fe.Tag()+"'", fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}

	seen := make(map[string]bool)
	for _, d := range c.Datasets {
		if seen[d.Name] {
			return errors.NewValidationError("datasets", "duplicate dataset name", d.Name)
		}
		seen[d.Name] = true
	}
	seen = make(map[string]bool)
	for _, s := range c.Strategies {
		if seen[s.Name] {
			return errors.NewValidationError("strategies", "duplicate strategy name", s.Name)
		}
		seen[s.Name] = true
		if s.Hyperparameters != nil {
			if err := s.Hyperparameters.Validate(); err != nil {
				return errors.Wrapf(err, "strategy %s", s.Name)
			}
		}
	}
	return nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewPathError("config.Load", path, "config file not found")
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}
