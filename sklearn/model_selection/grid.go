package model_selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

// ParamGrid maps hyperparameter names to the candidate values to try.
// A nil value inside a list stands for "none" (e.g. unlimited max_depth).
type ParamGrid map[string][]interface{}

// Clone returns a copy of the grid with its own value slices.
func (g ParamGrid) Clone() ParamGrid {
	if g == nil {
		return nil
	}
	out := make(ParamGrid, len(g))
	for k, v := range g {
		out[k] = append([]interface{}(nil), v...)
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (g ParamGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate reports an empty candidate list.
func (g ParamGrid) Validate() error {
	for _, k := range g.Keys() {
		if len(g[k]) == 0 {
			return errors.NewValidationError(k, "parameter grid values must be a non-empty list", g[k])
		}
	}
	return nil
}

func (g ParamGrid) String() string {
	parts := make([]string, 0, len(g))
	for _, k := range g.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %v", k, g[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParameterGrid expands the grid into every combination of values. Keys are
// iterated in sorted order with the last key varying fastest. An empty grid
// yields a single empty candidate.
func ParameterGrid(g ParamGrid) []map[string]interface{} {
	keys := g.Keys()
	candidates := []map[string]interface{}{{}}
	for _, key := range keys {
		next := make([]map[string]interface{}, 0, len(candidates)*len(g[key]))
		for _, base := range candidates {
			for _, value := range g[key] {
				c := make(map[string]interface{}, len(base)+1)
				for k, v := range base {
					c[k] = v
				}
				c[key] = value
				next = append(next, c)
			}
		}
		candidates = next
	}
	return candidates
}
