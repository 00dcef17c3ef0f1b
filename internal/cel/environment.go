// Package cel compiles and evaluates the CEL expressions that size arrays in
// YAML layouts.
package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// NewEnvironment creates the base CEL environment shared by every length
// expression: the standard library plus bitwise and clamping helpers.
func NewEnvironment() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.StdLib(),
		bitwiseFunctions(),
		clampFunctions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}
