package cel

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// ExpressionPool caches compiled CEL expressions
type ExpressionPool struct {
	mu          sync.RWMutex
	expressions map[string]cel.Program
	env         *cel.Env
}

// NewExpressionPool creates a new expression pool with a configured CEL environment
func NewExpressionPool() (*ExpressionPool, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}
	return NewExpressionPoolWithEnv(env)
}

// NewExpressionPoolWithEnv creates a new expression pool with a custom CEL environment
func NewExpressionPoolWithEnv(env *cel.Env) (*ExpressionPool, error) {
	if env == nil {
		return nil, fmt.Errorf("CEL environment cannot be nil")
	}

	return &ExpressionPool{
		env:         env,
		expressions: make(map[string]cel.Program),
	}, nil
}

// Len returns the number of compiled expressions held by the pool.
func (e *ExpressionPool) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.expressions)
}

// GetExpression retrieves or compiles an expression
func (e *ExpressionPool) GetExpression(exprStr string) (cel.Program, error) {
	e.mu.RLock()
	if program, ok := e.expressions[exprStr]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	// Every identifier is declared dynamic; sibling types are only known at decode time.
	envOpts := []cel.EnvOption{}
	for _, varName := range extractVariables(exprStr) {
		envOpts = append(envOpts, cel.Variable(varName, cel.DynType))
	}

	extEnv, err := e.env.Extend(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to extend environment: %w", err)
	}

	ast, issues := extEnv.Compile(exprStr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", exprStr, issues.Err())
	}

	program, err := extEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.expressions[exprStr] = program
	e.mu.Unlock()

	return program, nil
}

// EvaluateExpression evaluates a compiled expression with parameters
func (e *ExpressionPool) EvaluateExpression(program cel.Program, params map[string]any) (any, error) {
	if params == nil {
		params = make(map[string]any)
	}

	activation, err := cel.NewActivation(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation: %w", err)
	}

	val, _, err := program.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("expression evaluation error: %w", err)
	}

	return adaptCELResult(val), nil
}

// EvaluateLength compiles (or reuses) exprStr and evaluates it to an
// element count. The result must be a non-negative integer no larger than
// math.MaxInt32.
func (e *ExpressionPool) EvaluateLength(exprStr string, params map[string]any) (int, error) {
	program, err := e.GetExpression(exprStr)
	if err != nil {
		return 0, err
	}
	out, err := e.EvaluateExpression(program, params)
	if err != nil {
		return 0, err
	}

	var n int64
	switch v := out.(type) {
	case int64:
		n = v
	case uint64:
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("length expression %q yielded %d, out of range", exprStr, v)
		}
		n = int64(v)
	default:
		return 0, fmt.Errorf("length expression %q yielded %T, want an integer", exprStr, out)
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("length expression %q yielded %d, out of range", exprStr, n)
	}
	return int(n), nil
}

// adaptCELResult converts CEL result values to Go native types
func adaptCELResult(val ref.Val) any {
	switch v := val.(type) {
	case types.Int:
		return int64(v)
	case types.Uint:
		return uint64(v)
	case types.Double:
		return float64(v)
	case types.Bool:
		return bool(v)
	case types.String:
		return string(v)
	case types.Bytes:
		return []byte(v)
	case types.Null:
		return nil
	}

	if lister, ok := val.(traits.Lister); ok {
		size := lister.Size().(types.Int)
		result := make([]any, size)
		for i := types.Int(0); i < size; i++ {
			result[i] = adaptCELResult(lister.Get(i))
		}
		return result
	}

	if mapper, ok := val.(traits.Mapper); ok {
		result := make(map[string]any)
		iter := mapper.Iterator()
		for iter.HasNext() == types.True {
			key := iter.Next()
			keyStr, ok := key.Value().(string)
			if !ok {
				keyStr = fmt.Sprintf("%v", key.Value())
			}
			result[keyStr] = adaptCELResult(mapper.Get(key))
		}
		return result
	}

	return val.Value()
}

// extractVariables finds the identifiers an expression references, skipping
// literals, numbers and names followed by a call.
func extractVariables(expr string) []string {
	var vars []string
	seen := make(map[string]bool)

	keywords := map[string]bool{
		"true":  true,
		"false": true,
		"null":  true,
		"in":    true,
	}

	add := func(start, next int) {
		word := expr[start:next]
		if keywords[word] || seen[word] || (word[0] >= '0' && word[0] <= '9') {
			return
		}
		if next < len(expr) && expr[next] == '(' {
			return
		}
		if start > 0 && expr[start-1] == '.' {
			return
		}
		seen[word] = true
		vars = append(vars, word)
	}

	inWord, inString := false, byte(0)
	start := 0
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if inString != 0 {
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
			}
			continue
		}
		isWordChar := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'

		if isWordChar && !inWord {
			inWord = true
			start = i
		} else if !isWordChar && inWord {
			inWord = false
			add(start, i)
		}
		if c == '"' || c == '\'' {
			inString = c
		}
	}

	if inWord {
		add(start, len(expr))
	}

	return vars
}
