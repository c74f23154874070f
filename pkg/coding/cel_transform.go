package coding

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// CELTransformEvaluator evaluates `transform=cel` DimensionRules:
// TransformParams["expr"] is a CEL expression over the raw source
// value, returning the transformed string. Generalizes the teacher's
// governance/policy_evaluator_cel.go compiled-program cache from a
// bool-returning policy check to a string-returning value transform.
type CELTransformEvaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewCELTransformEvaluator builds an evaluator exposing a single `value`
// string variable, plus the cel-go string extension functions
// (upperAscii, lowerAscii, trim, split, ...), to rule expressions.
func NewCELTransformEvaluator() (*CELTransformEvaluator, error) {
	env, err := cel.NewEnv(cel.Variable("value", cel.StringType), ext.Strings())
	if err != nil {
		return nil, fmt.Errorf("coding: cel environment: %w", err)
	}
	return &CELTransformEvaluator{env: env, prgCache: make(map[string]cel.Program)}, nil
}

// Evaluate runs expr against value, using a cached compiled program for
// repeated evaluation of the same rule across a package's invoices.
func (e *CELTransformEvaluator) Evaluate(ctx context.Context, expr, value string) (string, error) {
	prg, err := e.program(expr)
	if err != nil {
		return "", err
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{"value": value})
	if err != nil {
		return "", fmt.Errorf("coding: cel eval: %w", err)
	}
	result, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("coding: cel expression %q did not evaluate to a string", expr)
	}
	return result, nil
}

func (e *CELTransformEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("coding: cel compile %q: %w", expr, issues.Err())
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("coding: cel program %q: %w", expr, err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}
