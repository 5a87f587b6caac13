package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/article-drafter/internal/schema"
)

// Step is a reusable binding of a schema to an execution strategy. It keeps no
// state between calls and is safe for concurrent use.
type Step struct {
	name     string
	schema   *schema.Schema
	strategy Strategy
	executor *Executor
	settings Settings
	verify   Verifier
}

type StepOption func(*Step)

func WithSettings(settings Settings) StepOption {
	return func(step *Step) { step.settings = settings }
}

func WithVerifier(verify Verifier) StepOption {
	return func(step *Step) { step.verify = verify }
}

// NewStep validates the binding up front: a strategy that cannot extend the
// schema fails here rather than on the first call.
func NewStep(name string, declared *schema.Schema, strategy Strategy, executor *Executor, options ...StepOption) (*Step, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("step name is empty")
	}
	if declared == nil {
		return nil, fmt.Errorf("step %s: schema is nil", name)
	}
	if executor == nil {
		return nil, fmt.Errorf("step %s: executor is nil", name)
	}
	if strategy == nil {
		strategy = Predict{}
	}
	if _, err := strategy.Extend(declared); err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}

	step := &Step{
		name:     name,
		schema:   declared,
		strategy: strategy,
		executor: executor,
	}
	for _, option := range options {
		option(step)
	}
	return step, nil
}

func (s *Step) Name() string           { return s.name }
func (s *Step) Schema() *schema.Schema { return s.schema }
func (s *Step) Strategy() Strategy     { return s.strategy }
func (s *Step) Settings() Settings     { return s.settings }

// Call executes the step with the given inputs.
func (s *Step) Call(ctx context.Context, inputs schema.Values) (schema.Values, error) {
	return s.executor.Execute(ctx, Invocation{
		Schema:   s.schema,
		Inputs:   inputs,
		Strategy: s.strategy,
		Settings: s.settings,
		Verify:   s.verify,
	})
}
