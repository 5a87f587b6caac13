package pipeline

import (
	"sort"
	"strings"

	"github.com/temirov/article-drafter/internal/schema"
)

const (
	PredictStrategyName        = "predict"
	ChainOfThoughtStrategyName = "chain_of_thought"
	ReasoningFieldName         = "reasoning"
	reasoningFieldDescription  = "Think step by step in order to produce the remaining outputs."
)

// Strategy selects an execution technique. It may ask the backend for extra
// output fields but never changes how the declared outputs are validated.
type Strategy interface {
	Name() string
	Extend(declared *schema.Schema) (*schema.Schema, error)
}

// Predict asks for the declared outputs in a single shot.
type Predict struct{}

func (Predict) Name() string { return PredictStrategyName }

func (Predict) Extend(declared *schema.Schema) (*schema.Schema, error) { return declared, nil }

// ChainOfThought asks the backend to write out its reasoning before the
// declared outputs.
type ChainOfThought struct{}

func (ChainOfThought) Name() string { return ChainOfThoughtStrategyName }

func (ChainOfThought) Extend(declared *schema.Schema) (*schema.Schema, error) {
	return declared.WithLeadingOutputs(schema.Field{
		Name:        ReasoningFieldName,
		Type:        schema.String,
		Description: reasoningFieldDescription,
	})
}

type StrategyRegistry struct{ strategies map[string]Strategy }

// NewStrategyRegistry returns a registry holding the built-in strategies.
func NewStrategyRegistry() *StrategyRegistry {
	registry := &StrategyRegistry{strategies: map[string]Strategy{}}
	registry.Register(Predict{})
	registry.Register(ChainOfThought{})
	return registry
}

func (r *StrategyRegistry) Register(strategy Strategy) {
	r.strategies[normalizeStrategyName(strategy.Name())] = strategy
}

func (r *StrategyRegistry) Names() []string {
	out := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a strategy by name. An empty name resolves to Predict.
func (r *StrategyRegistry) Lookup(name string) (Strategy, bool) {
	normalized := normalizeStrategyName(name)
	if normalized == "" {
		normalized = PredictStrategyName
	}
	strategy, ok := r.strategies[normalized]
	return strategy, ok
}

func normalizeStrategyName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
