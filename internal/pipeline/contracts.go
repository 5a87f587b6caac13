package pipeline

import (
	"context"

	"github.com/temirov/article-drafter/internal/schema"
)

// Backend is the generation service. Given the requested schema and bound
// inputs it returns the raw response text or fails.
type Backend interface {
	Invoke(ctx context.Context, request Request) (Response, error)
}

// Settings carries per-step model parameters. Zero values defer to the backend.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Request is what a Backend receives for one attempt.
type Request struct {
	// Schema is the schema after the strategy has been applied; its outputs are
	// the fields the backend must produce.
	Schema     *schema.Schema
	Inputs     schema.Values
	Strategy   string
	Settings   Settings
	Refinement string
}

type Response struct {
	RawText string
}

// Acceptor is implemented by backends that need to know which response the
// executor accepted. Accept is called once per successful invocation, after
// parsing and verification, with the request of the accepted attempt.
type Acceptor interface {
	Accept(ctx context.Context, request Request, response Response)
}

// Verifier inspects parsed outputs. A non-nil error rejects the response and
// the invocation is re-attempted with the error as refine guidance.
type Verifier func(outputs schema.Values) error

// Invocation binds a schema to concrete inputs and an execution strategy.
type Invocation struct {
	Schema   *schema.Schema
	Inputs   schema.Values
	Strategy Strategy
	Settings Settings
	Verify   Verifier
}

type (
	DefinitionError = schema.DefinitionError
	BindingError    = schema.BindingError
	ParseError      = schema.ParseError
)
