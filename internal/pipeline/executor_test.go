package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/article-drafter/internal/pipeline"
	"github.com/temirov/article-drafter/internal/schema"
)

type reply struct {
	raw   string
	err   error
	block bool
}

type scriptedBackend struct {
	mu       sync.Mutex
	replies  []reply
	requests []pipeline.Request
}

func (b *scriptedBackend) Invoke(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	if len(b.replies) == 0 {
		b.mu.Unlock()
		return pipeline.Response{}, errors.New("no more replies")
	}
	next := b.replies[0]
	b.replies = b.replies[1:]
	b.mu.Unlock()

	if next.block {
		<-ctx.Done()
		return pipeline.Response{}, ctx.Err()
	}
	return pipeline.Response{RawText: next.raw}, next.err
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

var draftSchema = schema.MustDefine(
	"DraftSection",
	"Draft a top-level section of an article.",
	schema.InputField("topic", schema.String, ""),
	schema.InputField("section_heading", schema.String, ""),
	schema.InputField("section_subheadings", schema.StringList, ""),
	schema.OutputField("content", schema.String, "markdown-formatted section"),
)

func draftInputs() schema.Values {
	return schema.NewValues(map[string]any{
		"topic":               "Overview of the 2002 FIFA World Cup",
		"section_heading":     "## Historical Context",
		"section_subheadings": []string{"### Previous World Cups"},
	})
}

func fastOptions() pipeline.Options {
	return pipeline.Options{MaxAttempts: 3, BackendRetries: 2, RetryBaseDelay: time.Millisecond, Timeout: time.Second}
}

func TestExecutor_RefineFlow(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{raw: "{}"}, {raw: `{"content":"## Historical Context"}`}}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	outputs, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	content, err := outputs.String("content")
	if err != nil || content != "## Historical Context" {
		t.Fatalf("unexpected content %q (%v)", content, err)
	}
	if backend.calls() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", backend.calls())
	}
	if backend.requests[0].Refinement != "" {
		t.Fatalf("first attempt must not carry a refinement")
	}
	refinement := backend.requests[1].Refinement
	if !strings.HasPrefix(refinement, "REFINE:\n") || !strings.Contains(refinement, `"content"`) {
		t.Fatalf("expected refine guidance naming the missing field, got %q", refinement)
	}
}

func TestExecutor_ExhaustAttempts(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{raw: "{}"}, {raw: "not json"}}}
	executor := &pipeline.Executor{Backend: backend, Options: pipeline.Options{MaxAttempts: 2, Timeout: time.Second}}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	var exhausted *pipeline.AttemptsExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 2 {
		t.Fatalf("expected AttemptsExhaustedError with 2 attempts, got %v", err)
	}
	var parseErr *pipeline.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError in chain, got %v", err)
	}
	if !strings.Contains(exhausted.Transcript, "Attempt 2:") {
		t.Fatalf("expected transcript for both attempts:\n%s", exhausted.Transcript)
	}
}

func TestExecutor_TranscriptTruncatesOnRuneBoundaries(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{raw: "x" + strings.Repeat("é", 1300)}}}
	executor := &pipeline.Executor{Backend: backend, Options: pipeline.Options{MaxAttempts: 1, Timeout: time.Second}}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	var exhausted *pipeline.AttemptsExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AttemptsExhaustedError, got %v", err)
	}
	if !utf8.ValidString(exhausted.Transcript) {
		t.Fatalf("transcript must stay valid UTF-8")
	}
	if !strings.Contains(exhausted.Transcript, "é…") {
		t.Fatalf("expected a truncated response in the transcript:\n%s", exhausted.Transcript)
	}
}

func TestExecutor_BindingErrorSkipsBackend(t *testing.T) {
	backend := &scriptedBackend{}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	inputs := schema.NewValues(map[string]any{"topic": "t", "section_heading": "## h"})
	_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: inputs})

	var bindingErr *pipeline.BindingError
	if !errors.As(err, &bindingErr) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if backend.calls() != 0 {
		t.Fatalf("backend must not be called on binding errors")
	}
}

func TestExecutor_RetriesRetryableBackendErrors(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{
		{err: pipeline.NewRetryableBackendError(429, errors.New("rate limited"))},
		{err: pipeline.NewRetryableBackendError(503, errors.New("unavailable"))},
		{raw: `{"content":"ok"}`},
	}}
	core, logs := observer.New(zap.WarnLevel)
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions(), Logger: zap.New(core)}

	if _, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if backend.calls() != 3 {
		t.Fatalf("expected 3 backend calls, got %d", backend.calls())
	}
	if got := logs.FilterMessage("backend call failed, retrying").Len(); got != 2 {
		t.Fatalf("expected 2 retry warnings, got %d", got)
	}
}

func TestExecutor_ExhaustsBackendRetries(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{
		{err: pipeline.NewRetryableBackendError(429, errors.New("rate limited"))},
		{err: pipeline.NewRetryableBackendError(429, errors.New("rate limited"))},
	}}
	options := fastOptions()
	options.BackendRetries = 1
	executor := &pipeline.Executor{Backend: backend, Options: options}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	var backendErr *pipeline.BackendError
	if !errors.As(err, &backendErr) || backendErr.StatusCode != 429 {
		t.Fatalf("expected BackendError 429, got %v", err)
	}
	if backend.calls() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", backend.calls())
	}
}

func TestExecutor_BackendRetriesDefaultAndDisable(t *testing.T) {
	type testCase struct {
		name      string
		retries   int
		wantCalls int
		wantErr   bool
	}
	testCases := []testCase{
		{name: "zero selects the default", retries: 0, wantCalls: 2},
		{name: "negative disables retries", retries: -1, wantCalls: 1, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &scriptedBackend{replies: []reply{
				{err: pipeline.NewRetryableBackendError(503, errors.New("unavailable"))},
				{raw: `{"content":"ok"}`},
			}}
			executor := &pipeline.Executor{
				Backend: backend,
				Options: pipeline.Options{BackendRetries: tc.retries, RetryBaseDelay: time.Millisecond},
			}

			_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if backend.calls() != tc.wantCalls {
				t.Fatalf("expected %d backend calls, got %d", tc.wantCalls, backend.calls())
			}
		})
	}
}

func TestExecutor_AcceptorSeesOnlyAcceptedResponse(t *testing.T) {
	backend := &acceptingBackend{scriptedBackend: scriptedBackend{replies: []reply{{raw: "{}"}, {raw: `{"content":"ok"}`}}}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	if _, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(backend.accepted) != 1 || backend.accepted[0] != `{"content":"ok"}` {
		t.Fatalf("expected only the accepted response, got %v", backend.accepted)
	}
}

type acceptingBackend struct {
	scriptedBackend
	accepted []string
}

func (b *acceptingBackend) Accept(_ context.Context, _ pipeline.Request, response pipeline.Response) {
	b.accepted = append(b.accepted, response.RawText)
}

func TestExecutor_PermanentBackendErrorNotRetried(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{
		{err: pipeline.NewPermanentBackendError(401, errors.New("invalid api key"))},
		{raw: `{"content":"never reached"}`},
	}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	var backendErr *pipeline.BackendError
	if !errors.As(err, &backendErr) || backendErr.Retryable {
		t.Fatalf("expected permanent BackendError, got %v", err)
	}
	if backend.calls() != 1 {
		t.Fatalf("expected a single backend call, got %d", backend.calls())
	}
}

func TestExecutor_TimeoutIsRetryableBackendError(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{block: true}, {raw: `{"content":"late but fine"}`}}}
	executor := &pipeline.Executor{
		Backend: backend,
		Options: pipeline.Options{MaxAttempts: 1, BackendRetries: 1, RetryBaseDelay: time.Millisecond, Timeout: 20 * time.Millisecond},
	}

	outputs, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if content, _ := outputs.String("content"); content != "late but fine" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestExecutor_TimeoutWithoutRetriesSurfacesBackendError(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{block: true}}}
	executor := &pipeline.Executor{
		Backend: backend,
		Options: pipeline.Options{MaxAttempts: 3, BackendRetries: -1, Timeout: 10 * time.Millisecond},
	}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	var backendErr *pipeline.BackendError
	if !errors.As(err, &backendErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timed out BackendError, got %v", err)
	}
}

func TestExecutor_ParentCancellation(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{block: true}}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := executor.Execute(ctx, pipeline.Invocation{Schema: draftSchema, Inputs: draftInputs()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backend.calls() != 1 {
		t.Fatalf("cancelled runs must not retry, got %d calls", backend.calls())
	}
}

func TestExecutor_ChainOfThoughtRequestsReasoning(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{raw: `{"reasoning":"cover the 1998 edition first","content":"## Historical Context"}`}}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	outputs, err := executor.Execute(context.Background(), pipeline.Invocation{
		Schema:   draftSchema,
		Inputs:   draftInputs(),
		Strategy: pipeline.ChainOfThought{},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	requested := backend.requests[0]
	if requested.Strategy != pipeline.ChainOfThoughtStrategyName {
		t.Fatalf("expected strategy tag %q, got %q", pipeline.ChainOfThoughtStrategyName, requested.Strategy)
	}
	requestedOutputs := requested.Schema.Outputs()
	if len(requestedOutputs) != 2 || requestedOutputs[0].Name != pipeline.ReasoningFieldName {
		t.Fatalf("expected reasoning to lead the requested outputs, got %+v", requestedOutputs)
	}
	if _, present := outputs.Get(pipeline.ReasoningFieldName); present {
		t.Fatalf("reasoning must not leak into declared outputs")
	}
}

func TestExecutor_ChainOfThoughtDoesNotRequireReasoning(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{raw: `{"content":"body"}`}}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{
		Schema:   draftSchema,
		Inputs:   draftInputs(),
		Strategy: pipeline.ChainOfThought{},
	})
	if err != nil {
		t.Fatalf("strategy fields must not change output validation: %v", err)
	}
}

func TestExecutor_VerifierRejectionIsRetried(t *testing.T) {
	backend := &scriptedBackend{replies: []reply{{raw: `{"content":""}`}, {raw: `{"content":"body"}`}}}
	executor := &pipeline.Executor{Backend: backend, Options: fastOptions()}

	_, err := executor.Execute(context.Background(), pipeline.Invocation{
		Schema: draftSchema,
		Inputs: draftInputs(),
		Verify: func(outputs schema.Values) error {
			content, _ := outputs.String("content")
			if strings.TrimSpace(content) == "" {
				return errors.New("content is empty")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(backend.requests[1].Refinement, "content is empty") {
		t.Fatalf("expected verifier message in refinement, got %q", backend.requests[1].Refinement)
	}
}
