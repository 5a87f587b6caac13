package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/article-drafter/internal/schema"
)

const (
	defaultMaxAttempts    = 3
	defaultBackendRetries = 2
	defaultTimeout        = 60 * time.Second
	defaultRetryBaseDelay = 2 * time.Second

	missingSchemaErrorMessage  = "invocation has no schema"
	missingBackendErrorMessage = "executor has no backend"
	applyStrategyErrorFormat   = "apply strategy %s to %s: %w"
	timeoutErrorFormat         = "backend call timed out after %s: %w"
	refineHeader               = "REFINE:"
)

type Options struct {
	// MaxAttempts bounds how many responses are requested when responses
	// cannot be parsed or verified.
	MaxAttempts int
	// BackendRetries is the number of extra tries for retryable backend errors
	// within one attempt. Zero selects the default; a negative value disables
	// retries.
	BackendRetries int
	// RetryBaseDelay starts the exponential backoff between backend retries.
	RetryBaseDelay time.Duration
	// Timeout bounds every single backend call.
	Timeout time.Duration
}

// Executor validates bindings, invokes the backend and turns its responses
// into validated outputs. The zero Options select the package defaults.
type Executor struct {
	Backend Backend
	Options Options
	Logger  *zap.Logger
}

// Execute runs one invocation. Binding failures return immediately; parse
// failures are re-attempted with refine guidance; retryable backend failures
// are retried with exponential backoff.
func (e *Executor) Execute(ctx context.Context, invocation Invocation) (schema.Values, error) {
	if invocation.Schema == nil {
		return schema.Values{}, errors.New(missingSchemaErrorMessage)
	}
	if e.Backend == nil {
		return schema.Values{}, errors.New(missingBackendErrorMessage)
	}
	if bindErr := invocation.Schema.BindInputs(invocation.Inputs); bindErr != nil {
		return schema.Values{}, bindErr
	}

	strategy := invocation.Strategy
	if strategy == nil {
		strategy = Predict{}
	}
	requested, extendErr := strategy.Extend(invocation.Schema)
	if extendErr != nil {
		return schema.Values{}, fmt.Errorf(applyStrategyErrorFormat, strategy.Name(), invocation.Schema.Name(), extendErr)
	}

	logger := e.logger().With(
		zap.String("schema", invocation.Schema.Name()),
		zap.String("strategy", strategy.Name()),
	)

	var (
		attemptLogs   []attemptRecord
		lastParseErr  error
		pendingRefine string
	)
	maxAttempts := e.Options.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		request := Request{
			Schema:     requested,
			Inputs:     invocation.Inputs,
			Strategy:   strategy.Name(),
			Settings:   invocation.Settings,
			Refinement: pendingRefine,
		}
		response, invokeErr := e.invokeWithRetry(ctx, request, logger)
		if invokeErr != nil {
			return schema.Values{}, invokeErr
		}
		record := attemptRecord{Request: request, Response: response}

		outputs, parseErr := parseAndVerify(invocation, response)
		if parseErr == nil {
			record.Accepted = true
			attemptLogs = append(attemptLogs, record)
			logger.Debug("backend response accepted", zap.Int("attempt", attempt))
			if acceptor, ok := e.Backend.(Acceptor); ok {
				acceptor.Accept(ctx, request, response)
			}
			return outputs, nil
		}

		record.Problem = parseErr.Error()
		attemptLogs = append(attemptLogs, record)
		lastParseErr = parseErr
		logger.Warn("backend response rejected", zap.Int("attempt", attempt), zap.Error(parseErr))
		pendingRefine = formatRefine(refineGuidance(parseErr, invocation.Schema))
	}

	exhausted := &AttemptsExhaustedError{
		Attempts:   len(attemptLogs),
		Last:       lastParseErr,
		Transcript: renderAttemptDebug(attemptLogs),
	}
	logger.Debug("attempts exhausted", zap.String("transcript", exhausted.Transcript))
	return schema.Values{}, exhausted
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Executor) timeout() time.Duration {
	if e.Options.Timeout <= 0 {
		return defaultTimeout
	}
	return e.Options.Timeout
}

func (e *Executor) backendRetries() int {
	switch {
	case e.Options.BackendRetries == 0:
		return defaultBackendRetries
	case e.Options.BackendRetries < 0:
		return 0
	default:
		return e.Options.BackendRetries
	}
}

func (e *Executor) retryBaseDelay() time.Duration {
	if e.Options.RetryBaseDelay <= 0 {
		return defaultRetryBaseDelay
	}
	return e.Options.RetryBaseDelay
}

// invokeWithRetry calls the backend and retries retryable failures. The delay
// starts at RetryBaseDelay and doubles on each retry. Cancellation of ctx
// aborts immediately with ctx.Err().
func (e *Executor) invokeWithRetry(ctx context.Context, request Request, logger *zap.Logger) (Response, error) {
	retries := e.backendRetries()
	for try := 0; ; try++ {
		response, err := e.invokeOnce(ctx, request)
		if err == nil {
			return response, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}

		backendErr := asBackendError(err)
		if !backendErr.Retryable || try >= retries {
			return Response{}, backendErr
		}

		backoff := e.retryBaseDelay() << try
		logger.Warn("backend call failed, retrying",
			zap.Error(backendErr),
			zap.Duration("backoff", backoff),
			zap.Int("retry", try+1),
			zap.Int("max_retries", retries),
		)
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (e *Executor) invokeOnce(ctx context.Context, request Request) (Response, error) {
	timeout := e.timeout()
	callContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := e.Backend.Invoke(callContext, request)
	if err != nil && ctx.Err() == nil && errors.Is(callContext.Err(), context.DeadlineExceeded) {
		return Response{}, &BackendError{Err: fmt.Errorf(timeoutErrorFormat, timeout, err), Retryable: true}
	}
	return response, err
}

func parseAndVerify(invocation Invocation, response Response) (schema.Values, error) {
	outputs, parseErr := invocation.Schema.ParseOutputs(response.RawText)
	if parseErr != nil {
		return schema.Values{}, parseErr
	}
	if invocation.Verify == nil {
		return outputs, nil
	}
	if verifyErr := invocation.Verify(outputs); verifyErr != nil {
		return schema.Values{}, &schema.ParseError{Schema: invocation.Schema.Name(), Reason: verifyErr.Error()}
	}
	return outputs, nil
}

func refineGuidance(parseErr error, declared *schema.Schema) string {
	outputs := declared.Outputs()
	names := make([]string, 0, len(outputs))
	for _, field := range outputs {
		names = append(names, fmt.Sprintf("%q (%s)", field.Name, field.Type))
	}
	return fmt.Sprintf(
		"The previous response was rejected: %v\nRespond with a single JSON object that contains every one of these fields with the declared type: %s.",
		parseErr,
		strings.Join(names, ", "),
	)
}

type attemptRecord struct {
	Request  Request
	Response Response
	Problem  string
	Accepted bool
}

func renderAttemptDebug(attempts []attemptRecord) string {
	var sb strings.Builder
	for idx, attempt := range attempts {
		sb.WriteString(fmt.Sprintf("Attempt %d:\n", idx+1))
		sb.WriteString(fmt.Sprintf("  Schema: %s Strategy: %s\n", attempt.Request.Schema.Name(), attempt.Request.Strategy))
		sb.WriteString(fmt.Sprintf("  Model: %s MaxTokens: %d Temp: %.2f\n", attempt.Request.Settings.Model, attempt.Request.Settings.MaxTokens, attempt.Request.Settings.Temperature))
		if attempt.Request.Refinement != "" {
			sb.WriteString("  Refinement:\n")
			sb.WriteString(indentBlock(truncate(attempt.Request.Refinement, 600)))
			sb.WriteString("\n")
		}
		sb.WriteString("  Response:\n")
		sb.WriteString(indentBlock(truncate(attempt.Response.RawText, 1200)))
		sb.WriteString("\n")
		if attempt.Problem != "" {
			sb.WriteString("  Problem: ")
			sb.WriteString(attempt.Problem)
			sb.WriteString("\n")
		}
		if attempt.Accepted {
			sb.WriteString("  Status: accepted\n")
		} else {
			sb.WriteString("  Status: rejected\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func indentBlock(block string) string {
	if block == "" {
		return "    <empty>"
	}
	lines := strings.Split(block, "\n")
	for idx, line := range lines {
		lines[idx] = "    " + line
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

func formatRefine(delta string) string {
	trimmed := strings.TrimSpace(delta)
	if trimmed == "" {
		return refineHeader + "\n<empty>"
	}
	return refineHeader + "\n" + trimmed
}
