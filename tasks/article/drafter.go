package article

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/article-drafter/internal/pipeline"
	"github.com/temirov/article-drafter/internal/schema"
)

const (
	OutlineStepName = "outline"
	DraftStepName   = "draft_section"

	defaultConcurrency = 1
)

// FailurePolicy decides what a failed section does to the run.
type FailurePolicy string

const (
	// FailRun aborts the whole run on the first section failure.
	FailRun FailurePolicy = "fail"
	// SkipSection drops the failed section and records it on the Result.
	SkipSection FailurePolicy = "skip"
)

// ParseFailurePolicy accepts "fail" or "skip"; empty means fail.
func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", FailRun:
		return FailRun, nil
	case SkipSection:
		return SkipSection, nil
	default:
		return "", fmt.Errorf("unknown section failure policy %q (want %s or %s)", value, FailRun, SkipSection)
	}
}

type Options struct {
	// Concurrency bounds in-flight section drafts; values below one mean one.
	Concurrency      int
	Order            SectionOrder
	OnSectionFailure FailurePolicy
}

// StageConfig binds a strategy and model settings to one stage.
type StageConfig struct {
	Strategy pipeline.Strategy
	Settings pipeline.Settings
}

// Drafter composes the outline step and the draft-section step. A Drafter
// holds no per-run state and may serve concurrent runs.
type Drafter struct {
	outline *pipeline.Step
	draft   *pipeline.Step
	options Options
	logger  *zap.Logger
}

// New builds a Drafter from prepared steps. The outline step must produce
// OutlineSchema outputs and the draft step must accept DraftSectionSchema inputs.
func New(outline, draft *pipeline.Step, options Options, logger *zap.Logger) (*Drafter, error) {
	if outline == nil || draft == nil {
		return nil, errors.New("article drafter needs both an outline and a draft step")
	}
	if err := requireFields(outline.Schema(), OutlineSchema); err != nil {
		return nil, fmt.Errorf("outline step: %w", err)
	}
	if err := requireFields(draft.Schema(), DraftSectionSchema); err != nil {
		return nil, fmt.Errorf("draft step: %w", err)
	}
	if _, err := ParseSectionOrder(string(options.Order)); err != nil {
		return nil, err
	}
	if _, err := ParseFailurePolicy(string(options.OnSectionFailure)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drafter{outline: outline, draft: draft, options: options, logger: logger}, nil
}

// NewFromExecutor builds both steps on a shared executor. The outline step
// rejects outlines whose subheading mapping names undeclared sections.
func NewFromExecutor(executor *pipeline.Executor, outlineStage, draftStage StageConfig, options Options, logger *zap.Logger) (*Drafter, error) {
	outline, err := pipeline.NewStep(OutlineStepName, OutlineSchema, outlineStage.Strategy, executor,
		pipeline.WithSettings(outlineStage.Settings),
		pipeline.WithVerifier(verifyOutline),
	)
	if err != nil {
		return nil, err
	}
	draft, err := pipeline.NewStep(DraftStepName, DraftSectionSchema, draftStage.Strategy, executor,
		pipeline.WithSettings(draftStage.Settings),
	)
	if err != nil {
		return nil, err
	}
	return New(outline, draft, options, logger)
}

func requireFields(actual, expected *schema.Schema) error {
	for _, field := range expected.Fields() {
		got, ok := actual.Field(field.Name)
		if !ok {
			return fmt.Errorf("schema %s lacks field %s", actual.Name(), field.Name)
		}
		if got.Type != field.Type || got.Role != field.Role {
			return fmt.Errorf("schema %s field %s is %s, want %s", actual.Name(), field.Name, got.Type, field.Type)
		}
	}
	return nil
}

// Run drafts one article. Any outline failure, or a section failure under
// the fail policy, returns a *StageError and no Result.
func (d *Drafter) Run(ctx context.Context, topic string) (Result, error) {
	logger := d.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("drafting article", zap.String("topic", topic))

	outlineValues, err := d.outline.Call(ctx, schema.NewValues(map[string]any{TopicField: topic}))
	if err != nil {
		return Result{}, &StageError{Stage: StageOutline, Index: -1, Err: err}
	}
	outline, err := OutlineFromValues(outlineValues)
	if err != nil {
		return Result{}, &StageError{Stage: StageOutline, Index: -1, Err: err}
	}

	order, _ := ParseSectionOrder(string(d.options.Order))
	plan := PlanSections(outline, order)
	logger.Info("outline ready",
		zap.String("title", outline.Title),
		zap.Int("declared_sections", len(outline.Sections)),
		zap.Int("planned_sections", len(plan)),
		zap.String("order", string(order)),
	)

	drafts, skipped, err := d.draftSections(ctx, outline.Title, plan, logger)
	if err != nil {
		return Result{}, err
	}
	logger.Info("article drafted", zap.Int("sections", len(drafts)), zap.Int("skipped", len(skipped)))
	return NewResult(outline.Title, drafts, skipped), nil
}

func (d *Drafter) draftSections(ctx context.Context, title string, plan []SectionCall, logger *zap.Logger) ([]SectionDraft, []SkippedSection, error) {
	policy, _ := ParseFailurePolicy(string(d.options.OnSectionFailure))
	drafted := make([]*SectionDraft, len(plan))
	failed := make([]*SkippedSection, len(plan))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency())
	for _, call := range plan {
		group.Go(func() error {
			if groupErr := groupCtx.Err(); groupErr != nil {
				return groupErr
			}
			sectionLogger := logger.With(zap.Int("section", call.Index), zap.String("heading", call.Heading))
			sectionLogger.Debug("drafting section", zap.Int("subheadings", len(call.Subheadings)))

			content, callErr := d.draftSection(groupCtx, title, call)
			if callErr != nil {
				if policy == SkipSection && ctx.Err() == nil {
					sectionLogger.Warn("section skipped", zap.Error(callErr))
					failed[call.Index] = &SkippedSection{Index: call.Index, Heading: call.Heading, Err: callErr}
					return nil
				}
				return &StageError{Stage: StageSection, Index: call.Index, Heading: call.Heading, Err: callErr}
			}
			drafted[call.Index] = &SectionDraft{
				Index:       call.Index,
				Heading:     call.Heading,
				Subheadings: call.Subheadings,
				Content:     content,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		drafts  []SectionDraft
		skipped []SkippedSection
	)
	for index := range plan {
		if drafted[index] != nil {
			drafts = append(drafts, *drafted[index])
		}
		if failed[index] != nil {
			skipped = append(skipped, *failed[index])
		}
	}
	return drafts, skipped, nil
}

func (d *Drafter) draftSection(ctx context.Context, title string, call SectionCall) (string, error) {
	outputs, err := d.draft.Call(ctx, call.inputs(title))
	if err != nil {
		return "", err
	}
	return outputs.String(ContentField)
}

func (d *Drafter) concurrency() int {
	if d.options.Concurrency < 1 {
		return defaultConcurrency
	}
	return d.options.Concurrency
}
