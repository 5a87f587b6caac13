package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/temirov/article-drafter/internal/pipeline"
)

const (
	emptyModelsErrorMessage                  = "config.models is empty"
	missingDefaultModelErrorMessage          = "no default model found (set models[].default: true)"
	multipleDefaultModelsErrorFormat         = "more than one default model: %s and %s"
	duplicateModelErrorFormat                = "duplicate model name %q"
	unknownSectionOrderErrorFormat           = "pipeline.section_order %q is not one of mapping, sections"
	unknownSectionFailureErrorFormat         = "pipeline.section_failure %q is not one of fail, skip"
	negativeConcurrencyErrorFormat           = "pipeline.concurrency %d is negative"
	unknownStageModelErrorFormat             = "pipeline.stages.%s.model %q is not a configured model"
	unknownStageStrategyErrorFormat          = "pipeline.stages.%s.strategy %q is not a known strategy"
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
	rootConfigurationInvalidErrorFormat      = "invalid root configuration %s: %w"

	SectionOrderMapping   = "mapping"
	SectionOrderSections  = "sections"
	SectionFailureFail    = "fail"
	SectionFailureSkip    = "skip"
	OutlineStageName      = "outline"
	DraftSectionStageName = "draft_section"

	defaultAttempts         = 3
	defaultBackendRetries   = 2
	defaultRetryBaseDelayMS = 2000
	defaultTimeoutSeconds   = 60
	defaultConcurrency      = 1
)

type Root struct {
	Common   Common   `yaml:"common"`
	Models   []Model  `yaml:"models"`
	Pipeline Pipeline `yaml:"pipeline"`
}

type Common struct {
	API struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"api"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Defaults struct {
		Attempts         int `yaml:"attempts"`
		BackendRetries   int `yaml:"backend_retries"`
		RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
		TimeoutSeconds   int `yaml:"timeout_seconds"`
	} `yaml:"defaults"`
	Cache struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"cache"`
}

type Model struct {
	Name                string  `yaml:"name"`
	Provider            string  `yaml:"provider"`
	ModelID             string  `yaml:"model_id"`
	Default             bool    `yaml:"default"`
	SupportsTemperature bool    `yaml:"supports_temperature"`
	DefaultTemperature  float64 `yaml:"default_temperature"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
}

type Pipeline struct {
	Concurrency    int    `yaml:"concurrency"`
	SectionOrder   string `yaml:"section_order"`
	SectionFailure string `yaml:"section_failure"`
	Stages         struct {
		Outline      Stage `yaml:"outline"`
		DraftSection Stage `yaml:"draft_section"`
	} `yaml:"stages"`
}

// Stage binds a model, a strategy and generation limits to one pipeline stage.
// An empty model selects the default model.
type Stage struct {
	Model       string  `yaml:"model"`
	Strategy    string  `yaml:"strategy"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// LoadRoot parses the provided configuration source, applies defaults and
// validates it. Every validation problem is reported, not just the first.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}
	rootConfiguration.applyDefaults()

	if err := rootConfiguration.Validate(); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationInvalidErrorFormat, source.Reference, err)
	}
	return rootConfiguration, nil
}

func (root *Root) applyDefaults() {
	defaults := &root.Common.Defaults
	if defaults.Attempts <= 0 {
		defaults.Attempts = defaultAttempts
	}
	if defaults.BackendRetries == 0 {
		defaults.BackendRetries = defaultBackendRetries
	}
	if defaults.RetryBaseDelayMS <= 0 {
		defaults.RetryBaseDelayMS = defaultRetryBaseDelayMS
	}
	if defaults.TimeoutSeconds <= 0 {
		defaults.TimeoutSeconds = defaultTimeoutSeconds
	}
	if root.Pipeline.Concurrency == 0 {
		root.Pipeline.Concurrency = defaultConcurrency
	}
	if root.Pipeline.SectionOrder == "" {
		root.Pipeline.SectionOrder = SectionOrderMapping
	}
	if root.Pipeline.SectionFailure == "" {
		root.Pipeline.SectionFailure = SectionFailureFail
	}
}

// Validate checks model and pipeline settings and combines every problem found.
func (root Root) Validate() error {
	var validationErr error
	if len(root.Models) == 0 {
		validationErr = multierr.Append(validationErr, errors.New(emptyModelsErrorMessage))
	}

	seen := make(map[string]struct{}, len(root.Models))
	var defaultName string
	for _, modelConfiguration := range root.Models {
		if _, duplicate := seen[modelConfiguration.Name]; duplicate {
			validationErr = multierr.Append(validationErr, fmt.Errorf(duplicateModelErrorFormat, modelConfiguration.Name))
		}
		seen[modelConfiguration.Name] = struct{}{}
		if !modelConfiguration.Default {
			continue
		}
		if defaultName != "" {
			validationErr = multierr.Append(validationErr, fmt.Errorf(multipleDefaultModelsErrorFormat, defaultName, modelConfiguration.Name))
			continue
		}
		defaultName = modelConfiguration.Name
	}
	if len(root.Models) > 0 && defaultName == "" {
		validationErr = multierr.Append(validationErr, errors.New(missingDefaultModelErrorMessage))
	}

	switch root.Pipeline.SectionOrder {
	case SectionOrderMapping, SectionOrderSections:
	default:
		validationErr = multierr.Append(validationErr, fmt.Errorf(unknownSectionOrderErrorFormat, root.Pipeline.SectionOrder))
	}
	switch root.Pipeline.SectionFailure {
	case SectionFailureFail, SectionFailureSkip:
	default:
		validationErr = multierr.Append(validationErr, fmt.Errorf(unknownSectionFailureErrorFormat, root.Pipeline.SectionFailure))
	}
	if root.Pipeline.Concurrency < 0 {
		validationErr = multierr.Append(validationErr, fmt.Errorf(negativeConcurrencyErrorFormat, root.Pipeline.Concurrency))
	}

	strategies := pipeline.NewStrategyRegistry()
	for _, stage := range []struct {
		name  string
		stage Stage
	}{
		{name: OutlineStageName, stage: root.Pipeline.Stages.Outline},
		{name: DraftSectionStageName, stage: root.Pipeline.Stages.DraftSection},
	} {
		if stage.stage.Model != "" {
			if _, ok := root.FindModel(stage.stage.Model); !ok {
				validationErr = multierr.Append(validationErr, fmt.Errorf(unknownStageModelErrorFormat, stage.name, stage.stage.Model))
			}
		}
		if _, ok := strategies.Lookup(stage.stage.Strategy); !ok {
			validationErr = multierr.Append(validationErr, fmt.Errorf(unknownStageStrategyErrorFormat, stage.name, stage.stage.Strategy))
		}
	}
	return validationErr
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindModel(name string) (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == name {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

// StageModel resolves the model a stage runs on, falling back to the default.
func (root Root) StageModel(stage Stage) (Model, bool) {
	if stage.Model == "" {
		return root.DefaultModel()
	}
	return root.FindModel(stage.Model)
}

// StageSettings resolves the executor settings for a stage. Stage limits win
// over the model's limits; temperature is dropped for models that do not
// support it.
func (root Root) StageSettings(stage Stage) (pipeline.Settings, error) {
	modelConfiguration, ok := root.StageModel(stage)
	if !ok {
		return pipeline.Settings{}, fmt.Errorf("no model configured for stage (model %q)", stage.Model)
	}
	settings := pipeline.Settings{
		Model:     modelConfiguration.ModelID,
		MaxTokens: modelConfiguration.MaxCompletionTokens,
	}
	if stage.MaxTokens > 0 {
		settings.MaxTokens = stage.MaxTokens
	}
	if modelConfiguration.SupportsTemperature {
		settings.Temperature = modelConfiguration.DefaultTemperature
		if stage.Temperature > 0 {
			settings.Temperature = stage.Temperature
		}
	}
	return settings, nil
}

func (root Root) Timeout() time.Duration {
	return time.Duration(root.Common.Defaults.TimeoutSeconds) * time.Second
}

func (root Root) RetryBaseDelay() time.Duration {
	return time.Duration(root.Common.Defaults.RetryBaseDelayMS) * time.Millisecond
}

// ExecutorOptions maps the defaults block onto executor options.
func (root Root) ExecutorOptions() pipeline.Options {
	return pipeline.Options{
		MaxAttempts:    root.Common.Defaults.Attempts,
		BackendRetries: root.Common.Defaults.BackendRetries,
		RetryBaseDelay: root.RetryBaseDelay(),
		Timeout:        root.Timeout(),
	}
}
