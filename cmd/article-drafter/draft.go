package articledrafter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/article-drafter/internal/cache"
	"github.com/temirov/article-drafter/internal/config"
	"github.com/temirov/article-drafter/internal/fsops"
	"github.com/temirov/article-drafter/internal/llm"
	"github.com/temirov/article-drafter/internal/pipeline"
	"github.com/temirov/article-drafter/tasks/article"
)

type draftCommandOptions struct {
	configPath    string
	topic         string
	modelOverride string
	attempts      int
	timeout       time.Duration
	concurrency   int
	order         string
	skipFailed    optionalBool
	format        string
	outputPath    string
	force         bool
	noCache       bool
}

func newDraftCommand() *cobra.Command {
	options := &draftCommandOptions{
		configPath: defaultConfigPath,
		format:     formatMarkdown,
	}

	command := &cobra.Command{
		Use:   draftCommandUse,
		Short: draftCommandShort,
		Args:  cobra.MaximumNArgs(draftCommandArgsMax),
		RunE: func(cmd *cobra.Command, args []string) error {
			effectiveOptions := *options
			if len(args) > 0 {
				effectiveOptions.topic = args[0]
			}
			return runDraftCommand(cmd, effectiveOptions)
		},
	}

	flags := command.Flags()
	flags.StringVar(&options.configPath, configFlagName, defaultConfigPath, configFlagUsage)
	flags.StringVar(&options.topic, topicFlagName, "", topicFlagUsage)
	flags.StringVar(&options.modelOverride, modelFlagName, "", modelFlagUsage)
	flags.IntVar(&options.attempts, attemptsFlagName, 0, attemptsFlagUsage)
	flags.DurationVar(&options.timeout, timeoutFlagName, 0, timeoutFlagUsage)
	flags.IntVar(&options.concurrency, concurrencyFlagName, 0, concurrencyFlagUsage)
	flags.StringVar(&options.order, orderFlagName, "", orderFlagUsage)
	registerOptionalBool(flags, &options.skipFailed, skipFailedFlagName, skipFailedFlagUsage)
	flags.StringVar(&options.format, formatFlagName, formatMarkdown, formatFlagUsage)
	flags.StringVar(&options.outputPath, outputFlagName, "", outputFlagUsage)
	flags.BoolVar(&options.force, forceFlagName, false, forceFlagUsage)
	flags.BoolVar(&options.noCache, noCacheFlagName, false, noCacheFlagUsage)

	return command
}

func runDraftCommand(command *cobra.Command, options draftCommandOptions) error {
	topic := strings.TrimSpace(options.topic)
	if topic == "" {
		return errors.New(missingTopicErrorMessage)
	}
	format, formatErr := normalizeFormat(options.format)
	if formatErr != nil {
		return formatErr
	}

	rootConfiguration, err := loadRootConfiguration(options.configPath)
	if err != nil {
		return err
	}
	if overrideErr := applyFlagOverrides(command, options, &rootConfiguration); overrideErr != nil {
		return overrideErr
	}

	logger, loggerErr := newLogger(rootConfiguration.Common.Logging.Level, rootConfiguration.Common.Logging.Format, command.ErrOrStderr())
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	apiKey, err := resolveAPIKey(rootConfiguration)
	if err != nil {
		return err
	}
	client, err := llm.NewClient(llm.ClientConfig{BaseURL: resolveAPIEndpoint(rootConfiguration), APIKey: apiKey})
	if err != nil {
		return err
	}
	defaultModel, _ := rootConfiguration.DefaultModel()
	var backend pipeline.Backend = llm.Adapter{
		Client:        client,
		DefaultModel:  defaultModel.ModelID,
		DefaultTokens: defaultModel.MaxCompletionTokens,
	}

	if rootConfiguration.Common.Cache.Enabled && !options.noCache {
		cachePath, pathErr := resolveCachePath(rootConfiguration)
		if pathErr != nil {
			return pathErr
		}
		store, openErr := cache.Open(cachePath)
		if openErr != nil {
			return openErr
		}
		defer func() { _ = store.Close() }()
		logger.Debug("response cache enabled", zap.String("path", cachePath))
		backend = &cache.Backend{Next: backend, Store: store, Logger: logger}
	}

	executorOptions := resolveExecutorOptions(command, options, rootConfiguration)
	drafter, err := buildDrafter(rootConfiguration, backend, executorOptions, logger)
	if err != nil {
		return err
	}

	result, err := drafter.Run(command.Context(), topic)
	if err != nil {
		return err
	}
	if skippedErr := result.SkippedErr(); skippedErr != nil {
		logger.Warn("article drafted with skipped sections", zap.Int("skipped", len(result.Skipped())), zap.Error(skippedErr))
	}

	rendered, err := renderResult(result, format)
	if err != nil {
		return err
	}
	if options.outputPath == "" {
		if _, writeErr := command.OutOrStdout().Write(rendered); writeErr != nil {
			return fmt.Errorf("write document: %w", writeErr)
		}
		return nil
	}
	if writeErr := fsops.NewOps(fsops.NewOS()).WriteDocument(options.outputPath, rendered, options.force); writeErr != nil {
		return writeErr
	}
	logger.Info("document written", zap.String("path", options.outputPath), zap.String("format", format))
	return nil
}

// applyFlagOverrides applies pipeline flags on top of file and environment
// configuration. Flags that were not given leave the configuration untouched.
func applyFlagOverrides(command *cobra.Command, options draftCommandOptions, rootConfiguration *config.Root) error {
	flags := command.Flags()
	if flags.Changed(concurrencyFlagName) && options.concurrency > 0 {
		rootConfiguration.Pipeline.Concurrency = options.concurrency
	}
	if flags.Changed(orderFlagName) {
		rootConfiguration.Pipeline.SectionOrder = strings.ToLower(strings.TrimSpace(options.order))
	}
	skip := options.skipFailed.resolve(rootConfiguration.Pipeline.SectionFailure == config.SectionFailureSkip)
	rootConfiguration.Pipeline.SectionFailure = config.SectionFailureFail
	if skip {
		rootConfiguration.Pipeline.SectionFailure = config.SectionFailureSkip
	}
	if modelName := strings.TrimSpace(options.modelOverride); modelName != "" {
		if _, found := rootConfiguration.FindModel(modelName); !found {
			return fmt.Errorf(unknownModelErrorFormat, modelName)
		}
		rootConfiguration.Pipeline.Stages.Outline.Model = modelName
		rootConfiguration.Pipeline.Stages.DraftSection.Model = modelName
	}
	return rootConfiguration.Validate()
}

func resolveEffectiveAttempts(command *cobra.Command, options draftCommandOptions, rootConfiguration config.Root) int {
	attemptFlag := command.Flags().Lookup(attemptsFlagName)
	if attemptFlag != nil && attemptFlag.Changed && options.attempts > 0 {
		return options.attempts
	}
	return rootConfiguration.Common.Defaults.Attempts
}

func resolveExecutorOptions(command *cobra.Command, options draftCommandOptions, rootConfiguration config.Root) pipeline.Options {
	executorOptions := rootConfiguration.ExecutorOptions()
	executorOptions.MaxAttempts = resolveEffectiveAttempts(command, options, rootConfiguration)
	if timeoutFlag := command.Flags().Lookup(timeoutFlagName); timeoutFlag != nil && timeoutFlag.Changed && options.timeout > 0 {
		executorOptions.Timeout = options.timeout
	}
	return executorOptions
}

func buildDrafter(rootConfiguration config.Root, backend pipeline.Backend, executorOptions pipeline.Options, logger *zap.Logger) (*article.Drafter, error) {
	strategies := pipeline.NewStrategyRegistry()
	stageConfig := func(name string, stage config.Stage) (article.StageConfig, error) {
		strategy, found := strategies.Lookup(stage.Strategy)
		if !found {
			return article.StageConfig{}, fmt.Errorf("stage %s: unknown strategy %q", name, stage.Strategy)
		}
		settings, err := rootConfiguration.StageSettings(stage)
		if err != nil {
			return article.StageConfig{}, fmt.Errorf("stage %s: %w", name, err)
		}
		return article.StageConfig{Strategy: strategy, Settings: settings}, nil
	}

	outlineStage, err := stageConfig(config.OutlineStageName, rootConfiguration.Pipeline.Stages.Outline)
	if err != nil {
		return nil, err
	}
	draftStage, err := stageConfig(config.DraftSectionStageName, rootConfiguration.Pipeline.Stages.DraftSection)
	if err != nil {
		return nil, err
	}
	order, err := article.ParseSectionOrder(rootConfiguration.Pipeline.SectionOrder)
	if err != nil {
		return nil, err
	}
	policy, err := article.ParseFailurePolicy(rootConfiguration.Pipeline.SectionFailure)
	if err != nil {
		return nil, err
	}

	executor := &pipeline.Executor{Backend: backend, Options: executorOptions, Logger: logger}
	return article.NewFromExecutor(executor, outlineStage, draftStage, article.Options{
		Concurrency:      rootConfiguration.Pipeline.Concurrency,
		Order:            order,
		OnSectionFailure: policy,
	}, logger)
}
