package articledrafter

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/temirov/article-drafter/internal/config"
)

type modelsCommandOptions struct {
	configPath string
}

func newModelsCommand() *cobra.Command {
	options := &modelsCommandOptions{configPath: defaultConfigPath}

	command := &cobra.Command{
		Use:   modelsCommandUse,
		Short: modelsCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsCommand(cmd, *options)
		},
	}

	command.Flags().StringVar(&options.configPath, configFlagName, defaultConfigPath, configFlagUsage)

	return command
}

func runModelsCommand(command *cobra.Command, options modelsCommandOptions) error {
	rootConfiguration, err := loadRootConfiguration(options.configPath)
	if err != nil {
		return err
	}

	outputWriter := command.OutOrStdout()
	for _, modelConfiguration := range rootConfiguration.Models {
		marker := " "
		if modelConfiguration.Default {
			marker = defaultMarker
		}
		maxTokens := dashPlaceholder
		if modelConfiguration.MaxCompletionTokens > 0 {
			maxTokens = strconv.Itoa(modelConfiguration.MaxCompletionTokens)
		}
		_, writeErr := fmt.Fprintf(outputWriter, "%s %s\t(model_id=%s, max_tokens=%s)\n", marker, modelConfiguration.Name, dashIfEmpty(modelConfiguration.ModelID), maxTokens)
		if writeErr != nil {
			return fmt.Errorf("write model listing: %w", writeErr)
		}
	}

	for _, binding := range []struct {
		name  string
		stage config.Stage
	}{
		{name: config.OutlineStageName, stage: rootConfiguration.Pipeline.Stages.Outline},
		{name: config.DraftSectionStageName, stage: rootConfiguration.Pipeline.Stages.DraftSection},
	} {
		modelName := dashPlaceholder
		if modelConfiguration, found := rootConfiguration.StageModel(binding.stage); found {
			modelName = modelConfiguration.Name
		}
		_, writeErr := fmt.Fprintf(outputWriter, "stage %s\t(model=%s, strategy=%s)\n", binding.name, modelName, dashIfEmpty(binding.stage.Strategy))
		if writeErr != nil {
			return fmt.Errorf("write stage listing: %w", writeErr)
		}
	}
	return nil
}

func dashIfEmpty(value string) string {
	if value == "" {
		return dashPlaceholder
	}
	return value
}
