package articledrafter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/temirov/article-drafter/internal/config"
)

const (
	concurrencyEnvironmentKey    = "pipeline.concurrency"
	sectionOrderEnvironmentKey   = "pipeline.section_order"
	sectionFailureEnvironmentKey = "pipeline.section_failure"
	attemptsEnvironmentKey       = "common.defaults.attempts"
	timeoutEnvironmentKey        = "common.defaults.timeout_seconds"
	cacheEnabledEnvironmentKey   = "common.cache.enabled"
	cachePathEnvironmentKey      = "common.cache.path"
)

func loadRootConfiguration(configurationPath string) (config.Root, error) {
	configurationLoader, loaderErr := config.NewDefaultRootConfigurationLoader()
	if loaderErr != nil {
		return config.Root{}, fmt.Errorf(configurationLoaderInitializationErrorFormat, loaderErr)
	}
	configurationSource, sourceErr := configurationLoader.Load(configurationPath)
	if sourceErr != nil {
		if configurationPath == "" || configurationPath == defaultConfigPath {
			configurationSource, sourceErr = configurationLoader.Load("")
		}
		if sourceErr != nil {
			return config.Root{}, fmt.Errorf(configurationSourceResolutionErrorFormat, sourceErr)
		}
	}
	rootConfiguration, loadErr := config.LoadRoot(configurationSource)
	if loadErr != nil {
		return config.Root{}, fmt.Errorf(rootConfigurationLoadErrorFormat, configurationSource.Reference, loadErr)
	}
	if overrideErr := applyEnvironmentOverrides(&rootConfiguration); overrideErr != nil {
		return config.Root{}, fmt.Errorf(environmentOverrideErrorFormat, overrideErr)
	}
	return rootConfiguration, nil
}

// applyEnvironmentOverrides lets ARTICLE_DRAFTER_* variables override the
// file configuration, e.g. ARTICLE_DRAFTER_PIPELINE_CONCURRENCY=4.
func applyEnvironmentOverrides(rootConfiguration *config.Root) error {
	environment := viper.New()
	environment.SetEnvPrefix(environmentPrefix)
	environment.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{
		concurrencyEnvironmentKey,
		sectionOrderEnvironmentKey,
		sectionFailureEnvironmentKey,
		attemptsEnvironmentKey,
		timeoutEnvironmentKey,
		cacheEnabledEnvironmentKey,
		cachePathEnvironmentKey,
	} {
		if err := environment.BindEnv(key); err != nil {
			return err
		}
	}

	if environment.IsSet(concurrencyEnvironmentKey) {
		rootConfiguration.Pipeline.Concurrency = environment.GetInt(concurrencyEnvironmentKey)
	}
	if environment.IsSet(sectionOrderEnvironmentKey) {
		rootConfiguration.Pipeline.SectionOrder = strings.ToLower(environment.GetString(sectionOrderEnvironmentKey))
	}
	if environment.IsSet(sectionFailureEnvironmentKey) {
		rootConfiguration.Pipeline.SectionFailure = strings.ToLower(environment.GetString(sectionFailureEnvironmentKey))
	}
	if environment.IsSet(attemptsEnvironmentKey) {
		rootConfiguration.Common.Defaults.Attempts = environment.GetInt(attemptsEnvironmentKey)
	}
	if environment.IsSet(timeoutEnvironmentKey) {
		rootConfiguration.Common.Defaults.TimeoutSeconds = environment.GetInt(timeoutEnvironmentKey)
	}
	if environment.IsSet(cacheEnabledEnvironmentKey) {
		rootConfiguration.Common.Cache.Enabled = environment.GetBool(cacheEnabledEnvironmentKey)
	}
	if environment.IsSet(cachePathEnvironmentKey) {
		rootConfiguration.Common.Cache.Path = environment.GetString(cachePathEnvironmentKey)
	}
	return rootConfiguration.Validate()
}

// resolveAPIKey reads the API key from the configured variable, loading a
// .env file from the working directory first. Variables already present in
// the environment win over the file.
func resolveAPIKey(rootConfiguration config.Root) (string, error) {
	if workingDirectory, err := os.Getwd(); err == nil {
		loadErr := godotenv.Load(filepath.Join(workingDirectory, dotEnvFileName))
		if loadErr != nil && !errors.Is(loadErr, fs.ErrNotExist) {
			return "", fmt.Errorf("load %s: %w", dotEnvFileName, loadErr)
		}
	}

	apiKeyEnvironmentVariable := strings.TrimSpace(rootConfiguration.Common.API.APIKeyEnv)
	if apiKeyEnvironmentVariable == "" {
		apiKeyEnvironmentVariable = defaultAPIKeyEnvironmentVariable
	}
	apiKey := strings.TrimSpace(os.Getenv(apiKeyEnvironmentVariable))
	if apiKey == "" {
		return "", fmt.Errorf(missingAPIKeyErrorFormat, apiKeyEnvironmentVariable)
	}
	return apiKey, nil
}

func resolveAPIEndpoint(rootConfiguration config.Root) string {
	apiEndpoint := strings.TrimSpace(rootConfiguration.Common.API.Endpoint)
	if apiEndpoint == "" {
		return defaultAPIEndpoint
	}
	return apiEndpoint
}

// resolveCachePath returns the configured cache path or ~/.article-drafter/cache.db.
func resolveCachePath(rootConfiguration config.Root) (string, error) {
	if path := strings.TrimSpace(rootConfiguration.Common.Cache.Path); path != "" {
		return path, nil
	}
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache path: %w", err)
	}
	return filepath.Join(homeDirectory, defaultCacheRelativePath), nil
}
