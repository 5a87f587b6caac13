package articledrafter

const (
	rootCommandUse                   = "article-drafter"
	rootCommandShort                 = "Draft structured articles with an outline-then-sections LLM pipeline"
	defaultConfigPath                = "./config.yaml"
	draftCommandUse                  = "draft [TOPIC]"
	draftCommandShort                = "Outline a topic and draft every section"
	draftCommandArgsMax              = 1
	modelsCommandUse                 = "models"
	modelsCommandShort               = "List configured models and the stage bindings"
	configFlagName                   = "config"
	configFlagUsage                  = "Path to config.yaml"
	topicFlagName                    = "topic"
	topicFlagUsage                   = "Topic to draft (alternative to the positional argument)"
	modelFlagName                    = "model"
	modelFlagUsage                   = "Run every stage on this model (must exist in models[])"
	attemptsFlagName                 = "attempts"
	attemptsFlagUsage                = "Max refine attempts per call (0 = use defaults)"
	timeoutFlagName                  = "timeout"
	timeoutFlagUsage                 = "Per-call timeout (e.g., 45s; 0 = use defaults)"
	concurrencyFlagName              = "concurrency"
	concurrencyFlagUsage             = "Sections drafted in parallel (0 = use defaults)"
	orderFlagName                    = "order"
	orderFlagUsage                   = "Section order source: mapping or sections"
	skipFailedFlagName               = "skip-failed"
	skipFailedFlagUsage              = "Drop failed sections instead of failing the run"
	formatFlagName                   = "format"
	formatFlagUsage                  = "Output format: markdown, html, yaml or json"
	outputFlagName                   = "output"
	outputFlagUsage                  = "Write the document to this file instead of stdout"
	forceFlagName                    = "force"
	forceFlagUsage                   = "Overwrite an existing --output file"
	noCacheFlagName                  = "no-cache"
	noCacheFlagUsage                 = "Bypass the response cache even when enabled in config"
	formatMarkdown                   = "markdown"
	formatHTML                       = "html"
	formatYAML                       = "yaml"
	formatJSON                       = "json"
	defaultAPIEndpoint               = "https://api.openai.com/v1"
	defaultAPIKeyEnvironmentVariable = "OPENAI_API_KEY"
	environmentPrefix                = "ARTICLE_DRAFTER"
	dotEnvFileName                   = ".env"
	defaultCacheRelativePath         = ".article-drafter/cache.db"
	dashPlaceholder                  = "-"
	defaultMarker                    = "*"

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load root configuration %s: %w"
	environmentOverrideErrorFormat               = "apply environment overrides: %w"
	missingAPIKeyErrorFormat                     = "missing API key: set %s"
	unknownModelErrorFormat                      = "model %q not found in models[]"
	unknownFormatErrorFormat                     = "unknown output format %q (want markdown, html, yaml or json)"
	missingTopicErrorMessage                     = "a topic is required (positional argument or --topic)"
)
