package articledrafter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/article-drafter/internal/config"
	"github.com/temirov/article-drafter/tasks/article"
)

func embeddedRoot(t *testing.T) config.Root {
	t.Helper()
	source, err := config.NewRootConfigurationLoader("", "").Load("")
	require.NoError(t, err)
	root, err := config.LoadRoot(source)
	require.NoError(t, err)
	return root
}

func TestParseBoolChoice(t *testing.T) {
	type testCase struct {
		input     string
		wantValue bool
		wantOK    bool
	}
	testCases := []testCase{
		{input: "", wantValue: true, wantOK: true},
		{input: "yes", wantValue: true, wantOK: true},
		{input: " ON ", wantValue: true, wantOK: true},
		{input: "0", wantValue: false, wantOK: true},
		{input: "off", wantValue: false, wantOK: true},
		{input: "maybe", wantValue: false, wantOK: false},
	}
	for _, tc := range testCases {
		value, ok := parseBoolChoice(tc.input)
		assert.Equal(t, tc.wantValue, value, "input %q", tc.input)
		assert.Equal(t, tc.wantOK, ok, "input %q", tc.input)
	}
}

func TestOptionalBoolResolve(t *testing.T) {
	var flagValue optionalBool
	assert.True(t, flagValue.resolve(true))
	assert.False(t, flagValue.resolve(false))

	require.NoError(t, flagValue.Set("no"))
	assert.False(t, flagValue.resolve(true))
	assert.Error(t, flagValue.Set("sometimes"))
}

func TestNormalizeFormat(t *testing.T) {
	for input, want := range map[string]string{"": formatMarkdown, "MD": formatMarkdown, "html": formatHTML, "yml": formatYAML, "json": formatJSON} {
		got, err := normalizeFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := normalizeFormat("docx")
	assert.ErrorContains(t, err, "docx")
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("ARTICLE_DRAFTER_PIPELINE_CONCURRENCY", "4")
	t.Setenv("ARTICLE_DRAFTER_PIPELINE_SECTION_FAILURE", "SKIP")
	t.Setenv("ARTICLE_DRAFTER_COMMON_DEFAULTS_ATTEMPTS", "5")
	t.Setenv("ARTICLE_DRAFTER_COMMON_CACHE_ENABLED", "true")

	root := embeddedRoot(t)
	require.NoError(t, applyEnvironmentOverrides(&root))

	assert.Equal(t, 4, root.Pipeline.Concurrency)
	assert.Equal(t, config.SectionFailureSkip, root.Pipeline.SectionFailure)
	assert.Equal(t, config.SectionOrderMapping, root.Pipeline.SectionOrder)
	assert.Equal(t, 5, root.Common.Defaults.Attempts)
	assert.True(t, root.Common.Cache.Enabled)
}

func TestApplyEnvironmentOverridesValidates(t *testing.T) {
	t.Setenv("ARTICLE_DRAFTER_PIPELINE_SECTION_ORDER", "alphabetical")

	root := embeddedRoot(t)
	assert.ErrorContains(t, applyEnvironmentOverrides(&root), "alphabetical")
}

func TestApplyFlagOverrides(t *testing.T) {
	command := newDraftCommand()
	require.NoError(t, command.ParseFlags([]string{"--concurrency", "3", "--order", "Sections", "--skip-failed", "--model", "gpt-4.1"}))

	root := embeddedRoot(t)
	options := draftCommandOptions{concurrency: 3, order: "Sections", modelOverride: "gpt-4.1"}
	require.NoError(t, options.skipFailed.Set("true"))
	require.NoError(t, applyFlagOverrides(command, options, &root))

	assert.Equal(t, 3, root.Pipeline.Concurrency)
	assert.Equal(t, config.SectionOrderSections, root.Pipeline.SectionOrder)
	assert.Equal(t, config.SectionFailureSkip, root.Pipeline.SectionFailure)
	assert.Equal(t, "gpt-4.1", root.Pipeline.Stages.Outline.Model)
	assert.Equal(t, "gpt-4.1", root.Pipeline.Stages.DraftSection.Model)
}

func TestApplyFlagOverridesKeepsConfigurationWhenUnset(t *testing.T) {
	command := newDraftCommand()
	require.NoError(t, command.ParseFlags(nil))

	root := embeddedRoot(t)
	root.Pipeline.SectionFailure = config.SectionFailureSkip
	require.NoError(t, applyFlagOverrides(command, draftCommandOptions{concurrency: 9}, &root))

	assert.Equal(t, 1, root.Pipeline.Concurrency)
	assert.Equal(t, config.SectionFailureSkip, root.Pipeline.SectionFailure)
}

func TestResolveExecutorOptions(t *testing.T) {
	root := embeddedRoot(t)

	unchanged := newDraftCommand()
	require.NoError(t, unchanged.ParseFlags(nil))
	options := resolveExecutorOptions(unchanged, draftCommandOptions{attempts: 7, timeout: time.Second}, root)
	assert.Equal(t, 3, options.MaxAttempts)
	assert.Equal(t, 60*time.Second, options.Timeout)

	overridden := newDraftCommand()
	require.NoError(t, overridden.ParseFlags([]string{"--attempts", "7", "--timeout", "1500ms"}))
	options = resolveExecutorOptions(overridden, draftCommandOptions{attempts: 7, timeout: 1500 * time.Millisecond}, root)
	assert.Equal(t, 7, options.MaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, options.Timeout)
	assert.Equal(t, 2, options.BackendRetries)
}

func TestBuildDrafterUsesPipelinePolicies(t *testing.T) {
	root := embeddedRoot(t)
	root.Pipeline.SectionOrder = config.SectionOrderSections

	drafter, err := buildDrafter(root, nil, root.ExecutorOptions(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, drafter)

	root.Pipeline.Stages.Outline.Strategy = "tree_of_thought"
	_, err = buildDrafter(root, nil, root.ExecutorOptions(), zap.NewNop())
	assert.ErrorContains(t, err, "tree_of_thought")
}

func TestRenderResultFormats(t *testing.T) {
	result := article.NewResult("Title", []article.SectionDraft{
		{Index: 0, Heading: "One", Content: "## One\n\nFirst."},
		{Index: 1, Heading: "Two", Content: "## Two\n\nSecond."},
	}, nil)

	markdown, err := renderResult(result, formatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n## One\n\nFirst.\n\n## Two\n\nSecond.\n", string(markdown))

	yamlOutput, err := renderResult(result, formatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(yamlOutput), "title: Title")

	jsonOutput, err := renderResult(result, formatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(jsonOutput), "}\n"))
}

func TestNewLogger(t *testing.T) {
	var sink bytes.Buffer
	logger, err := newLogger("warn", "json", &sink)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", zap.String("stage", "outline"))
	assert.NotContains(t, sink.String(), "hidden")
	assert.Contains(t, sink.String(), `"stage":"outline"`)

	_, err = newLogger("loud", "json", &sink)
	assert.Error(t, err)
	_, err = newLogger("info", "xml", &sink)
	assert.Error(t, err)
}
