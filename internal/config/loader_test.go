package config_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/temirov/article-drafter/internal/config"
)

const (
	workingDirectory = "/work"
	homeDirectory    = "/home/writer"
	levelTemplate    = "common:\n  logging:\n    level: %s\nmodels:\n  - name: default\n    model_id: model\n    default: true\npipeline:\n  stages:\n    outline:\n      strategy: predict\n    draft_section:\n      strategy: chain_of_thought\n"
	embeddedLogLevel = "info"
	explicitFilePath = "/configs/explicit.yaml"
	workingFilePath  = "/work/config.yaml"
	homeFilePath     = "/home/writer/.article-drafter/config.yaml"
	missingFilePath  = "/configs/missing.yaml"
	filePermissions  = 0o644
)

func TestRootConfigurationLoaderSearchOrder(t *testing.T) {
	type testCase struct {
		name          string
		files         map[string]string
		explicitPath  string
		wantReference string
		wantLevel     string
	}
	testCases := []testCase{
		{
			name:          "explicit path wins",
			files:         map[string]string{explicitFilePath: "explicit", workingFilePath: "working", homeFilePath: "home"},
			explicitPath:  explicitFilePath,
			wantReference: explicitFilePath,
			wantLevel:     "explicit",
		},
		{
			name:          "missing explicit path falls back to working directory",
			files:         map[string]string{workingFilePath: "working", homeFilePath: "home"},
			explicitPath:  missingFilePath,
			wantReference: workingFilePath,
			wantLevel:     "working",
		},
		{
			name:          "working directory before home",
			files:         map[string]string{workingFilePath: "working", homeFilePath: "home"},
			wantReference: workingFilePath,
			wantLevel:     "working",
		},
		{
			name:          "home directory when nothing else exists",
			files:         map[string]string{homeFilePath: "home"},
			wantReference: homeFilePath,
			wantLevel:     "home",
		},
		{
			name:          "embedded default as last resort",
			wantReference: config.EmbeddedRootConfigurationReference,
			wantLevel:     embeddedLogLevel,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			filesystem := afero.NewMemMapFs()
			for path, level := range tc.files {
				if err := filesystem.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
				if err := afero.WriteFile(filesystem, path, []byte(fmt.Sprintf(levelTemplate, level)), filePermissions); err != nil {
					t.Fatalf("write %s: %v", path, err)
				}
			}

			loader := config.NewRootConfigurationLoader(workingDirectory, homeDirectory, config.WithFilesystem(filesystem))
			source, err := loader.Load(tc.explicitPath)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if source.Reference != tc.wantReference {
				t.Fatalf("expected reference %s, got %s", tc.wantReference, source.Reference)
			}

			root, err := config.LoadRoot(source)
			if err != nil {
				t.Fatalf("LoadRoot: %v", err)
			}
			if root.Common.Logging.Level != tc.wantLevel {
				t.Fatalf("expected logging level %s, got %s", tc.wantLevel, root.Common.Logging.Level)
			}
		})
	}
}

func TestRootConfigurationLoaderReadsOSFiles(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "config.yaml")
	if err := afero.WriteFile(afero.NewOsFs(), path, []byte(fmt.Sprintf(levelTemplate, "debug")), filePermissions); err != nil {
		t.Fatalf("write config: %v", err)
	}

	source, err := config.NewRootConfigurationLoader(directory, "").Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if source.Reference != path {
		t.Fatalf("expected %s, got %s", path, source.Reference)
	}
}
