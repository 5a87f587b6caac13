package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	// EmbeddedRootConfigurationReference identifies the embedded fallback configuration source.
	EmbeddedRootConfigurationReference = "embedded default configuration"

	configurationFileName       = "config.yaml"
	homeConfigurationDirectory  = ".article-drafter"
	homeEnvironmentVariable     = "HOME"
	explicitReadErrorFormat     = "read explicit configuration %s: %w"
	workingDirectoryErrorFormat = "determine working directory: %w"
)

//go:embed default_root_configuration.yaml
var embeddedRootConfiguration []byte

// RootConfigurationSource holds the raw configuration data and its origin.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// RootConfigurationLoader resolves the configuration file to use. Lookup
// order: explicit path, <working dir>/config.yaml,
// $HOME/.article-drafter/config.yaml, then the embedded default.
type RootConfigurationLoader struct {
	filesystem       afero.Fs
	workingDirectory string
	homeDirectory    string
}

type LoaderOption func(*RootConfigurationLoader)

// WithFilesystem reads configuration files from filesystem instead of the OS.
func WithFilesystem(filesystem afero.Fs) LoaderOption {
	return func(loader *RootConfigurationLoader) { loader.filesystem = filesystem }
}

func NewRootConfigurationLoader(workingDirectory string, homeDirectory string, options ...LoaderOption) RootConfigurationLoader {
	loader := RootConfigurationLoader{
		filesystem:       afero.NewOsFs(),
		workingDirectory: workingDirectory,
		homeDirectory:    homeDirectory,
	}
	for _, option := range options {
		option(&loader)
	}
	return loader
}

// NewDefaultRootConfigurationLoader uses the process working directory and HOME.
func NewDefaultRootConfigurationLoader() (RootConfigurationLoader, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return RootConfigurationLoader{}, fmt.Errorf(workingDirectoryErrorFormat, err)
	}
	return NewRootConfigurationLoader(workingDirectory, os.Getenv(homeEnvironmentVariable)), nil
}

// Load returns the first readable candidate. A missing or unreadable explicit
// path falls through to the next candidate; any other read failure of the
// explicit path is an error.
func (loader RootConfigurationLoader) Load(explicitPath string) (RootConfigurationSource, error) {
	if explicitPath != "" {
		content, err := afero.ReadFile(loader.filesystem, explicitPath)
		switch {
		case err == nil:
			return RootConfigurationSource{Reference: explicitPath, Content: content}, nil
		case !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission):
			return RootConfigurationSource{}, fmt.Errorf(explicitReadErrorFormat, explicitPath, err)
		}
	}

	for _, path := range loader.searchPaths() {
		content, err := afero.ReadFile(loader.filesystem, path)
		if err != nil {
			continue
		}
		return RootConfigurationSource{Reference: path, Content: content}, nil
	}
	return RootConfigurationSource{Reference: EmbeddedRootConfigurationReference, Content: embeddedRootConfiguration}, nil
}

func (loader RootConfigurationLoader) searchPaths() []string {
	var paths []string
	if loader.workingDirectory != "" {
		paths = append(paths, filepath.Join(loader.workingDirectory, configurationFileName))
	}
	if loader.homeDirectory != "" {
		paths = append(paths, filepath.Join(loader.homeDirectory, homeConfigurationDirectory, configurationFileName))
	}
	return paths
}
