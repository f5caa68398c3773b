// Package config handles codebinder.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-version"

	"github.com/ceztko/CodeBinder-sub002/internal/backend"
)

const FileName = "codebinder.toml"

// Source kinds.
const (
	SourceModel = "model"
	SourceWinMd = "winmd"
	SourceGo    = "go"
)

// Config represents a codebinder.toml project configuration.
type Config struct {
	Project    Project                  `toml:"project"`
	Source     Source                   `toml:"source"`
	Output     Output                   `toml:"output"`
	Generation Generation               `toml:"generation"`
	Backend    map[string]BackendConfig `toml:"backend"`

	// Dir is the directory containing the codebinder.toml file (set at load time).
	Dir string `toml:"-"`
}

type Project struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
	Version   string `toml:"version"`
	// Requires is a version constraint the source model must satisfy.
	Requires string `toml:"requires"`
}

type Source struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
	// Include restricts a winmd source to the named methods and types.
	Include []string `toml:"include"`
	// Nuget names the package a missing winmd file is fetched from.
	Nuget        string `toml:"nuget"`
	NugetVersion string `toml:"nuget_version"`
}

type Output struct {
	Dir   string `toml:"dir"`
	Clean bool   `toml:"clean"`
}

type Generation struct {
	Backends         []string `toml:"backends"`
	Parallel         int      `toml:"parallel"`
	StrictVisibility bool     `toml:"strict_visibility"`
}

// BackendConfig holds the options of one [backend.<name>] table.
type BackendConfig struct {
	Library string `toml:"library"`
	Package string `toml:"package"`
	Prefix  string `toml:"prefix"`
}

// Default is the configuration used when no file exists.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = SourceModel
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
}

// Load parses a codebinder.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.defaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a codebinder.toml file, then
// loads it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) Validate() error {
	if !slices.Contains([]string{SourceModel, SourceWinMd, SourceGo}, c.Source.Kind) {
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Generation.Parallel < 0 {
		return fmt.Errorf("generation.parallel must not be negative, got %d", c.Generation.Parallel)
	}
	if c.Project.Requires != "" {
		if _, err := version.NewConstraint(c.Project.Requires); err != nil {
			return fmt.Errorf("project.requires: %w", err)
		}
	}
	return nil
}

// resolve makes a configured path absolute against the config directory.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

func (c *Config) SourcePath() string { return c.resolve(c.Source.Path) }

func (c *Config) OutputPath() string { return c.resolve(c.Output.Dir) }

// CheckRequires verifies the source model version against project.requires.
func (c *Config) CheckRequires(modelVersion string) error {
	if c.Project.Requires == "" {
		return nil
	}
	constraints, err := version.NewConstraint(c.Project.Requires)
	if err != nil {
		return fmt.Errorf("project.requires: %w", err)
	}
	if modelVersion == "" {
		return fmt.Errorf("source model has no version, %s requires %s", c.Project.Name, c.Project.Requires)
	}
	v, err := version.NewVersion(modelVersion)
	if err != nil {
		return fmt.Errorf("source model version: %w", err)
	}
	if !constraints.Check(v) {
		return fmt.Errorf("source model version %s does not satisfy %s", v, c.Project.Requires)
	}
	return nil
}

// BackendOptions merges the project settings with the [backend.<name>] table.
func (c *Config) BackendOptions(name string) backend.Options {
	b := c.Backend[name]
	opts := backend.Options{
		Library:          c.Project.Name,
		Namespace:        c.Project.Namespace,
		Package:          b.Package,
		Prefix:           b.Prefix,
		StrictVisibility: c.Generation.StrictVisibility,
	}
	if b.Library != "" {
		opts.Library = b.Library
	}
	return opts
}
