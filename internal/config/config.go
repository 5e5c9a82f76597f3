package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// MacroSpec identifies a logging macro by its declaring module and name. A
// call site matches when its written name equals Name or Module::Name; the
// module path may have multiple segments.
type MacroSpec struct {
	Module string `yaml:"module"`
	Name   string `yaml:"name"`
}

// RustConfig controls how Rust sources are scanned.
type RustConfig struct {
	Extensions        []string    `yaml:"extensions"`
	StructuredLogging bool        `yaml:"structured_logging"`
	LogMacros         []MacroSpec `yaml:"log_macros"`
}

// Config is the parsed configuration document.
type Config struct {
	SourceDir string     `yaml:"source_dir"`
	UseCache  bool       `yaml:"use_cache"`
	Exclude   []string   `yaml:"exclude"`
	Rust      RustConfig `yaml:"rust"`

	// ConfigDir is the directory containing the configuration file, derived
	// from its path rather than read from the document. The reference id
	// cache lives here.
	ConfigDir string `yaml:"-"`
}

// Context carries one invocation's shared state: the loaded configuration,
// the cooperative stop flag and the cached next reference id, if one was
// read.
type Context struct {
	Config    Config
	CheckMode bool

	// StopCommanded is set by signal handling and honored between files.
	StopCommanded *atomic.Bool

	CachedNextReferenceID uint32
	HasCachedReferenceID  bool
}

// Load parses and validates the YAML configuration text. Unknown fields are
// rejected so typos fail loudly instead of silently disabling behavior.
func Load(yamlText string, configDir string, checkMode bool) (*Context, error) {
	var cfg Config

	dec := yaml.NewDecoder(strings.NewReader(yamlText))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.SourceDir == "" {
		return nil, fmt.Errorf("configuration is missing source_dir")
	}
	for i, m := range cfg.Rust.LogMacros {
		if m.Name == "" {
			return nil, fmt.Errorf("rust.log_macros[%d] is missing a name", i)
		}
	}
	if len(cfg.Rust.Extensions) == 0 {
		cfg.Rust.Extensions = []string{"rs"}
	}
	cfg.ConfigDir = configDir

	return &Context{
		Config:        cfg,
		CheckMode:     checkMode,
		StopCommanded: new(atomic.Bool),
	}, nil
}

// MatchesMacro reports whether a macro name as written in source, bare or
// path-qualified, refers to one of the configured log macros.
func (c *Config) MatchesMacro(written string) bool {
	for _, m := range c.Rust.LogMacros {
		if written == m.Name {
			return true
		}
		if m.Module != "" && written == m.Module+"::"+m.Name {
			return true
		}
	}
	return false
}
