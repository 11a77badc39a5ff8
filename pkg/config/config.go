// Package config loads and merges the layered askme configuration: an
// optional machine-wide file, then one local file (explicit path, working
// directory, or the user config directory), later layers overriding earlier
// ones.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"
)

const fileName = "askme.yml"

// ErrNoConfig is returned by Load when no configuration file exists at any
// of the searched locations.
var ErrNoConfig = errors.New("no configuration file found")

// MissingFieldError reports a required field absent after all layers merged.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing %q in configuration", e.Field)
}

// Config is the merged, immutable configuration for one invocation.
type Config struct {
	DefaultService string
	DefaultPrompt  string
	SystemPrompts  map[string]string
	Services       map[string]Service
}

// Service describes one configured LLM endpoint. Empty optional fields mean
// "not set"; only Class is required, and its value is validated when a
// driver is built, not here.
type Service struct {
	URL          string `yaml:"url"`
	Class        string `yaml:"class"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	SystemPrompt string `yaml:"system_prompt"`
	Description  string `yaml:"description"`
}

// partialConfig is the merge accumulator for a single layer. It is never
// exposed to callers.
type partialConfig struct {
	DefaultService string             `yaml:"default_service"`
	DefaultPrompt  string             `yaml:"default_prompt"`
	SystemPrompts  map[string]string  `yaml:"system_prompts"`
	Services       map[string]Service `yaml:"services"`
}

// merge applies other on top of p: scalars are overwritten when set in
// other, maps are extended key-by-key with other winning on collisions.
func (p *partialConfig) merge(other *partialConfig) {
	if other.DefaultService != "" {
		p.DefaultService = other.DefaultService
	}
	if other.DefaultPrompt != "" {
		p.DefaultPrompt = other.DefaultPrompt
	}
	if len(other.SystemPrompts) > 0 {
		if p.SystemPrompts == nil {
			p.SystemPrompts = make(map[string]string, len(other.SystemPrompts))
		}
		for k, v := range other.SystemPrompts {
			p.SystemPrompts[k] = v
		}
	}
	if len(other.Services) > 0 {
		if p.Services == nil {
			p.Services = make(map[string]Service, len(other.Services))
		}
		for k, v := range other.Services {
			p.Services[k] = v
		}
	}
}

func (p *partialConfig) toConfig() (*Config, error) {
	if p.DefaultService == "" {
		return nil, &MissingFieldError{Field: "default_service"}
	}
	if p.DefaultPrompt == "" {
		return nil, &MissingFieldError{Field: "default_prompt"}
	}

	cfg := &Config{
		DefaultService: p.DefaultService,
		DefaultPrompt:  p.DefaultPrompt,
		SystemPrompts:  p.SystemPrompts,
		Services:       p.Services,
	}
	if cfg.SystemPrompts == nil {
		cfg.SystemPrompts = map[string]string{}
	}
	if cfg.Services == nil {
		cfg.Services = map[string]Service{}
	}

	for name, svc := range cfg.Services {
		svc.APIKey = expandEnvRefs(svc.APIKey)
		cfg.Services[name] = svc
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvRefs replaces ${VAR} references with the value of the VAR
// environment variable. Anything else passes through untouched, so literal
// API keys are never mangled.
func expandEnvRefs(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envRef.FindStringSubmatch(m)[1])
	})
}

// Option configures Load.
type Option func(*loader)

// WithLogger sets the logger used for debug output during the search and
// merge. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(ld *loader) { ld.logger = l }
}

// WithGlobalPath overrides the machine-wide config path (useful for testing).
func WithGlobalPath(path string) Option {
	return func(ld *loader) { ld.globalPath = path }
}

// WithUserConfigDir overrides the per-user config directory (useful for
// testing).
func WithUserConfigDir(dir string) Option {
	return func(ld *loader) { ld.userConfigDir = dir }
}

type loader struct {
	logger        *slog.Logger
	globalPath    string
	userConfigDir string
}

// Load builds the configuration for one invocation.
//
// The machine-wide file is merged first if it exists; a global file that
// fails to parse is skipped, because the local layer is authoritative. The
// local layer is the explicit path when given, else ./askme.yml, else
// askme.yml in the user config directory — and any read or parse failure
// there is a hard error. Load fails with ErrNoConfig when no layer was
// found at all, and with MissingFieldError when default_service or
// default_prompt is still unset after the merge.
func Load(explicitPath string, opts ...Option) (*Config, error) {
	ld := &loader{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		globalPath:    globalConfigPath(),
		userConfigDir: defaultUserConfigDir(),
	}
	for _, opt := range opts {
		opt(ld)
	}

	merged := &partialConfig{}
	loadedAny := false

	if ld.globalPath != "" && fileExists(ld.globalPath) {
		partial, err := loadPartial(ld.globalPath)
		if err != nil {
			ld.logger.Debug("skipping unreadable global config", "path", ld.globalPath, "error", err)
		} else {
			merged.merge(partial)
			loadedAny = true
			ld.logger.Debug("loaded global config", "path", ld.globalPath)
		}
	}

	localPath := explicitPath
	if localPath == "" {
		switch {
		case fileExists(fileName):
			localPath = fileName
		case ld.userConfigDir != "" && fileExists(filepath.Join(ld.userConfigDir, fileName)):
			localPath = filepath.Join(ld.userConfigDir, fileName)
		}
	}

	if localPath != "" {
		partial, err := loadPartial(localPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", localPath, err)
		}
		merged.merge(partial)
		ld.logger.Debug("loaded local config", "path", localPath)
	} else if !loadedAny {
		return nil, fmt.Errorf("%w: checked ./%s, %s, and %s",
			ErrNoConfig, fileName, filepath.Join(ld.userConfigDir, fileName), ld.globalPath)
	}

	return merged.toConfig()
}

func loadPartial(path string) (*partialConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p partialConfig
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &p, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// globalConfigPath is the fixed machine-wide location per OS family.
func globalConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			return ""
		}
		return filepath.Join(pd, "askme", fileName)
	case "darwin":
		return filepath.Join("/Library/Application Support/askme", fileName)
	default:
		return filepath.Join("/etc", fileName)
	}
}

func defaultUserConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir
}
