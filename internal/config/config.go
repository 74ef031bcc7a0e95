package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FileName is the project config file name without extension.
	FileName = "bml"
	// EnvPrefix prefixes every environment override, as in BML_DATABASE.
	EnvPrefix = "BML"
)

//go:embed schema.cue
var configSchema string

// Config is the resolved configuration.
type Config struct {
	Database     string `mapstructure:"database"`
	Format       string `mapstructure:"format"`
	SummaryWidth int    `mapstructure:"summary_width"`
	ShowRoots    bool   `mapstructure:"show_roots"`
	Verbose      bool   `mapstructure:"verbose"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database:     "build.bml",
		Format:       "text",
		SummaryWidth: 60,
		ShowRoots:    true,
	}
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// File is an explicit config file. It must exist.
	File string

	// Dir is searched for bml.cue, then bml.yaml, when File is empty.
	// Empty means the working directory.
	Dir string

	// Flags maps config keys to flags. Only flags set on the command line
	// override lower layers.
	Flags map[string]*pflag.Flag
}

// Load resolves the configuration. It returns the config file used, or ""
// when none was found.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("database", defaults.Database)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("summary_width", defaults.SummaryWidth)
	v.SetDefault("show_roots", defaults.ShowRoots)
	v.SetDefault("verbose", defaults.Verbose)

	path := opts.File
	if path != "" {
		if !fileExists(path) {
			return nil, "", fmt.Errorf("config file not found: %s", path)
		}
	} else {
		path = findConfigFile(opts.Dir)
	}

	if path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, "", err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, "", fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, path, nil
}

// Validate checks values that environment variables and flags can set
// without passing through the CUE schema.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("invalid config: database must not be empty")
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid config: format must be text or json, got %q", c.Format)
	}
	if c.SummaryWidth < 4 {
		return fmt.Errorf("invalid config: summary_width must be at least 4, got %d", c.SummaryWidth)
	}
	return nil
}

func findConfigFile(dir string) string {
	for _, ext := range []string{".cue", ".yaml", ".yml"} {
		path := filepath.Join(dir, FileName+ext)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func mergeFile(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return loadCUEIntoViper(v, path)
	case ".yaml", ".yml":
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// Fields are optional, so concreteness is not required.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return fmt.Errorf("%s: %w", path, userValue.Err())
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
