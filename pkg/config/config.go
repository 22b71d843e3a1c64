// Package config loads srsconv settings from a YAML file, SRSCONV_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/utils"
)

const EnvPrefix = "SRSCONV"

// Config holds the resolved settings.
type Config struct {
	ErrorHandling issues.ErrorHandling `mapstructure:"error_handling"`
	Format        srs.Format           `mapstructure:"format"`
	Compact       bool                 `mapstructure:"compact"`
	TempDir       string               `mapstructure:"temp_dir"`
	LogFile       string               `mapstructure:"log_file"`
	Verbose       bool                 `mapstructure:"verbose"`
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"error-handling": "error_handling",
	"format":         "format",
	"compact":        "compact",
	"temp-dir":       "temp_dir",
	"log-file":       "log_file",
	"verbose":        "verbose",
}

// Load resolves the configuration. An explicit path must exist; without
// one the default config file is read when present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("error_handling", string(issues.BestEffort))
	v.SetDefault("format", string(srs.FormatJSON))
	v.SetDefault("compact", false)
	v.SetDefault("temp_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := utils.ExpandHome(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", expanded, err)
		}
	} else if def := utils.DefaultConfigPath(); fileExists(def) {
		v.SetConfigFile(def)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", def, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	mode, err := issues.ParseErrorHandling(string(cfg.ErrorHandling))
	if err != nil {
		return nil, err
	}
	cfg.ErrorHandling = mode

	format, err := srs.ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
