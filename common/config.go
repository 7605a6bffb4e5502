package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

const (
	SourceTypeDirectory = "directory"
	SourceTypeFile      = "file"
)

// PackageConfig is the content of the packaging configuration file.
type PackageConfig struct {
	Output             string `toml:"output"`
	CompressionLevel   *int   `toml:"compression_level"`
	Method             string `toml:"method"`
	Symlinks           string `toml:"symlinks"`
	IncludeDirectories *bool  `toml:"include_directories"`
	ReportUnit         string `toml:"report_unit"`
	SourceDateEpoch    *int64 `toml:"source_date_epoch"`
	MetricsFile        string `toml:"metrics_file"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Sources []SourceConfig `toml:"source"`
}

// SourceConfig is one [[source]] table.
type SourceConfig struct {
	Type        string   `toml:"type"`
	Root        string   `toml:"root"`
	Prefix      string   `toml:"prefix"`
	Exclude     []string `toml:"exclude"`
	Path        string   `toml:"path"`
	ArchivePath string   `toml:"archive_path"`
}

// LoadConfig reads the TOML file at configFile. Unknown keys are rejected so
// typos do not silently drop sources.
func LoadConfig(configFile string) (*PackageConfig, error) {
	config := new(PackageConfig)

	md, err := toml.DecodeFile(configFile, config)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configFile, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return nil, fmt.Errorf("loading config %s: unknown keys: %s", configFile, strings.Join(keys, ", "))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configFile, err)
	}

	return config, nil
}

// Validate checks the values that can be checked without touching the
// filesystem.
func (c *PackageConfig) Validate() error {
	var result *multierror.Error

	if c.CompressionLevel != nil && (*c.CompressionLevel < 0 || *c.CompressionLevel > 9) {
		result = multierror.Append(result, fmt.Errorf("compression_level %d is out of range 0-9", *c.CompressionLevel))
	}

	if c.SourceDateEpoch != nil && *c.SourceDateEpoch < 0 {
		result = multierror.Append(result, fmt.Errorf("source_date_epoch %d is negative", *c.SourceDateEpoch))
	}

	for i, s := range c.Sources {
		if err := s.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("source %d: %w", i+1, err))
		}
	}

	return result.ErrorOrNil()
}

func (s SourceConfig) Validate() error {
	switch s.Type {
	case SourceTypeDirectory:
		if s.Root == "" {
			return errors.New("directory source requires root")
		}
		if s.Path != "" || s.ArchivePath != "" {
			return errors.New("directory source takes root and prefix, not path and archive_path")
		}
	case SourceTypeFile:
		if s.Path == "" {
			return errors.New("file source requires path")
		}
		if s.Root != "" || s.Prefix != "" || len(s.Exclude) > 0 {
			return errors.New("file source takes path and archive_path, not root, prefix or exclude")
		}
	default:
		return fmt.Errorf("unknown source type %q (options: %s, %s)", s.Type, SourceTypeDirectory, SourceTypeFile)
	}

	return nil
}

// ModTime returns the entry time forced by source_date_epoch, or the zero
// time when it's not set.
func (c *PackageConfig) ModTime() time.Time {
	if c.SourceDateEpoch == nil {
		return time.Time{}
	}

	return time.Unix(*c.SourceDateEpoch, 0).UTC()
}
