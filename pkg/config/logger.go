package config

import "fmt"

// LoggerConfig configures logging behavior.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-file, --log-format)
//  2. Config file (logger section)
//  3. Defaults (info level, simple format, stderr)
//
// Example:
//
//	logger:
//	  level: info
//	  file: noteum.log
//	  format: simple
type LoggerConfig struct {
	// Level specifies the log level (debug, info, warn, error).
	// Default: info
	Level string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// File specifies the log file path. Empty logs to stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"title=File"`

	// Format specifies the log format: simple, verbose, or json.
	// Default: simple
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,enum=simple,enum=verbose,enum=json,default=simple"`
}

// SetDefaults applies default values.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" {
		validLevels := map[string]bool{
			"debug":   true,
			"info":    true,
			"warn":    true,
			"warning": true,
			"error":   true,
		}
		if !validLevels[c.Level] {
			return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
		}
	}
	return nil
}
