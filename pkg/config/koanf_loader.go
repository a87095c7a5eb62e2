package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoaderOptions controls config loading.
type LoaderOptions struct {
	// Path to the YAML config file.
	Path string

	// Watch reloads the config when the file changes.
	Watch bool

	// OnChange is invoked with the reprocessed config after a reload.
	OnChange func(*Config) error
}

// Loader loads, expands, and watches the config file.
type Loader struct {
	koanf    *koanf.Koanf
	options  LoaderOptions
	parser   *yaml.YAML
	provider *file.File
	stopChan chan struct{}
}

// NewLoader creates a loader for the given options.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	return &Loader{
		koanf:    koanf.New("."),
		options:  opts,
		parser:   yaml.Parser(),
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads the file, expands env vars, and runs the processing pipeline.
func (l *Loader) Load() (*Config, error) {
	l.provider = file.Provider(l.options.Path)

	if err := l.koanf.Load(l.provider, l.parser); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Path, err)
	}

	if err := l.expandEnvVarsInKoanf(); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	cfg, err := l.unmarshalAndProcess()
	if err != nil {
		return nil, err
	}

	if l.options.Watch {
		go l.watch()
	}

	return cfg, nil
}

func (l *Loader) watch() {
	slog.Info("Config watcher started", "path", l.options.Path)

	err := l.provider.Watch(func(event interface{}, err error) {
		select {
		case <-l.stopChan:
			return
		default:
		}

		if err != nil {
			slog.Warn("Config watch error", "error", err)
			return
		}

		if err := l.koanf.Load(l.provider, l.parser); err != nil {
			slog.Warn("Failed to reload config", "error", err)
			return
		}

		if err := l.expandEnvVarsInKoanf(); err != nil {
			slog.Warn("Failed to expand env vars in reloaded config", "error", err)
			return
		}

		newCfg, err := l.unmarshalAndProcess()
		if err != nil {
			slog.Warn("Reloaded config processing failed", "error", err)
			return
		}

		if l.options.OnChange == nil {
			slog.Warn("Config change detected but no OnChange callback set")
			return
		}
		if err := l.options.OnChange(newCfg); err != nil {
			slog.Warn("Config change callback failed", "error", err)
			return
		}
		slog.Info("Configuration reloaded", "path", l.options.Path)
	})

	if err != nil {
		slog.Warn("Config watch stopped", "error", err)
	}
}

func (l *Loader) unmarshalAndProcess() (*Config, error) {
	cfg := &Config{}
	if err := l.koanf.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "yaml",
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	processedCfg, err := ProcessConfigPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("config processing failed: %w", err)
	}

	return processedCfg, nil
}

// expandEnvVarsInKoanf rebuilds the koanf tree with env references expanded.
func (l *Loader) expandEnvVarsInKoanf() error {
	rawMap := l.koanf.Raw()

	expandedMap := ExpandEnvVarsInData(rawMap)

	expandedMapData, ok := expandedMap.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected type after env var expansion")
	}

	newKoanf := koanf.New(".")
	if err := newKoanf.Load(confmap.Provider(expandedMapData, "."), nil); err != nil {
		return fmt.Errorf("failed to load expanded config: %w", err)
	}

	l.koanf = newKoanf

	return nil
}

// Stop ends config watching.
func (l *Loader) Stop() {
	close(l.stopChan)
}

// SetOnChange replaces the reload callback.
func (l *Loader) SetOnChange(callback func(*Config) error) {
	l.options.OnChange = callback
}

// Close stops the loader. Implements io.Closer for defer use.
func (l *Loader) Close() error {
	l.Stop()
	return nil
}

// LoadConfig loads and processes a config file.
func LoadConfig(opts LoaderOptions) (*Config, error) {
	cfg, _, err := LoadConfigWithLoader(opts)
	return cfg, err
}

// LoadConfigWithLoader loads a config file and returns the loader for
// watch control.
func LoadConfigWithLoader(opts LoaderOptions) (*Config, *Loader, error) {
	loader, err := NewLoader(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create loader: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, loader, nil
}

// LoadConfigFile loads a config file with env files applied first. The
// context is reserved for loaders that fetch remote config.
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, nil, err
	}
	return LoadConfigWithLoader(LoaderOptions{Path: path})
}
