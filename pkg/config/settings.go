package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SettingsConfig points at the runtime-tunable settings file.
type SettingsConfig struct {
	// Path to the settings YAML file. Empty runs with built-in defaults.
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=Settings YAML file"`

	// Watch reloads settings when the file changes.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty" jsonschema:"title=Watch,default=true"`
}

// SetDefaults applies default values.
func (c *SettingsConfig) SetDefaults() {}

// Validate checks the settings configuration.
func (c *SettingsConfig) Validate() error {
	return nil
}

// Well-known settings keys. Values not present in the file fall back to
// the defaults passed at the call site.
const (
	// SettingMonitorCheckInterval is the stream-monitor check interval
	// in characters.
	SettingMonitorCheckInterval = "monitor.check_interval"

	// SettingMonitorHangulRatio is the minimum Hangul ratio before a
	// Korean-language response draws a language-mismatch warning.
	SettingMonitorHangulRatio = "monitor.hangul_ratio"

	// SettingOCRBackend selects the OCR extractor: tesseract or cloud.
	SettingOCRBackend = "extract.ocr_backend"

	// SettingVisionBackend selects the image description backend:
	// none, openai or google.
	SettingVisionBackend = "extract.vision_backend"

	// SettingQualityPassRatioPrefix prefixes per-task quality gate pass
	// ratios, e.g. "quality.min_pass_ratio.insight".
	SettingQualityPassRatioPrefix = "quality.min_pass_ratio."

	// SettingPromptPrefix prefixes per-feature system prompt overrides,
	// e.g. "prompts.insight.system".
	SettingPromptPrefix = "prompts."
)

var settingEnums = map[string][]string{
	SettingOCRBackend:    {"tesseract", "cloud"},
	SettingVisionBackend: {"none", "openai", "google"},
}

// Settings is a keyed runtime-tunable settings store backed by a YAML
// file. Values are addressed with dotted keys and reload on file change.
type Settings struct {
	mu     sync.RWMutex
	values map[string]interface{}

	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenSettings loads the settings file. A missing file is not an error;
// the store then answers every lookup with the caller's default.
func OpenSettings(path string) (*Settings, error) {
	s := &Settings{
		values: make(map[string]interface{}),
		path:   path,
		done:   make(chan struct{}),
	}

	if path == "" {
		return s, nil
	}

	if err := s.reload(); err != nil {
		if os.IsNotExist(err) {
			slog.Info("Settings file not found, using defaults", "path", path)
			return s, nil
		}
		return nil, err
	}

	return s, nil
}

func (s *Settings) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	flat := make(map[string]interface{})
	flatten("", raw, flat)

	if err := validateEnums(flat); err != nil {
		return err
	}

	s.mu.Lock()
	s.values = flat
	s.mu.Unlock()

	return nil
}

// flatten turns nested maps into dotted keys.
func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

func validateEnums(values map[string]interface{}) error {
	for key, allowed := range settingEnums {
		raw, ok := values[key]
		if !ok {
			continue
		}
		val := cast.ToString(raw)
		valid := false
		for _, a := range allowed {
			if val == a {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("setting %s: invalid value %q (valid: %v)", key, val, allowed)
		}
	}
	return nil
}

// Watch starts watching the settings file for changes. Events are
// debounced; reload failures keep the previous values.
func (s *Settings) Watch() error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	s.watcher = watcher

	// Watch the directory; some systems don't support watching files
	// directly.
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go s.watchLoop(base)

	slog.Info("Watching settings file", "path", s.path)
	return nil
}

func (s *Settings) watchLoop(base string) {
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-s.done:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := s.reload(); err != nil {
					slog.Warn("Settings reload failed, keeping previous values", "error", err)
					return
				}
				slog.Debug("Settings reloaded", "path", s.path)
			})

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Settings watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (s *Settings) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Settings) lookup(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Decode unmarshals the subtree under prefix into out, matching fields
// by mapstructure tag. Keys absent from the file leave the
// corresponding fields untouched, so out keeps its preset defaults.
func (s *Settings) Decode(prefix string, out interface{}) error {
	p := prefix + "."
	sub := make(map[string]interface{})
	s.mu.RLock()
	for k, v := range s.values {
		if strings.HasPrefix(k, p) {
			sub[strings.TrimPrefix(k, p)] = v
		}
	}
	s.mu.RUnlock()

	if len(sub) == 0 {
		return nil
	}

	nested := make(map[string]interface{})
	for k, v := range sub {
		parts := strings.Split(k, ".")
		m := nested
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part].(map[string]interface{})
			if !ok {
				next = make(map[string]interface{})
				m[part] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(nested); err != nil {
		return fmt.Errorf("settings %s: %w", prefix, err)
	}
	return nil
}

// GetString returns the string value for key, or def.
func (s *Settings) GetString(key, def string) string {
	if v, ok := s.lookup(key); ok {
		if str, err := cast.ToStringE(v); err == nil {
			return str
		}
	}
	return def
}

// GetInt returns the int value for key, or def.
func (s *Settings) GetInt(key string, def int) int {
	if v, ok := s.lookup(key); ok {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

// GetFloat64 returns the float value for key, or def.
func (s *Settings) GetFloat64(key string, def float64) float64 {
	if v, ok := s.lookup(key); ok {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return def
}

// GetBool returns the bool value for key, or def.
func (s *Settings) GetBool(key string, def bool) bool {
	if v, ok := s.lookup(key); ok {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

// GetDuration returns the duration value for key, or def.
func (s *Settings) GetDuration(key string, def time.Duration) time.Duration {
	if v, ok := s.lookup(key); ok {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return def
}
