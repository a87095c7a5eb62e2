package config

import (
	"testing"
)

func TestExpandEnvVars_Braced(t *testing.T) {
	t.Setenv("NOTEUM_TEST_VAR", "hello")

	if got := expandEnvVars("${NOTEUM_TEST_VAR}"); got != "hello" {
		t.Errorf("expandEnvVars = %v, want hello", got)
	}
	if got := expandEnvVars("prefix-${NOTEUM_TEST_VAR}-suffix"); got != "prefix-hello-suffix" {
		t.Errorf("expandEnvVars = %v, want prefix-hello-suffix", got)
	}
}

func TestExpandEnvVars_WithDefault(t *testing.T) {
	t.Setenv("NOTEUM_SET_VAR", "set-value")

	if got := expandEnvVars("${NOTEUM_SET_VAR:-fallback}"); got != "set-value" {
		t.Errorf("set var should win over default, got %v", got)
	}
	if got := expandEnvVars("${NOTEUM_UNSET_VAR_XYZ:-fallback}"); got != "fallback" {
		t.Errorf("unset var should use default, got %v", got)
	}
	if got := expandEnvVars("${NOTEUM_UNSET_VAR_XYZ:-}"); got != "" {
		t.Errorf("empty default should expand to empty, got %q", got)
	}
}

func TestExpandEnvVars_Simple(t *testing.T) {
	t.Setenv("NOTEUM_SIMPLE", "plain")

	if got := expandEnvVars("$NOTEUM_SIMPLE"); got != "plain" {
		t.Errorf("expandEnvVars = %v, want plain", got)
	}
}

func TestExpandEnvVars_NoDollar(t *testing.T) {
	if got := expandEnvVars("no variables here"); got != "no variables here" {
		t.Errorf("string without $ should pass through, got %v", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"true", true},
		{"false", false},
		{"42", 42},
		{"-7", -7},
		{"3.14", 3.14},
		{"hello", "hello"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}

func TestExpandEnvVarsInData_Nested(t *testing.T) {
	t.Setenv("NOTEUM_NESTED_KEY", "resolved")
	t.Setenv("NOTEUM_NESTED_PORT", "9090")

	data := map[string]interface{}{
		"api_key": "${NOTEUM_NESTED_KEY}",
		"server": map[string]interface{}{
			"port": "${NOTEUM_NESTED_PORT}",
		},
		"list": []interface{}{"${NOTEUM_NESTED_KEY}", "literal"},
		"n":    5,
	}

	result := ExpandEnvVarsInData(data).(map[string]interface{})

	if result["api_key"] != "resolved" {
		t.Errorf("api_key = %v, want resolved", result["api_key"])
	}
	server := result["server"].(map[string]interface{})
	if server["port"] != 9090 {
		t.Errorf("port = %v (%T), want int 9090", server["port"], server["port"])
	}
	list := result["list"].([]interface{})
	if list[0] != "resolved" || list[1] != "literal" {
		t.Errorf("list = %v", list)
	}
	if result["n"] != 5 {
		t.Errorf("non-string values must pass through, got %v", result["n"])
	}
}

func TestGetProviderAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("GOOGLE_API_KEY", "goog")
	t.Setenv("GLM_API_KEY", "glm")

	tests := []struct {
		providerType string
		want         string
	}{
		{"openai", "sk-openai"},
		{"codex", "sk-openai"},
		{"anthropic", "sk-ant"},
		{"google", "gem"},
		{"glm", "glm"},
		{"unknown", ""},
	}

	for _, tt := range tests {
		if got := GetProviderAPIKey(tt.providerType); got != tt.want {
			t.Errorf("GetProviderAPIKey(%q) = %v, want %v", tt.providerType, got, tt.want)
		}
	}
}

func TestGetProviderAPIKeyGoogleFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "goog")

	if got := GetProviderAPIKey("google"); got != "goog" {
		t.Errorf("GetProviderAPIKey(google) = %v, want the GOOGLE_API_KEY fallback", got)
	}
}
