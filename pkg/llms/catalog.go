package llms

import "strings"

// modelSpec is the catalog metadata for a known model family.
type modelSpec struct {
	name    string
	context int
}

// modelSpecs maps model ID prefixes to display names and context
// windows. Dated variants match their family prefix; unknown IDs fall
// back to the bare ID and a conservative window.
var modelSpecs = map[string]modelSpec{
	"gpt-4o-mini":       {"GPT-4o mini", 128000},
	"gpt-4o":            {"GPT-4o", 128000},
	"gpt-4.1-mini":      {"GPT-4.1 mini", 1047576},
	"gpt-4.1":           {"GPT-4.1", 1047576},
	"gpt-5-codex":       {"GPT-5 Codex", 400000},
	"gpt-5":             {"GPT-5", 400000},
	"claude-sonnet-4":   {"Claude Sonnet 4", 200000},
	"claude-3-7-sonnet": {"Claude 3.7 Sonnet", 200000},
	"claude-3-5-haiku":  {"Claude 3.5 Haiku", 200000},
	"gemini-2.0-flash":  {"Gemini 2.0 Flash", 1048576},
	"gemini-2.5-flash":  {"Gemini 2.5 Flash", 1048576},
	"gemini-2.5-pro":    {"Gemini 2.5 Pro", 1048576},
	"glm-4-plus":        {"GLM-4 Plus", 128000},
	"glm-4-flash":       {"GLM-4 Flash", 128000},
	"glm-4v-plus":       {"GLM-4V Plus", 8192},
}

const fallbackContextTokens = 32768

// lookupSpec resolves catalog metadata by exact ID, then by the longest
// matching family prefix.
func lookupSpec(id string) modelSpec {
	if s, ok := modelSpecs[id]; ok {
		return s
	}
	best := ""
	for prefix := range modelSpecs {
		if strings.HasPrefix(id, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return modelSpecs[best]
	}
	return modelSpec{name: id, context: fallbackContextTokens}
}

// modelCatalog lists the provider's serving models with the configured
// default first. Every provider here streams.
func modelCatalog(provider, configured string, known []string) []ModelInfo {
	models := make([]ModelInfo, 0, len(known)+1)
	add := func(id string, dflt bool) {
		spec := lookupSpec(id)
		models = append(models, ModelInfo{
			ID:               id,
			Name:             spec.name,
			Provider:         provider,
			MaxContextTokens: spec.context,
			Streaming:        true,
			Default:          dflt,
		})
	}
	if configured != "" {
		add(configured, true)
	}
	for _, id := range known {
		if id == configured {
			continue
		}
		add(id, false)
	}
	return models
}
