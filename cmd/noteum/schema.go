package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/noteum-io/noteum/pkg/config"
)

// SchemaCmd generates a JSON Schema for the configuration file.
// Output goes to stdout so it can be redirected or piped.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline all definitions so form generators don't need to
		// resolve $ref.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})

	schema.ID = "https://noteum.io/schemas/config.json"
	schema.Title = "Noteum Configuration Schema"
	schema.Description = "Configuration schema for the noteum search and AI server"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"server": map[string]interface{}{
				"host": "0.0.0.0",
				"port": 8080,
			},
			"database": map[string]interface{}{
				"url": "${DATABASE_URL}",
			},
			"embedding": map[string]interface{}{
				"provider": "openai",
				"model":    "text-embedding-3-small",
				"api_key":  "${OPENAI_API_KEY}",
			},
			"llms": map[string]interface{}{
				"anthropic": map[string]interface{}{
					"type":    "anthropic",
					"model":   "claude-sonnet-4",
					"api_key": "${ANTHROPIC_API_KEY}",
				},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	return nil
}
