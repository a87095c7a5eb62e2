package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Host to bind. Default 0.0.0.0.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Interface to bind,default=0.0.0.0"`

	// Port to listen on. Default 8080.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Port to listen on,minimum=1,maximum=65535,default=8080"`

	// ReadTimeout for incoming requests.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" jsonschema:"title=Read Timeout,description=HTTP read timeout,default=30s"`

	// WriteTimeout for responses. Zero disables it; streaming endpoints
	// need an unbounded write window.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty" jsonschema:"title=Write Timeout,description=HTTP write timeout (0 keeps streams open)"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"title=Shutdown Timeout,default=5s"`

	// AllowedOrigins for CORS. Empty list disables CORS headers.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty" jsonschema:"title=Allowed Origins,description=CORS allowed origins"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
