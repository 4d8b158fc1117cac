package sse

import (
	"strings"
	"time"

	"github.com/kbukum/streamkit/header"
	"github.com/kbukum/streamkit/validation"
)

// Config configures the event stream endpoint.
type Config struct {
	// Path is the route serving the event stream.
	Path string `yaml:"path" mapstructure:"path"`
	// KeepaliveInterval spaces the comment lines that keep idle connections
	// open through proxies. Keep it below typical proxy timeouts.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" mapstructure:"keepalive_interval"`
	// ClientBuffer is the per-client event buffer. A full buffer drops
	// events for that client instead of stalling the fan-out loop.
	ClientBuffer int `yaml:"client_buffer" mapstructure:"client_buffer"`
	// SessionCookie names the session cookie issued to connecting clients.
	SessionCookie string `yaml:"session_cookie" mapstructure:"session_cookie"`
	// AllowOrigin is the Access-Control-Allow-Origin header value.
	AllowOrigin string `yaml:"allow_origin" mapstructure:"allow_origin"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/events"
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = defaultClientBuffer
	}
	if c.SessionCookie == "" {
		c.SessionCookie = "sse_session"
	}
	if c.AllowOrigin == "" {
		c.AllowOrigin = "*"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	v := validation.New()
	v.Required("sse.path", c.Path)
	v.Custom(strings.HasPrefix(c.Path, "/"), "sse.path", "must start with '/'")
	v.Min("sse.client_buffer", c.ClientBuffer, 1)
	v.Custom(c.KeepaliveInterval > 0, "sse.keepalive_interval", "must be positive")
	v.Required("sse.session_cookie", c.SessionCookie)
	if header.ValidateCookieName(c.SessionCookie) != nil {
		v.AddError("sse.session_cookie", "must be a valid cookie token")
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ServerConfig holds the HTTP server settings for the event stream server.
type ServerConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	ReadTimeout int    `yaml:"read_timeout" mapstructure:"read_timeout"` // seconds
	// WriteTimeout in seconds. Zero keeps connections writable indefinitely,
	// which event streams need; set it only for request/response endpoints.
	WriteTimeout int `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  int `yaml:"idle_timeout" mapstructure:"idle_timeout"` // seconds
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120
	}
}

// Validate checks the configuration for invalid values.
func (c *ServerConfig) Validate() error {
	v := validation.New()
	v.Range("server.port", c.Port, 0, 65535)
	v.Min("server.read_timeout", c.ReadTimeout, 0)
	v.Min("server.write_timeout", c.WriteTimeout, 0)
	v.Min("server.idle_timeout", c.IdleTimeout, 0)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
