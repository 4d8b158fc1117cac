// Package config provides configuration loading and validation for streamkit
// applications.
//
// It uses Viper to load configuration from YAML files and environment
// variables, with godotenv picking up .env files from the usual service
// locations (cmd/<service>/, config/, the working directory).
//
// # Usage
//
//	type RelayConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    SSE sse.Config `yaml:"sse" mapstructure:"sse"`
//	}
//
//	var cfg RelayConfig
//	if err := config.Load("relay", &cfg); err != nil {
//	    ...
//	}
//
// Environment variables override file values; SSE_KEEPALIVE_INTERVAL binds
// to sse.keepalive_interval and the other nested key variants.
package config
