// Package validation provides input validation utilities for streamkit.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Struct tag validation is
// recommended for configuration structs; the builder suits request fields.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    Stream string `json:"stream" validate:"required,min=1"`
//	    Window int    `json:"window" validate:"min=1,max=4096"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("stream", stream).RequiredUUID("client_id", clientID)
//	if appErr := v.Validate(); appErr != nil {
//	    ...
//	}
package validation
