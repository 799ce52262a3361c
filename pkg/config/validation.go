package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags handle the declarative rules; custom checks cover the
// cross-field rules tags cannot express.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	switch cfg.Chunks.Type {
	case "filesystem":
		if path, _ := cfg.Chunks.Filesystem["path"].(string); path == "" {
			return fmt.Errorf("chunks.filesystem: path is required")
		}
	case "s3":
		if bucket, _ := cfg.Chunks.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("chunks.s3: bucket is required")
		}
		if region, _ := cfg.Chunks.S3["region"].(string); region == "" {
			return fmt.Errorf("chunks.s3: region is required")
		}
	}

	if cfg.Metadata.Type == "badger" {
		inMemory, _ := cfg.Metadata.Badger["in_memory"].(bool)
		if path, _ := cfg.Metadata.Badger["path"].(string); path == "" && !inMemory {
			return fmt.Errorf("metadata.badger: path is required unless in_memory is set")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
