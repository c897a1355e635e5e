package config

import "fmt"

// validate checks the loaded configuration for values that would otherwise
// fail later at a random call site with a confusing error. Misconfiguration
// discovered here should terminate the process at startup rather than
// surface as a runtime failure deep in a request path.
func validate(cfg *Config) error {
	if cfg.Database.Host == "" {
		return NewValidationError("database", "host", ErrMissingRequiredField)
	}
	if cfg.Database.Database == "" {
		return NewValidationError("database", "database", ErrMissingRequiredField)
	}
	if cfg.Qdrant.VectorDim <= 0 {
		return NewValidationError("qdrant", "vector_dim", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if cfg.Qdrant.CasesCollection == "" || cfg.Qdrant.IssuesCollection == "" {
		return NewValidationError("qdrant", "cases_collection/issues_collection", ErrMissingRequiredField)
	}
	if cfg.Validation.AutoCorrectThreshold < 0 || cfg.Validation.AutoCorrectThreshold > 1 {
		return NewValidationError("validation", "auto_correct_threshold", fmt.Errorf("%w: must be in [0,1]", ErrInvalidValue))
	}
	if cfg.VLMConcurrency.MaxInFlight <= 0 {
		return NewValidationError("vlm_concurrency", "max_in_flight", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	for tool, roles := range cfg.RBAC.ProtectedToolRoles {
		if len(roles) == 0 {
			return NewValidationError("rbac", "protected_tool_roles["+tool+"]", fmt.Errorf("%w: at least one role required", ErrInvalidValue))
		}
	}
	return nil
}
