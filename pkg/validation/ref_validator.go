package validation

import (
	"net/url"
	"strings"

	apperrors "go-design-analyzer/internal/errors"
)

// RefValidator handles image reference validation logic
type RefValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewRefValidator creates a new reference validator with default settings
func NewRefValidator() *RefValidator {
	return &RefValidator{
		allowedSchemes: []string{"http", "https", "azblob"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewRefValidatorWithOptions creates a reference validator with custom options
func NewRefValidatorWithOptions(schemes []string, hosts []string) *RefValidator {
	return &RefValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateImageRef validates if the provided reference is acceptable for
// pipeline processing
func (v *RefValidator) ValidateImageRef(imageRef string) error {
	if strings.TrimSpace(imageRef) == "" {
		return apperrors.NewValidationError("image ref cannot be empty", nil)
	}

	parsed, err := url.Parse(imageRef)
	if err != nil {
		return apperrors.NewValidationError("invalid image ref format", err)
	}

	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewValidationError("image ref scheme not allowed", nil)
	}

	if parsed.Host == "" {
		return apperrors.NewValidationError("image ref must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsed.Host) {
		return apperrors.NewValidationError("image ref host not allowed", nil)
	}

	return nil
}

// isSchemeAllowed checks if the ref scheme is in the allowed list
func (v *RefValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the ref host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *RefValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
