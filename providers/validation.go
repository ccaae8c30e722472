package providers

import "fmt"

const (
	maxScopes      = 50
	maxScopeLength = 256
)

// ValidateScopes validates OAuth scopes before they are sent to a provider.
//
// Security Considerations:
//   - Array Size Limit: Prevents memory exhaustion from excessive scopes
//   - String Length Limit: Prevents memory exhaustion from long scope strings
//
// Example:
//
//	scopes := []string{"https://api.ebay.com/oauth/api_scope"}
//	if err := ValidateScopes(scopes); err != nil {
//	    return fmt.Errorf("invalid scopes: %w", err)
//	}
func ValidateScopes(scopes []string) error {
	if len(scopes) > maxScopes {
		return fmt.Errorf("scope list exceeds maximum of %d items (got %d)", maxScopes, len(scopes))
	}

	for i, scope := range scopes {
		if scope == "" {
			return fmt.Errorf("scope at index %d is empty", i)
		}
		if len(scope) > maxScopeLength {
			return fmt.Errorf("scope at index %d exceeds maximum length of %d characters", i, maxScopeLength)
		}
	}

	return nil
}
