// Package redact provides utilities for redacting sensitive information from
// strings before they are logged or returned in error responses. It targets
// the secrets this application actually handles: database connection
// strings, platform access tokens, analyzer API keys, and generic
// credentials that may surface in wrapped errors.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
)

// Precompiled regex patterns
var (
	// Database connection strings with inline credentials
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|db|database|connection)://[^@\s]+@`)

	// Shopify Admin API access tokens (shpat_/shpca_/shpss_ prefixes)
	platformTokenRegex = regexp.MustCompile(`shp(at|ca|ss)_[A-Za-z0-9]{8,}`)

	// Google API keys
	googleKeyRegex = regexp.MustCompile(`AIza[A-Za-z0-9_\-]{10,}`)

	// Generic credentials and API keys in key=value or key: value form
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// All patterns and their placeholders
	patterns = []*regexp.Regexp{
		dbConnRegex, platformTokenRegex, googleKeyRegex, passwordRegex, apiKeyRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		dbConnRegex:        RedactedCredentialPlaceholder,
		platformTokenRegex: RedactedTokenPlaceholder,
		googleKeyRegex:     RedactedKeyPlaceholder,
		passwordRegex:      RedactedCredentialPlaceholder,
		apiKeyRegex:        RedactedKeyPlaceholder,
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, pattern := range patterns {
		placeholder := RedactionPlaceholder
		if ph, ok := patternPlaceholders[pattern]; ok {
			placeholder = ph
		}
		result = pattern.ReplaceAllString(result, placeholder)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
