package logging

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

const redactedText = "[REDACTED]"

var (
	// Matches api_key=... query parameters in registry URLs.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[^&\s]+`)

	// Matches user:pass@host credentials in connection strings.
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)
)

// New builds the process-wide zap logger. The local environment gets the
// human-readable development encoder, everything else gets production JSON.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// SanitizeURL removes API keys from a registry request URL before logging.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	return apiKeyPattern.ReplaceAllString(rawURL, "${1}="+redactedText)
}

// SanitizeError sanitizes error messages that might carry connection
// credentials or API keys before they reach a log line or an import result.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := apiKeyPattern.ReplaceAllString(err.Error(), "${1}="+redactedText)
	return connStringPattern.ReplaceAllString(s, "://"+redactedText+"@")
}
