package logger

import (
	"regexp"
)

// sensitiveDataPatterns match credentials that must not reach log output
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d|dsn)[0-9a-z\-_\.]*[\s:=]+)([^;,\s]{5,})`),
	// user:password@ in DSNs and URLs
	regexp.MustCompile(`([A-Za-z0-9_.-]+:)([^@/\s]+)(@)`),
}

// RedactSensitiveData replaces credentials in s with "[REDACTED]"
func RedactSensitiveData(s string) string {
	if s == "" {
		return s
	}
	s = sensitiveDataPatterns[0].ReplaceAllString(s, "$1[REDACTED]")
	s = sensitiveDataPatterns[1].ReplaceAllString(s, "$1[REDACTED]")
	return sensitiveDataPatterns[2].ReplaceAllString(s, "$1[REDACTED]$3")
}
