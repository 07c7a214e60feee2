package crypto

import (
	"errors"
	"regexp"
	"strings"
)

const maxSanitizedQueryLength = 10_000

// allowedLeadingKeywords is the set of statement types a query-type job may
// execute after sanitization.
var allowedLeadingKeywords = map[string]bool{
	"SELECT":  true,
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"WITH":    true,
	"CALL":    true,
	"EXEC":    true,
	"EXECUTE": true,
}

var (
	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespacePattern   = regexp.MustCompile(`\s+`)

	denyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i);\s*(drop|alter|truncate|grant|revoke)\b`),
		regexp.MustCompile(`(?i)\bunion\b[^;]*\bselect\b`),
		regexp.MustCompile(`--\s*$`),
		regexp.MustCompile(`(?i)\binformation_schema\b`),
		regexp.MustCompile(`(?i)\bpg_\w+`),
		regexp.MustCompile(`(?i)\bmysql\.\w+`),
		regexp.MustCompile(`(?i)\bxp_\w+`),
		regexp.MustCompile(`(?i)\bsp_\w+`),
	}
)

// ErrQueryRejected is returned when a sanitized query fails the allow-list
// or deny-pattern checks.
var ErrQueryRejected = errors.New("crypto: query rejected by sanitizer")

// Sanitize strips SQL comments, collapses whitespace, and enforces the
// allow-list/deny-pattern/length rules a query-type job's decrypted query
// must satisfy before it reaches Storage.ExecuteQuery.
func Sanitize(query string) (string, error) {
	stripped := blockCommentPattern.ReplaceAllString(query, " ")
	stripped = lineCommentPattern.ReplaceAllString(stripped, " ")
	collapsed := strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))

	if collapsed == "" {
		return "", ErrQueryRejected
	}
	if len(collapsed) > maxSanitizedQueryLength {
		return "", ErrQueryRejected
	}

	leading := strings.ToUpper(strings.SplitN(collapsed, " ", 2)[0])
	if !allowedLeadingKeywords[leading] {
		return "", ErrQueryRejected
	}

	for _, pattern := range denyPatterns {
		if pattern.MatchString(query) || pattern.MatchString(collapsed) {
			return "", ErrQueryRejected
		}
	}

	return collapsed, nil
}
