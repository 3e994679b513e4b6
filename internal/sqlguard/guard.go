// Package sqlguard validates model-generated SQL before it may touch the
// sales database. Only a single plain SELECT statement passes; everything
// else is rejected regardless of how it is spelled or commented.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmpty     = errors.New("empty query")
	ErrNotSelect = errors.New("query must be a single SELECT statement")
	ErrForbidden = errors.New("query contains a forbidden keyword")
	ErrStacked   = errors.New("query contains multiple statements")
)

// forbidden lists keywords that must never appear in a generated query,
// matched on word boundaries after comment stripping so spacing and casing
// tricks don't help.
var forbidden = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
	"CREATE", "REPLACE", "EXEC", "EXECUTE", "PRAGMA",
	"ATTACH", "DETACH", "GRANT", "REVOKE", "VACUUM",
}

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	forbiddenRe    = regexp.MustCompile(`(?i)\b(` + strings.Join(forbidden, "|") + `)\b`)
)

// StripFences removes a markdown code fence (and an optional leading "sql"
// language tag) from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	// The fence language tag often survives as a bare first token.
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "sql") && (len(s) == 3 || s[3] == ' ' || s[3] == '\n' || s[3] == '\t') {
		s = strings.TrimSpace(s[3:])
	}
	return s
}

// Validate checks that q is one plain SELECT with no write or admin
// keywords. Comments are stripped first so they can't hide anything.
func Validate(q string) error {
	cleaned := blockCommentRe.ReplaceAllString(q, " ")
	cleaned = lineCommentRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ErrEmpty
	}

	// A trailing semicolon is tolerated; any other one means a second statement.
	trimmed := strings.TrimRight(cleaned, "; \t\n")
	if strings.Contains(trimmed, ";") {
		return ErrStacked
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return ErrNotSelect
	}

	if m := forbiddenRe.FindString(trimmed); m != "" {
		return fmt.Errorf("%w: %s", ErrForbidden, strings.ToUpper(m))
	}

	return nil
}
