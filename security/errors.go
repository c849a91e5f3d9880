package security

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable machine-readable rejection code. Callers branch on
// the kind, never on the message text.
type ErrorKind string

const (
	KindEmptyQuery               ErrorKind = "EMPTY_QUERY"
	KindMultipleStatements       ErrorKind = "MULTIPLE_STATEMENTS"
	KindInvalidSemicolonPosition ErrorKind = "INVALID_SEMICOLON_POSITION"
	KindReadOnlyViolation        ErrorKind = "READ_ONLY_VIOLATION"
	KindForbiddenVerb            ErrorKind = "FORBIDDEN_VERB"
	KindDialectDangerousKeyword  ErrorKind = "DIALECT_DANGEROUS_KEYWORD"
	KindCommentBypassAttempt     ErrorKind = "COMMENT_BYPASS_ATTEMPT"

	KindEmptyIdentifier             ErrorKind = "EMPTY_IDENTIFIER"
	KindDangerousIdentifierPattern  ErrorKind = "DANGEROUS_IDENTIFIER_PATTERN"
	KindIdentifierTooLong           ErrorKind = "IDENTIFIER_TOO_LONG"
	KindIdentifierStartsWithDigit   ErrorKind = "IDENTIFIER_STARTS_WITH_DIGIT"
	KindInvalidIdentifierCharacters ErrorKind = "INVALID_IDENTIFIER_CHARACTERS"
	KindIdentifierNotWhitelisted    ErrorKind = "IDENTIFIER_NOT_WHITELISTED"

	KindSchemaCacheNotLoaded ErrorKind = "SCHEMA_CACHE_NOT_LOADED"
	KindTableNotWhitelisted  ErrorKind = "TABLE_NOT_WHITELISTED"
	KindTableColumnsNotFound ErrorKind = "TABLE_COLUMNS_NOT_FOUND"
	KindColumnNotWhitelisted ErrorKind = "COLUMN_NOT_WHITELISTED"
)

// ValidationError is the rejection reported by every check in this package.
// Token holds the offending verb, keyword phrase, or pattern label when the
// check matched something concrete; Available lists the whitelisted
// alternatives for whitelist misses.
type ValidationError struct {
	Kind       ErrorKind
	Message    string
	Token      string
	Identifier string
	Available  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a validation error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
