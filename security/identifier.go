package security

import (
	"regexp"
	"sort"
	"strings"
)

const maxIdentifierLength = 128

// dangerousIdentifierPatterns are injection shapes an identifier must never
// contain. Each entry carries the label reported back to the caller.
//
// Note: the % and _ rules also reject ordinary snake_case names such as
// user_id. That matches the historical rule set and is deliberately kept
// as-is; widening the accept set of a security gate needs a product
// decision, not a quiet code change.
var dangerousIdentifierPatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile("[;'\"`]"), "quote or statement separator"},
	{regexp.MustCompile(`--`), "line comment"},
	{regexp.MustCompile(`/\*`), "block comment start"},
	{regexp.MustCompile(`\*/`), "block comment end"},
	{regexp.MustCompile(`(?i)\b(UNION|SELECT|INSERT|UPDATE|DELETE|DROP|ALTER|CREATE)\b`), "SQL keyword"},
	{regexp.MustCompile(`\.\.`), "path traversal"},
	{regexp.MustCompile(`%`), "wildcard"},
	{regexp.MustCompile(`_`), "single-character wildcard"},
}

var identifierCharsetRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier checks a raw table or column name against the lexical
// safety rules. When allowed is non-nil it is consulted first: a name
// absent from it is rejected before any structural check runs, with the
// full allowed set attached for diagnostics.
func (v *Validator) ValidateIdentifier(identifier string, allowed map[string]struct{}) error {
	if strings.TrimSpace(identifier) == "" {
		return newError(KindEmptyIdentifier, "empty identifier is not allowed")
	}
	identifier = strings.TrimSpace(identifier)

	if allowed != nil {
		if _, ok := allowed[identifier]; !ok {
			err := newError(KindIdentifierNotWhitelisted, "identifier %q is not whitelisted", identifier)
			err.Identifier = identifier
			err.Available = sortedKeys(allowed)
			return err
		}
	}

	for _, p := range dangerousIdentifierPatterns {
		if p.re.MatchString(identifier) {
			err := newError(KindDangerousIdentifierPattern, "dangerous pattern (%s) in identifier %q", p.label, identifier)
			err.Token = p.label
			err.Identifier = identifier
			return err
		}
	}

	if len(identifier) > maxIdentifierLength {
		err := newError(KindIdentifierTooLong, "identifier exceeds %d characters", maxIdentifierLength)
		err.Identifier = identifier
		return err
	}

	if identifier[0] >= '0' && identifier[0] <= '9' {
		err := newError(KindIdentifierStartsWithDigit, "identifier %q must not start with a digit", identifier)
		err.Identifier = identifier
		return err
	}

	if !identifierCharsetRe.MatchString(identifier) {
		err := newError(KindInvalidIdentifierCharacters, "identifier %q may only contain letters, digits and underscores", identifier)
		err.Identifier = identifier
		return err
	}

	return nil
}

// SafeQuote wraps an identifier in the dialect's quoting style. It performs
// no escaping: the caller must only pass identifiers that already passed
// ValidateIdentifier (whose character-set rule forbids quote characters).
func SafeQuote(identifier string, dialect Dialect) string {
	switch dialect {
	case MySQL:
		return "`" + identifier + "`"
	case PostgreSQL, SQLite:
		return `"` + identifier + `"`
	default:
		return identifier
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
