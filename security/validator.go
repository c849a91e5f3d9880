package security

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// SecurityLevel selects how strict validation is. Only Strict has defined
// semantics today; Normal and Permissive are reserved policy slots and
// currently validate with the full strict rule set.
type SecurityLevel int

const (
	Strict SecurityLevel = iota
	Normal
	Permissive
)

func (l SecurityLevel) String() string {
	switch l {
	case Strict:
		return "strict"
	case Normal:
		return "normal"
	case Permissive:
		return "permissive"
	default:
		return "unknown"
	}
}

// Dialect selects the dangerous-keyword set and identifier quoting style.
type Dialect int

const (
	Generic Dialect = iota
	MySQL
	PostgreSQL
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case PostgreSQL:
		return "postgresql"
	case SQLite:
		return "sqlite"
	default:
		return "generic"
	}
}

// forbiddenVerbs are SQL verbs that must never appear anywhere in a query,
// as whole words, case-insensitively. Shared read-only across all calls.
var forbiddenVerbs = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"GRANT", "REVOKE", "COPY", "LOAD", "CALL", "MERGE", "VACUUM",
	"ANALYZE", "COMMENT", "SET", "SHOW", "USE", "PREPARE", "EXECUTE",
	"DEALLOCATE", "LOCK", "UNLOCK", "REPLACE", "RENAME", "FLUSH",
	"RESET", "KILL", "SHUTDOWN", "RESTART", "RELOAD", "REPAIR",
	"OPTIMIZE", "CHECK", "CHECKSUM", "BACKUP", "RESTORE", "IMPORT",
	"EXPORT", "DUMP", "LOAD_FILE", "INTO", "OUTFILE", "INFILE",
}

// One precompiled alternation instead of a per-verb compile on every call.
var forbiddenVerbRe = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenVerbs, "|") + `)\b`)

// dialectDangerousKeywords are multi-word phrases checked as
// case-insensitive substrings of the cleaned text. They catch file-system
// and exfiltration constructs the whole-word verb scan cannot express.
var dialectDangerousKeywords = map[Dialect][]string{
	MySQL: {
		"INTO OUTFILE", "INTO DUMPFILE", "LOAD_FILE", "LOAD DATA",
		"LOCAL INFILE", "SELECT INTO", "INTO VAR", "INTO @",
	},
	PostgreSQL: {
		"COPY FROM", "COPY TO", `\COPY`, `\LO_IMPORT`, `\LO_EXPORT`,
	},
	SQLite: {
		"ATTACH DATABASE", "DETACH DATABASE", "LOAD_EXTENSION",
		"WRITEFILE", "READFILE",
	},
}

// Validator is the query-validation facade. It is stateless and safe for
// unlimited concurrent use; it never executes SQL, it only classifies it.
type Validator struct {
	level  SecurityLevel
	logger *zap.Logger
}

// NewValidator returns a validator enforcing the given level. logger may be
// nil; it is only used for non-blocking diagnostics.
func NewValidator(level SecurityLevel, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{level: level, logger: logger}
}

// Level returns the policy level this validator was built with.
func (v *Validator) Level() SecurityLevel { return v.level }

// ValidateQuery decides whether sqlText is safe to run under the read-only
// policy for the given dialect. It returns nil for a single SELECT
// statement containing no forbidden verb and no dialect-dangerous phrase,
// and a *ValidationError describing the first failing check otherwise.
func (v *Validator) ValidateQuery(sqlText string, dialect Dialect) error {
	if strings.TrimSpace(sqlText) == "" {
		return newError(KindEmptyQuery, "empty query is not allowed")
	}

	clean := Clean(sqlText)
	if strings.TrimSpace(clean) == "" {
		return newError(KindEmptyQuery, "query contains no statement after removing comments")
	}

	if err := v.checkSingleStatement(clean); err != nil {
		return err
	}
	if err := v.checkForbiddenVerbs(clean); err != nil {
		return err
	}
	if err := v.checkReadOnly(clean); err != nil {
		return err
	}
	if err := v.checkDialectKeywords(clean, dialect); err != nil {
		return err
	}
	if err := v.checkCommentBypass(sqlText); err != nil {
		return err
	}

	// Forbidden verbs inside string literals are data, not SQL. Never a
	// rejection on their own, but worth a trace when hunting bypasses.
	v.inspectStringLiterals(sqlText)

	return nil
}

// checkSingleStatement enforces the one-statement shape on cleaned text:
// at most one semicolon, and if present it must be the final non-whitespace
// character.
func (v *Validator) checkSingleStatement(clean string) error {
	count := strings.Count(clean, ";")
	if count > 1 {
		return newError(KindMultipleStatements, "multiple statements are not allowed")
	}
	if count == 1 && !strings.HasSuffix(strings.TrimSpace(clean), ";") {
		return newError(KindInvalidSemicolonPosition, "semicolon is only allowed at the end of the statement")
	}
	return nil
}

func (v *Validator) checkForbiddenVerbs(clean string) error {
	if verb := forbiddenVerbRe.FindString(clean); verb != "" {
		verb = strings.ToUpper(verb)
		err := newError(KindForbiddenVerb, "forbidden SQL verb %q detected", verb)
		err.Token = verb
		return err
	}
	return nil
}

// checkReadOnly requires the leading keyword of the cleaned text to be
// SELECT.
func (v *Validator) checkReadOnly(clean string) error {
	if firstKeyword(clean) != "SELECT" {
		return newError(KindReadOnlyViolation, "only SELECT queries are allowed in read-only mode")
	}
	return nil
}

func (v *Validator) checkDialectKeywords(clean string, dialect Dialect) error {
	upper := strings.ToUpper(clean)
	for _, phrase := range dialectDangerousKeywords[dialect] {
		if strings.Contains(upper, phrase) {
			err := newError(KindDialectDangerousKeyword, "dangerous %s keyword %q detected", dialect, phrase)
			err.Token = phrase
			return err
		}
	}
	return nil
}

// checkCommentBypass strips comments only, keeping string literals intact,
// and re-runs the verb scan when the remaining text does not read as a
// SELECT. This catches queries that use comments to disguise statement
// structure rather than to hide a verb.
func (v *Validator) checkCommentBypass(sqlText string) error {
	commentFree := StripComments(sqlText)
	if firstKeyword(commentFree) == "SELECT" {
		return nil
	}
	if verb := forbiddenVerbRe.FindString(commentFree); verb != "" {
		verb = strings.ToUpper(verb)
		err := newError(KindCommentBypassAttempt, "comment-based bypass attempt detected, forbidden verb %q", verb)
		err.Token = verb
		return err
	}
	return nil
}

func (v *Validator) inspectStringLiterals(sqlText string) {
	for _, literal := range ExtractStringLiterals(sqlText) {
		upper := strings.ToUpper(literal)
		for _, verb := range forbiddenVerbs {
			if strings.Contains(upper, verb) {
				v.logger.Warn("suspicious pattern inside string literal",
					zap.String("verb", verb),
					zap.String("literal", truncate(literal, 50)))
				return
			}
		}
	}
}

// firstKeyword returns the leading identifier-shaped token, uppercased.
func firstKeyword(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			end++
			continue
		}
		break
	}
	return strings.ToUpper(s[:end])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
