package security

import "strings"

// Lexical stripping turns raw SQL into text that is safe to keyword-match.
// Comments are removed first, then string literals are reduced to empty
// placeholders of the same quote type, so comment markers inside literals
// are never treated as real comments. Anything ambiguous (an unterminated
// literal or comment) is left visible to the keyword scans rather than
// hidden: a false rejection is acceptable, a false acceptance is not.

// scanLiteral scans a quoted literal starting at the opening quote and
// returns the index just past the closing quote. A doubled quote or a
// backslash-escaped quote does not terminate the literal. ok is false when
// the literal never closes.
func scanLiteral(s string, start int) (end int, ok bool) {
	q := s[start]
	i := start + 1
	n := len(s)
	for i < n {
		switch s[i] {
		case q:
			if i+1 < n && s[i+1] == q {
				i += 2 // escaped quote
				continue
			}
			return i + 1, true
		case '\\':
			i += 2
		default:
			i++
		}
	}
	return n, false
}

// StripComments removes -- line comments and /* */ block comments,
// leaving string literal contents intact. Comment markers inside a quoted
// literal are not comments and are preserved.
func StripComments(sqlText string) string {
	var b strings.Builder
	b.Grow(len(sqlText))
	i := 0
	n := len(sqlText)

	for i < n {
		c := sqlText[i]

		// Line comment to end of line
		if c == '-' && i+1 < n && sqlText[i+1] == '-' {
			for i < n && sqlText[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			continue
		}

		// Block comment, possibly multi-line
		if c == '/' && i+1 < n && sqlText[i+1] == '*' {
			i += 2
			for i+1 < n && !(sqlText[i] == '*' && sqlText[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2 // skip */
			} else {
				i = n // unterminated comment runs to the end
			}
			b.WriteByte(' ')
			continue
		}

		if c == '\'' || c == '"' || c == '`' {
			end, _ := scanLiteral(sqlText, i)
			b.WriteString(sqlText[i:end])
			i = end
			continue
		}

		b.WriteByte(c)
		i++
	}

	return b.String()
}

// StripStringLiterals replaces the contents of single-quoted, double-quoted
// and backtick-quoted literals with an empty placeholder of the same quote
// type. An unterminated literal is kept verbatim so the keyword scans still
// see whatever it contains.
func StripStringLiterals(sqlText string) string {
	var b strings.Builder
	b.Grow(len(sqlText))
	i := 0
	n := len(sqlText)

	for i < n {
		c := sqlText[i]
		if c == '\'' || c == '"' || c == '`' {
			end, ok := scanLiteral(sqlText, i)
			if !ok {
				b.WriteString(sqlText[i:])
				break
			}
			b.WriteByte(c)
			b.WriteByte(c)
			i = end
			continue
		}
		b.WriteByte(c)
		i++
	}

	return b.String()
}

// Clean strips comments and then string literals, producing the text every
// keyword check in this package operates on.
func Clean(sqlText string) string {
	return StripStringLiterals(StripComments(sqlText))
}

// ExtractStringLiterals returns the inner contents of every closed quoted
// literal in the raw text. Used only for the non-blocking suspicious-literal
// diagnostic.
func ExtractStringLiterals(sqlText string) []string {
	var literals []string
	i := 0
	n := len(sqlText)

	for i < n {
		c := sqlText[i]
		if c == '\'' || c == '"' || c == '`' {
			end, ok := scanLiteral(sqlText, i)
			if !ok {
				break
			}
			literals = append(literals, sqlText[i+1:end-1])
			i = end
			continue
		}
		i++
	}

	return literals
}
