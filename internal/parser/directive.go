package parser

import (
	"regexp"
	"strings"
)

// Directive comment text recognized immediately before a log call.
const (
	IgnoreDirective = "breadlog:ignore"
	NoKVPDirective  = "breadlog:no-kvp"
)

// DefaultCommentPattern matches // and /* */ comments, capturing the comment
// text. The directive scanner checks every capture group, so patterns for
// additional comment styles can be supplied as extra alternations.
var DefaultCommentPattern = regexp.MustCompile(`//(.+)|/\*(.+)\*/`)

// IgnoreDirectiveActive reports whether the call site at subjectOffset is
// suppressed by a breadlog:ignore comment on the preceding non-blank line.
func IgnoreDirectiveActive(code string, subjectOffset int, commentPattern *regexp.Regexp) bool {
	return directiveActive(code, subjectOffset, IgnoreDirective, commentPattern)
}

// NoKVPDirectiveActive reports whether a breadlog:no-kvp comment forces the
// call site at subjectOffset to keep its reference in the message string even
// when structured mode is enabled.
func NoKVPDirectiveActive(code string, subjectOffset int, commentPattern *regexp.Regexp) bool {
	return directiveActive(code, subjectOffset, NoKVPDirective, commentPattern)
}

// directiveActive walks backward from the line containing subjectOffset,
// skipping blank lines. The first non-blank line must be a comment whose
// captured text, trimmed and lower-cased, equals directive; anything else
// stops the scan.
func directiveActive(code string, subjectOffset int, directive string, commentPattern *regexp.Regexp) bool {
	end := subjectOffset + 1
	if end > len(code) {
		end = len(code)
	}
	lines := strings.Split(code[:end], "\n")

	// The last element is the subject's own line; start above it.
	for i := len(lines) - 2; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		m := commentPattern.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(group), directive) {
				return true
			}
		}
		return false
	}

	return false
}
