package parser

import (
	"fmt"
	"regexp"
	"strconv"
)

// LogRefKind classifies how a reference id is represented at a call site.
type LogRefKind int

const (
	KindUnknown LogRefKind = iota

	// KindString: the id lives as leading text in the log-message literal.
	KindString

	// KindStructuredPreExisting: the id lives in a key-value argument that
	// is already present.
	KindStructuredPreExisting

	// KindStructuredNew: no reference key-value argument exists; one must be
	// synthesized.
	KindStructuredNew
)

// RefKVPKey is the key that holds a reference id in structured mode.
const RefKVPKey = "ref"

// CodePosition is a position in source text. Offset is the 0-based byte
// offset from the start of the text; Line and Column are 1-based. Positions
// are derived once from scanned text and never recomputed after the text is
// mutated.
type CodePosition struct {
	Offset int
	Line   int
	Column int
}

// LogRefEntry is one discovered log call site.
type LogRefEntry struct {
	// Position of the slot a reference id is read from or would be written to.
	Position CodePosition

	// Reference is the numeric id already present, if any.
	Reference *uint32

	// MacroName is the unqualified macro name, path prefix stripped.
	MacroName string

	Kind LogRefKind

	// InsertionPrefix and InsertionSuffix wrap a newly inserted id. Both are
	// empty for the default inline-text form.
	InsertionPrefix string
	InsertionSuffix string
}

var logRefPattern = regexp.MustCompile(`^\[ref: ([0-9]{1,10})\]`)

// ExtractReference parses a leading "[ref: <digits>]" annotation from a log
// message literal. Only a leading annotation counts, and only the first one.
func ExtractReference(logLiteral string) (uint32, bool) {
	m := logRefPattern.FindStringSubmatch(logLiteral)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// Exists reports whether a numeric reference is present.
func (e *LogRefEntry) Exists() bool {
	return e.Reference != nil
}

// UsableReferencePosition reports whether the entry's reference slot can be
// treated as holding a valid id. A structured key that exists but holds no
// parseable integer occupies the slot without satisfying it.
func (e *LogRefEntry) UsableReferencePosition() bool {
	return !(e.Kind == KindStructuredPreExisting && !e.Exists())
}

// InsertableReferenceString renders id in the form this entry requires: the
// canonical "[ref: N] " message header by default, or prefix+id+suffix when
// the entry carries insertion text for the structured form.
func (e *LogRefEntry) InsertableReferenceString(id uint32) string {
	if e.InsertionPrefix == "" && e.InsertionSuffix == "" {
		return fmt.Sprintf("[ref: %d] ", id)
	}
	return e.InsertionPrefix + strconv.FormatUint(uint64(id), 10) + e.InsertionSuffix
}
