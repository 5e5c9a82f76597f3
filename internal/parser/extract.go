package parser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jamesmistry/breadlog/internal/config"
)

// FindReferences scans code and returns one entry per configured log macro
// call, ordered by ascending reference position. A call only counts as a log
// call if it carries a string-literal message argument.
func FindReferences(code string, cfg *config.Config) []LogRefEntry {
	calls := scanCalls(code)
	if len(calls) == 0 {
		return nil
	}

	index := newLineIndex(code)
	entries := make([]LogRefEntry, 0, len(calls))

	for _, call := range calls {
		written := code[call.name.start:call.name.end]
		if IgnoreDirectiveActive(code, call.name.start, DefaultCommentPattern) {
			continue
		}
		if !cfg.MatchesMacro(written) {
			continue
		}
		if call.message == nil {
			continue
		}

		shortName := written
		if i := strings.LastIndex(written, "::"); i >= 0 {
			shortName = written[i+2:]
		}

		structured := cfg.Rust.StructuredLogging &&
			!NoKVPDirectiveActive(code, call.name.start, DefaultCommentPattern)

		if !structured {
			entry := LogRefEntry{
				Position:  index.position(call.message.inner.start),
				MacroName: shortName,
				Kind:      KindString,
			}
			if id, ok := ExtractReference(code[call.message.inner.start:call.message.inner.end]); ok {
				entry.Reference = &id
			}
			entries = append(entries, entry)
			continue
		}

		if kv, ok := findKVArg(code, call.kvs, RefKVPKey); ok {
			entry := LogRefEntry{
				Position:  index.position(kv.value.start),
				MacroName: shortName,
				Kind:      KindStructuredPreExisting,
			}
			value := strings.TrimSpace(code[kv.value.start:kv.value.end])
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				id := uint32(v)
				entry.Reference = &id
			}
			entries = append(entries, entry)
			continue
		}

		suffix := "; "
		if len(call.kvs) > 0 {
			suffix = ", "
		}
		entries = append(entries, LogRefEntry{
			Position:        index.position(call.argsOpen + 1),
			MacroName:       shortName,
			Kind:            KindStructuredNew,
			InsertionPrefix: "ref = ",
			InsertionSuffix: suffix,
		})
	}

	// A call nested in another call's arguments can carry a reference slot
	// positioned before the enclosing call's message; insertion walks these
	// positions with a forward-only cursor.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Position.Offset < entries[j].Position.Offset
	})
	return entries
}

// findKVArg returns the first key-value argument whose key is named key.
func findKVArg(code string, kvs []kvArg, key string) (kvArg, bool) {
	for _, kv := range kvs {
		if code[kv.key.start:kv.key.end] == key {
			return kv, true
		}
	}
	return kvArg{}, false
}
