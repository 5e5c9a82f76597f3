package parser

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Call discovery is built on the tree-sitter Rust grammar. The grammar hands
// back `macro_invocation` nodes with exact byte ranges for the macro path and
// the argument token tree, and lexes the tree's contents into tokens (string
// literals, identifiers, nested trees) without imposing structure on them.
// The token-level work the grammar leaves open is done here: splitting the
// token tree into top-level argument segments, classifying `key = value` and
// `target: ...` segments, and recovering macro calls written inside another
// call's token tree, which the grammar lexes flat instead of parsing.
// Anything the grammar cannot make sense of yields fewer calls, never an
// error.

// span is a half-open byte range in the scanned source.
type span struct {
	start int
	end   int
}

// stringLit records a string literal's full extent and the inner text between
// the quotes, escape sequences preserved as written.
type stringLit struct {
	lit   span
	inner span
}

// kvArg is one top-level `key = value` argument.
type kvArg struct {
	key   span
	value span
}

// macroCall is one recognized `path::name!(args)` invocation.
type macroCall struct {
	name     span       // the written name, possibly path-qualified
	argsOpen int        // offset of the opening parenthesis
	args     span       // inside the parentheses
	kvs      []kvArg    // top-level key-value arguments before a top-level `;`
	message  *stringLit // first string-literal argument
}

// scanCalls returns every parenthesized macro invocation in code, ordered by
// position. A sitter.Parser is not safe for concurrent use and callers scan
// files on worker goroutines, so each scan gets its own.
func scanCalls(code string) []macroCall {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	tree, err := p.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	var calls []macroCall
	collectCalls(tree.RootNode(), code, &calls)
	sort.Slice(calls, func(i, j int) bool {
		return calls[i].name.start < calls[j].name.start
	})
	return calls
}

func collectCalls(node *sitter.Node, code string, calls *[]macroCall) {
	switch node.Type() {
	case "macro_invocation":
		nameNode := node.ChildByFieldName("macro")
		tt := tokenTreeChild(node)
		if nameNode != nil && tt != nil {
			name := span{int(nameNode.StartByte()), int(nameNode.EndByte())}
			if call, ok := callFromTokenTree(name, tt, code); ok {
				*calls = append(*calls, call)
			}
			collectNestedCalls(tt, code, calls)
		}
		return

	case "token_tree":
		// A token tree outside an invocation (a macro_rules body, an
		// attribute) can still spell out calls.
		collectNestedCalls(node, code, calls)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectCalls(node.Child(i), code, calls)
	}
}

func tokenTreeChild(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "token_tree" {
			return child
		}
	}
	return nil
}

// collectNestedCalls recovers `path::name!(args)` written inside a token
// tree, where the grammar lexes the call into flat tokens instead of a
// macro_invocation node. Name tokens must be byte-contiguous, as they are in
// source, so stray `a :: b` token runs are not mistaken for a path.
func collectNestedCalls(tt *sitter.Node, code string, calls *[]macroCall) {
	var tokens []*sitter.Node
	for i := 0; i < int(tt.ChildCount()); i++ {
		child := tt.Child(i)
		switch child.Type() {
		case "(", ")", "[", "]", "{", "}", "line_comment", "block_comment":
			continue
		}
		tokens = append(tokens, child)
	}

	for i, tok := range tokens {
		if tok.Type() == "token_tree" {
			collectNestedCalls(tok, code, calls)
			continue
		}
		if tok.Type() != "identifier" {
			continue
		}
		// A path continuation (`::name`) is not a call start of its own.
		if i > 0 && tokenText(tokens[i-1], code) == "::" && contiguous(tokens[i-1], tok) {
			continue
		}

		j := i
		for j+2 < len(tokens) &&
			tokenText(tokens[j+1], code) == "::" &&
			tokens[j+2].Type() == "identifier" &&
			contiguous(tokens[j], tokens[j+1]) &&
			contiguous(tokens[j+1], tokens[j+2]) {
			j += 2
		}
		if j+2 >= len(tokens) {
			continue
		}

		bang, args := tokens[j+1], tokens[j+2]
		if tokenText(bang, code) != "!" || !contiguous(tokens[j], bang) || args.Type() != "token_tree" {
			continue
		}

		name := span{int(tokens[i].StartByte()), int(tokens[j].EndByte())}
		if call, ok := callFromTokenTree(name, args, code); ok {
			*calls = append(*calls, call)
		}
		// args is revisited by the token_tree branch above for deeper nesting.
	}
}

func tokenText(node *sitter.Node, code string) string {
	return code[node.StartByte():node.EndByte()]
}

func contiguous(a, b *sitter.Node) bool {
	return a.EndByte() == b.StartByte()
}

// callFromTokenTree builds a macroCall from a parenthesized token tree. Named
// tokens (literals, identifiers, nested trees) are opaque units; only
// anonymous punctuation tokens can carry the top-level commas and semicolons
// that delimit argument segments.
func callFromTokenTree(name span, tt *sitter.Node, code string) (macroCall, bool) {
	open := int(tt.StartByte())
	if open >= len(code) || code[open] != '(' {
		return macroCall{}, false
	}
	argsEnd := int(tt.EndByte())
	if argsEnd > open+1 && code[argsEnd-1] == ')' {
		argsEnd--
	}

	type boundary struct {
		at   int
		semi bool
	}
	var bounds []boundary
	stringEnd := make(map[int]int)

	for i := 0; i < int(tt.ChildCount()); i++ {
		child := tt.Child(i)
		t := child.Type()
		if t == "(" || t == ")" {
			continue
		}
		if t == "string_literal" {
			stringEnd[int(child.StartByte())] = int(child.EndByte())
			continue
		}
		if child.IsNamed() {
			continue
		}
		for k := int(child.StartByte()); k < int(child.EndByte()); k++ {
			switch code[k] {
			case ',':
				bounds = append(bounds, boundary{at: k})
			case ';':
				bounds = append(bounds, boundary{at: k, semi: true})
			}
		}
	}

	semiAt := -1
	var segments []span
	segStart := open + 1
	for _, b := range bounds {
		segments = append(segments, span{segStart, b.at})
		if b.semi && semiAt < 0 {
			semiAt = len(segments)
		}
		segStart = b.at + 1
	}
	segments = append(segments, span{segStart, argsEnd})

	call := macroCall{
		name:     name,
		argsOpen: open,
		args:     span{open + 1, argsEnd},
	}
	classifyArgs(code, &call, segments, semiAt, stringEnd)
	return call, true
}

// classifyArgs fills in the call's key-value arguments and message literal
// from the top-level argument segments.
func classifyArgs(code string, call *macroCall, segments []span, semiAt int, stringEnd map[int]int) {
	for idx, seg := range segments {
		start := skipTrivia(code, seg.start)
		if start >= seg.end {
			continue
		}

		if semiAt >= 0 && idx < semiAt {
			// Key-value list position: `target: ...` and `key = value`.
			if isTargetSegment(code, start, seg.end) {
				continue
			}
			if kv, isKV := parseKVArg(code, start, seg.end); isKV {
				call.kvs = append(call.kvs, kv)
			}
			continue
		}

		if call.message != nil || isTargetSegment(code, start, seg.end) {
			continue
		}
		if end, ok := stringEnd[start]; ok {
			call.message = &stringLit{
				lit:   span{start, end},
				inner: span{start + 1, end - 1},
			}
		}
	}
}

// isTargetSegment reports whether the segment is a `target: "..."` argument.
func isTargetSegment(code string, start, end int) bool {
	const target = "target"
	if !strings.HasPrefix(code[start:end], target) {
		return false
	}
	j := start + len(target)
	if j < end && isIdentChar(code[j]) {
		return false
	}
	j = skipTrivia(code, j)
	return j < end && code[j] == ':' && !hasAt(code, j+1, ':')
}

// parseKVArg reads a `key = value` argument. The value span is trimmed of
// surrounding whitespace and may be empty.
func parseKVArg(code string, start, end int) (kvArg, bool) {
	if !isIdentStart(code[start]) {
		return kvArg{}, false
	}
	keyEnd := scanIdent(code, start)
	j := skipTrivia(code, keyEnd)
	if j >= end || code[j] != '=' {
		return kvArg{}, false
	}
	if j+1 < end && (code[j+1] == '=' || code[j+1] == '>') {
		return kvArg{}, false
	}
	valStart := j + 1
	if valStart < end {
		valStart = skipTrivia(code, valStart)
	}
	valEnd := end
	for valEnd > valStart && isSpaceByte(code[valEnd-1]) {
		valEnd--
	}
	return kvArg{key: span{start, keyEnd}, value: span{valStart, valEnd}}, true
}

func hasAt(code string, i int, c byte) bool {
	return i < len(code) && code[i] == c
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func scanIdent(code string, i int) int {
	for i < len(code) && isIdentChar(code[i]) {
		i++
	}
	return i
}

func skipLineComment(code string, i int) int {
	for i < len(code) && code[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(code string, i int) int {
	i += 2
	for i+1 < len(code) {
		if code[i] == '*' && code[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(code)
}

// skipTrivia skips whitespace and comments.
func skipTrivia(code string, i int) int {
	for i < len(code) {
		c := code[i]
		switch {
		case isSpaceByte(c):
			i++
		case c == '/' && hasAt(code, i+1, '/'):
			i = skipLineComment(code, i)
		case c == '/' && hasAt(code, i+1, '*'):
			i = skipBlockComment(code, i)
		default:
			return i
		}
	}
	return i
}

// lineIndex maps byte offsets to 1-based line and column numbers. Columns
// count characters from the line start, not bytes.
type lineIndex struct {
	code   string
	starts []int
}

func newLineIndex(code string) *lineIndex {
	starts := make([]int, 1, 64)
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{code: code, starts: starts}
}

func (ix *lineIndex) position(offset int) CodePosition {
	line := sort.SearchInts(ix.starts, offset+1) - 1
	return CodePosition{
		Offset: offset,
		Line:   line + 1,
		Column: utf8.RuneCountInString(ix.code[ix.starts[line]:offset]) + 1,
	}
}
