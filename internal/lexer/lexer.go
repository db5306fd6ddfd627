// Package lexer turns macro source text into token lines. The language is
// line-oriented: each non-blank line becomes one command name plus its
// positional arguments, with shell-like double/single quoting and '#'
// line comments.
package lexer

import (
	"strings"
	"unicode"
)

const (
	// VariablePrefix marks variable names ($count, $x ...).
	VariablePrefix = "$"
	// commentChar starts a line comment outside quoted spans.
	commentChar = '#'
)

// Line is one tokenized source line. Num is the 1-based line number in the
// original text, kept for diagnostics; blank and comment-only lines are
// dropped during ParseLines, so Num values are not contiguous.
type Line struct {
	Tokens []string
	Num    int
}

// StripComment removes a trailing '#' comment. A '#' inside a double-quoted
// span is literal.
func StripComment(line string) string {
	inStr := false
	for i, ch := range line {
		switch {
		case ch == '"':
			inStr = !inStr
		case ch == rune(commentChar) && !inStr:
			return line[:i]
		}
	}
	return line
}

// Tokenize splits one source line into tokens. Quoted spans become a single
// token with the quotes stripped; blank and comment-only lines yield nil.
// A malformed line (unterminated quote) never fails: it falls back to plain
// whitespace splitting of the comment-stripped line.
func Tokenize(line string) []string {
	stripped := strings.TrimSpace(StripComment(line))
	if stripped == "" {
		return nil
	}
	tokens, err := splitQuoted(stripped)
	if err != nil {
		return strings.Fields(stripped)
	}
	return tokens
}

// splitQuoted implements the shell-like split: unquoted whitespace separates
// tokens, "..." and '...' spans join into the surrounding token.
func splitQuoted(s string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		inTok  bool
		quote  rune // 0 when outside a quoted span
	)
	for _, ch := range s {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			inTok = true
		case unicode.IsSpace(ch):
			if inTok {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(ch)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, errUnterminated
	}
	if inTok {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

type lexError string

func (e lexError) Error() string { return string(e) }

const errUnterminated = lexError("unterminated quote")

// ExpandSugar replaces an alias command with its canonical form. Both sides
// of the mapping must already be upper-case. The rewrite only happens when
// the canonical name is a recognized executable command, so aliases can
// never shadow block keywords or map to unknown names.
func ExpandSugar(tokens []string, sugar map[string]string, known func(string) bool) []string {
	if len(tokens) == 0 {
		return tokens
	}
	cmd := strings.ToUpper(tokens[0])
	canonical, ok := sugar[cmd]
	if !ok {
		canonical = cmd
	}
	if known == nil || !known(canonical) {
		return tokens
	}
	return append([]string{canonical}, tokens[1:]...)
}

// ParseLines tokenizes every line of text and applies sugar expansion.
// Blank and comment-only lines are omitted from the result.
func ParseLines(text string, sugar map[string]string, known func(string) bool) []Line {
	var out []Line
	for i, raw := range strings.Split(text, "\n") {
		tokens := ExpandSugar(Tokenize(raw), sugar, known)
		if len(tokens) > 0 {
			out = append(out, Line{Tokens: tokens, Num: i + 1})
		}
	}
	return out
}

// IsVariable reports whether tok names a variable ($ prefix plus a name).
func IsVariable(tok string) bool {
	return len(tok) > 1 && strings.HasPrefix(tok, VariablePrefix)
}
