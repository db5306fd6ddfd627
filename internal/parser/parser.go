// Package parser builds the statement tree from tokenized lines. It is a
// single-pass recursive descent over a cursor into the token-line list,
// dispatching on the upper-cased first token of each line.
//
// The builder is deliberately permissive about truncated scripts: a missing
// closing keyword lets the open block run to end of input. A *stray*
// terminator (ENDLOOP with no open LOOP, and so on) is a hard ParseError.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/arnatoatadaink/macro-player/internal/ast"
	"github.com/arnatoatadaink/macro-player/internal/lexer"
)

// ParseError reports a structural syntax error with its 1-based source line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// blockTerminators are the keywords that end a block; parseBlock stops when
// it sees one, and dispatch treats an unexpected one as a stray terminator.
var blockTerminators = map[string]bool{
	"ENDLOOP":  true,
	"ENDWHILE": true,
	"UNTIL":    true,
	"ELSEIF":   true,
	"ELSE":     true,
	"ENDIF":    true,
	"CATCH":    true,
	"ENDTRY":   true,
}

type builder struct {
	lines  []lexer.Line
	pos    int
	logger *slog.Logger
}

// Build converts token lines into the statement tree. It fails with a
// *ParseError on mismatched block keywords; the cursor must consume every
// line, so anything left over (typically an orphaned terminator) is also
// an error naming that line.
func Build(lines []lexer.Line) ([]ast.Node, error) {
	logLevel := slog.LevelInfo
	if os.Getenv("MACRO_DEBUG_PARSER") != "" {
		logLevel = slog.LevelDebug
	}
	b := &builder{
		lines: lines,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		})),
	}
	nodes, err := b.parseBlock(nil)
	if err != nil {
		return nil, err
	}
	if !b.atEnd() {
		return nil, &ParseError{
			Line: b.lineNum(),
			Msg:  fmt.Sprintf("unexpected %q", b.peek()),
		}
	}
	return nodes, nil
}

// BuildTokens is Build for callers that carry bare token lists; lines are
// numbered 1..n in order.
func BuildTokens(tokenLines [][]string) ([]ast.Node, error) {
	lines := make([]lexer.Line, 0, len(tokenLines))
	for i, toks := range tokenLines {
		lines = append(lines, lexer.Line{Tokens: toks, Num: i + 1})
	}
	return Build(lines)
}

func (b *builder) atEnd() bool {
	return b.pos >= len(b.lines)
}

// peek returns the upper-cased first token of the current line, or "".
func (b *builder) peek() string {
	if b.atEnd() {
		return ""
	}
	return strings.ToUpper(b.lines[b.pos].Tokens[0])
}

func (b *builder) lineNum() int {
	if b.atEnd() {
		if len(b.lines) == 0 {
			return 1
		}
		return b.lines[len(b.lines)-1].Num
	}
	return b.lines[b.pos].Num
}

// parseBlock parses nodes until the next keyword is in stop or input ends.
func (b *builder) parseBlock(stop map[string]bool) ([]ast.Node, error) {
	var nodes []ast.Node
	for !b.atEnd() && !stop[b.peek()] {
		node, err := b.dispatch()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (b *builder) dispatch() (ast.Node, error) {
	cmd := b.peek()
	b.logger.Debug("dispatch", "cmd", cmd, "line", b.lineNum())
	switch cmd {
	case "LOOP":
		return b.parseLoop()
	case "WHILE":
		return b.parseWhile()
	case "REPEAT":
		return b.parseRepeat()
	case "IF":
		return b.parseIf()
	case "TRY":
		return b.parseTry()
	case "CALL":
		return b.parseCall(), nil
	}
	if blockTerminators[cmd] {
		return nil, &ParseError{
			Line: b.lineNum(),
			Msg:  fmt.Sprintf("unexpected block terminator %q", cmd),
		}
	}
	tokens := b.lines[b.pos].Tokens
	if lexer.IsVariable(tokens[0]) && len(tokens) >= 2 && tokens[1] == "=" {
		return b.parseAssign(), nil
	}
	node := &ast.Command{Tokens: tokens, Line: b.lineNum()}
	b.pos++
	return node, nil
}

func (b *builder) parseAssign() *ast.Assign {
	tokens := b.lines[b.pos].Tokens
	node := &ast.Assign{
		Name: tokens[0],
		RHS:  tokens[2:],
		Line: b.lineNum(),
	}
	b.pos++
	return node
}

func (b *builder) parseLoop() (ast.Node, error) {
	tokens := b.lines[b.pos].Tokens
	count := "1"
	if len(tokens) > 1 {
		count = tokens[1]
	}
	b.pos++ // LOOP
	body, err := b.parseBlock(map[string]bool{"ENDLOOP": true})
	if err != nil {
		return nil, err
	}
	if b.peek() == "ENDLOOP" {
		b.pos++
	}
	return &ast.Loop{CountExpr: count, Body: body}, nil
}

func (b *builder) parseWhile() (ast.Node, error) {
	cond := b.lines[b.pos].Tokens[1:]
	b.pos++ // WHILE
	body, err := b.parseBlock(map[string]bool{"ENDWHILE": true})
	if err != nil {
		return nil, err
	}
	if b.peek() == "ENDWHILE" {
		b.pos++
	}
	return &ast.While{Cond: cond, Body: body}, nil
}

func (b *builder) parseRepeat() (ast.Node, error) {
	b.pos++ // REPEAT
	body, err := b.parseBlock(map[string]bool{"UNTIL": true})
	if err != nil {
		return nil, err
	}
	var cond []string
	if b.peek() == "UNTIL" {
		cond = b.lines[b.pos].Tokens[1:]
		b.pos++
	}
	return &ast.Repeat{Body: body, Cond: cond}, nil
}

func (b *builder) parseIf() (ast.Node, error) {
	node := &ast.If{}
	stop := map[string]bool{"ELSEIF": true, "ELSE": true, "ENDIF": true}

	// Initial IF branch.
	cond := b.lines[b.pos].Tokens[1:]
	b.pos++
	body, err := b.parseBlock(stop)
	if err != nil {
		return nil, err
	}
	node.Branches = append(node.Branches, ast.Branch{Cond: cond, Body: body})

	for b.peek() == "ELSEIF" {
		cond := b.lines[b.pos].Tokens[1:]
		b.pos++
		body, err := b.parseBlock(stop)
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, ast.Branch{Cond: cond, Body: body})
	}

	if b.peek() == "ELSE" {
		b.pos++
		node.Else, err = b.parseBlock(map[string]bool{"ENDIF": true})
		if err != nil {
			return nil, err
		}
	}

	if b.peek() == "ENDIF" {
		b.pos++
	}
	return node, nil
}

func (b *builder) parseTry() (ast.Node, error) {
	b.pos++ // TRY
	tryBody, err := b.parseBlock(map[string]bool{"CATCH": true, "ENDTRY": true})
	if err != nil {
		return nil, err
	}
	var catchBody []ast.Node
	if b.peek() == "CATCH" {
		b.pos++
		catchBody, err = b.parseBlock(map[string]bool{"ENDTRY": true})
		if err != nil {
			return nil, err
		}
	}
	if b.peek() == "ENDTRY" {
		b.pos++
	}
	return &ast.TryCatch{Try: tryBody, Catch: catchBody}, nil
}

// parseCall extracts the target filename, stripping surrounding quotes left
// by a fallback-tokenized line. An empty filename is kept as ""; the runner
// validates it, not the builder.
func (b *builder) parseCall() *ast.Call {
	tokens := b.lines[b.pos].Tokens
	filename := ""
	if len(tokens) > 1 {
		filename = strings.Trim(tokens[1], `"'`)
	}
	node := &ast.Call{Filename: filename, Line: b.lineNum()}
	b.pos++
	return node
}
