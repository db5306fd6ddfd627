package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnatoatadaink/macro-player/internal/ast"
	"github.com/arnatoatadaink/macro-player/internal/lexer"
)

func build(t *testing.T, text string) []ast.Node {
	t.Helper()
	nodes, err := Build(lexer.ParseLines(text, nil, nil))
	require.NoError(t, err)
	return nodes
}

func diffTree(t *testing.T, want, got []ast.Node) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFlat(t *testing.T) {
	got := build(t, "MOUSE_POS 10 20\n$x = 5\nCALL \"sub.mcr\"\n")
	want := []ast.Node{
		&ast.Command{Tokens: []string{"MOUSE_POS", "10", "20"}, Line: 1},
		&ast.Assign{Name: "$x", RHS: []string{"5"}, Line: 2},
		&ast.Call{Filename: "sub.mcr", Line: 3},
	}
	diffTree(t, want, got)
}

func TestBuildLoop(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ast.Node
	}{
		{
			name: "explicit count",
			text: "LOOP 3\nWAIT 1\nENDLOOP",
			want: []ast.Node{&ast.Loop{
				CountExpr: "3",
				Body:      []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
			}},
		},
		{
			name: "count defaults to one",
			text: "LOOP\nWAIT 1\nENDLOOP",
			want: []ast.Node{&ast.Loop{
				CountExpr: "1",
				Body:      []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
			}},
		},
		{
			name: "variable count",
			text: "LOOP $n\nENDLOOP",
			want: []ast.Node{&ast.Loop{CountExpr: "$n"}},
		},
		{
			name: "missing ENDLOOP runs to end of input",
			text: "LOOP 2\nWAIT 1",
			want: []ast.Node{&ast.Loop{
				CountExpr: "2",
				Body:      []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
			}},
		},
		{
			name: "nested loops",
			text: "LOOP 2\nLOOP 3\nWAIT 1\nENDLOOP\nENDLOOP",
			want: []ast.Node{&ast.Loop{
				CountExpr: "2",
				Body: []ast.Node{&ast.Loop{
					CountExpr: "3",
					Body:      []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 3}},
				}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diffTree(t, tt.want, build(t, tt.text))
		})
	}
}

func TestBuildWhile(t *testing.T) {
	got := build(t, "WHILE $i < 3\nWAIT 1\nENDWHILE")
	want := []ast.Node{&ast.While{
		Cond: []string{"$i", "<", "3"},
		Body: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
	}}
	diffTree(t, want, got)
}

func TestBuildRepeat(t *testing.T) {
	got := build(t, "REPEAT\nWAIT 1\nUNTIL $done")
	want := []ast.Node{&ast.Repeat{
		Body: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
		Cond: []string{"$done"},
	}}
	diffTree(t, want, got)
}

func TestBuildIf(t *testing.T) {
	text := `IF $x == 1
WAIT 1
ELSEIF $x == 2
WAIT 2
ELSE
WAIT 3
ENDIF`
	got := build(t, text)
	want := []ast.Node{&ast.If{
		Branches: []ast.Branch{
			{
				Cond: []string{"$x", "==", "1"},
				Body: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
			},
			{
				Cond: []string{"$x", "==", "2"},
				Body: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "2"}, Line: 4}},
			},
		},
		Else: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "3"}, Line: 6}},
	}}
	diffTree(t, want, got)
}

func TestBuildTryCatch(t *testing.T) {
	got := build(t, "TRY\nWAIT 1\nCATCH\nWAIT 2\nENDTRY")
	want := []ast.Node{&ast.TryCatch{
		Try:   []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
		Catch: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "2"}, Line: 4}},
	}}
	diffTree(t, want, got)
}

func TestBuildTryWithoutCatch(t *testing.T) {
	got := build(t, "TRY\nWAIT 1\nENDTRY")
	want := []ast.Node{&ast.TryCatch{
		Try: []ast.Node{&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 2}},
	}}
	diffTree(t, want, got)
}

func TestBuildCallStripsQuotes(t *testing.T) {
	got := build(t, "CALL sub.mcr")
	diffTree(t, []ast.Node{&ast.Call{Filename: "sub.mcr", Line: 1}}, got)

	got = build(t, `CALL "other file.mcr"`)
	diffTree(t, []ast.Node{&ast.Call{Filename: "other file.mcr", Line: 1}}, got)

	got = build(t, "CALL")
	diffTree(t, []ast.Node{&ast.Call{Filename: "", Line: 1}}, got)
}

func TestBuildAssign(t *testing.T) {
	got := build(t, "$total = $a + $b * 2")
	want := []ast.Node{&ast.Assign{
		Name: "$total",
		RHS:  []string{"$a", "+", "$b", "*", "2"},
		Line: 1,
	}}
	diffTree(t, want, got)
}

// A line starting with a variable but missing the '=' sign is an ordinary
// command, not an assignment.
func TestVariableLineWithoutEqualsIsCommand(t *testing.T) {
	got := build(t, "$x something")
	want := []ast.Node{&ast.Command{Tokens: []string{"$x", "something"}, Line: 1}}
	diffTree(t, want, got)
}

func TestStrayTerminators(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
	}{
		{name: "orphan ENDLOOP", text: "WAIT 1\nENDLOOP", wantLine: 2},
		{name: "orphan ENDIF", text: "ENDIF", wantLine: 1},
		{name: "orphan ELSE", text: "WAIT 1\nELSE\nWAIT 2", wantLine: 2},
		{name: "orphan UNTIL", text: "UNTIL $x", wantLine: 1},
		{name: "extra ENDLOOP after closed loop", text: "LOOP 2\nWAIT 1\nENDLOOP\nENDLOOP", wantLine: 4},
		{name: "ENDWHILE closing a LOOP leaves ENDLOOP stray", text: "LOOP 2\nENDWHILE\nENDLOOP", wantLine: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(lexer.ParseLines(tt.text, nil, nil))
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			assert.Equal(t, tt.wantLine, perr.Line)
		})
	}
}

func TestBuildTokensNumbersLines(t *testing.T) {
	nodes, err := BuildTokens([][]string{
		{"WAIT", "1"},
		{"WAIT", "2"},
	})
	require.NoError(t, err)
	want := []ast.Node{
		&ast.Command{Tokens: []string{"WAIT", "1"}, Line: 1},
		&ast.Command{Tokens: []string{"WAIT", "2"}, Line: 2},
	}
	diffTree(t, want, nodes)
}

func TestBuildEmpty(t *testing.T) {
	nodes, err := Build(nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
