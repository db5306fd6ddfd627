package eval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

// logRecorder captures log lines for assertions.
type logRecorder struct {
	lines []string
}

func (r *logRecorder) fn(level logging.Level, msg string) {
	r.lines = append(r.lines, string(level)+": "+msg)
}

func (r *logRecorder) count(level logging.Level) int {
	n := 0
	for _, l := range r.lines {
		if strings.HasPrefix(l, string(level)+":") {
			n++
		}
	}
	return n
}

func TestEvalSingleToken(t *testing.T) {
	store := vars.NewStore()
	store.Set("$x", vars.IntVal(7))

	tests := []struct {
		name   string
		tokens []string
		want   vars.Value
	}{
		{"empty", nil, vars.IntVal(0)},
		{"int literal", []string{"5"}, vars.IntVal(5)},
		{"float literal", []string{"2.5"}, vars.FloatVal(2.5)},
		{"bool literal", []string{"true"}, vars.BoolVal(true)},
		{"string literal", []string{"hello"}, vars.StrVal("hello")},
		{"set variable", []string{"$x"}, vars.IntVal(7)},
		{"unset variable defaults to zero", []string{"$missing"}, vars.IntVal(0)},
		// A single token is never an operator expression.
		{"glued arithmetic stays a string", []string{"1+2"}, vars.StrVal("1+2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eval(tt.tokens, store, nil))
		})
	}
}

func TestEvalArithmetic(t *testing.T) {
	store := vars.NewStore()
	store.Set("$x", vars.IntVal(10))
	store.Set("$f", vars.FloatVal(1.5))

	tests := []struct {
		name   string
		tokens []string
		want   vars.Value
	}{
		{"addition", []string{"1", "+", "2"}, vars.IntVal(3)},
		{"precedence mul before add", []string{"2", "+", "3", "*", "4"}, vars.IntVal(14)},
		{"parentheses", []string{"(", "2", "+", "3", ")", "*", "4"}, vars.IntVal(20)},
		{"division is always float", []string{"7", "/", "2"}, vars.FloatVal(3.5)},
		{"even division is float too", []string{"8", "/", "2"}, vars.FloatVal(4)},
		{"mixed int float", []string{"$f", "+", "1"}, vars.FloatVal(2.5)},
		{"variable arithmetic", []string{"$x", "-", "4"}, vars.IntVal(6)},
		{"variable addition", []string{"$x", "+", "$x"}, vars.IntVal(20)},
		{"unary minus", []string{"-", "5", "+", "3"}, vars.IntVal(-2)},
		{"bool counts as one", []string{"TRUE", "+", "1"}, vars.IntVal(2)},
		{"string concatenation", []string{"foo", "+", "bar"}, vars.StrVal("foobar")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eval(tt.tokens, store, nil))
		})
	}
}

func TestEvalComparisonAndLogic(t *testing.T) {
	store := vars.NewStore()
	store.Set("$x", vars.IntVal(1))
	store.Set("$y", vars.IntVal(2))
	store.Set("$name", vars.StrVal("bob"))

	tests := []struct {
		name   string
		tokens []string
		want   bool
	}{
		{"less than", []string{"1", "<", "2"}, true},
		{"greater equal", []string{"2", ">=", "2"}, true},
		{"int float compare", []string{"1", "==", "1.0"}, true},
		{"and over comparisons", []string{"$x", ">", "0", "AND", "$y", ">", "0"}, true},
		{"and short result", []string{"$x", ">", "0", "AND", "$y", "<", "0"}, false},
		{"or", []string{"0", "OR", "1"}, true},
		{"not binds over comparison", []string{"NOT", "$x", ">", "5"}, true},
		{"bare word string compare", []string{"$name", "==", "bob"}, true},
		{"quoted string compare", []string{"$name", "==", `"alice"`}, false},
		{"string ordering", []string{"abc", "<", "abd"}, true},
		// Equality across types is false, never an error.
		{"mixed type equality", []string{"1", "==", "abc"}, false},
		{"mixed type inequality", []string{"1", "!=", "abc"}, true},
		{"case insensitive keywords", []string{"true", "and", "not", "false"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logRecorder{}
			got := Eval(tt.tokens, store, rec.fn)
			assert.Equal(t, vars.BoolVal(tt.want), got)
			assert.Zero(t, rec.count(logging.Warning), "no warnings expected: %v", rec.lines)
		})
	}
}

func TestEvalErrorsYieldZeroAndOneWarning(t *testing.T) {
	store := vars.NewStore()

	tests := []struct {
		name   string
		tokens []string
	}{
		{"mixed type ordering", []string{"1", "<", "abc"}},
		{"mixed type arithmetic", []string{"1", "-", "abc"}},
		{"division by zero", []string{"1", "/", "0"}},
		{"dangling operator", []string{"1", "+"}},
		{"unbalanced paren", []string{"(", "1", "+", "2"}},
		{"negating a string", []string{"-", "abc", "+", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logRecorder{}
			got := Eval(tt.tokens, store, rec.fn)
			assert.Equal(t, vars.IntVal(0), got)
			require.Equal(t, 1, rec.count(logging.Warning), "lines: %v", rec.lines)
		})
	}
}

func TestEvalQuotedLiterals(t *testing.T) {
	store := vars.NewStore()
	got := Eval([]string{`"a b"`, "+", `'c'`}, store, nil)
	assert.Equal(t, vars.StrVal("a bc"), got)
}
