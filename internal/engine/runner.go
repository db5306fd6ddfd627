package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tevino/abool/v2"

	"github.com/arnatoatadaink/macro-player/internal/ast"
	"github.com/arnatoatadaink/macro-player/internal/eval"
	"github.com/arnatoatadaink/macro-player/internal/lexer"
	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/parser"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

// Default resource limits, overridable through Config.
const (
	DefaultMaxIterations = 100_000
	DefaultMaxCallDepth  = 16
)

// control-transfer signals, returned up the recursive walk instead of
// travelling on the error channel.
type signal int

const (
	sigNone signal = iota
	sigBreak
	sigContinue
	sigReturn
	sigExit
)

// CondFunc evaluates one condition token list.
type CondFunc func(tokens []string) bool

// Config fixes a run's environment: where CALL and IMAGE_MATCH resolve
// files, the alias table for sub-script parsing, and the resource limits.
type Config struct {
	MacrosDir     string
	TemplatesDir  string
	Sugar         map[string]string
	MaxIterations int
	MaxCallDepth  int
}

// Hooks are the observer callbacks a run reports through. All fields are
// optional. Cond overrides the default condition evaluator, mainly for
// tests.
type Hooks struct {
	Log    logging.Func
	OnNode func(line int)
	OnVars func(snapshot map[string]vars.Value)
	Cond   CondFunc
}

// Runner walks a statement tree and executes it. One Runner executes one
// script; CALL spawns a nested runner sharing the variable store and the
// stop flag but one level deeper.
type Runner struct {
	exec   Executor
	stop   *abool.AtomicBool
	cfg    Config
	env    *eval.Env
	store  *vars.Store
	cond   CondFunc
	log    logging.Func
	onNode func(int)
	onVars func(map[string]vars.Value)

	depth    int
	tryDepth int
}

// New builds a Runner. A nil store gets a fresh one; nil hooks are no-ops.
func New(exec Executor, stop *abool.AtomicBool, cfg Config, oracles eval.Oracles, store *vars.Store, hooks Hooks) *Runner {
	if stop == nil {
		stop = abool.New()
	}
	if store == nil {
		store = vars.NewStore()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	r := &Runner{
		exec:   exec,
		stop:   stop,
		cfg:    cfg,
		env:    &eval.Env{TemplatesDir: cfg.TemplatesDir, Oracles: oracles},
		store:  store,
		log:    logging.Safe(hooks.Log),
		onNode: hooks.OnNode,
		onVars: hooks.OnVars,
	}
	if r.onNode == nil {
		r.onNode = func(int) {}
	}
	if r.onVars == nil {
		r.onVars = func(map[string]vars.Value) {}
	}
	r.cond = hooks.Cond
	if r.cond == nil {
		r.cond = func(tokens []string) bool {
			return eval.EvalCondition(tokens, r.env, r.store, r.log)
		}
	}
	return r
}

// Vars exposes the run's variable store.
func (r *Runner) Vars() *vars.Store { return r.store }

// Run executes the node list. It returns ErrInterrupted when the run was
// cancelled (EXIT or external stop); a control-transfer keyword that
// escapes to top level unwinds the run and is reported as an error.
func (r *Runner) Run(nodes []ast.Node) error {
	sig, err := r.runNodes(nodes)
	if err != nil {
		return err
	}
	switch sig {
	case sigExit:
		return ErrInterrupted
	case sigBreak:
		return errors.New("BREAK outside of a loop")
	case sigContinue:
		return errors.New("CONTINUE outside of a loop")
	case sigReturn:
		return errors.New("RETURN outside of a CALL")
	}
	return nil
}

// runNodes executes nodes in source order, checking the stop flag before
// each one. The first non-normal signal or failure stops the sequence.
func (r *Runner) runNodes(nodes []ast.Node) (signal, error) {
	for _, n := range nodes {
		if r.stop.IsSet() {
			return sigExit, nil
		}
		sig, err := r.runNode(n)
		if sig != sigNone || err != nil {
			return sig, err
		}
	}
	return sigNone, nil
}

func (r *Runner) runNode(n ast.Node) (signal, error) {
	switch n := n.(type) {
	case *ast.Command:
		return r.runCommand(n)
	case *ast.Assign:
		return r.runAssign(n)
	case *ast.If:
		return r.runIf(n)
	case *ast.Loop:
		return r.runLoop(n)
	case *ast.While:
		return r.runWhile(n)
	case *ast.Repeat:
		return r.runRepeat(n)
	case *ast.TryCatch:
		return r.runTryCatch(n)
	case *ast.Call:
		return r.runCall(n)
	default:
		return sigNone, fmt.Errorf("unhandled node type %T", n)
	}
}

// --- leaf commands ---

func (r *Runner) runCommand(n *ast.Command) (signal, error) {
	cmd := strings.ToUpper(n.Tokens[0])
	args := n.Tokens[1:]

	// Control-transfer pseudo-commands never reach the executor.
	switch cmd {
	case "BREAK":
		return sigBreak, nil
	case "CONTINUE":
		return sigContinue, nil
	case "RETURN":
		return sigReturn, nil
	case "EXIT":
		return sigExit, nil
	case "MOUSE_GET_POS":
		r.runMouseGetPos(n, args)
		return sigNone, nil
	}

	err := r.exec.Execute(cmd, r.resolveArgs(args))
	if err == nil {
		r.onNode(n.Line)
		return sigNone, nil
	}
	if errors.Is(err, ErrUnknownCommand) || errors.Is(err, ErrInvalidArgs) {
		r.log(logging.Warning, fmt.Sprintf("line %d: %v", n.Line, err))
		return sigNone, nil
	}
	// A genuine executor failure is caught by an enclosing TRY; outside
	// any TRY it is logged here and the run continues.
	if r.tryDepth > 0 {
		return sigNone, fmt.Errorf("line %d: %s: %w", n.Line, cmd, err)
	}
	r.log(logging.Error, fmt.Sprintf("line %d: %s: %v", n.Line, cmd, err))
	return sigNone, nil
}

// runMouseGetPos stores the pointer coordinates into up to two variables.
// Arguments that do not name a variable are ignored.
func (r *Runner) runMouseGetPos(n *ast.Command, args []string) {
	x, y := r.exec.MousePos()
	if len(args) >= 1 && lexer.IsVariable(args[0]) {
		r.store.Set(args[0], vars.IntVal(int64(x)))
		r.log(logging.Info, fmt.Sprintf("%s = %d", args[0], x))
	}
	if len(args) >= 2 && lexer.IsVariable(args[1]) {
		r.store.Set(args[1], vars.IntVal(int64(y)))
		r.log(logging.Info, fmt.Sprintf("%s = %d", args[1], y))
	}
	r.onNode(n.Line)
	r.onVars(r.store.Snapshot())
}

func (r *Runner) runAssign(n *ast.Assign) (signal, error) {
	var value vars.Value
	switch {
	case len(n.RHS) == 0:
		value = vars.IntVal(0)
	case eval.IsFunction(n.RHS[0]):
		value = eval.CallFunction(n.RHS[0], n.RHS[1:], r.env, r.store, r.log)
	default:
		value = eval.Eval(n.RHS, r.store, r.log)
	}
	r.store.Set(n.Name, value)
	r.log(logging.Info, fmt.Sprintf("%s = %s", n.Name, value))
	r.onNode(n.Line)
	r.onVars(r.store.Snapshot())
	return sigNone, nil
}

// resolveArgs substitutes variable references with their stringified
// current values.
func (r *Runner) resolveArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if lexer.IsVariable(a) {
			out[i] = r.store.Get(a, vars.IntVal(0)).String()
		} else {
			out[i] = a
		}
	}
	return out
}

// --- block constructs ---

func (r *Runner) runIf(n *ast.If) (signal, error) {
	for _, br := range n.Branches {
		if r.cond(br.Cond) {
			return r.runNodes(br.Body)
		}
	}
	return r.runNodes(n.Else)
}

// runLoop evaluates the count once at loop entry; mutating a variable the
// count was computed from does not change the remaining iterations.
func (r *Runner) runLoop(n *ast.Loop) (signal, error) {
	count, ok := eval.Eval([]string{n.CountExpr}, r.store, r.log).AsInt()
	if !ok {
		r.log(logging.Warning, fmt.Sprintf("LOOP: invalid count %q, defaulting to 1", n.CountExpr))
		count = 1
	}
	for i := int64(0); i < count; i++ {
		if r.stop.IsSet() {
			return sigExit, nil
		}
		sig, err := r.runNodes(n.Body)
		if err != nil {
			return sigNone, err
		}
		switch sig {
		case sigBreak:
			return sigNone, nil
		case sigContinue:
			continue
		case sigReturn, sigExit:
			return sig, nil
		}
	}
	return sigNone, nil
}

func (r *Runner) runWhile(n *ast.While) (signal, error) {
	iterations := 0
	for r.cond(n.Cond) {
		if r.stop.IsSet() {
			return sigExit, nil
		}
		if iterations >= r.cfg.MaxIterations {
			r.log(logging.Warning, fmt.Sprintf("WHILE: iteration limit (%d) reached", r.cfg.MaxIterations))
			return sigNone, nil
		}
		sig, err := r.runNodes(n.Body)
		if err != nil {
			return sigNone, err
		}
		switch sig {
		case sigBreak:
			return sigNone, nil
		case sigReturn, sigExit:
			return sig, nil
		}
		iterations++
	}
	return sigNone, nil
}

// runRepeat runs the body at least once; a true condition ends the loop.
func (r *Runner) runRepeat(n *ast.Repeat) (signal, error) {
	iterations := 0
	for {
		if r.stop.IsSet() {
			return sigExit, nil
		}
		if iterations >= r.cfg.MaxIterations {
			r.log(logging.Warning, fmt.Sprintf("REPEAT: iteration limit (%d) reached", r.cfg.MaxIterations))
			return sigNone, nil
		}
		sig, err := r.runNodes(n.Body)
		if err != nil {
			return sigNone, err
		}
		switch sig {
		case sigBreak:
			return sigNone, nil
		case sigReturn, sigExit:
			return sig, nil
		}
		if r.cond(n.Cond) {
			return sigNone, nil
		}
		iterations++
	}
}

// runTryCatch catches genuine failures from the try body and runs the
// catch body instead. Control signals pass through untouched, and a
// failure inside the catch body is not re-caught here.
func (r *Runner) runTryCatch(n *ast.TryCatch) (signal, error) {
	r.tryDepth++
	sig, err := r.runNodes(n.Try)
	r.tryDepth--
	if err == nil {
		return sig, nil
	}
	r.log(logging.Warning, fmt.Sprintf("TRY block caught: %v", err))
	return r.runNodes(n.Catch)
}

// --- sub-script calls ---

func (r *Runner) runCall(n *ast.Call) (signal, error) {
	if r.depth >= r.cfg.MaxCallDepth {
		r.log(logging.Error, fmt.Sprintf("CALL: depth limit (%d) exceeded", r.cfg.MaxCallDepth))
		return sigNone, nil
	}
	if n.Filename == "" {
		r.log(logging.Warning, "CALL: missing filename")
		return sigNone, nil
	}

	path := filepath.Join(r.cfg.MacrosDir, n.Filename)
	text, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.log(logging.Warning, fmt.Sprintf("CALL: file not found: %q", n.Filename))
		} else {
			r.log(logging.Error, fmt.Sprintf("CALL: cannot read %q: %v", n.Filename, err))
		}
		return sigNone, nil
	}

	// The callee is tokenized and parsed independently, so its parse
	// errors stay local to this call.
	lines := lexer.ParseLines(string(text), r.cfg.Sugar, Known)
	nodes, err := parser.Build(lines)
	if err != nil {
		r.log(logging.Error, fmt.Sprintf("CALL %q: parse error: %v", n.Filename, err))
		return sigNone, nil
	}

	sub := *r
	sub.depth++

	r.log(logging.Info, "CALL -> "+n.Filename)
	sig, err := sub.runNodes(nodes)
	r.log(logging.Info, "CALL <- "+n.Filename)
	if err != nil {
		return sigNone, err
	}
	if sig == sigReturn {
		// RETURN ends the callee, not the caller.
		return sigNone, nil
	}
	return sig, nil
}
