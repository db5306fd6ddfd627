// Package ast defines the statement tree for the macro language. The node
// set is closed: the runner exhaustively switches over it, and anything not
// listed here is a parse-time error.
//
// Leaves are Command, Call and Assign; block constructs are If, Loop,
// While, Repeat and TryCatch. Every block owns its body slices exclusively,
// so the tree is a strict tree with no sharing or cycles.
package ast

// Node is the closed statement-node union.
type Node interface {
	node()
}

// Command is one flat executable command: Tokens[0] is the (case-preserved)
// command name, the rest are positional arguments. Line is the 1-based
// source line for diagnostics.
type Command struct {
	Tokens []string
	Line   int
}

// Call delegates execution to another script file.
type Call struct {
	Filename string
	Line     int
}

// Assign is "$name = rhs...". Name keeps the variable prefix; RHS is every
// token after the '=' sign, unevaluated until run time.
type Assign struct {
	Name string
	RHS  []string
	Line int
}

// Branch is one condition/body pair of an If chain.
type Branch struct {
	Cond []string
	Body []Node
}

// If is an IF / ELSEIF... / ELSE / ENDIF chain. Branches are evaluated in
// order and the first true condition wins; Else may be empty.
type If struct {
	Branches []Branch
	Else     []Node
}

// Loop runs its body a fixed number of times. CountExpr is kept as raw text
// and evaluated once at loop entry, so variables resolve at run time.
type Loop struct {
	CountExpr string
	Body      []Node
}

// While is the pre-test loop (WHILE cond / ENDWHILE).
type While struct {
	Cond []string
	Body []Node
}

// Repeat is the post-test loop (REPEAT / UNTIL cond); a true condition ends
// the loop after the body has run at least once.
type Repeat struct {
	Body []Node
	Cond []string
}

// TryCatch runs Try; a failure inside it runs Catch instead.
type TryCatch struct {
	Try   []Node
	Catch []Node
}

func (*Command) node()  {}
func (*Call) node()     {}
func (*Assign) node()   {}
func (*If) node()       {}
func (*Loop) node()     {}
func (*While) node()    {}
func (*Repeat) node()   {}
func (*TryCatch) node() {}

// CountLeaves recursively counts the executable leaves (Command, Assign,
// Call) in a node list, used for progress estimation.
func CountLeaves(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		switch n := n.(type) {
		case *Command, *Assign, *Call:
			total++
		case *If:
			for _, br := range n.Branches {
				total += CountLeaves(br.Body)
			}
			total += CountLeaves(n.Else)
		case *Loop:
			total += CountLeaves(n.Body)
		case *While:
			total += CountLeaves(n.Body)
		case *Repeat:
			total += CountLeaves(n.Body)
		case *TryCatch:
			total += CountLeaves(n.Try)
			total += CountLeaves(n.Catch)
		}
	}
	return total
}
