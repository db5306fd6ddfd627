// Package engine executes the statement tree: the Runner walks it
// recursively, and the Dispatcher carries out the leaf commands. Control
// transfer (BREAK / CONTINUE / RETURN / EXIT) travels as an explicit
// signal returned up the walk, kept apart from the error channel used for
// genuine failures.
package engine

import "errors"

// Executor carries out one leaf command. The Dispatcher is the default
// implementation; tests and embedders may substitute their own.
type Executor interface {
	// Execute dispatches one command by name with variable references in
	// args already resolved. It fails with ErrUnknownCommand for
	// unrecognized names and ErrInvalidArgs for malformed arguments.
	Execute(name string, args []string) error
	// MousePos reports the pointer's current coordinates (0, 0 when no
	// pointer backend exists).
	MousePos() (x, y int)
}

var (
	// ErrUnknownCommand marks a command name the executor does not
	// recognize. The runner logs it as a warning and skips the node.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgs marks malformed command arguments; also a warning.
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrInterrupted is returned by Run when the run was cancelled by
	// EXIT or an external stop request. It is not a failure.
	ErrInterrupted = errors.New("run interrupted")
)
