package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/arnatoatadaink/macro-player/internal/engine"
	"github.com/arnatoatadaink/macro-player/internal/lexer"
	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/parser"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

// blockDelta is the nesting change a leading keyword contributes. The
// repl buffers input until the total returns to zero, so multi-line
// blocks can be typed interactively.
var blockDelta = map[string]int{
	"LOOP":     +1,
	"WHILE":    +1,
	"REPEAT":   +1,
	"IF":       +1,
	"TRY":      +1,
	"ENDLOOP":  -1,
	"ENDWHILE": -1,
	"UNTIL":    -1,
	"ENDIF":    -1,
	"ENDTRY":   -1,
}

func runRepl(configPath string) error {
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "macro> ",
		HistoryFile:     "/tmp/macro_repl_history",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	// One store for the whole session so variables survive between
	// entered snippets.
	store := vars.NewStore()
	exec := engine.NewDispatcher(engine.Timing{
		PlaybackSpeed: settings.PlaybackSpeed,
		MouseWaitMS:   settings.MouseWaitMS,
		KeyWaitMS:     settings.KeyWaitMS,
	}, engine.Backends{}, nil, consoleLog)
	runner := engine.New(exec, nil, engine.Config{
		MacrosDir:     settings.MacrosDir,
		TemplatesDir:  settings.TemplatesDir,
		Sugar:         settings.Sugar(),
		MaxIterations: settings.MaxIterations,
		MaxCallDepth:  settings.MaxCallDepth,
	}, nil, store, engine.Hooks{Log: consoleLog})

	fmt.Println("macro repl, 'vars' lists variables, 'exit' quits")

	var buf []string
	depth := 0
	for {
		if depth > 0 {
			rl.SetPrompt("  ... ")
		} else {
			rl.SetPrompt("macro> ")
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf = buf[:0]
			depth = 0
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if depth == 0 {
			switch strings.ToLower(trimmed) {
			case "exit", "quit":
				return nil
			case "vars":
				printVars(store)
				continue
			case "":
				continue
			}
		}

		buf = append(buf, line)
		depth += lineDelta(trimmed)
		if depth > 0 {
			continue
		}
		depth = 0

		runSnippet(runner, strings.Join(buf, "\n"), settings.Sugar())
		buf = buf[:0]
	}
}

func lineDelta(line string) int {
	fields := strings.Fields(lexer.StripComment(line))
	if len(fields) == 0 {
		return 0
	}
	return blockDelta[strings.ToUpper(fields[0])]
}

func runSnippet(runner *engine.Runner, text string, sugar map[string]string) {
	lines := lexer.ParseLines(text, sugar, engine.Known)
	nodes, err := parser.Build(lines)
	if err != nil {
		consoleLog(logging.Error, err.Error())
		return
	}
	if err := runner.Run(nodes); err != nil {
		consoleLog(logging.Error, err.Error())
	}
}

func printVars(store *vars.Store) {
	snapshot := store.Snapshot()
	if len(snapshot) == 0 {
		fmt.Println("(no variables)")
		return
	}
	for name, value := range snapshot {
		fmt.Printf("  %s = %s (%s)\n", name, value, value.Kind)
	}
}
