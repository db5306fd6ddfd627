package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/arnatoatadaink/macro-player/internal/config"
	"github.com/arnatoatadaink/macro-player/internal/engine"
	"github.com/arnatoatadaink/macro-player/internal/lexer"
	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/parser"
	"github.com/arnatoatadaink/macro-player/internal/player"
)

func main() {
	var (
		configPath string
		noColor    bool
		watch      bool
	)

	rootCmd := &cobra.Command{
		Use:   "macro",
		Short: "Run macro scripts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !shouldUseColor(noColor) {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "settings.yaml", "Path to settings file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	runCmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Play a macro script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchScript(args[0], configPath)
			}
			return runScript(args[0], configPath)
		},
	}
	runCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run the script whenever the file changes")

	checkCmd := &cobra.Command{
		Use:   "check <script>",
		Short: "Parse a script without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkScript(args[0], configPath)
		},
	}

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive script shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(configPath)
		},
	}

	rootCmd.AddCommand(runCmd, checkCmd, replCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// shouldUseColor honors --no-color, the NO_COLOR convention, and whether
// stdout is a terminal.
func shouldUseColor(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

var levelPrinters = map[logging.Level]*color.Color{
	logging.Debug:   color.New(color.FgHiBlack),
	logging.Info:    color.New(color.FgCyan),
	logging.Success: color.New(color.FgGreen),
	logging.Warning: color.New(color.FgYellow),
	logging.Error:   color.New(color.FgRed),
}

// consoleLog writes timestamped, level-colored lines to stderr.
func consoleLog(level logging.Level, msg string) {
	c, ok := levelPrinters[level]
	if !ok {
		c = color.New()
	}
	stamp := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stderr, "[%s] %s %s\n", stamp, c.Sprintf("%-7s", string(level)), msg)
}

func loadSettings(path string) (*config.Settings, error) {
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func runScript(path, configPath string) error {
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	p := player.New(settings, engine.Backends{}, nil, player.Callbacks{
		Log: consoleLog,
	})
	if err := p.Play(string(text)); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	doneCh := make(chan struct{})
	go func() {
		p.Wait()
		close(doneCh)
	}()

	select {
	case <-sigCh:
		consoleLog(logging.Warning, "interrupt, stopping playback")
		if !p.Stop(5 * time.Second) {
			return fmt.Errorf("playback did not stop in time")
		}
	case <-doneCh:
	}
	return nil
}

// watchScript runs the script, then re-runs it on every write to the
// file until interrupted.
func watchScript(path, configPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := runScript(path, configPath); err != nil {
		consoleLog(logging.Error, err.Error())
	}
	consoleLog(logging.Info, "watching "+path)

	// Editors often emit bursts of events per save; debounce them.
	var pending *time.Timer
	runCh := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case runCh <- struct{}{}:
				default:
				}
			})
		case <-runCh:
			consoleLog(logging.Info, "change detected, re-running")
			if err := runScript(path, configPath); err != nil {
				consoleLog(logging.Error, err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			consoleLog(logging.Warning, "watch error: "+err.Error())
		case <-sigCh:
			return nil
		}
	}
}

func checkScript(path, configPath string) error {
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	lines := lexer.ParseLines(string(text), settings.Sugar(), engine.Known)
	nodes, err := parser.Build(lines)
	if err != nil {
		return err
	}
	fmt.Printf("%s: OK, %d statement(s)\n", path, len(nodes))
	return nil
}
