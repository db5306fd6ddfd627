// Package player owns the playback lifecycle: it parses a script, runs it
// on a background goroutine, and reports progress through callbacks. One
// Player plays at most one script at a time.
package player

import (
	"errors"
	"sync"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/arnatoatadaink/macro-player/internal/ast"
	"github.com/arnatoatadaink/macro-player/internal/config"
	"github.com/arnatoatadaink/macro-player/internal/engine"
	"github.com/arnatoatadaink/macro-player/internal/eval"
	"github.com/arnatoatadaink/macro-player/internal/lexer"
	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/parser"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

var (
	// ErrBusy is returned by Play while a previous run is still going.
	ErrBusy = errors.New("playback already running")
	// ErrNoCommands is returned for scripts with nothing to execute.
	ErrNoCommands = errors.New("script contains no commands")
)

// Status values reported through Callbacks.Status.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
)

// Callbacks are the player's outward interface. All fields are optional
// and are invoked from the playback goroutine.
type Callbacks struct {
	Log      logging.Func
	Status   func(status string)
	Progress func(done, total int)
	Line     func(line int)
	Vars     func(snapshot map[string]vars.Value)
}

// Player runs scripts against an Executor built from the settings. The
// zero value is not usable; use New.
type Player struct {
	settings *config.Settings
	backends engine.Backends
	oracles  eval.Oracles
	cb       Callbacks
	log      logging.Func

	running *abool.AtomicBool
	stop    *abool.AtomicBool
	done    chan struct{}
	mu      sync.Mutex
}

func New(settings *config.Settings, backends engine.Backends, oracles eval.Oracles, cb Callbacks) *Player {
	if settings == nil {
		settings = config.Default()
	}
	return &Player{
		settings: settings,
		backends: backends,
		oracles:  oracles,
		cb:       cb,
		log:      logging.Safe(cb.Log),
		running:  abool.New(),
		stop:     abool.New(),
	}
}

// Running reports whether a playback is in progress.
func (p *Player) Running() bool { return p.running.IsSet() }

// Play parses text and starts playback in the background. Parse errors
// are returned synchronously and no playback starts. ErrBusy is returned
// while a previous run is still active.
func (p *Player) Play(text string) error {
	if !p.running.SetToIf(false, true) {
		return ErrBusy
	}

	lines := lexer.ParseLines(text, p.settings.Sugar(), engine.Known)
	nodes, err := parser.Build(lines)
	if err != nil {
		p.running.UnSet()
		return err
	}
	if len(nodes) == 0 {
		p.running.UnSet()
		return ErrNoCommands
	}

	p.mu.Lock()
	p.stop = abool.New()
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.play(nodes)
	return nil
}

func (p *Player) play(nodes []ast.Node) {
	defer func() {
		p.running.UnSet()
		close(p.done)
	}()

	p.status(StatusRunning)

	total := ast.CountLeaves(nodes)
	executed := 0
	onNode := func(line int) {
		executed++
		if p.cb.Progress != nil {
			p.cb.Progress(executed, total)
		}
		if p.cb.Line != nil {
			p.cb.Line(line)
		}
	}

	exec := engine.NewDispatcher(engine.Timing{
		PlaybackSpeed: p.settings.PlaybackSpeed,
		MouseWaitMS:   p.settings.MouseWaitMS,
		KeyWaitMS:     p.settings.KeyWaitMS,
	}, p.backends, p.stop, p.log)

	runner := engine.New(exec, p.stop, engine.Config{
		MacrosDir:     p.settings.MacrosDir,
		TemplatesDir:  p.settings.TemplatesDir,
		Sugar:         p.settings.Sugar(),
		MaxIterations: p.settings.MaxIterations,
		MaxCallDepth:  p.settings.MaxCallDepth,
	}, p.oracles, nil, engine.Hooks{
		Log:    p.log,
		OnNode: onNode,
		OnVars: p.cb.Vars,
	})

	switch err := runner.Run(nodes); {
	case err == nil:
		p.log(logging.Success, "playback finished")
		p.status(StatusDone)
	case errors.Is(err, engine.ErrInterrupted):
		p.log(logging.Info, "playback stopped")
		p.status(StatusStopped)
	default:
		p.log(logging.Error, "playback failed: "+err.Error())
		p.status(StatusFailed)
	}
}

// Stop requests cancellation and waits up to timeout for the playback
// goroutine to finish. It reports whether the run ended in time.
func (p *Player) Stop(timeout time.Duration) bool {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.mu.Unlock()

	if !p.running.IsSet() || done == nil {
		return true
	}
	stop.Set()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Wait blocks until the current playback ends. It returns immediately
// when nothing is running.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Player) status(s string) {
	if p.cb.Status != nil {
		p.cb.Status(s)
	}
}
