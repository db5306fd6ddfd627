package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/tevino/abool/v2"

	"github.com/arnatoatadaink/macro-player/internal/logging"
)

// sleepChunk bounds cancellation latency during timed waits: WAIT sleeps
// in chunks of this size and polls the stop flag between chunks.
const sleepChunk = 50 * time.Millisecond

// minPlaybackSpeed is the floor applied to the speed multiplier.
const minPlaybackSpeed = 0.01

// Timing holds the dispatcher's wait tunables.
type Timing struct {
	// PlaybackSpeed scales every wait; 2.0 halves them.
	PlaybackSpeed float64
	// MouseWaitMS is the press→release pause inside click commands.
	MouseWaitMS int
	// KeyWaitMS is the press→release pause inside key commands.
	KeyWaitMS int
}

// Dispatcher is the default Executor: a dispatch-by-name table over the
// executable commands, with optional device backends behind it. One
// Dispatcher serves one playback run.
type Dispatcher struct {
	timing   Timing
	backends Backends
	stop     *abool.AtomicBool
	log      logging.Func
}

func NewDispatcher(timing Timing, backends Backends, stop *abool.AtomicBool, log logging.Func) *Dispatcher {
	if stop == nil {
		stop = abool.New()
	}
	return &Dispatcher{
		timing:   timing,
		backends: backends,
		stop:     stop,
		log:      logging.Safe(log),
	}
}

type handler func(d *Dispatcher, args []string) error

// dispatchTable maps upper-case command names to their handlers. Block and
// flow keywords are deliberately absent: the parser and runner own those,
// and their absence keeps the sugar expander from aliasing onto them.
var dispatchTable = map[string]handler{
	"MOUSE_POS":          (*Dispatcher).cmdMousePos,
	"MOUSE_LEFT_CLICK":   clickCmd(ButtonLeft),
	"MOUSE_RIGHT_CLICK":  clickCmd(ButtonRight),
	"MOUSE_MIDDLE_CLICK": clickCmd(ButtonMiddle),
	"MOUSE_LEFT_DOWN":    pressCmd(ButtonLeft),
	"MOUSE_RIGHT_DOWN":   pressCmd(ButtonRight),
	"MOUSE_MIDDLE_DOWN":  pressCmd(ButtonMiddle),
	"MOUSE_LEFT_UP":      releaseCmd(ButtonLeft),
	"MOUSE_RIGHT_UP":     releaseCmd(ButtonRight),
	"MOUSE_MIDDLE_UP":    releaseCmd(ButtonMiddle),
	"WHEEL":              (*Dispatcher).cmdWheel,
	"KEY":                (*Dispatcher).cmdKey,
	"KEY_DOWN":           (*Dispatcher).cmdKeyDown,
	"KEY_UP":             (*Dispatcher).cmdKeyUp,
	"KEYS":               (*Dispatcher).cmdKeys,
	"KEYS_DOWN":          (*Dispatcher).cmdKeysDown,
	"KEYS_UP":            (*Dispatcher).cmdKeysUp,
	"TYPE":               (*Dispatcher).cmdType,
	"WAIT":               (*Dispatcher).cmdWait,
	"PRINT":              (*Dispatcher).cmdPrint,
	"CLIPBOARD_SET":      (*Dispatcher).cmdClipboardSet,
	"SCREENSHOT":         (*Dispatcher).cmdScreenshot,
	"WINDOW_FOCUS":       (*Dispatcher).cmdWindowFocus,
	"WINDOW_MOVE":        (*Dispatcher).cmdWindowMove,
	"WINDOW_RESIZE":      (*Dispatcher).cmdWindowResize,
	"WINDOW_CLOSE":       (*Dispatcher).cmdWindowClose,
}

var commandNames = func() []string {
	names := make([]string, 0, len(dispatchTable))
	for name := range dispatchTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// Known reports whether name (any case) is an executable command. The
// sugar expander uses this to gate alias rewriting.
func Known(name string) bool {
	_, ok := dispatchTable[strings.ToUpper(name)]
	return ok
}

// Execute dispatches one command. Unrecognized names fail with
// ErrUnknownCommand, enriched with a fuzzy-matched suggestion when one is
// close enough.
func (d *Dispatcher) Execute(name string, args []string) error {
	h, ok := dispatchTable[strings.ToUpper(name)]
	if !ok {
		if hint := suggest(name); hint != "" {
			return fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownCommand, name, hint)
		}
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return h(d, args)
}

// MousePos reports the pointer position, or (0, 0) without a pointer
// backend.
func (d *Dispatcher) MousePos() (int, int) {
	if d.backends.Pointer == nil {
		return 0, 0
	}
	return d.backends.Pointer.Position()
}

func suggest(name string) string {
	ranks := fuzzy.RankFindNormalizedFold(name, commandNames)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// sleep pauses for ms milliseconds scaled by the playback speed, polling
// the stop flag every chunk so cancellation latency stays bounded.
func (d *Dispatcher) sleep(ms float64) {
	speed := d.timing.PlaybackSpeed
	if speed < minPlaybackSpeed {
		speed = minPlaybackSpeed
	}
	target := time.Duration(ms / speed * float64(time.Millisecond))
	for elapsed := time.Duration(0); elapsed < target; {
		if d.stop.IsSet() {
			return
		}
		step := target - elapsed
		if step > sleepChunk {
			step = sleepChunk
		}
		time.Sleep(step)
		elapsed += step
	}
}

func (d *Dispatcher) mouseWait() { d.sleep(float64(d.timing.MouseWaitMS)) }
func (d *Dispatcher) keyWait()   { d.sleep(float64(d.timing.KeyWaitMS)) }

// --- pointer commands ---

func (d *Dispatcher) cmdMousePos(args []string) error {
	if d.backends.Pointer == nil {
		d.log(logging.Warning, "MOUSE_POS: no pointer backend")
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("MOUSE_POS: %w: x y required", ErrInvalidArgs)
	}
	x, y, err := intPair(args[0], args[1])
	if err != nil {
		return err
	}
	d.backends.Pointer.Move(x, y)
	return nil
}

// optMove moves the pointer when x y arguments are present, otherwise the
// pointer stays where it is.
func (d *Dispatcher) optMove(args []string) error {
	if len(args) < 2 {
		return nil
	}
	x, y, err := intPair(args[0], args[1])
	if err != nil {
		return err
	}
	d.backends.Pointer.Move(x, y)
	return nil
}

func clickCmd(b Button) handler {
	return func(d *Dispatcher, args []string) error {
		if d.backends.Pointer == nil {
			d.log(logging.Warning, "mouse click: no pointer backend")
			return nil
		}
		if err := d.optMove(args); err != nil {
			return err
		}
		d.backends.Pointer.Press(b)
		d.mouseWait()
		d.backends.Pointer.Release(b)
		return nil
	}
}

func pressCmd(b Button) handler {
	return func(d *Dispatcher, args []string) error {
		if d.backends.Pointer == nil {
			d.log(logging.Warning, "mouse down: no pointer backend")
			return nil
		}
		if err := d.optMove(args); err != nil {
			return err
		}
		d.backends.Pointer.Press(b)
		return nil
	}
}

func releaseCmd(b Button) handler {
	return func(d *Dispatcher, args []string) error {
		if d.backends.Pointer == nil {
			d.log(logging.Warning, "mouse up: no pointer backend")
			return nil
		}
		if err := d.optMove(args); err != nil {
			return err
		}
		d.backends.Pointer.Release(b)
		return nil
	}
}

func (d *Dispatcher) cmdWheel(args []string) error {
	if d.backends.Pointer == nil {
		d.log(logging.Warning, "WHEEL: no pointer backend")
		return nil
	}
	switch {
	case len(args) >= 3:
		x, y, err := intPair(args[0], args[1])
		if err != nil {
			return err
		}
		clicks, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("WHEEL: %w: %q", ErrInvalidArgs, args[2])
		}
		d.backends.Pointer.Move(x, y)
		d.backends.Pointer.Scroll(clicks)
	case len(args) == 1:
		clicks, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("WHEEL: %w: %q", ErrInvalidArgs, args[0])
		}
		d.backends.Pointer.Scroll(clicks)
	}
	return nil
}

// --- keyboard commands ---

func (d *Dispatcher) cmdKey(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "KEY: no keyboard backend")
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	if err := d.backends.Keyboard.Press(args[0]); err != nil {
		return err
	}
	d.keyWait()
	return d.backends.Keyboard.Release(args[0])
}

func (d *Dispatcher) cmdKeyDown(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "KEY_DOWN: no keyboard backend")
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	return d.backends.Keyboard.Press(args[0])
}

func (d *Dispatcher) cmdKeyUp(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "KEY_UP: no keyboard backend")
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	return d.backends.Keyboard.Release(args[0])
}

// splitCombo turns "ctrl+shift+a" into its key names.
func splitCombo(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, "+") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// cmdKeys presses a combo in order, waits, then releases in reverse.
func (d *Dispatcher) cmdKeys(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "KEYS: no keyboard backend")
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	keys := splitCombo(args[0])
	for _, k := range keys {
		if err := d.backends.Keyboard.Press(k); err != nil {
			return err
		}
	}
	d.keyWait()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := d.backends.Keyboard.Release(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdKeysDown(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "KEYS_DOWN: no keyboard backend")
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	for _, k := range splitCombo(args[0]) {
		if err := d.backends.Keyboard.Press(k); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdKeysUp(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "KEYS_UP: no keyboard backend")
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	keys := splitCombo(args[0])
	for i := len(keys) - 1; i >= 0; i-- {
		if err := d.backends.Keyboard.Release(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdType(args []string) error {
	if d.backends.Keyboard == nil {
		d.log(logging.Warning, "TYPE: no keyboard backend")
		return nil
	}
	return d.backends.Keyboard.Type(strings.Join(args, " "))
}

// --- timing and output ---

func (d *Dispatcher) cmdWait(args []string) error {
	ms := 0.0
	if len(args) > 0 {
		var err error
		ms, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("WAIT: %w: %q", ErrInvalidArgs, args[0])
		}
	}
	d.sleep(ms)
	return nil
}

func (d *Dispatcher) cmdPrint(args []string) error {
	d.log(logging.Info, strings.Join(args, " "))
	return nil
}

// --- clipboard, screenshot, windows ---

func (d *Dispatcher) cmdClipboardSet(args []string) error {
	if d.backends.Clipboard == nil {
		d.log(logging.Warning, "CLIPBOARD_SET: no clipboard backend")
		return nil
	}
	if err := d.backends.Clipboard.Set(strings.Join(args, " ")); err != nil {
		d.log(logging.Warning, fmt.Sprintf("CLIPBOARD_SET: %v", err))
	}
	return nil
}

func (d *Dispatcher) cmdScreenshot(args []string) error {
	if d.backends.Screen == nil {
		d.log(logging.Warning, "SCREENSHOT: no screen backend")
		return nil
	}
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		path = filepath.Join("screenshots", time.Now().Format("20060102_150405")+".png")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			d.log(logging.Warning, fmt.Sprintf("SCREENSHOT: %v", err))
			return nil
		}
	}
	if err := d.backends.Screen.Capture(path); err != nil {
		d.log(logging.Warning, fmt.Sprintf("SCREENSHOT: %v", err))
		return nil
	}
	d.log(logging.Info, "SCREENSHOT saved: "+path)
	return nil
}

func (d *Dispatcher) cmdWindowFocus(args []string) error {
	if d.backends.Window == nil {
		d.log(logging.Warning, "WINDOW_FOCUS: no window backend")
		return nil
	}
	if err := d.backends.Window.Focus(strings.Join(args, " ")); err != nil {
		d.log(logging.Warning, fmt.Sprintf("WINDOW_FOCUS: %v", err))
	}
	return nil
}

func (d *Dispatcher) cmdWindowMove(args []string) error {
	if d.backends.Window == nil {
		d.log(logging.Warning, "WINDOW_MOVE: no window backend")
		return nil
	}
	if len(args) < 3 {
		d.log(logging.Warning, "WINDOW_MOVE: usage: WINDOW_MOVE title x y")
		return nil
	}
	x, y, err := intPair(args[1], args[2])
	if err != nil {
		return err
	}
	if err := d.backends.Window.Move(args[0], x, y); err != nil {
		d.log(logging.Warning, fmt.Sprintf("WINDOW_MOVE: %v", err))
	}
	return nil
}

func (d *Dispatcher) cmdWindowResize(args []string) error {
	if d.backends.Window == nil {
		d.log(logging.Warning, "WINDOW_RESIZE: no window backend")
		return nil
	}
	if len(args) < 3 {
		d.log(logging.Warning, "WINDOW_RESIZE: usage: WINDOW_RESIZE title w h")
		return nil
	}
	w, h, err := intPair(args[1], args[2])
	if err != nil {
		return err
	}
	if err := d.backends.Window.Resize(args[0], w, h); err != nil {
		d.log(logging.Warning, fmt.Sprintf("WINDOW_RESIZE: %v", err))
	}
	return nil
}

func (d *Dispatcher) cmdWindowClose(args []string) error {
	if d.backends.Window == nil {
		d.log(logging.Warning, "WINDOW_CLOSE: no window backend")
		return nil
	}
	if err := d.backends.Window.Close(strings.Join(args, " ")); err != nil {
		d.log(logging.Warning, fmt.Sprintf("WINDOW_CLOSE: %v", err))
	}
	return nil
}

func intPair(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidArgs, a)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidArgs, b)
	}
	return x, y, nil
}
