package eval

import "errors"

// ErrUnavailable is reported by an oracle whose backing capability does not
// exist on this host (no screen capture, no window system, ...). Callers
// degrade to false plus a warning; it never aborts a run.
var ErrUnavailable = errors.New("capability unavailable")

// Region is a screen rectangle for constrained image searches.
type Region struct {
	X, Y, W, H int
}

// Oracles is the set of host capabilities the condition evaluator and the
// builtin functions may query. Any method may return ErrUnavailable. A nil
// Oracles means every capability is absent.
type Oracles interface {
	// SearchImage looks for the template image (an already-resolved file
	// path) on screen and returns the best match confidence in [0, 1].
	// A nil region searches the primary monitor.
	SearchImage(path string, region *Region) (float64, error)
	// SamplePixel returns the screen pixel color at (x, y).
	SamplePixel(x, y int) (r, g, b int, err error)
	// WindowExists reports whether a window with the exact title exists.
	WindowExists(title string) (bool, error)
	// ReadClipboard returns the current clipboard text.
	ReadClipboard() (string, error)
}

// Env carries what condition and function evaluation need besides the
// variable store: the template asset directory and the host oracles.
type Env struct {
	TemplatesDir string
	Oracles      Oracles
}
