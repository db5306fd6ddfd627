package engine

// Backend interfaces for the device work the language drives. Every field
// of Backends is optional; a nil backend downgrades its commands to a
// logged warning and a no-op, so scripts stay runnable on hosts without
// that capability.

// Button identifies a pointer button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Pointer moves and clicks the pointing device.
type Pointer interface {
	Move(x, y int)
	Position() (x, y int)
	Press(b Button)
	Release(b Button)
	// Scroll scrolls vertically by the given number of wheel clicks
	// (negative scrolls down).
	Scroll(clicks int)
}

// Keyboard synthesizes key events. Key names are backend-defined strings
// ("a", "enter", "ctrl", ...).
type Keyboard interface {
	Press(key string) error
	Release(key string) error
	Type(text string) error
}

// Clipboard writes the system clipboard.
type Clipboard interface {
	Set(text string) error
}

// Screen captures the display to an image file.
type Screen interface {
	Capture(path string) error
}

// Window manipulates top-level windows by exact title.
type Window interface {
	Focus(title string) error
	Move(title string, x, y int) error
	Resize(title string, w, h int) error
	Close(title string) error
}

// Backends bundles the optional device capabilities handed to the
// Dispatcher. The zero value has none.
type Backends struct {
	Pointer   Pointer
	Keyboard  Keyboard
	Clipboard Clipboard
	Screen    Screen
	Window    Window
}
