// Package vars holds the dynamically typed value model and the variable
// store shared by one playback run. Variables are global to the run:
// a CALL'd sub-script reads and mutates the caller's store, and the store
// is discarded when the run finishes.
package vars

// Store maps variable names (including the leading prefix character,
// e.g. "$count") to values. All mutation happens on the single playback
// goroutine; observers only ever see copies from Snapshot.
type Store struct {
	vals map[string]Value
}

func NewStore() *Store {
	return &Store{vals: make(map[string]Value)}
}

// Get returns the stored value for name, or def when unset.
func (s *Store) Get(name string, def Value) Value {
	if v, ok := s.vals[name]; ok {
		return v
	}
	return def
}

func (s *Store) Set(name string, v Value) {
	s.vals[name] = v
}

func (s *Store) Len() int { return len(s.vals) }

// Snapshot returns a copy safe for concurrent inspection while the store
// continues to mutate on the run goroutine.
func (s *Store) Snapshot() map[string]Value {
	out := make(map[string]Value, len(s.vals))
	for k, v := range s.vals {
		out[k] = v
	}
	return out
}
