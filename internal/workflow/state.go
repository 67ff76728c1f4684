package workflow

// State is the key-value context threaded through one iteration.
//
// A fresh State is created for every iteration and owned exclusively by it,
// so no synchronization is needed. Values set by one step (an auth token, an
// entity id) drive the guards and request templates of later steps; a value
// that was never set is the signal that skips dependent steps.
type State struct {
	values map[string]string
}

// NewState creates an empty iteration state.
func NewState() *State {
	return &State{values: make(map[string]string)}
}

// Set stores a value under key.
func (s *State) Set(key, value string) {
	s.values[key] = value
}

// Get returns the value for key and whether it was set.
func (s *State) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether every given key has been set.
func (s *State) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := s.values[k]; !ok {
			return false
		}
	}
	return true
}

// Len returns the number of stored values.
func (s *State) Len() int {
	return len(s.values)
}
