package fetch

// State is a task's position in its lifecycle.
type State int

const (
	StatePending State = iota
	StateDispatching
	StateAwaitingResponse
	StateRetrying
	StateSucceeded
	StateExhausted
	StateFailed
	StateCancelled
)

var stateNames = map[State]string{
	StatePending:          "pending",
	StateDispatching:      "dispatching",
	StateAwaitingResponse: "awaiting_response",
	StateRetrying:         "retrying_next_provider",
	StateSucceeded:        "succeeded",
	StateExhausted:        "exhausted_fallback",
	StateFailed:           "failed",
	StateCancelled:        "cancelled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}
