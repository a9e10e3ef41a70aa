package stream

// AuthStatus is the outcome of an authentication handshake.
type AuthStatus int

const (
	Unauthorized AuthStatus = iota
	Authorized
)

func (s AuthStatus) String() string {
	if s == Authorized {
		return "authorized"
	}
	return "unauthorized"
}

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Authenticating
	Authenticated
	Unauthenticated
	Closed
	Faulted
)

var stateNames = [...]string{
	Disconnected:    "disconnected",
	Connecting:      "connecting",
	Open:            "open",
	Authenticating:  "authenticating",
	Authenticated:   "authenticated",
	Unauthenticated: "unauthenticated",
	Closed:          "closed",
	Faulted:         "faulted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// StateNames returns the names of every state, in declaration order.
func StateNames() []string {
	return append([]string(nil), stateNames[:]...)
}

// Faulted and Closed are reachable from every state. Closed is left by a new
// Connect after Disconnect.
var transitions = map[State][]State{
	Disconnected:    {Connecting},
	Connecting:      {Open, Disconnected},
	Open:            {Authenticating, Authenticated, Unauthenticated, Disconnected},
	Authenticating:  {Authenticated, Unauthenticated, Disconnected},
	Authenticated:   {Authenticating, Disconnected},
	Unauthenticated: {Authenticating, Authenticated, Disconnected},
	Closed:          {Connecting},
	Faulted:         {Connecting, Disconnected},
}

// CanTransitionTo reports whether s may move to next.
func (s State) CanTransitionTo(next State) bool {
	if next == Faulted || next == Closed {
		return s != next
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
