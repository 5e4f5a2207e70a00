// Package protocol defines the framed JSON message set exchanged with
// clients and the world model produced by the game engine.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ServerState tracks where the server is in its round lifecycle.
//
//	registration --> initializing --> running
//	  ^                                  |
//	  \----------<-----------<-----------/
//
// All states can go to fatalError, which is absorbing.
type ServerState int

const (
	StateRegistration ServerState = iota
	StateInitializing
	StateRunning
	StateFatalError
)

var stateNames = map[ServerState]string{
	StateRegistration: "registration",
	StateInitializing: "initializing",
	StateRunning:      "running",
	StateFatalError:   "fatalError",
}

// CanChangeRegistration reports whether register/unregister requests are
// allowed in this state.
func (s ServerState) CanChangeRegistration() bool {
	return s == StateRegistration
}

// CanSendAction reports whether player actions are allowed in this state.
func (s ServerState) CanSendAction() bool {
	return s == StateRunning
}

// String returns the wire name of the state.
func (s ServerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "fatalError"
}

// MarshalJSON encodes the state as its wire name.
func (s ServerState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state from its wire name.
func (s *ServerState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for state, stateName := range stateNames {
		if stateName == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown server state %q", name)
}
