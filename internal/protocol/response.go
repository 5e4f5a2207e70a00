package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PlayerInfo is the public registry entry for one registered player.
type PlayerInfo struct {
	Name string `json:"name"`
}

// Registry is the public view of the registered player set.
type Registry map[string]PlayerInfo

// WaitingOnPlayers is broadcast while the lobby is below the minimum.
type WaitingOnPlayers struct {
	Type              string   `json:"type"`
	Players           Registry `json:"players"`
	MinPlayersNeeded  int      `json:"minPlayersNeeded"`
	MaxPlayersAllowed int      `json:"maxPlayersAllowed"`
}

// GameStartingSoon is broadcast while the lobby countdown is running.
type GameStartingSoon struct {
	Type              string   `json:"type"`
	Players           Registry `json:"players"`
	MinPlayersNeeded  int      `json:"minPlayersNeeded"`
	MaxPlayersAllowed int      `json:"maxPlayersAllowed"`
	SecondsLeft       int      `json:"secondsLeft"`
}

// GameStarting is broadcast once when the countdown expires and the turn
// order freezes.
type GameStarting struct {
	Type        string      `json:"type"`
	Players     Registry    `json:"players"`
	PlayerOrder []uuid.UUID `json:"playerOrder"`
}

// Init is broadcast after the engine produced the opening world.
type Init struct {
	Type           string    `json:"type"`
	GameState      GameState `json:"gameState"`
	TicksLeft      int       `json:"ticksLeft"`
	SecondsPerTick int       `json:"secondsPerTick"`
}

// NextState is broadcast after every applied tick.
type NextState struct {
	Type           string                  `json:"type"`
	GameState      GameState               `json:"gameState"`
	ActionsTaken   map[string]PlayerAction `json:"actionsTaken"`
	TicksLeft      int                     `json:"ticksLeft"`
	SecondsPerTick int                     `json:"secondsPerTick"`
}

// PlayerKilled is broadcast for each death the engine reports.
type PlayerKilled struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// GameEnded is broadcast once when a round finishes, instead of the tick's
// NextState.
type GameEnded struct {
	Type         string                  `json:"type"`
	Winners      []uuid.UUID             `json:"winners"`
	GameState    GameState               `json:"gameState"`
	ActionsTaken map[string]PlayerAction `json:"actionsTaken"`
}

// ServerStateResponse answers a getServerState query.
type ServerStateResponse struct {
	Type  string      `json:"type"`
	State ServerState `json:"state"`
}

// RegisteredPlayersResponse answers a getRegisteredPlayers query. The turn
// order is present only once it has been frozen.
type RegisteredPlayersResponse struct {
	Type        string      `json:"type"`
	Players     Registry    `json:"players"`
	PlayerOrder []uuid.UUID `json:"playerOrder,omitempty"`
}

// Response constructors. Each fixes the wire discriminator so call sites
// cannot mislabel a frame.

func NewWaitingOnPlayers(players Registry, min, max int) WaitingOnPlayers {
	return WaitingOnPlayers{Type: "waitingOnPlayers", Players: players, MinPlayersNeeded: min, MaxPlayersAllowed: max}
}

func NewGameStartingSoon(players Registry, min, max, secondsLeft int) GameStartingSoon {
	return GameStartingSoon{
		Type:              "gameStartingSoon",
		Players:           players,
		MinPlayersNeeded:  min,
		MaxPlayersAllowed: max,
		SecondsLeft:       secondsLeft,
	}
}

func NewGameStarting(players Registry, order []uuid.UUID) GameStarting {
	return GameStarting{Type: "gameStarting", Players: players, PlayerOrder: order}
}

func NewInit(state GameState, ticksLeft, secondsPerTick int) Init {
	return Init{Type: "init", GameState: state, TicksLeft: ticksLeft, SecondsPerTick: secondsPerTick}
}

func NewNextState(state GameState, actions map[string]PlayerAction, ticksLeft, secondsPerTick int) NextState {
	return NextState{
		Type:           "nextState",
		GameState:      state,
		ActionsTaken:   actions,
		TicksLeft:      ticksLeft,
		SecondsPerTick: secondsPerTick,
	}
}

func NewPlayerKilled(id uuid.UUID) PlayerKilled {
	return PlayerKilled{Type: "playerKilled", ID: id}
}

func NewGameEnded(winners []uuid.UUID, state GameState, actions map[string]PlayerAction) GameEnded {
	return GameEnded{Type: "gameEnded", Winners: winners, GameState: state, ActionsTaken: actions}
}

func NewServerStateResponse(state ServerState) ServerStateResponse {
	return ServerStateResponse{Type: "serverState", State: state}
}

func NewRegisteredPlayersResponse(players Registry, order []uuid.UUID) RegisteredPlayersResponse {
	return RegisteredPlayersResponse{Type: "registeredPlayers", Players: players, PlayerOrder: order}
}

// Marshal serializes a response value into a text frame.
func Marshal(response any) ([]byte, error) {
	data, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return data, nil
}
