// Package engine hosts the Lua rule set behind a narrow interface: load the
// script once, then drive it through init and update entry points that
// produce world snapshots.
package engine

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/Shopify/go-lua"
	"github.com/google/uuid"

	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// maxTries bounds how many times a failing Lua call is attempted in total
// before the fault is treated as a crash.
const maxTries = 5

// Rule set entry points that must exist as global functions.
const (
	luaInit   = "init"
	luaUpdate = "update"
)

// Host owns the Lua state for one rule set. It is not safe for concurrent
// use; the mediator is its only caller.
type Host struct {
	state  *lua.State
	logger *log.Logger

	turnOrder []uuid.UUID
	alive     map[uuid.UUID]bool
	kills     []uuid.UUID

	ticksPerGame int
	ticksLeft    int
}

// Load reads and executes the rule set file, verifying the init and update
// entry points exist. The script's directory is prepended to the Lua search
// path so rule sets can require local helpers.
func Load(path string, logger *log.Logger) (*Host, error) {
	if logger == nil {
		logger = log.Default()
	}

	l := lua.NewState()
	lua.OpenLibraries(l)

	if dir := filepath.Dir(path); dir != "" {
		pattern := filepath.Join(dir, "?.lua")
		if err := lua.DoString(l, fmt.Sprintf(`package.path = %q .. ";" .. package.path`, pattern)); err != nil {
			logger.Printf("failed to update the Lua path: %v", err)
		}
	}

	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, fmt.Errorf("load rule set %q: %w", path, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run rule set %q: %w", path, err)
	}

	host := &Host{state: l, logger: logger}
	for _, name := range []string{luaInit, luaUpdate} {
		if !host.hasGlobalFunction(name) {
			return nil, fmt.Errorf("rule set %q is missing required function %q", path, name)
		}
	}
	return host, nil
}

func (h *Host) hasGlobalFunction(name string) bool {
	h.state.Global(name)
	defer h.state.Pop(1)
	return h.state.TypeOf(-1) == lua.TypeFunction
}

// DoString executes a Lua chunk in the rule set's environment. Tests use it
// to pin fixtures; the server never calls it.
func (h *Host) DoString(code string) error {
	return lua.DoString(h.state, code)
}

// TurnOrder returns the player order fixed by the last Init call.
func (h *Host) TurnOrder() []uuid.UUID {
	return h.turnOrder
}

// AliveIDs returns the ids the rule set has not reported killed, in turn
// order.
func (h *Host) AliveIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(h.alive))
	for _, id := range h.turnOrder {
		if h.alive[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Init starts a fresh round: it fixes the turn order, resets the alive set,
// and asks the rule set for the opening world.
func (h *Host) Init(players []uuid.UUID, ticksPerGame int) (protocol.GameState, error) {
	h.turnOrder = append([]uuid.UUID(nil), players...)
	h.alive = make(map[uuid.UUID]bool, len(players))
	for _, id := range players {
		h.alive[id] = true
	}
	h.ticksPerGame = ticksPerGame
	h.ticksLeft = ticksPerGame
	h.kills = nil

	var state protocol.GameState
	err := h.trapErrors(luaInit, func() error {
		var callErr error
		state, callErr = h.callInit()
		return callErr
	})
	return state, err
}

// Update applies one tick of collected actions and returns the next world
// snapshot plus the kills reported during the tick, in report order.
func (h *Host) Update(actions map[uuid.UUID]protocol.PlayerAction, ticksLeft int) (protocol.GameState, []uuid.UUID, error) {
	h.ticksLeft = ticksLeft
	h.kills = nil

	// Drop actions from players the rule set already reported dead.
	filtered := make(map[string]protocol.PlayerAction, len(actions))
	for id, action := range actions {
		if h.alive[id] {
			filtered[id.String()] = action
		}
	}

	var state protocol.GameState
	err := h.trapErrors(luaUpdate, func() error {
		var callErr error
		state, callErr = h.callUpdate(filtered)
		return callErr
	})
	if err != nil {
		return protocol.GameState{}, nil, err
	}
	return state, h.kills, nil
}

// trapErrors retries a failing Lua call a bounded number of times before
// giving up. Persistent failures bubble up and take the server down.
func (h *Host) trapErrors(method string, call func() error) error {
	var err error
	for try := 1; try <= maxTries; try++ {
		if err = call(); err == nil {
			return nil
		}
		h.logger.Printf("game engine error in %s: %v (attempt %d / %d)", method, err, try, maxTries)
	}
	return fmt.Errorf("run method %s: %w", method, err)
}

func (h *Host) callInit() (protocol.GameState, error) {
	l := h.state
	l.Global(luaInit)
	h.pushContext()
	h.pushPlayerOrder()
	if err := l.ProtectedCall(2, 1, 0); err != nil {
		return protocol.GameState{}, err
	}
	defer l.Pop(1)
	return decodeGameState(l, -1)
}

func (h *Host) callUpdate(actions map[string]protocol.PlayerAction) (protocol.GameState, error) {
	l := h.state
	l.Global(luaUpdate)
	h.pushContext()
	pushActions(l, actions)
	if err := l.ProtectedCall(2, 1, 0); err != nil {
		return protocol.GameState{}, err
	}
	defer l.Pop(1)
	return decodeGameState(l, -1)
}

// pushContext builds the ctx table handed to the rule set: the host
// callback surface of the engine contract.
func (h *Host) pushContext() {
	l := h.state
	l.NewTable()

	l.PushGoFunction(func(l *lua.State) int {
		raw := lua.CheckString(l, 1)
		id, err := uuid.Parse(raw)
		if err != nil {
			lua.Errorf(l, "invalid player id %q", raw)
			return 0
		}
		if h.alive[id] {
			delete(h.alive, id)
			h.kills = append(h.kills, id)
		}
		return 0
	})
	l.SetField(-2, "notifyKilled")

	l.PushGoFunction(func(l *lua.State) int {
		pushIDList(l, h.turnOrder)
		return 1
	})
	l.SetField(-2, "getTurnOrder")

	l.PushGoFunction(func(l *lua.State) int {
		pushIDList(l, h.AliveIDs())
		return 1
	})
	l.SetField(-2, "getAliveIds")

	l.PushGoFunction(func(l *lua.State) int {
		l.PushInteger(h.ticksLeft)
		l.PushInteger(h.ticksPerGame)
		return 2
	})
	l.SetField(-2, "getTicksLeft")
}

func (h *Host) pushPlayerOrder() {
	pushIDList(h.state, h.turnOrder)
}
