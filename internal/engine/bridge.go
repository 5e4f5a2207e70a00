package engine

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/google/uuid"

	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// pushIDList pushes an array of canonical id strings.
func pushIDList(l *lua.State, ids []uuid.UUID) {
	l.CreateTable(len(ids), 0)
	for i, id := range ids {
		l.PushString(id.String())
		l.RawSetInt(-2, i+1)
	}
}

// pushActions pushes the per-tick action map keyed by id string, each entry
// in the tagged wire layout the rule set expects.
func pushActions(l *lua.State, actions map[string]protocol.PlayerAction) {
	l.CreateTable(0, len(actions))
	for id, action := range actions {
		l.CreateTable(0, 3)
		l.PushString(string(action.Type))
		l.SetField(-2, "type")
		if action.Direction != "" {
			l.PushString(string(action.Direction))
			l.SetField(-2, "direction")
		}
		if action.Tag != "" {
			l.PushString(action.Tag)
			l.SetField(-2, "tag")
		}
		l.SetField(-2, id)
	}
}

// decodeGameState reads the world snapshot table the rule set returned.
func decodeGameState(l *lua.State, index int) (protocol.GameState, error) {
	if l.TypeOf(index) != lua.TypeTable {
		return protocol.GameState{}, fmt.Errorf("rule set returned %s, expected world table", lua.TypeNameOf(l, index))
	}
	index = l.AbsIndex(index)

	playfield, err := decodePlayfield(l, index)
	if err != nil {
		return protocol.GameState{}, err
	}
	players, err := decodePlayers(l, index)
	if err != nil {
		return protocol.GameState{}, err
	}
	weapons, err := decodeWeapons(l, index)
	if err != nil {
		return protocol.GameState{}, err
	}

	return protocol.GameState{
		Playfield: playfield,
		Players:   players,
		Weapons:   weapons,
		Items:     []json.RawMessage{},
	}, nil
}

func decodePlayfield(l *lua.State, worldIndex int) ([][]int, error) {
	l.Field(worldIndex, "playfield")
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("world is missing the playfield")
	}

	rows := l.RawLength(-1)
	playfield := make([][]int, 0, rows)
	for r := 1; r <= rows; r++ {
		l.RawGetInt(-1, r)
		if l.TypeOf(-1) != lua.TypeTable {
			l.Pop(1)
			return nil, fmt.Errorf("playfield row %d is not a table", r)
		}
		cols := l.RawLength(-1)
		row := make([]int, 0, cols)
		for c := 1; c <= cols; c++ {
			l.RawGetInt(-1, c)
			tile, ok := l.ToInteger(-1)
			l.Pop(1)
			if !ok {
				l.Pop(1)
				return nil, fmt.Errorf("playfield tile (%d,%d) is not a number", r, c)
			}
			row = append(row, tile)
		}
		l.Pop(1)
		playfield = append(playfield, row)
	}
	return playfield, nil
}

func decodePlayers(l *lua.State, worldIndex int) (map[string]protocol.WorldPlayer, error) {
	l.Field(worldIndex, "players")
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("world is missing the players map")
	}

	players := make(map[string]protocol.WorldPlayer)
	tableIndex := l.AbsIndex(-1)
	l.PushNil()
	for l.Next(tableIndex) {
		if l.TypeOf(-2) != lua.TypeString {
			l.Pop(2)
			return nil, fmt.Errorf("player key is not an id string")
		}
		id, _ := l.ToString(-2)
		if _, err := uuid.Parse(id); err != nil {
			l.Pop(2)
			return nil, fmt.Errorf("player key %q is not a valid id", id)
		}

		player, err := decodePlayer(l, -1)
		if err != nil {
			l.Pop(2)
			return nil, fmt.Errorf("player %s: %w", id, err)
		}
		players[id] = player
		l.Pop(1)
	}
	return players, nil
}

func decodePlayer(l *lua.State, index int) (protocol.WorldPlayer, error) {
	if l.TypeOf(index) != lua.TypeTable {
		return protocol.WorldPlayer{}, fmt.Errorf("entry is not a table")
	}
	index = l.AbsIndex(index)

	row, err := intField(l, index, "row")
	if err != nil {
		return protocol.WorldPlayer{}, err
	}
	col, err := intField(l, index, "col")
	if err != nil {
		return protocol.WorldPlayer{}, err
	}
	health, err := intField(l, index, "health")
	if err != nil {
		return protocol.WorldPlayer{}, err
	}
	player := protocol.WorldPlayer{Row: row, Col: col, Health: health}

	l.Field(index, "weapon")
	if l.TypeOf(-1) == lua.TypeTable {
		weapon, err := decodeWeapon(l, -1)
		if err != nil {
			l.Pop(1)
			return protocol.WorldPlayer{}, err
		}
		player.Weapon = &weapon
	}
	l.Pop(1)

	return player, nil
}

func decodeWeapons(l *lua.State, worldIndex int) ([]protocol.GroundWeapon, error) {
	l.Field(worldIndex, "weapons")
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("world is missing the weapons list")
	}

	count := l.RawLength(-1)
	weapons := make([]protocol.GroundWeapon, 0, count)
	for i := 1; i <= count; i++ {
		l.RawGetInt(-1, i)
		weapon, err := decodeWeapon(l, -1)
		if err != nil {
			l.Pop(1)
			return nil, fmt.Errorf("weapon %d: %w", i, err)
		}
		row, err := intField(l, l.AbsIndex(-1), "row")
		if err != nil {
			l.Pop(1)
			return nil, fmt.Errorf("weapon %d: %w", i, err)
		}
		col, err := intField(l, l.AbsIndex(-1), "col")
		if err != nil {
			l.Pop(1)
			return nil, fmt.Errorf("weapon %d: %w", i, err)
		}
		l.Pop(1)
		weapons = append(weapons, protocol.GroundWeapon{Weapon: weapon, Row: row, Col: col})
	}
	return weapons, nil
}

func decodeWeapon(l *lua.State, index int) (protocol.Weapon, error) {
	if l.TypeOf(index) != lua.TypeTable {
		return protocol.Weapon{}, fmt.Errorf("weapon is not a table")
	}
	index = l.AbsIndex(index)

	l.Field(index, "type")
	kind, ok := l.ToString(-1)
	l.Pop(1)
	if !ok {
		return protocol.Weapon{}, fmt.Errorf("weapon is missing its type")
	}

	ammo, err := intField(l, index, "ammo")
	if err != nil {
		return protocol.Weapon{}, err
	}
	damage, err := intField(l, index, "damage")
	if err != nil {
		return protocol.Weapon{}, err
	}
	return protocol.Weapon{Type: kind, Ammo: ammo, Damage: damage}, nil
}

func intField(l *lua.State, index int, name string) (int, error) {
	l.Field(index, name)
	defer l.Pop(1)
	value, ok := l.ToInteger(-1)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", name)
	}
	return value, nil
}
