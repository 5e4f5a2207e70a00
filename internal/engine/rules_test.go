package engine

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// Reference rule set scenarios, driven through the host against
// lua/game.lua.

const rulesFile = "../../lua/game.lua"

var (
	playerA = uuid.MustParse("4dbb6f84-2ad2-4f4c-a2b6-2b0232a898f4")
	playerB = uuid.MustParse("9d2c5b6a-9c3e-4f1b-8a5f-3f0de4b24f10")
)

func loadArena(t *testing.T, players ...uuid.UUID) *Host {
	t.Helper()
	host, err := Load(rulesFile, quietLogger())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := host.Init(players, 180); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	return host
}

// pinWorld overwrites the script's world with a fixture: an all-empty 10x10
// playfield plus the given players and weapons tables.
func pinWorld(t *testing.T, host *Host, players, weapons string) {
	t.Helper()
	code := fmt.Sprintf(`
local playfield = {}
for r = 1, 10 do
  playfield[r] = {}
  for c = 1, 10 do
    playfield[r][c] = 0
  end
end
World = { playfield = playfield, players = { %s }, weapons = { %s }, items = {} }
`, players, weapons)
	if err := host.DoString(code); err != nil {
		t.Fatalf("pin world: %v", err)
	}
}

// TestUnarmedAttackHitsAdjacent replays the adjacent melee scenario: an
// unarmed attack lands for one damage and the victim still takes its move.
func TestUnarmedAttackHitsAdjacent(t *testing.T) {
	host := loadArena(t, playerA, playerB)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 5, col = 5, health = 3 },
    ["%s"] = { row = 5, col = 6, health = 3 },
  `, playerA, playerB), "")

	world, kills, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionAttack, Direction: protocol.DirectionRight},
		playerB: {Type: protocol.ActionMove, Direction: protocol.DirectionUp},
	}, 179)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if len(kills) != 0 {
		t.Fatalf("expected no kills, got %v", kills)
	}

	b := world.Players[playerB.String()]
	if b.Health != 2 {
		t.Fatalf("expected victim health 2, got %d", b.Health)
	}
	if b.Row != 4 || b.Col != 6 {
		t.Fatalf("expected victim to move to (4,6), got (%d,%d)", b.Row, b.Col)
	}
}

// TestLaserAttackTracesRay replays the laser scenario: the ray crosses empty
// cells, the ammo is consumed, and the distant target takes weapon damage.
func TestLaserAttackTracesRay(t *testing.T) {
	host := loadArena(t, playerA, playerB)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 3, col = 3, health = 3, weapon = { type = "laserGun", ammo = 1, damage = 2 } },
    ["%s"] = { row = 3, col = 7, health = 3 },
  `, playerA, playerB), "")

	world, kills, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionAttack, Direction: protocol.DirectionRight},
	}, 179)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if len(kills) != 0 {
		t.Fatalf("expected no kills, got %v", kills)
	}

	if world.Players[playerB.String()].Health != 1 {
		t.Fatalf("expected target health 1, got %d", world.Players[playerB.String()].Health)
	}
	if world.Players[playerA.String()].Weapon != nil {
		t.Fatal("expected the spent laser gun to be discarded")
	}
	if len(world.Weapons) != 0 {
		t.Fatalf("expected no ground weapons, got %v", world.Weapons)
	}
}

// TestLaserAttackKills replays the lethal variant: the target at health 2 is
// removed and reported killed.
func TestLaserAttackKills(t *testing.T) {
	host := loadArena(t, playerA, playerB)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 3, col = 3, health = 3, weapon = { type = "laserGun", ammo = 1, damage = 2 } },
    ["%s"] = { row = 3, col = 7, health = 2 },
  `, playerA, playerB), "")

	world, kills, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionAttack, Direction: protocol.DirectionRight},
	}, 179)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if len(kills) != 1 || kills[0] != playerB {
		t.Fatalf("expected kill report for %s, got %v", playerB, kills)
	}
	if _, ok := world.Players[playerB.String()]; ok {
		t.Fatal("expected the killed target to leave the world")
	}
	if alive := host.AliveIDs(); len(alive) != 1 || alive[0] != playerA {
		t.Fatalf("expected only the attacker alive, got %v", alive)
	}
}

// TestMoveIsBlockedByWallsPlayersAndEdges ensures illegal moves are silently
// ignored.
func TestMoveIsBlockedByWallsPlayersAndEdges(t *testing.T) {
	host := loadArena(t, playerA, playerB)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 1, col = 1, health = 3 },
    ["%s"] = { row = 1, col = 2, health = 3 },
  `, playerA, playerB), "")
	// Put a wall below the first player.
	if err := host.DoString(`World.playfield[2][1] = 1`); err != nil {
		t.Fatalf("place wall: %v", err)
	}

	tests := []protocol.Direction{
		protocol.DirectionUp,    // off-grid
		protocol.DirectionLeft,  // off-grid
		protocol.DirectionDown,  // wall
		protocol.DirectionRight, // occupied
	}
	for _, direction := range tests {
		world, _, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
			playerA: {Type: protocol.ActionMove, Direction: direction},
		}, 179)
		if err != nil {
			t.Fatalf("Update(%s) returned error: %v", direction, err)
		}
		a := world.Players[playerA.String()]
		if a.Row != 1 || a.Col != 1 {
			t.Fatalf("move %s should be a no-op, player at (%d,%d)", direction, a.Row, a.Col)
		}
	}
}

// TestMovePickupAndSwap ensures stepping onto a weapon picks it up when
// unarmed and swaps when armed, with the dropped weapon recorded at the
// mover's new cell.
func TestMovePickupAndSwap(t *testing.T) {
	host := loadArena(t, playerA)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 5, col = 5, health = 3 },
  `, playerA), `{ type = "laserGun", ammo = 3, damage = 2, row = 5, col = 6 }`)

	// Unarmed: step onto the gun and pick it up.
	world, _, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionMove, Direction: protocol.DirectionRight},
	}, 179)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	a := world.Players[playerA.String()]
	if a.Row != 5 || a.Col != 6 {
		t.Fatalf("expected player at (5,6), got (%d,%d)", a.Row, a.Col)
	}
	if a.Weapon == nil || a.Weapon.Ammo != 3 {
		t.Fatalf("expected picked-up gun with ammo 3, got %+v", a.Weapon)
	}
	if len(world.Weapons) != 0 {
		t.Fatalf("expected the ground gun to be gone, got %v", world.Weapons)
	}

	// Armed: step onto another gun and swap; the old gun lands on the
	// mover's new cell.
	if err := host.DoString(`World.weapons[1] = { type = "laserGun", ammo = 1, damage = 2, row = 5, col = 7 }`); err != nil {
		t.Fatalf("place second gun: %v", err)
	}
	world, _, err = host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionMove, Direction: protocol.DirectionRight},
	}, 178)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	a = world.Players[playerA.String()]
	if a.Weapon == nil || a.Weapon.Ammo != 1 {
		t.Fatalf("expected swapped-in gun with ammo 1, got %+v", a.Weapon)
	}
	if len(world.Weapons) != 1 {
		t.Fatalf("expected one ground weapon, got %v", world.Weapons)
	}
	dropped := world.Weapons[0]
	if dropped.Ammo != 3 || dropped.Row != 5 || dropped.Col != 7 {
		t.Fatalf("expected dropped gun (ammo 3) at the mover's new cell (5,7), got %+v", dropped)
	}
}

// TestDropWeaponSemantics covers the three drop outcomes: drop to the floor,
// pick up from the floor, and swap in place.
func TestDropWeaponSemantics(t *testing.T) {
	host := loadArena(t, playerA)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 4, col = 4, health = 3, weapon = { type = "laserGun", ammo = 1, damage = 2 } },
  `, playerA), "")

	// Armed with an empty floor: drop in place.
	world, _, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionDropWeapon},
	}, 179)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if world.Players[playerA.String()].Weapon != nil {
		t.Fatal("expected the player to be unarmed after dropping")
	}
	if len(world.Weapons) != 1 || world.Weapons[0].Row != 4 || world.Weapons[0].Col != 4 {
		t.Fatalf("expected the gun on the floor at (4,4), got %v", world.Weapons)
	}

	// Unarmed on top of a gun: pick it up.
	world, _, err = host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionDropWeapon},
	}, 178)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if world.Players[playerA.String()].Weapon == nil {
		t.Fatal("expected the player to pick the gun back up")
	}
	if len(world.Weapons) != 0 {
		t.Fatalf("expected an empty floor, got %v", world.Weapons)
	}

	// Armed on top of a gun: swap.
	if err := host.DoString(`World.weapons[1] = { type = "laserGun", ammo = 9, damage = 2, row = 4, col = 4 }`); err != nil {
		t.Fatalf("place floor gun: %v", err)
	}
	world, _, err = host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionDropWeapon},
	}, 177)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	a := world.Players[playerA.String()]
	if a.Weapon == nil || a.Weapon.Ammo != 9 {
		t.Fatalf("expected the floor gun in hand, got %+v", a.Weapon)
	}
	if len(world.Weapons) != 1 || world.Weapons[0].Ammo != 1 {
		t.Fatalf("expected the held gun on the floor, got %v", world.Weapons)
	}
}

// TestKilledPlayerLosesQueuedAction ensures a player killed by an earlier
// turn does not act later in the same tick.
func TestKilledPlayerLosesQueuedAction(t *testing.T) {
	host := loadArena(t, playerA, playerB)
	pinWorld(t, host, fmt.Sprintf(`
    ["%s"] = { row = 5, col = 5, health = 3 },
    ["%s"] = { row = 5, col = 6, health = 1 },
  `, playerA, playerB), "")

	world, kills, err := host.Update(map[uuid.UUID]protocol.PlayerAction{
		playerA: {Type: protocol.ActionAttack, Direction: protocol.DirectionRight},
		playerB: {Type: protocol.ActionAttack, Direction: protocol.DirectionLeft},
	}, 179)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if len(kills) != 1 || kills[0] != playerB {
		t.Fatalf("expected only %s killed, got %v", playerB, kills)
	}
	if world.Players[playerA.String()].Health != 3 {
		t.Fatalf("the dead player still acted: %+v", world.Players[playerA.String()])
	}
}

// TestRandomPlayKeepsInvariants plays many random ticks and checks the world
// invariants after each one: distinct live cells off the walls, every id in
// the frozen turn order, sane health values, and no weapons appearing from
// nowhere.
func TestRandomPlayKeepsInvariants(t *testing.T) {
	host, err := Load(rulesFile, quietLogger())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	players := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	inOrder := make(map[string]bool, len(players))
	for _, id := range players {
		inOrder[id.String()] = true
	}

	world, err := host.Init(players, 120)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	countWeapons := func(world protocol.GameState) int {
		total := len(world.Weapons)
		for _, player := range world.Players {
			if player.Weapon != nil {
				total++
			}
		}
		return total
	}

	directions := []protocol.Direction{
		protocol.DirectionUp, protocol.DirectionDown,
		protocol.DirectionLeft, protocol.DirectionRight,
	}
	weaponsBefore := countWeapons(world)

	for tick := 1; tick <= 120 && len(world.Players) > 1; tick++ {
		actions := make(map[uuid.UUID]protocol.PlayerAction)
		for _, id := range host.AliveIDs() {
			direction := directions[(tick+len(actions))%len(directions)]
			switch tick % 3 {
			case 0:
				actions[id] = protocol.PlayerAction{Type: protocol.ActionAttack, Direction: direction}
			case 1:
				actions[id] = protocol.PlayerAction{Type: protocol.ActionDropWeapon}
			default:
				actions[id] = protocol.PlayerAction{Type: protocol.ActionMove, Direction: direction}
			}
		}

		var kills []uuid.UUID
		world, kills, err = host.Update(actions, 120-tick)
		if err != nil {
			t.Fatalf("tick %d: Update returned error: %v", tick, err)
		}

		cells := make(map[[2]int]string)
		for id, player := range world.Players {
			if !inOrder[id] {
				t.Fatalf("tick %d: world player %s is not in the turn order", tick, id)
			}
			if player.Health < 1 || player.Health > 3 {
				t.Fatalf("tick %d: player %s has health %d", tick, id, player.Health)
			}
			if world.Playfield[player.Row-1][player.Col-1] != protocol.TileEmpty {
				t.Fatalf("tick %d: player %s stands on a wall", tick, id)
			}
			cell := [2]int{player.Row, player.Col}
			if other, taken := cells[cell]; taken {
				t.Fatalf("tick %d: players %s and %s share the cell %v", tick, id, other, cell)
			}
			cells[cell] = id
		}

		for _, id := range kills {
			if _, stillThere := world.Players[id.String()]; stillThere {
				t.Fatalf("tick %d: killed player %s is still in the world", tick, id)
			}
		}

		weaponsAfter := countWeapons(world)
		if weaponsAfter > weaponsBefore {
			t.Fatalf("tick %d: weapons appeared from nowhere (%d -> %d)", tick, weaponsBefore, weaponsAfter)
		}
		weaponsBefore = weaponsAfter
	}
}

// TestInitSeedsPlayersAndWeapons ensures the opening world honors the seeding
// rules: every player on a free cell and three guns per player.
func TestInitSeedsPlayersAndWeapons(t *testing.T) {
	host, err := Load(rulesFile, quietLogger())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	players := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	world, err := host.Init(players, 180)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	if len(world.Players) != len(players) {
		t.Fatalf("expected %d players, got %d", len(players), len(world.Players))
	}
	if len(world.Weapons) != 3*len(players) {
		t.Fatalf("expected %d weapons, got %d", 3*len(players), len(world.Weapons))
	}

	occupied := make(map[[2]int]bool)
	for id, player := range world.Players {
		if player.Health != 3 {
			t.Fatalf("player %s spawned with health %d", id, player.Health)
		}
		cell := [2]int{player.Row, player.Col}
		if world.Playfield[player.Row-1][player.Col-1] != protocol.TileEmpty {
			t.Fatalf("player %s spawned on a wall at %v", id, cell)
		}
		if occupied[cell] {
			t.Fatalf("two players share the cell %v", cell)
		}
		occupied[cell] = true
	}
	for i, weapon := range world.Weapons {
		if weapon.Type != protocol.WeaponLaserGun || weapon.Ammo != 1 || weapon.Damage != 2 {
			t.Fatalf("weapon %d is not a fresh laser gun: %+v", i, weapon)
		}
		cell := [2]int{weapon.Row, weapon.Col}
		if world.Playfield[weapon.Row-1][weapon.Col-1] != protocol.TileEmpty {
			t.Fatalf("weapon %d lies on a wall at %v", i, cell)
		}
		if occupied[cell] {
			t.Fatalf("weapon %d shares the cell %v", i, cell)
		}
		occupied[cell] = true
	}
}
