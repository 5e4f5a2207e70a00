// Package checkrules smoke-tests a Lua rule set offline: it plays a full
// round with random actions and reports any engine fault.
package checkrules

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"

	"github.com/ComprosoftCEO/lines-of-battle/internal/engine"
	"github.com/ComprosoftCEO/lines-of-battle/internal/platform/config"
	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// Config holds the offline run parameters.
type Config struct {
	LuaFile      string `env:"LUA_FILE" envDefault:"lua/game.lua"`
	TicksPerGame int    `env:"TICKS_PER_GAME" envDefault:"180"`

	NumPlayers int
}

// ParseConfig parses environment defaults and flag overrides.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.LuaFile, "lua-file", cfg.LuaFile, "Lua file containing the game engine code")
	fs.IntVar(&cfg.TicksPerGame, "ticks-per-game", cfg.TicksPerGame, "Number of total ticks for a complete round")
	fs.IntVar(&cfg.NumPlayers, "num-players", 4, "Number of players in the game")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.NumPlayers < 1 {
		return Config{}, fmt.Errorf("at least one player is required")
	}
	return cfg, nil
}

var directions = []protocol.Direction{
	protocol.DirectionUp,
	protocol.DirectionDown,
	protocol.DirectionLeft,
	protocol.DirectionRight,
}

func randomAction() protocol.PlayerAction {
	switch rand.Intn(4) {
	case 0:
		return protocol.PlayerAction{Type: protocol.ActionAttack, Direction: directions[rand.Intn(len(directions))]}
	case 1:
		return protocol.PlayerAction{Type: protocol.ActionDropWeapon}
	default:
		return protocol.PlayerAction{Type: protocol.ActionMove, Direction: directions[rand.Intn(len(directions))]}
	}
}

// Run loads the rule set and plays one full round, feeding every living
// player a random action each tick.
func Run(cfg Config) error {
	logger := log.Default()

	logger.Printf("loading Lua game engine from %q", cfg.LuaFile)
	host, err := engine.Load(cfg.LuaFile, logger)
	if err != nil {
		return fmt.Errorf("start game engine: %w", err)
	}

	players := make([]uuid.UUID, cfg.NumPlayers)
	for i := range players {
		players[i] = uuid.New()
	}

	world, err := host.Init(players, cfg.TicksPerGame)
	if err != nil {
		return fmt.Errorf("init game: %w", err)
	}
	logger.Printf("initialized %d players on a %dx%d playfield with %d weapons",
		len(world.Players), len(world.Playfield), len(world.Playfield[0]), len(world.Weapons))

	for tick := 1; tick <= cfg.TicksPerGame; tick++ {
		actions := make(map[uuid.UUID]protocol.PlayerAction)
		for _, id := range host.AliveIDs() {
			actions[id] = randomAction()
		}

		world, kills, err := host.Update(actions, cfg.TicksPerGame-tick+1)
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		for _, id := range kills {
			logger.Printf("tick %d: player %s was killed", tick, id)
		}

		if remaining := len(world.Players); remaining <= 1 {
			logger.Printf("round over after %d ticks with %d players remaining", tick, remaining)
			return nil
		}
	}

	logger.Printf("tick budget spent with %d players remaining", len(host.AliveIDs()))
	return nil
}
