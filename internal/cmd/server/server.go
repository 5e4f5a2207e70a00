// Package server parses the game server configuration and runs the
// websocket service.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ComprosoftCEO/lines-of-battle/internal/engine"
	"github.com/ComprosoftCEO/lines-of-battle/internal/mediator"
	"github.com/ComprosoftCEO/lines-of-battle/internal/platform/config"
	"github.com/ComprosoftCEO/lines-of-battle/internal/platform/otel"
	"github.com/ComprosoftCEO/lines-of-battle/internal/token"
	"github.com/ComprosoftCEO/lines-of-battle/internal/ws"
)

const shutdownTimeout = 5 * time.Second

// Config holds the game server configuration. Environment variables provide
// the defaults; command-line flags win.
type Config struct {
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     int    `env:"PORT" envDefault:"53700"`
	UseHTTPS bool   `env:"USE_HTTPS"`
	KeyFile  string `env:"KEY_FILE"`
	CertFile string `env:"CERT_FILE"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"secret"`
	LuaFile   string `env:"LUA_FILE" envDefault:"lua/game.lua"`

	MinPlayersNeeded  int `env:"MIN_PLAYERS_NEEDED" envDefault:"2"`
	MaxPlayersAllowed int `env:"MAX_PLAYERS_ALLOWED" envDefault:"8"`
	LobbyWaitSeconds  int `env:"LOBBY_WAIT_SECONDS" envDefault:"10"`
	TicksPerGame      int `env:"TICKS_PER_GAME" envDefault:"180"`
	SecondsPerTick    int `env:"SECONDS_PER_TICK" envDefault:"1"`
}

// ParseConfig loads environment defaults, applies flag overrides, and
// normalizes out-of-range values.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Host, "host", cfg.Host, "Host to run the server")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Port to use for the server")
	fs.BoolVar(&cfg.UseHTTPS, "use-https", cfg.UseHTTPS, "Enable HTTPS (TLS) for the server")
	fs.StringVar(&cfg.KeyFile, "key-file", cfg.KeyFile, "Path for the TLS private key file")
	fs.StringVar(&cfg.CertFile, "cert-file", cfg.CertFile, "Path for the TLS certificate chain file")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "JSON Web Token secret")
	fs.StringVar(&cfg.LuaFile, "lua-file", cfg.LuaFile, "Lua file containing the game engine code")
	fs.IntVar(&cfg.MinPlayersNeeded, "min-players-needed", cfg.MinPlayersNeeded,
		"Minimum number of players required to play the game")
	fs.IntVar(&cfg.MaxPlayersAllowed, "max-players-allowed", cfg.MaxPlayersAllowed,
		"Maximum number of players allowed to play in the game")
	fs.IntVar(&cfg.LobbyWaitSeconds, "lobby-wait-seconds", cfg.LobbyWaitSeconds,
		"Seconds to wait before starting the game after the minimum number of players is reached")
	fs.IntVar(&cfg.TicksPerGame, "ticks-per-game", cfg.TicksPerGame,
		"Number of total ticks for a complete round in the game")
	fs.IntVar(&cfg.SecondsPerTick, "seconds-per-tick", cfg.SecondsPerTick,
		"Number of seconds between each tick in the game engine")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.normalize()
	if cfg.UseHTTPS && (cfg.KeyFile == "" || cfg.CertFile == "") {
		return Config{}, errors.New("HTTPS requires both a key file and a certificate file")
	}
	return cfg, nil
}

// normalize clamps out-of-range game parameters to their minimums with a
// logged warning.
func (c *Config) normalize() {
	clamp := func(value *int, minimum int, name string) {
		if *value < minimum {
			log.Printf("%s cannot be less than %d, using minimum value %d", name, minimum, minimum)
			*value = minimum
		}
	}
	clamp(&c.MinPlayersNeeded, 2, "MIN_PLAYERS_NEEDED")
	clamp(&c.MaxPlayersAllowed, c.MinPlayersNeeded, "MAX_PLAYERS_ALLOWED")
	clamp(&c.LobbyWaitSeconds, 1, "LOBBY_WAIT_SECONDS")
	clamp(&c.TicksPerGame, 30, "TICKS_PER_GAME")
	clamp(&c.SecondsPerTick, 1, "SECONDS_PER_TICK")
}

// Run loads the rule set, starts the mediator, and serves the websocket
// routes until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger := log.Default()

	otelShutdown, err := otel.Setup(ctx, "game-server")
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Printf("otel shutdown: %v", err)
		}
	}()

	logger.Printf("loading Lua game engine from %q", cfg.LuaFile)
	host, err := engine.Load(cfg.LuaFile, logger)
	if err != nil {
		return fmt.Errorf("start game engine: %w", err)
	}

	m := mediator.New(host, mediator.Config{
		MinPlayers:       cfg.MinPlayersNeeded,
		MaxPlayers:       cfg.MaxPlayersAllowed,
		LobbyWaitSeconds: cfg.LobbyWaitSeconds,
		TicksPerGame:     cfg.TicksPerGame,
		SecondsPerTick:   cfg.SecondsPerTick,
		Logger:           logger,
	})
	go m.Run(ctx)

	handler := ws.NewHandler(m, token.NewSecret(cfg.JWTSecret), logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/play", handler.ServePlayer)
	mux.HandleFunc("/api/v1/view", handler.ServeViewer)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("server shutdown: %v", err)
		}
	}()

	logger.Printf("server listening on %s", server.Addr)
	if cfg.UseHTTPS {
		err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
