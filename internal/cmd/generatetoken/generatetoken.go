// Package generatetoken mints signed bearer tokens for players and viewers.
package generatetoken

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ComprosoftCEO/lines-of-battle/internal/platform/config"
	"github.com/ComprosoftCEO/lines-of-battle/internal/token"
)

const defaultDuration = 365 * 24 * time.Hour

// Config holds the token mint parameters.
type Config struct {
	Role     token.Role
	ID       string
	Name     string
	Duration time.Duration

	JWTSecret string `env:"JWT_SECRET" envDefault:"secret"`
}

// ParseConfig parses the `player` or `viewer` subcommand plus its flags.
func ParseConfig(args []string) (Config, error) {
	if len(args) == 0 {
		return Config{}, fmt.Errorf("usage: generate-token <player|viewer> [flags]")
	}

	var cfg Config
	switch args[0] {
	case "player":
		cfg.Role = token.RolePlayer
	case "viewer":
		cfg.Role = token.RoleViewer
	default:
		return Config{}, fmt.Errorf("unknown subcommand %q, expected player or viewer", args[0])
	}

	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("generate-token "+args[0], flag.ContinueOnError)
	fs.StringVar(&cfg.ID, "id", "", "Token UUID (picks a random one if omitted)")
	fs.DurationVar(&cfg.Duration, "duration", defaultDuration, "Validity duration for the token")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "JSON Web Token secret")
	if cfg.Role == token.RolePlayer {
		fs.StringVar(&cfg.Name, "name", "", "Player name or alias (required)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return Config{}, err
	}

	if cfg.Role == token.RolePlayer && cfg.Name == "" {
		return Config{}, fmt.Errorf("a player token requires -name")
	}
	return cfg, nil
}

// Run mints the token and prints it to stdout. When the id was generated
// it is reported on stderr so scripts can capture the token alone.
func Run(cfg Config) error {
	id := uuid.New()
	generated := true
	if cfg.ID != "" {
		parsed, err := uuid.Parse(cfg.ID)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", cfg.ID, err)
		}
		id = parsed
		generated = false
	}

	secret := token.NewSecret(cfg.JWTSecret)
	bearer, err := secret.Issue(token.Identity{ID: id, Role: cfg.Role, Name: cfg.Name}, cfg.Duration)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if generated {
		fmt.Fprintf(os.Stderr, "Token UUID: %s\n", id)
	}
	fmt.Println(bearer)
	return nil
}
