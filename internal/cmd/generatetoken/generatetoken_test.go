package generatetoken

import (
	"testing"
	"time"

	"github.com/ComprosoftCEO/lines-of-battle/internal/token"
)

// TestParseConfigPlayer ensures the player subcommand requires a name and
// honors the secret from the environment.
func TestParseConfigPlayer(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := ParseConfig([]string{"player", "-name", "alice", "-duration", "30m"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.Role != token.RolePlayer || cfg.Name != "alice" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Duration != 30*time.Minute {
		t.Fatalf("expected a 30m duration, got %v", cfg.Duration)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("expected the env secret, got %q", cfg.JWTSecret)
	}

	if _, err := ParseConfig([]string{"player"}); err == nil {
		t.Fatal("expected a player token without -name to fail")
	}
}

// TestParseConfigViewer ensures the viewer subcommand needs no name.
func TestParseConfigViewer(t *testing.T) {
	cfg, err := ParseConfig([]string{"viewer"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.Role != token.RoleViewer || cfg.Name != "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

// TestParseConfigRejectsUnknownSubcommand ensures anything else fails fast.
func TestParseConfigRejectsUnknownSubcommand(t *testing.T) {
	if _, err := ParseConfig([]string{"admin"}); err == nil {
		t.Fatal("expected an unknown subcommand to fail")
	}
	if _, err := ParseConfig(nil); err == nil {
		t.Fatal("expected missing subcommand to fail")
	}
}
