// Package token issues and verifies the signed bearer tokens used to
// authenticate websocket clients.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/ComprosoftCEO/lines-of-battle/internal/platform/errors"
)

// Issuer claim stamped on every token minted for this server.
const Issuer = "game-server"

// Leeway tolerated when validating expiry, to absorb clock skew.
const Leeway = 15 * time.Second

// Role restricts which connection route a token may use.
type Role string

const (
	RolePlayer Role = "player"
	RoleViewer Role = "viewer"
)

// Identity is the verified content of a bearer token.
type Identity struct {
	ID   uuid.UUID
	Role Role
	Name string // Display name, players only
}

// claims is the JWT claim layout. The display name rides along as a private
// claim next to the registered set.
type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Secret holds the symmetric signing key shared by the issue and verify
// sides. It is immutable after construction.
type Secret struct {
	key []byte
	now func() time.Time
}

// NewSecret wraps the configured signing secret.
func NewSecret(secret string) Secret {
	return Secret{key: []byte(secret), now: time.Now}
}

// WithNow returns a copy using the given clock. Used by tests to pin expiry
// checks.
func (s Secret) WithNow(now func() time.Time) Secret {
	s.now = now
	return s
}

// Issue mints a signed token for the given identity, valid for ttl.
func (s Secret) Issue(id Identity, ttl time.Duration) (string, error) {
	if id.Role != RolePlayer && id.Role != RoleViewer {
		return "", fmt.Errorf("unknown role %q", id.Role)
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   id.ID.String(),
			Audience:  jwt.ClaimStrings{string(id.Role)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: id.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer, expiry, and audience of a bearer
// token, requiring the audience to match the given role. It returns the
// verified identity or an InvalidJWTToken domain error.
func (s Secret) Verify(bearer string, role Role) (Identity, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(bearer, &parsed, func(token *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(string(role)),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(Leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeInvalidJWTToken, "Invalid JWT Token", err)
	}

	id, err := uuid.Parse(parsed.Subject)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeInvalidJWTToken, "Invalid JWT Token", fmt.Errorf("parse subject: %w", err))
	}

	return Identity{ID: id, Role: role, Name: parsed.Name}, nil
}
