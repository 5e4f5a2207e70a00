// Package ws exposes the websocket endpoint: it performs the subprotocol
// and bearer-token handshake, then hands the connection to a session bound
// to the mediator.
package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ComprosoftCEO/lines-of-battle/internal/mediator"
	apperrors "github.com/ComprosoftCEO/lines-of-battle/internal/platform/errors"
	"github.com/ComprosoftCEO/lines-of-battle/internal/token"
)

// ProtocolName is the subprotocol every client must offer next to its
// bearer token.
const ProtocolName = "game-server"

// Handler upgrades player and viewer connections.
type Handler struct {
	mediator *mediator.Mediator
	secret   token.Secret
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket handler for both routes.
func NewHandler(m *mediator.Mediator, secret token.Secret, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		mediator: m,
		secret:   secret,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{ProtocolName},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServePlayer handles the player route.
func (h *Handler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, token.RolePlayer)
}

// ServeViewer handles the viewer route.
func (h *Handler) ServeViewer(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, token.RoleViewer)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, role token.Role) {
	bearer, perr := bearerFromSubprotocols(websocket.Subprotocols(r))
	if perr != nil {
		h.refuse(w, http.StatusUnauthorized, perr)
		return
	}

	identity, err := h.secret.Verify(bearer, role)
	if err != nil {
		h.refuse(w, http.StatusUnauthorized, apperrors.AsError(err))
		return
	}

	conn, upgradeErr := h.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		// Upgrade already answered the request.
		h.logger.Printf("upgrade failed for %s %s: %v", role, identity.ID, upgradeErr)
		return
	}

	session := newSession(identity, conn, h.mediator, h.logger)

	var connectErr *apperrors.Error
	switch role {
	case token.RolePlayer:
		connectErr = h.mediator.ConnectPlayer(session)
	default:
		connectErr = h.mediator.ConnectViewer(session)
	}
	if connectErr != nil {
		h.logger.Printf("refusing %s %s: %v", role, identity.ID, connectErr)
		session.refuse(connectErr)
		return
	}

	h.logger.Printf("connected %s %s", role, identity.ID)
	session.run()
	h.logger.Printf("disconnected %s %s", role, identity.ID)
}

// refuse answers a failed handshake with the wire error form before any
// upgrade happened.
func (h *Handler) refuse(w http.ResponseWriter, status int, err *apperrors.Error) {
	h.logger.Printf("handshake refused: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(err.MarshalResponse())
}

// bearerFromSubprotocols extracts the token from the offered subprotocols.
// The client must offer the literal protocol name plus at least one other
// entry; the first such entry is taken as the bearer token and any further
// entries are ignored.
func bearerFromSubprotocols(offered []string) (string, *apperrors.Error) {
	var bearer string
	sawProtocol := false
	for _, candidate := range offered {
		if candidate == ProtocolName {
			sawProtocol = true
			continue
		}
		if bearer == "" {
			bearer = candidate
		}
	}
	if !sawProtocol || bearer == "" {
		return "", apperrors.Newf(apperrors.CodeInvalidJWTToken, "Invalid JWT Token",
			"missing %q subprotocol or JWT token in 'Sec-WebSocket-Protocol' header", ProtocolName)
	}
	return bearer, nil
}
