package mediator

import (
	"github.com/google/uuid"

	apperrors "github.com/ComprosoftCEO/lines-of-battle/internal/platform/errors"
	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// request is a typed message delivered to the mediator's mailbox. All state
// mutation happens inside the mediator goroutine, so requests carry reply
// channels instead of sharing memory.
type request interface {
	isMediatorRequest()
}

type connectPlayerRequest struct {
	session Session
	reply   chan *apperrors.Error
}

type connectViewerRequest struct {
	session Session
	reply   chan *apperrors.Error
}

type disconnectRequest struct {
	session Session
}

type registerRequest struct {
	id    uuid.UUID
	name  string
	reply chan *apperrors.Error
}

type unregisterRequest struct {
	id    uuid.UUID
	reply chan *apperrors.Error
}

type actionRequest struct {
	id     uuid.UUID
	action protocol.PlayerAction
	reply  chan *apperrors.Error
}

type serverStateRequest struct {
	reply chan protocol.ServerState
}

type registeredPlayersRequest struct {
	reply chan RegisteredPlayers
}

func (connectPlayerRequest) isMediatorRequest()     {}
func (connectViewerRequest) isMediatorRequest()     {}
func (disconnectRequest) isMediatorRequest()        {}
func (registerRequest) isMediatorRequest()          {}
func (unregisterRequest) isMediatorRequest()        {}
func (actionRequest) isMediatorRequest()            {}
func (serverStateRequest) isMediatorRequest()       {}
func (registeredPlayersRequest) isMediatorRequest() {}

// RegisteredPlayers answers a getRegisteredPlayers query. Order is nil while
// the server is in registration.
type RegisteredPlayers struct {
	Players protocol.Registry
	Order   []uuid.UUID
}
