package protocol

import (
	"encoding/json"

	apperrors "github.com/ComprosoftCEO/lines-of-battle/internal/platform/errors"
)

// Request is a parsed client frame. The concrete types below form the full
// request set.
type Request interface {
	isRequest()
}

// RegisterRequest asks the mediator to admit the sender for the next round.
type RegisterRequest struct{}

// UnregisterRequest withdraws the sender from the upcoming round.
type UnregisterRequest struct{}

// GetServerStateRequest queries the current lifecycle state.
type GetServerStateRequest struct{}

// GetRegisteredPlayersRequest queries the registry and, outside of
// registration, the frozen turn order.
type GetRegisteredPlayersRequest struct{}

// ActionRequest submits the sender's action for the current tick.
type ActionRequest struct {
	Action PlayerAction
}

func (RegisterRequest) isRequest()             {}
func (UnregisterRequest) isRequest()           {}
func (GetServerStateRequest) isRequest()       {}
func (GetRegisteredPlayersRequest) isRequest() {}
func (ActionRequest) isRequest()               {}

// envelope pulls out the discriminator before per-type decoding.
type envelope struct {
	Type string `json:"type"`
}

// actionFields is the flat decode target for the three action requests.
type actionFields struct {
	Direction *Direction `json:"direction"`
	Tag       string     `json:"tag"`
}

// ParseRequest decodes a single text frame into a typed request.
//
// Malformed frames yield WebsocketError, unknown discriminators yield
// JSONPayloadError, and frames with a known type but missing or invalid
// fields yield StructValidationError.
func ParseRequest(data []byte) (Request, *apperrors.Error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeWebsocketError, "Invalid websocket frame", err)
	}

	switch env.Type {
	case "register":
		return RegisterRequest{}, nil
	case "unregister":
		return UnregisterRequest{}, nil
	case "getServerState":
		return GetServerStateRequest{}, nil
	case "getRegisteredPlayers":
		return GetRegisteredPlayersRequest{}, nil
	case "move", "attack":
		var fields actionFields
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStructValidationError, "Invalid request fields", err)
		}
		if fields.Direction == nil {
			return nil, apperrors.Newf(apperrors.CodeStructValidationError,
				"Invalid request fields", "%q requires a direction", env.Type)
		}
		if !fields.Direction.Valid() {
			return nil, apperrors.Newf(apperrors.CodeStructValidationError,
				"Invalid request fields", "unknown direction %q", *fields.Direction)
		}
		return ActionRequest{Action: PlayerAction{
			Type:      ActionType(env.Type),
			Direction: *fields.Direction,
			Tag:       fields.Tag,
		}}, nil
	case "dropWeapon":
		var fields actionFields
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStructValidationError, "Invalid request fields", err)
		}
		return ActionRequest{Action: PlayerAction{Type: ActionDropWeapon, Tag: fields.Tag}}, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeJSONPayloadError,
			"Invalid JSON Object", "unknown request type %q", env.Type)
	}
}
