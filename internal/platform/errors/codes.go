// Package errors provides structured error handling with stable wire codes.
package errors

// Code is the machine-readable error code exposed to clients.
//
// The integer values are part of the wire protocol and must never be
// reordered.
type Code int

const (
	CodeUnknownError Code = iota
	CodeMissingAppData
	CodeJSONPayloadError
	CodeFormPayloadError
	CodeURLPathError
	CodeQueryStringError
	CodeStructValidationError
	CodeInvalidJWTToken
	CodeGameEngineError
	CodeGameEngineCrash
	CodeWebsocketError
	CodeNotRegistered
	CodeFailedToRegister
	CodeFailedToUnregister
	CodeAlreadyConnected
	CodeCannotSendAction
)

var codeNames = map[Code]string{
	CodeUnknownError:          "UnknownError",
	CodeMissingAppData:        "MissingAppData",
	CodeJSONPayloadError:      "JSONPayloadError",
	CodeFormPayloadError:      "FormPayloadError",
	CodeURLPathError:          "URLPathError",
	CodeQueryStringError:      "QueryStringError",
	CodeStructValidationError: "StructValidationError",
	CodeInvalidJWTToken:       "InvalidJWTToken",
	CodeGameEngineError:       "GameEngineError",
	CodeGameEngineCrash:       "GameEngineCrash",
	CodeWebsocketError:        "WebsocketError",
	CodeNotRegistered:         "NotRegistered",
	CodeFailedToRegister:      "FailedToRegister",
	CodeFailedToUnregister:    "FailedToUnregister",
	CodeAlreadyConnected:      "AlreadyConnected",
	CodeCannotSendAction:      "CannotSendAction",
}

// String returns the symbolic name of the code for logs.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UnknownError"
}
