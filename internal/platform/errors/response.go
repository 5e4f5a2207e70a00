package errors

import "encoding/json"

// Response is the wire form of a domain error, sent to the offending client
// as a `type: "error"` frame.
type Response struct {
	Type           string `json:"type"`
	Description    string `json:"description"`
	ErrorCode      Code   `json:"errorCode"`
	DeveloperNotes string `json:"developerNotes,omitempty"`
}

// ToResponse converts the error into its wire form. Developer notes are
// stripped unless the binary was built with the debug tag.
func (e *Error) ToResponse() Response {
	r := Response{
		Type:        "error",
		Description: e.Description,
		ErrorCode:   e.Code,
	}
	if includeDeveloperNotes {
		r.DeveloperNotes = e.DeveloperNotes
	}
	return r
}

// MarshalResponse serializes the error's wire form. Marshaling a flat struct
// of strings and ints cannot fail, so the frame is always usable.
func (e *Error) MarshalResponse() []byte {
	data, err := json.Marshal(e.ToResponse())
	if err != nil {
		return []byte(`{"type":"error","description":"Unknown error","errorCode":0}`)
	}
	return data
}
