package model

// Envelope is the frame every server-to-client message is wrapped in.
// ID is set only for messages that went through the recovery log; clients use
// it as the lastId cursor when requesting missed messages after a reconnect.
// Messages without an ID are not recoverable and gaps are expected.
type Envelope struct {
	Success      bool        `json:"success"`
	Data         interface{} `json:"data,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	ID           string      `json:"id,omitempty"`
}

// SuccessEnvelope wraps a payload in a successful envelope
func SuccessEnvelope(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

// ErrorEnvelope wraps an error message in a failed envelope
func ErrorEnvelope(message string) Envelope {
	return Envelope{Success: false, ErrorMessage: message}
}

// WithID returns a copy of the envelope carrying the recovery stream id
func (e Envelope) WithID(id string) Envelope {
	e.ID = id
	return e
}
