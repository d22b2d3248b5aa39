package model

// RecoveryMessage is one replayed broadcast. StreamID doubles as the cursor a
// client sends back as lastId on its next recovery request.
type RecoveryMessage struct {
	StreamID        string   `json:"streamId"`
	Destination     string   `json:"destination"`
	Response        Envelope `json:"response"`
	TimestampMillis int64    `json:"timestampMillis"`
}

// RecoveryResponse is the recovery endpoint's reply.
type RecoveryResponse struct {
	Success      bool              `json:"success"`
	MessageCount int               `json:"messageCount"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Messages     []RecoveryMessage `json:"messages"`
}

// RecoverySuccess builds a successful recovery response
func RecoverySuccess(messages []RecoveryMessage) RecoveryResponse {
	if messages == nil {
		messages = []RecoveryMessage{}
	}
	return RecoveryResponse{
		Success:      true,
		MessageCount: len(messages),
		Messages:     messages,
	}
}

// RecoveryError builds a failed recovery response
func RecoveryError(message string) RecoveryResponse {
	return RecoveryResponse{
		Success:      false,
		ErrorMessage: message,
		Messages:     []RecoveryMessage{},
	}
}
