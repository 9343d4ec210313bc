package hub

// TriageEventMessage is pushed to back-office clients while a triage run is
// in flight: tool calls, tool results, errors and completion.
type TriageEventMessage struct {
	Type     string         `json:"type"`
	TicketID string         `json:"ticket_id"`
	Name     string         `json:"name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Ts       int64          `json:"ts"`
}

// ClientMessage is what browser clients send: currently only subscription
// management.
type ClientMessage struct {
	Type     string `json:"type"`
	TicketID string `json:"ticket_id,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
