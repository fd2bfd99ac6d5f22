package models

// ResultKind discriminates the outcome of a submitted command
type ResultKind string

const (
	ResultNeedsClarification    ResultKind = "needs_clarification"
	ResultAwaitingAuthorization ResultKind = "awaiting_authorization"
	ResultSubmitted             ResultKind = "submitted"
	ResultSettled               ResultKind = "settled"
	ResultFailed                ResultKind = "failed"
	ResultAnswer                ResultKind = "answer"
)

// CommandResult is the discriminated union returned to the caller for
// every inbound command or resume call
type CommandResult struct {
	Kind      ResultKind           `json:"kind"`
	RecordID  string               `json:"record_id,omitempty"`
	Message   string               `json:"message,omitempty"`
	Quote     *Quote               `json:"quote,omitempty"`
	Payload   *UnsignedPayload     `json:"payload,omitempty"`
	Reference *SettlementReference `json:"reference,omitempty"`
}

// NeedsClarification asks the user to restate or complete their command
func NeedsClarification(message string) CommandResult {
	return CommandResult{Kind: ResultNeedsClarification, Message: message}
}

// AwaitingAuthorization hands the unsigned payload back for signing
func AwaitingAuthorization(recordID string, quote *Quote, payload *UnsignedPayload) CommandResult {
	return CommandResult{
		Kind:     ResultAwaitingAuthorization,
		RecordID: recordID,
		Quote:    quote,
		Payload:  payload,
	}
}

// Submitted reports an authorization already handed to the venue and
// not yet confirmed
func Submitted(recordID string, reference *SettlementReference) CommandResult {
	return CommandResult{Kind: ResultSubmitted, RecordID: recordID, Reference: reference}
}

// Settled reports a confirmed settlement
func Settled(recordID string, reference *SettlementReference) CommandResult {
	return CommandResult{Kind: ResultSettled, RecordID: recordID, Reference: reference}
}

// Failed reports a terminal failure with a human-readable reason
func Failed(recordID, reason string) CommandResult {
	return CommandResult{Kind: ResultFailed, RecordID: recordID, Message: reason}
}

// Answer returns a knowledge-base answer for query commands
func Answer(text string) CommandResult {
	return CommandResult{Kind: ResultAnswer, Message: text}
}
