package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"casebook/internal/core"
)

// Case event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// CaseEventMessage announces a committed case write. Case is nil for deletes.
type CaseEventMessage struct {
	Action    string          `json:"action"`
	OwnerID   string          `json:"ownerId"`
	CaseID    string          `json:"caseId"`
	Case      *core.CaseEntry `json:"case,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewCaseEventMessage builds an event for c stamped with the current time.
func NewCaseEventMessage(action string, c core.CaseEntry) *CaseEventMessage {
	msg := &CaseEventMessage{
		Action:    action,
		OwnerID:   c.OwnerID,
		CaseID:    c.ID,
		Timestamp: time.Now(),
	}
	if action != ActionDeleted {
		msg.Case = &c
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *CaseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects events the worker cannot apply.
func (m *CaseEventMessage) Validate() error {
	switch m.Action {
	case ActionCreated, ActionUpdated:
		if m.Case == nil {
			return fmt.Errorf("%s event for %s carries no case", m.Action, m.CaseID)
		}
	case ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	if m.CaseID == "" || m.OwnerID == "" {
		return fmt.Errorf("event missing case or owner id")
	}
	return nil
}

// CaseEventMessageFromJSON decodes and validates a message.
func CaseEventMessageFromJSON(data []byte) (*CaseEventMessage, error) {
	var msg CaseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
