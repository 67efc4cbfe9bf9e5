package events

import (
	"encoding/json"
	"time"
)

const (
	TypeCycleStarted  = "cycle_started"
	TypeCycleFinished = "cycle_finished"
	TypeApplied       = "applied"
	TypeBudgetWarning = "budget_warning"
	TypeLoginBlocked  = "login_blocked"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Make builds the versioned envelope around an event payload.
func Make(typ string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:    typ,
		Version: 1,
		At:      time.Now().UTC(),
		Data:    raw,
	}
}
