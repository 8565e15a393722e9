package entities

import (
	"time"

	"voice-banking/internal/domain/dto"
)

// CommandRecord is one processed utterance, kept for audit.
type CommandRecord struct {
	ID         string               `json:"id" bson:"_id"`
	SessionID  string               `json:"session_id" bson:"session_id"`
	Transcript string               `json:"transcript" bson:"transcript"`
	ToolCalls  []dto.ToolCallRecord `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	Decision   *dto.Decision        `json:"decision,omitempty" bson:"decision,omitempty"`
	Response   string               `json:"response" bson:"response"`
	CreatedAt  time.Time            `json:"created_at" bson:"created_at"`
}

func (c CommandRecord) SessionKey() string {
	return c.SessionID
}
