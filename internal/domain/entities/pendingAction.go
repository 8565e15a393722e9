package entities

import (
	"time"

	"voice-banking/internal/domain/dto"

	"github.com/shopspring/decimal"
)

type PendingStatus string

const (
	PendingAwaitingConfirmation PendingStatus = "AWAITING_CONFIRMATION"
	PendingCompleted            PendingStatus = "COMPLETED"
)

// PendingAction is a money movement held back until the caller confirms it.
type PendingAction struct {
	ProposalID string          `json:"proposal_id"`
	SessionID  string          `json:"session_id"`
	AccountID  string          `json:"account_id"`
	ActionKind string          `json:"action_kind"`
	TargetID   string          `json:"target_id"`
	Amount     decimal.Decimal `json:"amount"`
	Args       map[string]any  `json:"args"`
	Transcript string          `json:"transcript"`
	RiskLevel  dto.RiskLevel   `json:"risk_level"`
	Score      int             `json:"score"`
	Reasons    []string        `json:"reasons,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     PendingStatus   `json:"status"`
	Token      string          `json:"token,omitempty"`
}

// RequiresStrongConfirmation reports whether only the explicit confirmation phrase may release the action.
func (p PendingAction) RequiresStrongConfirmation() bool {
	return p.RiskLevel == dto.RiskHigh
}
