package dto

import "github.com/shopspring/decimal"

type DecisionKind string

const (
	DecisionAllow             DecisionKind = "allow"
	DecisionBlock             DecisionKind = "block"
	DecisionNeedsConfirmation DecisionKind = "needs_confirmation"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Decision is the policy verdict for a capability the model selected.
type Decision struct {
	Kind       DecisionKind `json:"kind"`
	Reason     string       `json:"reason,omitempty"`
	Tool       string       `json:"tool,omitempty"`
	RiskLevel  RiskLevel    `json:"risk_level,omitempty"`
	Score      int          `json:"score,omitempty"`
	Reasons    []string     `json:"reasons,omitempty"`
	ProposalID string       `json:"proposal_id,omitempty"`
}

func Allow(tool string) Decision {
	return Decision{Kind: DecisionAllow, Tool: tool}
}

func Block(tool, reason string) Decision {
	return Decision{Kind: DecisionBlock, Tool: tool, Reason: reason}
}

// RiskInput is what the scam guard scores before money leaves the account.
type RiskInput struct {
	TargetID               string
	IsNewTarget            bool
	Amount                 decimal.Decimal
	AvgAmount30d           decimal.Decimal
	RecentOutgoingCount10m int64
	ProjectedBalance       decimal.Decimal
	Memo                   string
}

type RiskAssessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"risk_level"`
	Reasons []string  `json:"reasons"`
}

type ConfirmationCheck struct {
	Token      string
	SessionID  string
	ActionKind string
	TargetID   string
	Amount     decimal.Decimal
}

type ConfirmationResult struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
}
