package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voice-banking/internal/config"
	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/interfaces/repository"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/infra/tools"
	"voice-banking/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const ScamWarning = "Warning! I stopped that transaction. It looks like a scam."

const (
	scoreNewRelationship = 30
	scoreAbnormalAmount  = 40
	scoreVelocityDrain   = 50
	scoreLiquidityRisk   = 20
	scoreCoercionFlags   = 35

	lowMax    = 29
	mediumMax = 69

	velocityThreshold = 3
)

var (
	abnormalAmountMultiplier = decimal.NewFromInt(2)
	lowBalanceThreshold      = decimal.NewFromInt(50)

	coercionKeywords = []string{"urgent", "irs", "bail", "gift card", "immediate", "audit"}

	defaultAvgAmount        = decimal.NewFromInt(100)
	defaultRecentOutgoing   = int64(1)
	defaultProjectedBalance = decimal.NewFromInt(500)
)

const (
	reasonNewRelationship = "This is your first time paying this person."
	reasonAbnormalAmount  = "The amount is significantly higher than your usual payments."
	reasonVelocityDrain   = "We detected multiple rapid transactions leaving your account."
	reasonLiquidityRisk   = "This transfer will leave your balance critically low (under $50)."
	reasonCoercionFlags   = "The payment description contains words often associated with scams."
)

// MaskSentinel replaces any text carrying the block sentinel with the fixed warning.
func MaskSentinel(text string) string {
	if strings.Contains(text, tools.ScamSentinel) {
		return ScamWarning
	}
	return text
}

// ScoreRisk applies the additive rule set to a prospective payment.
func ScoreRisk(input dto.RiskInput) dto.RiskAssessment {
	score := 0
	reasons := []string{}

	if input.IsNewTarget {
		score += scoreNewRelationship
		reasons = append(reasons, reasonNewRelationship)
	}

	if input.AvgAmount30d.IsPositive() && input.Amount.GreaterThan(input.AvgAmount30d.Mul(abnormalAmountMultiplier)) {
		score += scoreAbnormalAmount
		reasons = append(reasons, reasonAbnormalAmount)
	}

	if input.RecentOutgoingCount10m >= velocityThreshold {
		score += scoreVelocityDrain
		reasons = append(reasons, reasonVelocityDrain)
	}

	if input.ProjectedBalance.LessThan(lowBalanceThreshold) {
		score += scoreLiquidityRisk
		reasons = append(reasons, reasonLiquidityRisk)
	}

	if hasCoercionKeyword(input.Memo) {
		score += scoreCoercionFlags
		reasons = append(reasons, reasonCoercionFlags)
	}

	level := dto.RiskLow
	switch {
	case score > mediumMax:
		level = dto.RiskHigh
	case score > lowMax:
		level = dto.RiskMedium
	}

	return dto.RiskAssessment{Score: score, Level: level, Reasons: reasons}
}

func hasCoercionKeyword(memo string) bool {
	normalized := strings.ToLower(memo)
	for _, keyword := range coercionKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

// ScamGuardService decides, before execution, whether a selected tool may run.
type ScamGuardService struct {
	Logger *logger.Logger
	Bank   provider.INessieProvider
	Store  repository.SessionStore
	Mode   string
	Now    func() time.Time
}

func NewScamGuardService(logger *logger.Logger, bank provider.INessieProvider, store repository.SessionStore, mode string) *ScamGuardService {
	return &ScamGuardService{Logger: logger, Bank: bank, Store: store, Mode: mode, Now: time.Now}
}

func (th *ScamGuardService) Evaluate(ctx context.Context, toolName string, args map[string]any, transcript string) dto.Decision {
	decision := th.evaluate(ctx, toolName, args, transcript)
	metrics.PolicyDecisions.WithLabelValues(toolName, string(decision.Kind)).Inc()
	return decision
}

func (th *ScamGuardService) evaluate(ctx context.Context, toolName string, args map[string]any, transcript string) dto.Decision {
	if th.Mode == config.PolicyModeLegacy {
		return dto.Allow(toolName)
	}

	switch {
	case toolName == tools.AnalyzeScamRisk:
		reason, _ := args["risk_reason"].(string)
		return dto.Block(toolName, reason)
	case tools.MovesMoney(toolName):
		target, amount, err := tools.MovementArgs(toolName, args)
		if err != nil {
			// The registry rejects malformed arguments before anything executes.
			return dto.Allow(toolName)
		}

		memo := transcript
		if note, _ := args["memo"].(string); note != "" {
			memo = strings.TrimSpace(transcript + " " + note)
		}

		assessment := ScoreRisk(th.GatherRiskInput(ctx, toolName, target, amount, memo))
		decision := dto.Decision{
			Kind:      dto.DecisionAllow,
			Tool:      toolName,
			RiskLevel: assessment.Level,
			Score:     assessment.Score,
			Reasons:   assessment.Reasons,
		}
		if assessment.Level != dto.RiskLow {
			decision.Kind = dto.DecisionNeedsConfirmation
			decision.Reason = fmt.Sprintf("%s risk %s", strings.ToLower(string(assessment.Level)), movementNoun(toolName))
		}
		th.Logger.Info("Payment scored", logrus.Fields{
			"tool":   toolName,
			"target": target,
			"score":  assessment.Score,
			"level":  assessment.Level,
		})
		return decision
	}

	return dto.Allow(toolName)
}

func movementNoun(toolName string) string {
	if toolName == tools.TransferFunds {
		return "transfer"
	}
	return "payment"
}

// GatherRiskInput collects balance, target history and velocity for an outgoing payment or transfer,
// falling back to conservative defaults.
func (th *ScamGuardService) GatherRiskInput(ctx context.Context, toolName, target string, amount decimal.Decimal, memo string) dto.RiskInput {
	input := dto.RiskInput{
		TargetID:               target,
		IsNewTarget:            true,
		Amount:                 amount,
		AvgAmount30d:           defaultAvgAmount,
		RecentOutgoingCount10m: defaultRecentOutgoing,
		ProjectedBalance:       defaultProjectedBalance,
		Memo:                   memo,
	}

	account, ok := dto.AccountFromContext(ctx)
	if !ok {
		return input
	}

	if th.Bank != nil && th.Bank.Configured() {
		if details, err := th.Bank.GetAccount(ctx, account.ID); err == nil {
			input.ProjectedBalance = details.Balance.Sub(amount)
		} else {
			th.Logger.Warn(fmt.Sprintf("Risk input: balance lookup failed: %v", err))
		}

		if toolName == tools.TransferFunds {
			if transfers, err := th.Bank.ListTransfers(ctx, account.ID); err == nil {
				input.IsNewTarget, input.AvgAmount30d = th.transferHistory(transfers, account.ID, target)
			} else {
				th.Logger.Warn(fmt.Sprintf("Risk input: transfer lookup failed: %v", err))
			}
		} else if bills, err := th.Bank.ListBills(ctx, account.ID); err == nil {
			input.IsNewTarget, input.AvgAmount30d = th.billHistory(bills, target)
		} else {
			th.Logger.Warn(fmt.Sprintf("Risk input: bill lookup failed: %v", err))
		}
	}

	if th.Store != nil {
		if count, err := th.Store.RecentOutgoing(ctx, account.ID); err == nil {
			input.RecentOutgoingCount10m = count
		} else {
			th.Logger.Warn(fmt.Sprintf("Risk input: velocity lookup failed: %v", err))
		}
	}

	return input
}

func (th *ScamGuardService) billHistory(bills []dto.NessieBill, payee string) (bool, decimal.Decimal) {
	isNew := true
	cutoff := th.Now().AddDate(0, 0, -30)
	total := decimal.Zero
	count := 0

	for _, bill := range bills {
		if strings.EqualFold(strings.TrimSpace(bill.Payee), strings.TrimSpace(payee)) {
			isNew = false
		}
		if created, err := time.Parse("2006-01-02", bill.CreationDate); err == nil && created.Before(cutoff) {
			continue
		}
		total = total.Add(bill.PaymentAmount)
		count++
	}

	if count == 0 {
		return isNew, defaultAvgAmount
	}
	return isNew, total.Div(decimal.NewFromInt(int64(count)))
}

// transferHistory only counts transfers sent from accountID.
func (th *ScamGuardService) transferHistory(transfers []dto.NessieTransfer, accountID, target string) (bool, decimal.Decimal) {
	isNew := true
	cutoff := th.Now().AddDate(0, 0, -30)
	total := decimal.Zero
	count := 0

	for _, transfer := range transfers {
		if transfer.PayerID != accountID {
			continue
		}
		if transfer.PayeeID == target {
			isNew = false
		}
		if sent, err := time.Parse("2006-01-02", transfer.TransactionDate); err == nil && sent.Before(cutoff) {
			continue
		}
		total = total.Add(transfer.Amount)
		count++
	}

	if count == 0 {
		return isNew, defaultAvgAmount
	}
	return isNew, total.Div(decimal.NewFromInt(int64(count)))
}
