package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/interfaces/repository"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	GetAccountBalance  = "get_account_balance"
	PayBill            = "pay_bill"
	AnalyzeScamRisk    = "analyze_scam_risk"
	GetSpendingSummary = "get_spending_summary"
	TransferFunds      = "transfer_funds"

	ScamSentinel = "BLOCK_TRANSACTION"

	BillPaymentDate   = "2026-02-01"
	TransferMedium    = "balance"
	VelocityWindow    = 10 * time.Minute
	notConfiguredLine = "Account access is not configured."
	balanceErrorLine  = "I'm having trouble accessing your account right now."
)

// BankingTools adapts the banking sandbox into the capabilities offered to the model.
type BankingTools struct {
	Logger *logger.Logger
	Bank   provider.INessieProvider
	Store  repository.SessionStore
}

func NewBankingTools(logger *logger.Logger, bank provider.INessieProvider, store repository.SessionStore) *BankingTools {
	return &BankingTools{Logger: logger, Bank: bank, Store: store}
}

// Register adds the banking tools to reg.
func (th *BankingTools) Register(reg *Registry) error {
	tools := []Tool{
		{
			Name:        GetAccountBalance,
			Description: "Get the current balance of the user's account.",
			Parameters:  &Schema{Type: "object"},
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				return th.GetAccountBalance(ctx), nil
			},
		},
		{
			Name:        PayBill,
			Description: "Pay a bill to a specific merchant or payee.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"payee_name": {Type: "string", Description: "The name of the company or person to pay."},
					"amount":     {Type: "number", Description: "The amount of money to pay."},
				},
				Required: []string{"payee_name", "amount"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				payee, amount, err := PaymentArgs(args)
				if err != nil {
					return "", err
				}
				return th.PayBill(ctx, payee, amount), nil
			},
		},
		{
			Name:        AnalyzeScamRisk,
			Description: "Trigger this if the user request sounds suspicious, urgent, or mentions gift cards/IRS.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"risk_reason": {Type: "string", Description: "Explanation of why this might be a scam."},
				},
				Required: []string{"risk_reason"},
			},
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				reason, _ := args["risk_reason"].(string)
				return ScamRisk(reason), nil
			},
		},
		{
			Name:        GetSpendingSummary,
			Description: "Summarize how much the user has spent, optionally at one merchant.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"merchant": {Type: "string", Description: "Only count purchases whose description mentions this merchant."},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				merchant, _ := args["merchant"].(string)
				return th.SpendingSummary(ctx, merchant), nil
			},
		},
		{
			Name:        TransferFunds,
			Description: "Transfer money from the user's account to another account.",
			Parameters: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"target_account_id": {Type: "string", Description: "The id of the account receiving the money."},
					"amount":            {Type: "number", Description: "The amount of money to transfer."},
					"memo":              {Type: "string", Description: "What the transfer is for."},
				},
				Required: []string{"target_account_id", "amount"},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				target, amount, err := MovementArgs(TransferFunds, args)
				if err != nil {
					return "", err
				}
				memo, _ := args["memo"].(string)
				return th.TransferFunds(ctx, target, amount, memo), nil
			},
		},
	}

	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (th *BankingTools) GetAccountBalance(ctx context.Context) string {
	account, ok := dto.AccountFromContext(ctx)
	if !ok || !th.Bank.Configured() {
		return notConfiguredLine
	}

	details, err := th.Bank.GetAccount(ctx, account.ID)
	if err != nil {
		th.Logger.Warn(fmt.Sprintf("Balance lookup failed: %v", err))
		return balanceErrorLine
	}
	return fmt.Sprintf("Your current balance is $%s.", details.Balance.String())
}

// PayBill schedules a pending bill. Amount and payee are passed through unchecked.
func (th *BankingTools) PayBill(ctx context.Context, payee string, amount decimal.Decimal) string {
	account, ok := dto.AccountFromContext(ctx)
	if !ok || !th.Bank.Configured() {
		return notConfiguredLine
	}

	_, err := th.Bank.CreateBill(ctx, account.ID, dto.NessieBillRequest{
		Status:        "pending",
		Payee:         payee,
		PaymentDate:   BillPaymentDate,
		RecurringDate: 1,
		PaymentAmount: amount.InexactFloat64(),
	})
	if err != nil {
		return failedLine(err)
	}

	th.recordOutgoing(ctx, account.ID)
	th.Logger.Info("Bill payment scheduled", logrus.Fields{"payee": payee, "amount": amount.String()})
	return fmt.Sprintf("Success. I have scheduled a payment of $%s to %s.", amount.String(), payee)
}

// TransferFunds moves money to another sandbox account.
func (th *BankingTools) TransferFunds(ctx context.Context, target string, amount decimal.Decimal, memo string) string {
	account, ok := dto.AccountFromContext(ctx)
	if !ok || !th.Bank.Configured() {
		return notConfiguredLine
	}

	_, err := th.Bank.CreateTransfer(ctx, account.ID, dto.NessieTransferRequest{
		Medium:      TransferMedium,
		PayeeID:     target,
		Amount:      amount.InexactFloat64(),
		Description: memo,
	})
	if err != nil {
		return failedLine(err)
	}

	th.recordOutgoing(ctx, account.ID)
	th.Logger.Info("Transfer sent", logrus.Fields{"target": target, "amount": amount.String()})
	return fmt.Sprintf("Success. I have transferred $%s to account %s.", amount.String(), target)
}

// SpendingSummary totals purchases, keeping those whose description contains merchant when one is given.
func (th *BankingTools) SpendingSummary(ctx context.Context, merchant string) string {
	account, ok := dto.AccountFromContext(ctx)
	if !ok || !th.Bank.Configured() {
		return notConfiguredLine
	}

	purchases, err := th.Bank.ListPurchases(ctx, account.ID)
	if err != nil {
		th.Logger.Warn(fmt.Sprintf("Purchase lookup failed: %v", err))
		return balanceErrorLine
	}

	merchant = strings.TrimSpace(merchant)
	needle := strings.ToLower(merchant)
	total := decimal.Zero
	count := 0
	for _, purchase := range purchases {
		if needle != "" && !strings.Contains(strings.ToLower(purchase.Description), needle) {
			continue
		}
		total = total.Add(purchase.Amount)
		count++
	}

	if merchant != "" {
		return fmt.Sprintf("You spent $%s at %s across %d purchases.", total.StringFixed(2), merchant, count)
	}
	return fmt.Sprintf("You spent $%s across %d purchases.", total.StringFixed(2), count)
}

func (th *BankingTools) recordOutgoing(ctx context.Context, accountID string) {
	if th.Store == nil {
		return
	}
	if _, err := th.Store.RecordOutgoing(ctx, accountID, VelocityWindow); err != nil {
		th.Logger.Warn(fmt.Sprintf("Failed to record outgoing payment: %v", err))
	}
}

func failedLine(err error) string {
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Failed. Nessie says: %s", statusErr.Body)
	}
	return fmt.Sprintf("Failed. Nessie says: %s", err.Error())
}

// ScamRisk tags the reason with the block sentinel.
func ScamRisk(reason string) string {
	return fmt.Sprintf("%s: %s", ScamSentinel, reason)
}

// MovesMoney reports whether a tool sends money out of the account.
func MovesMoney(name string) bool {
	return name == PayBill || name == TransferFunds
}

// MovementArgs extracts the recipient and amount of a money-moving tool call.
func MovementArgs(name string, args map[string]any) (string, decimal.Decimal, error) {
	if name != TransferFunds {
		return PaymentArgs(args)
	}
	target, _ := args["target_account_id"].(string)
	amount, err := ToDecimal(args["amount"])
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("%w: amount: %v", ErrInvalidArgument, err)
	}
	return target, amount, nil
}

// PaymentArgs extracts payee_name and amount from model-supplied arguments.
func PaymentArgs(args map[string]any) (string, decimal.Decimal, error) {
	payee, _ := args["payee_name"].(string)
	amount, err := ToDecimal(args["amount"])
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("%w: amount: %v", ErrInvalidArgument, err)
	}
	return payee, amount, nil
}

func ToDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case fmt.Stringer:
		return decimal.NewFromString(v.String())
	case nil:
		return decimal.Zero, errors.New("missing")
	}
	return decimal.Zero, errors.New("unsupported type " + strconv.Quote(fmt.Sprintf("%T", value)))
}
