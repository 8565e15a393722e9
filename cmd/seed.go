package cmd

import (
	"errors"
	"fmt"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/infra/tools"

	"github.com/spf13/cobra"
)

type seedBill struct {
	payee  string
	amount float64
}

type seedPurchase struct {
	description string
	amount      float64
	date        string
}

var demoBills = []seedBill{
	{"Dominion Energy", 120},
	{"Verizon Fios", 85},
	{"State Farm Insurance", 210},
	{"City Water Dept", 45},
}

// Nessie wants a merchant for purchases; withdrawals stand in for debit card spend.
var demoPurchases = []seedPurchase{
	{"Uber Eats", 25.50, "2026-01-20"},
	{"Shell Station", 45.00, "2026-01-21"},
	{"Netflix", 15.99, "2026-01-15"},
}

func newSeedCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo customer, checking account, bills and purchases in the sandbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.bank.Configured() {
				return errors.New("NESSIE_API_KEY is missing")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			customer, err := app.bank.CreateCustomer(ctx, dto.NessieCustomerRequest{
				FirstName: "Alex",
				LastName:  "Rivera",
				Address: dto.NessieAddress{
					StreetNumber: "101",
					StreetName:   "Hackathon Way",
					City:         "McLean",
					State:        "VA",
					Zip:          "22102",
				},
			})
			if err != nil {
				return fmt.Errorf("create customer: %w", err)
			}
			fmt.Fprintf(out, "Customer created: Alex Rivera (ID: %s)\n", customer.ObjectCreated.ID)

			account, err := app.bank.CreateAccount(ctx, customer.ObjectCreated.ID, dto.NessieAccountRequest{
				Type:          "Checking",
				Nickname:      "Alex's Primary Checking",
				Rewards:       0,
				Balance:       5000,
				AccountNumber: "1234567890123456",
			})
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}
			accountID := account.ObjectCreated.ID
			fmt.Fprintf(out, "Account created: Checking (ID: %s)\n", accountID)

			for _, bill := range demoBills {
				_, err := app.bank.CreateBill(ctx, accountID, dto.NessieBillRequest{
					Status:        "pending",
					Payee:         bill.payee,
					Nickname:      bill.payee + " Bill",
					PaymentDate:   tools.BillPaymentDate,
					RecurringDate: 1,
					PaymentAmount: bill.amount,
				})
				if err != nil {
					fmt.Fprintf(out, "  - Failed to create bill for %s: %v\n", bill.payee, err)
					continue
				}
				fmt.Fprintf(out, "  - Created bill: %s ($%.2f)\n", bill.payee, bill.amount)
			}

			for _, purchase := range demoPurchases {
				_, err := app.bank.CreateWithdrawal(ctx, accountID, dto.NessieWithdrawalRequest{
					Medium:          "balance",
					TransactionDate: purchase.date,
					Status:          "completed",
					Amount:          purchase.amount,
					Description:     purchase.description,
				})
				if err != nil {
					fmt.Fprintf(out, "  - Failed to create purchase %s: %v\n", purchase.description, err)
					continue
				}
				fmt.Fprintf(out, "  - Created purchase: %s ($%.2f)\n", purchase.description, purchase.amount)
			}

			_, err = fmt.Fprintf(out, "Set DEMO_ACCOUNT_ID=%s\n", accountID)
			return err
		},
	}
}
