package dto

import "github.com/shopspring/decimal"

type NessieAccount struct {
	ID            string          `json:"_id"`
	Type          string          `json:"type"`
	Nickname      string          `json:"nickname"`
	Rewards       int             `json:"rewards"`
	Balance       decimal.Decimal `json:"balance"`
	AccountNumber string          `json:"account_number,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
}

type NessieBillRequest struct {
	Status        string  `json:"status"`
	Payee         string  `json:"payee"`
	Nickname      string  `json:"nickname,omitempty"`
	PaymentDate   string  `json:"payment_date"`
	RecurringDate int     `json:"recurring_date"`
	PaymentAmount float64 `json:"payment_amount"`
}

type NessieBill struct {
	ID            string          `json:"_id"`
	Status        string          `json:"status"`
	Payee         string          `json:"payee"`
	Nickname      string          `json:"nickname"`
	CreationDate  string          `json:"creation_date"`
	PaymentDate   string          `json:"payment_date"`
	RecurringDate int             `json:"recurring_date"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	AccountID     string          `json:"account_id"`
}

type NessiePurchase struct {
	ID           string          `json:"_id"`
	MerchantID   string          `json:"merchant_id"`
	PayerID      string          `json:"payer_id"`
	PurchaseDate string          `json:"purchase_date"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Medium       string          `json:"medium"`
	Description  string          `json:"description"`
}

type NessieAddress struct {
	StreetNumber string `json:"street_number"`
	StreetName   string `json:"street_name"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

type NessieCustomerRequest struct {
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Address   NessieAddress `json:"address"`
}

type NessieAccountRequest struct {
	Type          string  `json:"type"`
	Nickname      string  `json:"nickname"`
	Rewards       int     `json:"rewards"`
	Balance       float64 `json:"balance"`
	AccountNumber string  `json:"account_number"`
}

type NessieWithdrawalRequest struct {
	Medium          string  `json:"medium"`
	TransactionDate string  `json:"transaction_date"`
	Status          string  `json:"status"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
}

// NessieCreated is the envelope the sandbox returns for POSTs.
type NessieCreated struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	ObjectCreated struct {
		ID string `json:"_id"`
	} `json:"objectCreated"`
}

type NessieTransferRequest struct {
	Medium          string  `json:"medium"`
	PayeeID         string  `json:"payee_id"`
	Amount          float64 `json:"amount"`
	TransactionDate string  `json:"transaction_date,omitempty"`
	Description     string  `json:"description,omitempty"`
}

type NessieTransfer struct {
	ID              string          `json:"_id"`
	Type            string          `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	Status          string          `json:"status"`
	Medium          string          `json:"medium"`
	PayerID         string          `json:"payer_id"`
	PayeeID         string          `json:"payee_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
}
