package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"voice-banking/internal/domain/dto"

	"google.golang.org/genai"
)

var (
	ErrNotConfigured    = errors.New("provider is not configured")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// StatusError carries the raw upstream body of a non-successful response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

type ModelClient interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, tools []*genai.FunctionDeclaration) (*genai.GenerateContentResponse, error)
}

type INessieProvider interface {
	Configured() bool
	GetAccount(ctx context.Context, accountID string) (dto.NessieAccount, error)
	CreateBill(ctx context.Context, accountID string, bill dto.NessieBillRequest) (dto.NessieCreated, error)
	ListBills(ctx context.Context, accountID string) ([]dto.NessieBill, error)
	ListPurchases(ctx context.Context, accountID string) ([]dto.NessiePurchase, error)
	ListTransfers(ctx context.Context, accountID string) ([]dto.NessieTransfer, error)
	CreateTransfer(ctx context.Context, accountID string, transfer dto.NessieTransferRequest) (dto.NessieCreated, error)
	CreateCustomer(ctx context.Context, customer dto.NessieCustomerRequest) (dto.NessieCreated, error)
	CreateAccount(ctx context.Context, customerID string, account dto.NessieAccountRequest) (dto.NessieCreated, error)
	CreateWithdrawal(ctx context.Context, accountID string, withdrawal dto.NessieWithdrawalRequest) (dto.NessieCreated, error)
}

type ISpeechProvider interface {
	Configured() bool
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	StreamSpeech(ctx context.Context, text string) (io.ReadCloser, string, error)
}
