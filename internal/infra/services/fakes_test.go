package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/entities"
	Irepository "voice-banking/internal/domain/interfaces/repository"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/infra/repository"
	"voice-banking/internal/infra/tools"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModel struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	err       error
	requests  [][]*genai.Content
}

func (f *fakeModel) GenerateContent(_ context.Context, contents []*genai.Content, _ []*genai.FunctionDeclaration) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, contents)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return textResponse(""), nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func callResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
		}},
	}
}

func payBill(payee string, amount float64) *genai.FunctionCall {
	return &genai.FunctionCall{Name: tools.PayBill, Args: map[string]any{"payee_name": payee, "amount": amount}}
}

func transferFunds(target string, amount float64) *genai.FunctionCall {
	return &genai.FunctionCall{Name: tools.TransferFunds, Args: map[string]any{"target_account_id": target, "amount": amount}}
}

type fakeBank struct {
	mu         sync.Mutex
	balance    decimal.Decimal
	bills      []dto.NessieBill
	transfers  []dto.NessieTransfer
	created    []dto.NessieBillRequest
	moved      []dto.NessieTransferRequest
	accountErr error
	createErr  error
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		balance: decimal.NewFromInt(5000),
		bills: []dto.NessieBill{
			{Payee: "Dominion Energy", PaymentAmount: decimal.NewFromInt(120)},
			{Payee: "Verizon Fios", PaymentAmount: decimal.NewFromInt(85)},
		},
	}
}

func (f *fakeBank) Configured() bool { return true }

func (f *fakeBank) GetAccount(_ context.Context, accountID string) (dto.NessieAccount, error) {
	if f.accountErr != nil {
		return dto.NessieAccount{}, f.accountErr
	}
	return dto.NessieAccount{ID: accountID, Balance: f.balance}, nil
}

func (f *fakeBank) CreateBill(_ context.Context, _ string, bill dto.NessieBillRequest) (dto.NessieCreated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return dto.NessieCreated{}, f.createErr
	}
	f.created = append(f.created, bill)
	return dto.NessieCreated{Code: 201}, nil
}

func (f *fakeBank) createdBills() []dto.NessieBillRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.NessieBillRequest(nil), f.created...)
}

func (f *fakeBank) ListBills(context.Context, string) ([]dto.NessieBill, error) {
	return f.bills, nil
}

func (f *fakeBank) ListTransfers(context.Context, string) ([]dto.NessieTransfer, error) {
	return f.transfers, nil
}

func (f *fakeBank) CreateTransfer(_ context.Context, _ string, transfer dto.NessieTransferRequest) (dto.NessieCreated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return dto.NessieCreated{}, f.createErr
	}
	f.moved = append(f.moved, transfer)
	return dto.NessieCreated{Code: 201}, nil
}

func (f *fakeBank) createdTransfers() []dto.NessieTransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.NessieTransferRequest(nil), f.moved...)
}

func (f *fakeBank) ListPurchases(context.Context, string) ([]dto.NessiePurchase, error) {
	return nil, nil
}

func (f *fakeBank) CreateCustomer(context.Context, dto.NessieCustomerRequest) (dto.NessieCreated, error) {
	return dto.NessieCreated{}, errors.New("not supported")
}

func (f *fakeBank) CreateAccount(context.Context, string, dto.NessieAccountRequest) (dto.NessieCreated, error) {
	return dto.NessieCreated{}, errors.New("not supported")
}

func (f *fakeBank) CreateWithdrawal(context.Context, string, dto.NessieWithdrawalRequest) (dto.NessieCreated, error) {
	return dto.NessieCreated{}, errors.New("not supported")
}

var _ provider.INessieProvider = (*fakeBank)(nil)

type routerFixture struct {
	router *CommandRouterService
	bank   *fakeBank
	store  *repository.MemorySessionStore
	audit  *repository.MemoryRepository[entities.CommandRecord]
}

func newRouterFixture(t *testing.T, model provider.ModelClient, mode string) *routerFixture {
	t.Helper()
	return newRouterFixtureWithStore(t, model, mode, func(store *repository.MemorySessionStore) Irepository.SessionStore {
		return store
	})
}

// newRouterFixtureWithStore lets a test wrap the session store the services see.
func newRouterFixtureWithStore(t *testing.T, model provider.ModelClient, mode string, wrap func(*repository.MemorySessionStore) Irepository.SessionStore) *routerFixture {
	t.Helper()
	log := logger.NewDiscardLogger()
	bank := newFakeBank()
	store := repository.NewMemorySessionStore()
	sessions := wrap(store)

	registry := tools.NewRegistry()
	require.NoError(t, tools.NewBankingTools(log, bank, sessions).Register(registry))

	audit := repository.NewMemoryRepository[entities.CommandRecord]()
	router := NewCommandRouterService(
		log,
		model,
		registry,
		NewScamGuardService(log, bank, sessions, mode),
		NewConfirmationService(log, sessions, "test-secret", 10*time.Minute),
		NewCommandLogService(audit, log),
		mode,
		4,
	)
	return &routerFixture{router: router, bank: bank, store: store, audit: audit}
}

// lockstepStore holds every GetPending caller until `parties` of them have read, once armed.
type lockstepStore struct {
	*repository.MemorySessionStore
	armed   atomic.Bool
	arrived sync.WaitGroup
}

func newLockstepStore(store *repository.MemorySessionStore, parties int) *lockstepStore {
	s := &lockstepStore{MemorySessionStore: store}
	s.arrived.Add(parties)
	return s
}

func (s *lockstepStore) GetPending(ctx context.Context, sessionID, proposalID string) (entities.PendingAction, error) {
	action, err := s.MemorySessionStore.GetPending(ctx, sessionID, proposalID)
	if s.armed.Load() {
		s.arrived.Done()
		s.arrived.Wait()
	}
	return action, err
}

func accountCtx() context.Context {
	return dto.WithAccount(context.Background(), dto.AccountRef{ID: "acct-1"})
}
