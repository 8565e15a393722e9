package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"voice-banking/internal/config"
	"voice-banking/internal/domain/dto"
	Irepository "voice-banking/internal/domain/interfaces/repository"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/infra/repository"
	"voice-banking/internal/infra/tools"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestDetectIntent(t *testing.T) {
	tests := map[string]Intent{
		"yes":                              IntentConfirm,
		"Yes, send it.":                    IntentConfirm,
		"please do it":                     IntentConfirm,
		"I confirm this payment":           IntentStrongConfirm,
		"i confirm this payment, go ahead": IntentStrongConfirm,
		"No.":                              IntentCancel,
		"never mind":                       IntentCancel,
		"wait, stop":                       IntentCancel,
		"what is my balance now":           IntentNone,
		"pay the nominal fee":              IntentNone,
		"":                                 IntentNone,
	}

	for utterance, want := range tests {
		assert.Equal(t, want, DetectIntent(utterance), utterance)
	}
}

func TestProcessReturnsModelTextVerbatim(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{textResponse("Hello! How can I help?")}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "hi"})
	require.NoError(t, err)
	require.NotNil(t, resp.SpokenResponse)
	assert.Equal(t, "Hello! How can I help?", *resp.SpokenResponse)
	assert.Nil(t, resp.Decision)
}

func TestProcessMasksSentinel(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{textResponse("I think BLOCK_TRANSACTION: this is a scam")}}
	fx := newRouterFixture(t, model, config.PolicyModeLegacy)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "buy gift cards"})
	require.NoError(t, err)
	assert.Equal(t, ScamWarning, *resp.SpokenResponse)
}

func TestProcessFailedCompletionIsNull(t *testing.T) {
	fx := newRouterFixture(t, &fakeModel{err: errors.New("quota")}, config.PolicyModeGuarded)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "hi"})
	require.NoError(t, err)
	assert.Nil(t, resp.SpokenResponse)

	fx = newRouterFixture(t, nil, config.PolicyModeGuarded)
	resp, err = fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "hi"})
	require.NoError(t, err)
	assert.Nil(t, resp.SpokenResponse)
}

func TestProcessExecutesBalanceAndFeedsResultBack(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(&genai.FunctionCall{Name: tools.GetAccountBalance}),
		textResponse("You have five thousand dollars."),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "what's my balance"})
	require.NoError(t, err)
	assert.Equal(t, "You have five thousand dollars.", *resp.SpokenResponse)
	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, resp.ToolCalls[0].Executed)
	assert.Equal(t, "Your current balance is $5000.", resp.ToolCalls[0].Result)

	require.Len(t, model.requests, 2)
	second := model.requests[1]
	require.Len(t, second, 3)
	require.NotNil(t, second[2].Parts[0].FunctionResponse)
	assert.Equal(t, "Your current balance is $5000.", second[2].Parts[0].FunctionResponse.Response["result"])
}

func TestProcessSpeaksToolResultWhenTurnsRunOut(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(&genai.FunctionCall{Name: tools.GetAccountBalance}),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)
	fx.router.MaxToolTurns = 2

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "balance"})
	require.NoError(t, err)
	assert.Equal(t, "Your current balance is $5000.", *resp.SpokenResponse)
	assert.Len(t, model.requests, 2)
}

func TestProcessBlocksScamBeforePayment(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(
			&genai.FunctionCall{Name: tools.AnalyzeScamRisk, Args: map[string]any{"risk_reason": "gift cards for the IRS"}},
			payBill("IRS", 2000),
		),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "pay the IRS in gift cards"})
	require.NoError(t, err)
	assert.Equal(t, ScamWarning, *resp.SpokenResponse)
	require.NotNil(t, resp.Decision)
	assert.Equal(t, dto.DecisionBlock, resp.Decision.Kind)
	assert.Empty(t, fx.bank.createdBills())

	require.Len(t, resp.ToolCalls, 2)
	assert.True(t, resp.ToolCalls[0].Executed)
	assert.Equal(t, "BLOCK_TRANSACTION: gift cards for the IRS", resp.ToolCalls[0].Result)
	assert.False(t, resp.ToolCalls[1].Executed)
}

func TestProcessLegacyRunsPaymentThenMasks(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(payBill("Stranger", 900)),
		textResponse("Done, BLOCK_TRANSACTION anyway"),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeLegacy)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "urgent, pay the stranger"})
	require.NoError(t, err)
	assert.Equal(t, ScamWarning, *resp.SpokenResponse)
	assert.Len(t, fx.bank.createdBills(), 1)
}

func TestProcessLowRiskPaymentExecutes(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(payBill("Verizon Fios", 85)),
		textResponse("Your Verizon bill is scheduled."),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "pay my verizon bill"})
	require.NoError(t, err)
	assert.Equal(t, "Your Verizon bill is scheduled.", *resp.SpokenResponse)
	require.Len(t, fx.bank.createdBills(), 1)
	assert.Equal(t, "Verizon Fios", fx.bank.createdBills()[0].Payee)
	assert.Equal(t, "Success. I have scheduled a payment of $85 to Verizon Fios.", resp.ToolCalls[0].Result)
}

func TestMediumRiskPaymentWaitsForConfirmation(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{callResponse(payBill("Alice", 50))}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)
	ctx := accountCtx()

	resp, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "pay alice fifty dollars", SessionID: "sess-1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Decision)
	assert.Equal(t, dto.DecisionNeedsConfirmation, resp.Decision.Kind)
	assert.Equal(t, dto.RiskMedium, resp.Decision.RiskLevel)
	assert.NotEmpty(t, resp.Decision.ProposalID)
	assert.True(t, strings.HasPrefix(*resp.SpokenResponse, "I've set up a payment of $50.00 to Alice."))
	assert.True(t, strings.HasSuffix(*resp.SpokenResponse, "Would you like me to send it now?"))
	assert.Empty(t, fx.bank.createdBills())

	resp, err = fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "Yes, send it", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, "Success. I have scheduled a payment of $50 to Alice.", *resp.SpokenResponse)
	assert.Equal(t, dto.DecisionAllow, resp.Decision.Kind)
	assert.Len(t, fx.bank.createdBills(), 1)
	assert.Len(t, model.requests, 1)

	count, err := fx.store.RecentOutgoing(ctx, "acct-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestConcurrentConfirmationsPayOnce(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{callResponse(payBill("Alice", 50))}}
	var lockstep *lockstepStore
	fx := newRouterFixtureWithStore(t, model, config.PolicyModeGuarded, func(store *repository.MemorySessionStore) Irepository.SessionStore {
		lockstep = newLockstepStore(store, 2)
		return lockstep
	})
	ctx := accountCtx()

	resp, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "pay alice fifty dollars", SessionID: "sess-1"})
	require.NoError(t, err)
	require.Equal(t, dto.DecisionNeedsConfirmation, resp.Decision.Kind)

	lockstep.armed.Store(true)
	responses := make([]dto.CommandResponse, 2)
	var wg sync.WaitGroup
	for i := range responses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "yes", SessionID: "sess-1"})
			assert.NoError(t, err)
			responses[i] = r
		}(i)
	}
	wg.Wait()
	lockstep.armed.Store(false)

	assert.Len(t, fx.bank.createdBills(), 1)

	kinds := []dto.DecisionKind{responses[0].Decision.Kind, responses[1].Decision.Kind}
	assert.ElementsMatch(t, []dto.DecisionKind{dto.DecisionAllow, dto.DecisionBlock}, kinds)
	for _, r := range responses {
		if r.Decision.Kind == dto.DecisionBlock {
			assert.Equal(t, ReasonAlreadyConfirm, r.Decision.Reason)
			assert.Equal(t, confirmationInvalidLine, *r.SpokenResponse)
		}
	}
}

func TestHighRiskPaymentNeedsStrongPhrase(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{callResponse(payBill("Officer Dan", 900))}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)
	ctx := accountCtx()

	resp, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "send 900 for bail right now", SessionID: "sess-9"})
	require.NoError(t, err)
	assert.Equal(t, dto.RiskHigh, resp.Decision.RiskLevel)
	assert.Equal(t, strings.Join(HighRiskScript, " "), *resp.SpokenResponse)

	resp, err = fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "yes", SessionID: "sess-9"})
	require.NoError(t, err)
	assert.Equal(t, dto.DecisionNeedsConfirmation, resp.Decision.Kind)
	assert.Equal(t, strings.Join(HighRiskScript, " "), *resp.SpokenResponse)
	assert.Empty(t, fx.bank.createdBills())

	resp, err = fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "I confirm this payment", SessionID: "sess-9"})
	require.NoError(t, err)
	assert.Equal(t, "Success. I have scheduled a payment of $900 to Officer Dan.", *resp.SpokenResponse)
	assert.Len(t, fx.bank.createdBills(), 1)
}

func TestCancelDropsPendingPayment(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(payBill("Alice", 50)),
		textResponse("Okay."),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)
	ctx := accountCtx()

	_, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "pay alice 50", SessionID: "sess-2"})
	require.NoError(t, err)

	resp, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "No, never mind", SessionID: "sess-2"})
	require.NoError(t, err)
	assert.Equal(t, strings.Join(CancelScript, " "), *resp.SpokenResponse)
	assert.Equal(t, dto.DecisionBlock, resp.Decision.Kind)

	// Nothing is pending any more, so a "yes" goes to the model.
	resp, err = fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "yes", SessionID: "sess-2"})
	require.NoError(t, err)
	assert.Equal(t, "Okay.", *resp.SpokenResponse)
	assert.Empty(t, fx.bank.createdBills())
}

func TestConfirmationWithoutSessionMintsOne(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{callResponse(payBill("Alice", 50))}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "pay alice 50"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.SessionID, "sess_"))

	pending, err := fx.router.Confirmations.Latest(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", pending.TargetID)
	assert.Equal(t, "acct-1", pending.AccountID)
}

func TestProcessRecordsAudit(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{textResponse("Hi there")}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	_, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "hello", SessionID: "sess-a"})
	require.NoError(t, err)

	records, err := fx.router.CommandLog.FindBySession(context.Background(), "sess-a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Transcript)
	assert.Equal(t, "Hi there", records[0].Response)
	assert.NotEmpty(t, records[0].ID)
}

func TestSelectTool(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{callResponse(payBill("Verizon", 85))}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	out, err := fx.router.SelectTool(context.Background(), "pay verizon 85")
	require.NoError(t, err)
	require.NotNil(t, out.Name)
	assert.Equal(t, tools.PayBill, *out.Name)
	assert.Equal(t, "Verizon", out.Args["payee_name"])
	assert.Nil(t, out.Text)
	assert.Empty(t, fx.bank.createdBills())
}

func TestSelectToolMalformedResponse(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{{}}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)

	out, err := fx.router.SelectTool(context.Background(), "hello")
	require.NoError(t, err)
	assert.Nil(t, out.Name)
	assert.Nil(t, out.Args)
}

func TestSelectToolWithoutModel(t *testing.T) {
	fx := newRouterFixture(t, nil, config.PolicyModeGuarded)

	_, err := fx.router.SelectTool(context.Background(), "hello")
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestTransferToNewAccountWaitsForConfirmation(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{callResponse(transferFunds("acct-9", 40))}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)
	ctx := accountCtx()

	resp, err := fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "send forty dollars to account nine", SessionID: "sess-t"})
	require.NoError(t, err)
	require.NotNil(t, resp.Decision)
	assert.Equal(t, dto.DecisionNeedsConfirmation, resp.Decision.Kind)
	assert.Equal(t, "medium risk transfer", resp.Decision.Reason)
	assert.True(t, strings.HasPrefix(*resp.SpokenResponse, "I've set up a transfer of $40.00 to account acct-9."))
	assert.Empty(t, fx.bank.createdTransfers())

	resp, err = fx.router.Process(ctx, dto.VoiceRequest{SpokenText: "yes", SessionID: "sess-t"})
	require.NoError(t, err)
	assert.Equal(t, "Success. I have transferred $40 to account acct-9.", *resp.SpokenResponse)
	require.Len(t, fx.bank.createdTransfers(), 1)
	moved := fx.bank.createdTransfers()[0]
	assert.Equal(t, "acct-9", moved.PayeeID)
	assert.Equal(t, tools.TransferMedium, moved.Medium)
	assert.InDelta(t, 40.0, moved.Amount, 0.001)
	assert.Empty(t, fx.bank.createdBills())
}

func TestTransferToKnownAccountExecutes(t *testing.T) {
	model := &fakeModel{responses: []*genai.GenerateContentResponse{
		callResponse(transferFunds("acct-savings", 60)),
		textResponse("Done."),
	}}
	fx := newRouterFixture(t, model, config.PolicyModeGuarded)
	fx.bank.transfers = []dto.NessieTransfer{{PayerID: "acct-1", PayeeID: "acct-savings", Amount: decimal.NewFromInt(100)}}

	resp, err := fx.router.Process(accountCtx(), dto.VoiceRequest{SpokenText: "move sixty to savings"})
	require.NoError(t, err)
	assert.Equal(t, "Done.", *resp.SpokenResponse)
	require.Len(t, fx.bank.createdTransfers(), 1)
	assert.Equal(t, dto.RiskLow, resp.Decision.RiskLevel)
}

func TestFirstFunctionCallHandlesMissingPieces(t *testing.T) {
	call := &genai.FunctionCall{Name: tools.GetAccountBalance}
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil response"},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}},
		{name: "nil candidate", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{nil}}},
		{name: "nil content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		{name: "unnamed call", resp: callResponse(&genai.FunctionCall{})},
		{name: "nil part before call", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{nil, {Text: "checking"}, {FunctionCall: call}}},
		}}}, want: tools.GetAccountBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, _ := firstFunctionCall(tt.resp)
			if tt.want == "" {
				assert.Nil(t, name)
				return
			}
			require.NotNil(t, name)
			assert.Equal(t, tt.want, *name)
		})
	}
}
