package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"voice-banking/internal/config"
	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/entities"
	Iservices "voice-banking/internal/domain/interfaces/services"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/infra/tools"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	strongConfirmPhrase = "i confirm this payment"

	paymentUnavailableLine   = "I couldn't set up that payment right now. No money was moved."
	confirmationInvalidLine  = "That confirmation is no longer valid. No money was moved."
	confirmationPromptSuffix = "Would you like me to send it now?"
)

var (
	HighRiskScript = []string{
		"Wait.",
		"I've flagged this transaction as High Risk.",
		"I've paused the transfer.",
		"To proceed, you must explicitly say: 'I confirm this payment'.",
	}
	CancelScript = []string{
		"Understood. I've cancelled that request. No money was moved.",
		"Is there anything else I can help you with?",
	}

	cancelPhrases  = []string{"cancel", "stop", "no", "never mind", "wait"}
	confirmPhrases = []string{"yes", "confirm", "send it", "do it"}
)

type Intent int

const (
	IntentNone Intent = iota
	IntentCancel
	IntentConfirm
	IntentStrongConfirm
)

// DetectIntent classifies a follow-up utterance. Phrases match on whole words, so "now" is not "no".
func DetectIntent(utterance string) Intent {
	words := strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	padded := " " + strings.Join(words, " ") + " "
	has := func(phrase string) bool {
		return strings.Contains(padded, " "+phrase+" ")
	}

	for _, phrase := range cancelPhrases {
		if has(phrase) {
			return IntentCancel
		}
	}
	if has(strongConfirmPhrase) {
		return IntentStrongConfirm
	}
	for _, phrase := range confirmPhrases {
		if has(phrase) {
			return IntentConfirm
		}
	}
	return IntentNone
}

// CommandRouterService sends utterances to the model with the tool registry declared and applies the payment policy.
type CommandRouterService struct {
	Logger        *logger.Logger
	Model         provider.ModelClient
	Registry      *tools.Registry
	Guard         Iservices.IScamGuardService
	Confirmations Iservices.IConfirmationService
	CommandLog    Iservices.ICommandLogService
	PolicyMode    string
	MaxToolTurns  int
}

func NewCommandRouterService(
	logger *logger.Logger,
	model provider.ModelClient,
	registry *tools.Registry,
	guard Iservices.IScamGuardService,
	confirmations Iservices.IConfirmationService,
	commandLog Iservices.ICommandLogService,
	policyMode string,
	maxToolTurns int,
) *CommandRouterService {
	if maxToolTurns < 1 {
		maxToolTurns = 1
	}
	return &CommandRouterService{
		Logger:        logger,
		Model:         model,
		Registry:      registry,
		Guard:         guard,
		Confirmations: confirmations,
		CommandLog:    commandLog,
		PolicyMode:    policyMode,
		MaxToolTurns:  maxToolTurns,
	}
}

func (th *CommandRouterService) guarded() bool {
	return th.PolicyMode != config.PolicyModeLegacy
}

// Process routes one utterance. A failed or empty completion yields a nil spoken response.
func (th *CommandRouterService) Process(ctx context.Context, request dto.VoiceRequest) (dto.CommandResponse, error) {
	transcript := strings.TrimSpace(request.SpokenText)
	th.Logger.Info(fmt.Sprintf("User said: %s", transcript), logrus.Fields{"session_id": request.SessionID})

	var response dto.CommandResponse
	handled := false
	if th.guarded() && request.SessionID != "" {
		response, handled = th.handleFollowUp(ctx, request.SessionID, transcript)
	}
	if !handled {
		response = th.route(ctx, request.SessionID, transcript)
	}

	if err := ctx.Err(); err != nil {
		return response, err
	}

	if th.CommandLog != nil {
		record := entities.CommandRecord{
			SessionID:  response.SessionID,
			Transcript: transcript,
			ToolCalls:  response.ToolCalls,
			Decision:   response.Decision,
		}
		if response.SpokenResponse != nil {
			record.Response = *response.SpokenResponse
		}
		th.CommandLog.Record(ctx, record)
	}
	return response, nil
}

func spoken(text string) *string {
	text = MaskSentinel(text)
	if text == "" {
		return nil
	}
	return &text
}

func (th *CommandRouterService) route(ctx context.Context, sessionID, transcript string) dto.CommandResponse {
	response := dto.CommandResponse{SessionID: sessionID}
	if th.Model == nil {
		th.Logger.Warn("Model is not configured; returning an empty response")
		return response
	}

	contents := []*genai.Content{genai.NewContentFromText(transcript, genai.RoleUser)}
	declarations := th.Registry.Declarations()
	var finalText string

	for turn := 0; turn < th.MaxToolTurns; turn++ {
		resp, err := th.Model.GenerateContent(ctx, contents, declarations)
		if err != nil {
			th.Logger.Error(fmt.Sprintf("Completion failed: %v", err))
			return response
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			finalText = resp.Text()
			break
		}

		if th.guarded() {
			decision, gated := th.judge(ctx, calls, transcript)
			response.Decision = &decision
			switch decision.Kind {
			case dto.DecisionBlock:
				response.ToolCalls = append(response.ToolCalls, th.runBlocked(ctx, calls)...)
				response.SpokenResponse = spoken(ScamWarning)
				return response
			case dto.DecisionNeedsConfirmation:
				return th.propose(ctx, response, gated, decision, transcript)
			}
		}

		parts := make([]*genai.Part, 0, len(calls))
		results := make([]string, 0, len(calls))
		for _, call := range calls {
			result := th.invoke(ctx, call.Name, call.Args)
			response.ToolCalls = append(response.ToolCalls, dto.ToolCallRecord{Name: call.Name, Args: call.Args, Result: result, Executed: true})
			parts = append(parts, genai.NewPartFromFunctionResponse(call.Name, map[string]any{"result": result}))
			results = append(results, result)
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

		// Out of turns: speak the tool results themselves.
		finalText = strings.Join(results, " ")
	}

	response.SpokenResponse = spoken(finalText)
	return response
}

func (th *CommandRouterService) invoke(ctx context.Context, name string, args map[string]any) string {
	result, err := th.Registry.Invoke(ctx, name, args)
	if err != nil {
		th.Logger.Warn(fmt.Sprintf("Tool %s failed: %v", name, err))
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// judge evaluates every call of a turn before any of them runs. A block wins over a confirmation request.
func (th *CommandRouterService) judge(ctx context.Context, calls []*genai.FunctionCall, transcript string) (dto.Decision, *genai.FunctionCall) {
	var verdict *dto.Decision
	var gated *genai.FunctionCall

	for _, call := range calls {
		decision := th.Guard.Evaluate(ctx, call.Name, call.Args, transcript)
		switch decision.Kind {
		case dto.DecisionBlock:
			return decision, call
		case dto.DecisionNeedsConfirmation:
			if gated == nil {
				verdict, gated = &decision, call
			}
		default:
			if verdict == nil || (gated == nil && decision.RiskLevel != "") {
				verdict = &decision
			}
		}
	}
	return *verdict, gated
}

// runBlocked executes only the pure scam-flag tool so its result is on record.
func (th *CommandRouterService) runBlocked(ctx context.Context, calls []*genai.FunctionCall) []dto.ToolCallRecord {
	records := make([]dto.ToolCallRecord, 0, len(calls))
	for _, call := range calls {
		record := dto.ToolCallRecord{Name: call.Name, Args: call.Args}
		if call.Name == tools.AnalyzeScamRisk {
			record.Result = th.invoke(ctx, call.Name, call.Args)
			record.Executed = true
		}
		records = append(records, record)
	}
	return records
}

func (th *CommandRouterService) propose(ctx context.Context, response dto.CommandResponse, call *genai.FunctionCall, decision dto.Decision, transcript string) dto.CommandResponse {
	if response.SessionID == "" {
		response.SessionID = "sess_" + uuid.NewString()
	}
	response.ToolCalls = append(response.ToolCalls, dto.ToolCallRecord{Name: call.Name, Args: call.Args})

	target, amount, _ := tools.MovementArgs(call.Name, call.Args)
	action := entities.PendingAction{
		SessionID:  response.SessionID,
		ActionKind: call.Name,
		TargetID:   target,
		Amount:     amount,
		Args:       call.Args,
		Transcript: transcript,
		RiskLevel:  decision.RiskLevel,
		Score:      decision.Score,
		Reasons:    decision.Reasons,
	}
	if account, ok := dto.AccountFromContext(ctx); ok {
		action.AccountID = account.ID
	}

	pending, err := th.Confirmations.Propose(ctx, action)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to hold payment for confirmation: %v", err))
		blocked := dto.Block(call.Name, "confirmation_unavailable")
		response.Decision = &blocked
		response.SpokenResponse = spoken(paymentUnavailableLine)
		return response
	}

	decision.ProposalID = pending.ProposalID
	response.Decision = &decision
	response.SpokenResponse = spoken(confirmationPrompt(pending))
	return response
}

func confirmationPrompt(pending entities.PendingAction) string {
	if pending.RequiresStrongConfirmation() {
		return strings.Join(HighRiskScript, " ")
	}
	summary := fmt.Sprintf("I've set up a payment of $%s to %s.", pending.Amount.StringFixed(2), pending.TargetID)
	if pending.ActionKind == tools.TransferFunds {
		summary = fmt.Sprintf("I've set up a transfer of $%s to account %s.", pending.Amount.StringFixed(2), pending.TargetID)
	}
	lines := []string{summary}
	lines = append(lines, pending.Reasons...)
	lines = append(lines, confirmationPromptSuffix)
	return strings.Join(lines, " ")
}

// handleFollowUp resolves a confirm or cancel utterance against the session's pending payment.
func (th *CommandRouterService) handleFollowUp(ctx context.Context, sessionID, transcript string) (dto.CommandResponse, bool) {
	intent := DetectIntent(transcript)
	if intent == IntentNone || th.Confirmations == nil {
		return dto.CommandResponse{}, false
	}

	pending, err := th.Confirmations.Latest(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNoPendingAction) {
			th.Logger.Error(fmt.Sprintf("Failed to load pending action for session '%s': %v", sessionID, err))
		}
		return dto.CommandResponse{}, false
	}

	response := dto.CommandResponse{SessionID: sessionID}
	record := dto.ToolCallRecord{Name: pending.ActionKind, Args: pending.Args}
	decision := dto.Decision{
		Tool:       pending.ActionKind,
		RiskLevel:  pending.RiskLevel,
		Score:      pending.Score,
		Reasons:    pending.Reasons,
		ProposalID: pending.ProposalID,
	}

	switch {
	case intent == IntentCancel:
		if err := th.Confirmations.Cancel(ctx, sessionID, pending.ProposalID); err != nil {
			th.Logger.Error(fmt.Sprintf("Failed to cancel pending action %s: %v", pending.ProposalID, err))
		}
		decision.Kind, decision.Reason = dto.DecisionBlock, "cancelled"
		response.SpokenResponse = spoken(strings.Join(CancelScript, " "))

	case pending.RequiresStrongConfirmation() && intent != IntentStrongConfirm:
		decision.Kind, decision.Reason = dto.DecisionNeedsConfirmation, "strong confirmation required"
		response.SpokenResponse = spoken(strings.Join(HighRiskScript, " "))

	default:
		result, err := th.Confirmations.Consume(ctx, CheckFor(pending))
		if err != nil {
			th.Logger.Warn(fmt.Sprintf("Confirmation rejected for %s: %v", pending.ProposalID, err))
			decision.Kind, decision.Reason = dto.DecisionBlock, result.Reason
			response.SpokenResponse = spoken(confirmationInvalidLine)
			break
		}

		if _, ok := dto.AccountFromContext(ctx); !ok && pending.AccountID != "" {
			ctx = dto.WithAccount(ctx, dto.AccountRef{ID: pending.AccountID})
		}
		record.Result = th.invoke(ctx, pending.ActionKind, pending.Args)
		record.Executed = true
		decision.Kind = dto.DecisionAllow
		response.SpokenResponse = spoken(record.Result)
	}

	response.Decision = &decision
	response.ToolCalls = []dto.ToolCallRecord{record}
	return response, true
}

// SelectTool runs a single completion and reports the first function call without executing it.
func (th *CommandRouterService) SelectTool(ctx context.Context, spokenText string) (dto.ToolCallResponse, error) {
	if th.Model == nil {
		return dto.ToolCallResponse{}, provider.ErrNotConfigured
	}

	contents := []*genai.Content{genai.NewContentFromText(spokenText, genai.RoleUser)}
	resp, err := th.Model.GenerateContent(ctx, contents, th.Registry.Declarations())
	if err != nil {
		return dto.ToolCallResponse{}, err
	}

	var out dto.ToolCallResponse
	if resp == nil {
		return out, nil
	}
	out.Name, out.Args = firstFunctionCall(resp)
	if text := resp.Text(); text != "" {
		out.Text = &text
	}
	return out, nil
}

// firstFunctionCall scans the first candidate's parts. A response without candidates or content has no call.
func firstFunctionCall(resp *genai.GenerateContentResponse) (*string, map[string]any) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, nil
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, nil
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.FunctionCall == nil || part.FunctionCall.Name == "" {
			continue
		}
		name := part.FunctionCall.Name
		return &name, part.FunctionCall.Args
	}
	return nil, nil
}
