package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/entities"
	"voice-banking/internal/domain/interfaces/repository"
	"voice-banking/internal/infra/logger"

	"github.com/google/uuid"
)

var (
	ErrNoPendingAction     = errors.New("no pending action")
	ErrInvalidConfirmation = errors.New("invalid confirmation")
)

const tokenSeparator = "."

const (
	ReasonInvalidFormat   = "invalid_format"
	ReasonMissing         = "missing_or_session_mismatch"
	ReasonAlreadyConfirm  = "already_confirmed"
	ReasonKindMismatch    = "action_kind_mismatch"
	ReasonTargetMismatch  = "target_mismatch"
	ReasonAmountMismatch  = "amount_mismatch"
	ReasonExpired         = "expired"
	ReasonSignatureFailed = "signature_mismatch"
)

// ConfirmationService issues and checks HMAC-bound, single-use confirmation tokens for pending payments.
type ConfirmationService struct {
	Logger *logger.Logger
	Store  repository.SessionStore
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// NewConfirmationService uses a random per-process secret when none is configured.
func NewConfirmationService(logger *logger.Logger, store repository.SessionStore, secret string, ttl time.Duration) *ConfirmationService {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			logger.Fatal(fmt.Sprintf("Failed to generate confirmation secret: %v", err))
		}
		logger.Warn("CONFIRMATION_SECRET is not set; tokens will not survive a restart")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &ConfirmationService{Logger: logger, Store: store, Secret: key, TTL: ttl, Now: time.Now}
}

func bindingString(action entities.PendingAction) string {
	return strings.Join([]string{
		action.SessionID,
		action.ActionKind,
		action.TargetID,
		action.Amount.String(),
		action.Timestamp.UTC().Format(time.RFC3339Nano),
	}, "|")
}

func (th *ConfirmationService) sign(action entities.PendingAction) string {
	mac := hmac.New(sha256.New, th.Secret)
	mac.Write([]byte(bindingString(action)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Propose stamps the action with a proposal id, timestamp and token, then stores it for TTL.
func (th *ConfirmationService) Propose(ctx context.Context, action entities.PendingAction) (entities.PendingAction, error) {
	if action.ProposalID == "" {
		action.ProposalID = "prop_" + uuid.NewString()
	}
	action.Timestamp = th.Now().UTC()
	action.Status = entities.PendingAwaitingConfirmation
	action.Token = action.ProposalID + tokenSeparator + th.sign(action)

	if err := th.Store.SetPending(ctx, action, th.TTL); err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to store pending action %s: %v", action.ProposalID, err))
		return entities.PendingAction{}, fmt.Errorf("failed to store pending action: %w", err)
	}
	return action, nil
}

func parseToken(token string) (string, string, bool) {
	proposalID, signature, found := strings.Cut(token, tokenSeparator)
	if !found || proposalID == "" || signature == "" {
		return "", "", false
	}
	return proposalID, signature, true
}

func (th *ConfirmationService) Validate(ctx context.Context, check dto.ConfirmationCheck) dto.ConfirmationResult {
	proposalID, signature, ok := parseToken(check.Token)
	if !ok {
		return dto.ConfirmationResult{Reason: ReasonInvalidFormat}
	}

	action, err := th.Store.GetPending(ctx, check.SessionID, proposalID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			th.Logger.Error(fmt.Sprintf("Failed to load pending action %s: %v", proposalID, err))
		}
		return dto.ConfirmationResult{Reason: ReasonMissing}
	}
	return th.verify(action, check, signature)
}

func (th *ConfirmationService) verify(action entities.PendingAction, check dto.ConfirmationCheck, signature string) dto.ConfirmationResult {
	switch {
	case action.Status != entities.PendingAwaitingConfirmation:
		return dto.ConfirmationResult{Reason: ReasonAlreadyConfirm}
	case action.ActionKind != check.ActionKind:
		return dto.ConfirmationResult{Reason: ReasonKindMismatch}
	case action.TargetID != check.TargetID:
		return dto.ConfirmationResult{Reason: ReasonTargetMismatch}
	case !action.Amount.Equal(check.Amount):
		return dto.ConfirmationResult{Reason: ReasonAmountMismatch}
	case th.Now().Sub(action.Timestamp) > th.TTL:
		return dto.ConfirmationResult{Reason: ReasonExpired}
	}

	if !hmac.Equal([]byte(signature), []byte(th.sign(action))) {
		return dto.ConfirmationResult{Reason: ReasonSignatureFailed}
	}

	return dto.ConfirmationResult{Valid: true, ProposalID: action.ProposalID}
}

// Consume validates the token, then takes the pending action out of the store and checks the taken copy.
// Only one caller can take a given action, so a token authorizes at most one execution.
func (th *ConfirmationService) Consume(ctx context.Context, check dto.ConfirmationCheck) (dto.ConfirmationResult, error) {
	result := th.Validate(ctx, check)
	if !result.Valid {
		return result, fmt.Errorf("%w: %s", ErrInvalidConfirmation, result.Reason)
	}
	_, signature, _ := parseToken(check.Token)

	action, err := th.Store.TakePending(ctx, check.SessionID, result.ProposalID)
	if errors.Is(err, repository.ErrNotFound) {
		result = dto.ConfirmationResult{Reason: ReasonAlreadyConfirm}
		return result, fmt.Errorf("%w: %s", ErrInvalidConfirmation, result.Reason)
	}
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to take pending action %s: %v", result.ProposalID, err))
		return dto.ConfirmationResult{Reason: ReasonMissing}, fmt.Errorf("failed to take pending action: %w", err)
	}

	result = th.verify(action, check, signature)
	if !result.Valid {
		return result, fmt.Errorf("%w: %s", ErrInvalidConfirmation, result.Reason)
	}
	return result, nil
}

func (th *ConfirmationService) Latest(ctx context.Context, sessionID string) (entities.PendingAction, error) {
	action, err := th.Store.LatestPending(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return entities.PendingAction{}, ErrNoPendingAction
	}
	if err != nil {
		return entities.PendingAction{}, fmt.Errorf("failed to load pending action: %w", err)
	}
	return action, nil
}

func (th *ConfirmationService) Cancel(ctx context.Context, sessionID, proposalID string) error {
	return th.Store.ClearPending(ctx, sessionID, proposalID)
}

// CheckFor builds the validation input that binds a token to its own pending action.
func CheckFor(action entities.PendingAction) dto.ConfirmationCheck {
	return dto.ConfirmationCheck{
		Token:      action.Token,
		SessionID:  action.SessionID,
		ActionKind: action.ActionKind,
		TargetID:   action.TargetID,
		Amount:     action.Amount,
	}
}
