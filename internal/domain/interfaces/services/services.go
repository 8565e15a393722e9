package Iservices

import (
	"context"

	"voice-banking/internal/domain/dto"
	"voice-banking/internal/domain/entities"
)

type ICommandRouterService interface {
	Process(ctx context.Context, request dto.VoiceRequest) (dto.CommandResponse, error)
	SelectTool(ctx context.Context, spokenText string) (dto.ToolCallResponse, error)
}

type IScamGuardService interface {
	Evaluate(ctx context.Context, toolName string, args map[string]any, transcript string) dto.Decision
}

type IConfirmationService interface {
	Propose(ctx context.Context, action entities.PendingAction) (entities.PendingAction, error)
	Validate(ctx context.Context, check dto.ConfirmationCheck) dto.ConfirmationResult
	Consume(ctx context.Context, check dto.ConfirmationCheck) (dto.ConfirmationResult, error)
	Latest(ctx context.Context, sessionID string) (entities.PendingAction, error)
	Cancel(ctx context.Context, sessionID, proposalID string) error
}

type ICommandLogService interface {
	Record(ctx context.Context, record entities.CommandRecord)
	FindBySession(ctx context.Context, sessionID string) ([]entities.CommandRecord, error)
}
