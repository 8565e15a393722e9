package services

import (
	"context"
	"fmt"
	"time"

	"voice-banking/internal/domain/entities"
	"voice-banking/internal/domain/interfaces/repository"
	repocontants "voice-banking/internal/domain/interfaces/repository/contants"
	"voice-banking/internal/infra/logger"

	"github.com/google/uuid"
)

// CommandLogService keeps the audit trail of routed commands.
type CommandLogService struct {
	CommandRepository repository.Repository[entities.CommandRecord]
	Logger            *logger.Logger
}

func NewCommandLogService(commandRepository repository.Repository[entities.CommandRecord], logger *logger.Logger) *CommandLogService {
	return &CommandLogService{
		CommandRepository: commandRepository,
		Logger:            logger,
	}
}

// Record stores the command. Failures are logged and never returned to the caller.
func (cls *CommandLogService) Record(ctx context.Context, record entities.CommandRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := cls.CommandRepository.Create(ctx, repocontants.COMMAND_LOG_COLLECTION, record)
	if err != nil {
		cls.Logger.Error(fmt.Sprintf("Failed to record command for session '%s': %v", record.SessionID, err))
	}
}

func (cls *CommandLogService) FindBySession(ctx context.Context, sessionID string) ([]entities.CommandRecord, error) {
	records, err := cls.CommandRepository.FindBySessionID(ctx, repocontants.COMMAND_LOG_COLLECTION, sessionID)
	if err != nil {
		cls.Logger.Error(fmt.Sprintf("Failed to find commands for session '%s': %v", sessionID, err))
		return nil, err
	}
	return records, nil
}
