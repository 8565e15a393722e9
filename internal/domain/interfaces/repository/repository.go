package repository

import (
	"context"
	"errors"
	"time"

	"voice-banking/internal/domain/entities"
)

var ErrNotFound = errors.New("not found")

type Repository[T any] interface {
	Create(ctx context.Context, collectionName string, entity T) (T, error)
	FindBySessionID(ctx context.Context, collectionName string, sessionID string) ([]T, error)
	FindAll(ctx context.Context, collectionName string) ([]T, error)
}

// SessionStore keeps short-lived per-session state: actions awaiting confirmation and outgoing payment velocity.
type SessionStore interface {
	SetPending(ctx context.Context, action entities.PendingAction, ttl time.Duration) error
	GetPending(ctx context.Context, sessionID, proposalID string) (entities.PendingAction, error)
	LatestPending(ctx context.Context, sessionID string) (entities.PendingAction, error)
	// TakePending removes and returns the action in one step; ErrNotFound when another caller took it first.
	TakePending(ctx context.Context, sessionID, proposalID string) (entities.PendingAction, error)
	ClearPending(ctx context.Context, sessionID, proposalID string) error
	RecordOutgoing(ctx context.Context, accountID string, window time.Duration) (int64, error)
	RecentOutgoing(ctx context.Context, accountID string) (int64, error)
}
