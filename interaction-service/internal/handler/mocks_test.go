package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/consumer"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/pkg/jwt"
)

type MockInteractionService struct {
	mock.Mock
}

func (m *MockInteractionService) Toggle(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (domain.ToggleOutcome, error) {
	args := m.Called(ctx, actorID, targetID, kind)
	return args.Get(0).(domain.ToggleOutcome), args.Error(1)
}

func (m *MockInteractionService) Apply(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (domain.ToggleOutcome, error) {
	args := m.Called(ctx, actorID, targetID, kind, action)
	return args.Get(0).(domain.ToggleOutcome), args.Error(1)
}

func (m *MockInteractionService) BatchToggle(ctx context.Context, actorID string, items []domain.BatchItem) (map[string]domain.ToggleOutcome, error) {
	args := m.Called(ctx, actorID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.ToggleOutcome), args.Error(1)
}

func (m *MockInteractionService) GetCount(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Get(0).(domain.CounterAggregate), args.Error(1)
}

func (m *MockInteractionService) BatchStatus(ctx context.Context, actorID string, kind domain.InteractionKind, targetIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, actorID, kind, targetIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockInteractionService) RegisterTarget(ctx context.Context, target domain.Target) (*domain.Target, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Target), args.Error(1)
}

func (m *MockInteractionService) HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error {
	return m.Called(ctx, event).Error(0)
}

// stubValidator accepts any token equal to its key and names the user after it.
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*jwt.Claims, error) {
	if token == "" || token == "bad" {
		return nil, jwt.ErrInvalidToken
	}
	return &jwt.Claims{UserID: token}, nil
}
