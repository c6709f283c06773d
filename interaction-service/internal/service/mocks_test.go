package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/store"
)

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) Apply(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (domain.ToggleOutcome, error) {
	args := m.Called(ctx, actorID, targetID, kind, action)
	return args.Get(0).(domain.ToggleOutcome), args.Error(1)
}

func (m *MockCoordinator) BatchToggle(ctx context.Context, items []domain.BatchItem) map[string]domain.ToggleOutcome {
	args := m.Called(ctx, items)
	return args.Get(0).(map[string]domain.ToggleOutcome)
}

type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) Exists(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (bool, error) {
	args := m.Called(ctx, actorID, targetID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) Insert(ctx context.Context, rec domain.MembershipRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockMembershipRepository) Delete(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) error {
	return m.Called(ctx, actorID, targetID, kind).Error(0)
}

func (m *MockMembershipRepository) BatchExists(ctx context.Context, actorID string, kind domain.InteractionKind, targetIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, actorID, kind, targetIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockMembershipRepository) CountByTarget(ctx context.Context, targetID string, kind domain.InteractionKind) (int64, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Get(0).(int64), args.Error(1)
}

type MockCounterRepository struct {
	mock.Mock
}

func (m *MockCounterRepository) IncrementAtomic(ctx context.Context, targetID string, kind domain.InteractionKind) (bool, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockCounterRepository) DecrementAtomic(ctx context.Context, targetID string, kind domain.InteractionKind) (bool, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockCounterRepository) Read(ctx context.Context, targetID string, kind domain.InteractionKind) (int64, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterRepository) ReadAggregate(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Get(0).(domain.CounterAggregate), args.Error(1)
}

type MockTargetRepository struct {
	mock.Mock
}

func (m *MockTargetRepository) OwnerOf(ctx context.Context, targetID string) (string, error) {
	args := m.Called(ctx, targetID)
	return args.String(0), args.Error(1)
}

func (m *MockTargetRepository) Get(ctx context.Context, targetID string) (*domain.Target, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Target), args.Error(1)
}

func (m *MockTargetRepository) Upsert(ctx context.Context, target domain.Target) (*domain.Target, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Target), args.Error(1)
}

type MockCounterStore struct {
	mock.Mock
}

func (m *MockCounterStore) GetCount(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, bool, error) {
	args := m.Called(ctx, targetID, kind)
	return args.Get(0).(domain.CounterAggregate), args.Bool(1), args.Error(2)
}

func (m *MockCounterStore) SetCountIfNewer(ctx context.Context, agg domain.CounterAggregate) (bool, error) {
	args := m.Called(ctx, agg)
	return args.Bool(0), args.Error(1)
}

func (m *MockCounterStore) SetCount(ctx context.Context, agg domain.CounterAggregate) error {
	return m.Called(ctx, agg).Error(0)
}

func (m *MockCounterStore) Invalidate(ctx context.Context, targetID string, kind domain.InteractionKind) error {
	return m.Called(ctx, targetID, kind).Error(0)
}

func (m *MockCounterStore) RecordAccess(ctx context.Context, targetID string, kind domain.InteractionKind) error {
	return m.Called(ctx, targetID, kind).Error(0)
}

func (m *MockCounterStore) GetTopHotKeys(ctx context.Context, n int64) ([]store.HotKey, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.HotKey), args.Error(1)
}

func (m *MockCounterStore) ResetHotKeyScores(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCounterStore) Close() error {
	return m.Called().Error(0)
}
