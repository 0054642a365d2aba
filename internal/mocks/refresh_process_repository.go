package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// MockRefreshProcessRepository is a mock of repositories.RefreshProcessRepository
type MockRefreshProcessRepository struct {
	mock.Mock
}

// NewMockRefreshProcessRepository creates a mock that asserts its expectations on cleanup
func NewMockRefreshProcessRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRefreshProcessRepository {
	m := &MockRefreshProcessRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRefreshProcessRepository) GetRunning(ctx context.Context, kind entities.EntityKind, entityID int64) (*entities.RefreshProcess, error) {
	args := m.Called(ctx, kind, entityID)
	p, _ := args.Get(0).(*entities.RefreshProcess)
	return p, args.Error(1)
}

func (m *MockRefreshProcessRepository) GetLatest(ctx context.Context, kind entities.EntityKind, entityID int64) (*entities.RefreshProcess, error) {
	args := m.Called(ctx, kind, entityID)
	p, _ := args.Get(0).(*entities.RefreshProcess)
	return p, args.Error(1)
}
