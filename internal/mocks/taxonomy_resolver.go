package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// MockTaxonomyResolver is a mock of repositories.TaxonomyResolver
type MockTaxonomyResolver struct {
	mock.Mock
}

// NewMockTaxonomyResolver creates a mock that asserts its expectations on cleanup
func NewMockTaxonomyResolver(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTaxonomyResolver {
	m := &MockTaxonomyResolver{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTaxonomyResolver) ResolveIDs(ctx context.Context, taxonomy entities.Taxonomy, names []string) ([]int64, error) {
	args := m.Called(ctx, taxonomy, names)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}
