// Package mocks holds testify mocks of the domain ports
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
)

// MockDocumentIndex is a mock of repositories.DocumentIndex
type MockDocumentIndex struct {
	mock.Mock
}

// NewMockDocumentIndex creates a mock that asserts its expectations on cleanup
func NewMockDocumentIndex(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockDocumentIndex {
	m := &MockDocumentIndex{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDocumentIndex) Search(ctx context.Context, index string, req dsl.SearchRequest) (*repositories.SearchResponse, error) {
	args := m.Called(ctx, index, req)
	resp, _ := args.Get(0).(*repositories.SearchResponse)
	return resp, args.Error(1)
}

func (m *MockDocumentIndex) OpenScroll(ctx context.Context, index string, req dsl.SearchRequest, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	args := m.Called(ctx, index, req, keepAlive)
	resp, _ := args.Get(0).(*repositories.SearchResponse)
	return resp, args.Error(1)
}

func (m *MockDocumentIndex) Scroll(ctx context.Context, cursor dsl.Cursor, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	args := m.Called(ctx, cursor, keepAlive)
	resp, _ := args.Get(0).(*repositories.SearchResponse)
	return resp, args.Error(1)
}
