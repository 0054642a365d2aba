package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/mocks"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

func chunkFirstID(req dsl.SearchRequest) string {
	cs, ok := req.Query.(dsl.ConstantScore)
	if !ok {
		return ""
	}
	terms, ok := cs.Filter.(dsl.Terms)
	if !ok || terms.Field != "_id" || len(terms.Values) == 0 {
		return ""
	}
	return terms.Values[0].(string)
}

func TestSearchExecutor_ByIDs_ChunksPreserveOrder(t *testing.T) {
	// Arrange
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{ChunkSize: 1000, ChunkConcurrency: 3}, nil)

	ids := make([]string, 2500)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}

	chunkTotals := map[string]int64{"1": 1000, "1001": 990, "2001": 480}
	for first, total := range chunkTotals {
		first, total := first, total
		index.On("Search", mock.Anything, "companies_test", mock.MatchedBy(func(req dsl.SearchRequest) bool {
			return chunkFirstID(req) == first
		})).Return(&repositories.SearchResponse{
			Total: total,
			Hits:  []repositories.SearchHit{{ID: first}},
		}, nil).Once()
	}

	// Act
	resp, err := executor.ByIDs(context.Background(), "companies_test", ids, []string{"id"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2470), resp.Total)
	require.Len(t, resp.Hits, 3)
	assert.Equal(t, "1", resp.Hits[0].ID)
	assert.Equal(t, "1001", resp.Hits[1].ID)
	assert.Equal(t, "2001", resp.Hits[2].ID)
	index.AssertNumberOfCalls(t, "Search", 3)

	for _, call := range index.Calls {
		req := call.Arguments.Get(2).(dsl.SearchRequest)
		assert.Equal(t, []string{"id"}, req.Source)
		terms := req.Query.(dsl.ConstantScore).Filter.(dsl.Terms)
		assert.Equal(t, len(terms.Values), *req.Size)
	}
}

func TestSearchExecutor_ByIDs_FirstErrorFailsCall(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{ChunkSize: 2, ChunkConcurrency: 1}, nil)

	index.On("Search", mock.Anything, "companies_test", mock.Anything).
		Return(nil, errors.New("connection reset")).Once()

	resp, err := executor.ByIDs(context.Background(), "companies_test", []string{"1", "2", "3"}, nil)

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestSearchExecutor_ByIDs_Empty(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{}, nil)

	resp, err := executor.ByIDs(context.Background(), "companies_test", nil, nil)

	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchExecutor_Page(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{}, nil)

	index.On("Search", mock.Anything, "companies_test", mock.MatchedBy(func(req dsl.SearchRequest) bool {
		return *req.From == 20 && *req.Size == 10 && req.TrackTotalHits
	})).Return(&repositories.SearchResponse{Total: 55}, nil).Once()

	resp, err := executor.Page(context.Background(), "companies_test", dsl.SearchRequest{Query: dsl.MatchAll{}}, 20, 10)

	require.NoError(t, err)
	assert.Equal(t, int64(55), resp.Total)
}

func TestSearchExecutor_Page_DeepOffsetRejected(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{MaxResultWindow: 10000}, nil)

	_, err := executor.Page(context.Background(), "companies_test", dsl.SearchRequest{}, 9995, 10)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "scroll")
}

func TestSearchExecutor_Page_Timeout(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{Timeout: 20 * time.Millisecond}, nil)

	index.On("Search", mock.Anything, "companies_test", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	_, err := executor.Page(context.Background(), "companies_test", dsl.SearchRequest{}, 0, 10)

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearchExecutor_Scroll(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{}, nil)
	ctx := context.Background()

	index.On("OpenScroll", mock.Anything, "companies_test", mock.MatchedBy(func(req dsl.SearchRequest) bool {
		return req.From == nil && *req.Size == 100
	}), 2*time.Minute).Return(&repositories.SearchResponse{Total: 150, Cursor: "c1"}, nil).Once()
	index.On("Scroll", mock.Anything, dsl.Cursor("c1"), 2*time.Minute).
		Return(&repositories.SearchResponse{Total: 150, Cursor: "c1"}, nil).Once()
	index.On("Scroll", mock.Anything, dsl.Cursor("gone"), 2*time.Minute).
		Return(nil, apperrors.NewCursorExpiredError("gone")).Once()

	first, err := executor.OpenScroll(ctx, "companies_test", dsl.SearchRequest{Query: dsl.MatchAll{}}, 100)
	require.NoError(t, err)
	assert.Equal(t, dsl.Cursor("c1"), first.Cursor)

	next, err := executor.ContinueScroll(ctx, first.Cursor)
	require.NoError(t, err)
	assert.Empty(t, next.Hits)

	_, err = executor.ContinueScroll(ctx, "gone")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCursorExpired))

	_, err = executor.ContinueScroll(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestSearchExecutor_MatchesAny(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	executor := NewSearchExecutor(index, ExecutorConfig{}, nil)

	index.On("Search", mock.Anything, "companies_test", mock.MatchedBy(func(req dsl.SearchRequest) bool {
		return *req.Size == 0
	})).Return(&repositories.SearchResponse{Total: 1}, nil).Once()

	ok, err := executor.MatchesAny(context.Background(), "companies_test", dsl.MatchAll{})

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChunkIDs(t *testing.T) {
	ids := make([]string, 7)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}

	chunks := chunkIDs(ids, 3)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 1)
}
