package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/crmdataplatform/internal/domain/providers"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

const defaultScrollSize = 10

// Searcher runs a single offset request
type Searcher interface {
	Search(ctx context.Context, index string, req dsl.SearchRequest) (*repositories.SearchResponse, error)
}

// ScrollEmulator provides scroll cursors on top of an index that only
// supports offset paging. Cursor state lives in a shared CursorStore so any
// replica can continue a scroll.
type ScrollEmulator struct {
	searcher Searcher
	store    providers.CursorStore
}

type scrollState struct {
	Index   string            `json:"index"`
	Request dsl.SearchRequest `json:"request"`
	Offset  int               `json:"offset"`
}

// NewScrollEmulator creates a new scroll emulator
func NewScrollEmulator(searcher Searcher, store providers.CursorStore) *ScrollEmulator {
	return &ScrollEmulator{searcher: searcher, store: store}
}

// Open runs the first batch and stores a new cursor for keepAlive
func (s *ScrollEmulator) Open(ctx context.Context, index string, req dsl.SearchRequest, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	if req.Size == nil {
		req.Size = dsl.Int(defaultScrollSize)
	}
	req.From = dsl.Int(0)

	resp, err := s.searcher.Search(ctx, index, req)
	if err != nil {
		return nil, err
	}

	cursor := dsl.Cursor(uuid.NewString())
	state := scrollState{Index: index, Request: req, Offset: *req.Size}
	if err := s.save(ctx, cursor, state, keepAlive); err != nil {
		return nil, err
	}

	resp.Cursor = cursor
	return resp, nil
}

// Next returns the batch after the last one served for cursor and renews it
func (s *ScrollEmulator) Next(ctx context.Context, cursor dsl.Cursor, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	data, err := s.store.Load(ctx, string(cursor), keepAlive)
	if errors.Is(err, providers.ErrCursorNotFound) {
		return nil, apperrors.NewCursorExpiredError(string(cursor))
	}
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to load scroll cursor", err)
	}

	var state scrollState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.NewInternalError("corrupt scroll cursor state", err)
	}

	req := state.Request
	req.From = dsl.Int(state.Offset)
	resp, err := s.searcher.Search(ctx, state.Index, req)
	if err != nil {
		return nil, err
	}

	state.Offset += *req.Size
	if err := s.save(ctx, cursor, state, keepAlive); err != nil {
		return nil, err
	}

	resp.Cursor = cursor
	return resp, nil
}

// Close discards the cursor
func (s *ScrollEmulator) Close(ctx context.Context, cursor dsl.Cursor) error {
	if err := s.store.Delete(ctx, string(cursor)); err != nil {
		return apperrors.NewUnavailableError("failed to delete scroll cursor", err)
	}
	return nil
}

func (s *ScrollEmulator) save(ctx context.Context, cursor dsl.Cursor, state scrollState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewInternalError("failed to encode scroll cursor state", err)
	}
	if err := s.store.Save(ctx, string(cursor), data, ttl); err != nil {
		return apperrors.NewUnavailableError("failed to store scroll cursor", err)
	}
	return nil
}

// EmulatedIndex is a DocumentIndex over an offset-only searcher whose scroll
// cursors are served by a ScrollEmulator
type EmulatedIndex struct {
	Searcher
	emulator *ScrollEmulator
}

// Ensure EmulatedIndex implements DocumentIndex
var _ repositories.DocumentIndex = (*EmulatedIndex)(nil)

// NewEmulatedIndex creates a new emulated index
func NewEmulatedIndex(searcher Searcher, store providers.CursorStore) *EmulatedIndex {
	return &EmulatedIndex{Searcher: searcher, emulator: NewScrollEmulator(searcher, store)}
}

// OpenScroll implements repositories.DocumentIndex
func (e *EmulatedIndex) OpenScroll(ctx context.Context, index string, req dsl.SearchRequest, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	return e.emulator.Open(ctx, index, req, keepAlive)
}

// Scroll implements repositories.DocumentIndex
func (e *EmulatedIndex) Scroll(ctx context.Context, cursor dsl.Cursor, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	return e.emulator.Next(ctx, cursor, keepAlive)
}
