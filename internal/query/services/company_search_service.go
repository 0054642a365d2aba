package services

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	appservices "github.com/zatekoja/crmdataplatform/internal/application/services"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

// SearchOptions carry the caller context of a search
type SearchOptions struct {
	UserID    int64
	IsCurrent *bool
	// SelectFields narrows the returned source fields; empty returns the
	// default company field set
	SelectFields []string
}

// defaultIndustryMinCompanies is the number of companies an industry needs
// before it is offered as a default choice
const defaultIndustryMinCompanies = 100

// CompanySearchService runs company searches end to end: criteria
// normalization, query building, execution and result assembly
type CompanySearchService struct {
	executor   *SearchExecutor
	normalizer *appservices.CriteriaNormalizer
	builder    *appservices.CompanyQueryBuilder
	assembler  *appservices.ResultAssembler
	index      string
	now        func() time.Time
}

// NewCompanySearchService creates a new company search service over index
func NewCompanySearchService(
	executor *SearchExecutor,
	normalizer *appservices.CriteriaNormalizer,
	index string,
) *CompanySearchService {
	return &CompanySearchService{
		executor:   executor,
		normalizer: normalizer,
		builder:    appservices.NewCompanyQueryBuilder(),
		assembler:  appservices.NewResultAssembler(),
		index:      index,
		now:        time.Now,
	}
}

// Search returns one offset page of companies matching criteria
func (s *CompanySearchService) Search(ctx context.Context, criteria entities.SearchCriteria, from, size int, opts SearchOptions) (*entities.CompanyPage, error) {
	req, err := s.searchRequest(ctx, criteria, opts)
	if err != nil {
		return nil, err
	}
	resp, err := s.executor.Page(ctx, s.index, req, from, size)
	if err != nil {
		return nil, err
	}
	return s.page(resp, opts)
}

// OpenScroll starts a scroll over companies matching criteria
func (s *CompanySearchService) OpenScroll(ctx context.Context, criteria entities.SearchCriteria, size int, opts SearchOptions) (*entities.CompanyPage, error) {
	req, err := s.searchRequest(ctx, criteria, opts)
	if err != nil {
		return nil, err
	}
	resp, err := s.executor.OpenScroll(ctx, s.index, req, size)
	if err != nil {
		return nil, err
	}
	return s.page(resp, opts)
}

// ContinueScroll returns the next batch of an open scroll
func (s *CompanySearchService) ContinueScroll(ctx context.Context, cursor dsl.Cursor, opts SearchOptions) (*entities.CompanyPage, error) {
	resp, err := s.executor.ContinueScroll(ctx, cursor)
	if err != nil {
		return nil, err
	}
	return s.page(resp, opts)
}

// MatchesCriteria reports whether companyID satisfies criteria
func (s *CompanySearchService) MatchesCriteria(ctx context.Context, companyID int64, criteria entities.SearchCriteria) (bool, error) {
	n, err := s.normalizer.Normalize(ctx, criteria)
	if err != nil {
		return false, err
	}
	return s.executor.MatchesAny(ctx, s.index, s.builder.MatchQuery(n, companyID, s.now()))
}

// ByIDs fetches companies by id in batches. Order follows the batches, not a
// global sort.
func (s *CompanySearchService) ByIDs(ctx context.Context, ids []int64, opts SearchOptions) (*entities.CompanyPage, error) {
	docIDs := make([]string, len(ids))
	for i, id := range ids {
		docIDs[i] = strconv.FormatInt(id, 10)
	}
	resp, err := s.executor.ByIDs(ctx, s.index, docIDs, appservices.CompanySelectFields)
	if err != nil {
		return nil, err
	}
	return s.page(resp, opts)
}

// Autocomplete pages through companies whose name starts with prefix
func (s *CompanySearchService) Autocomplete(ctx context.Context, prefix string, employeeLow *int64, from, size int, opts SearchOptions) (*entities.CompanyPage, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.AutocompleteRequest(prefix, employeeLow), from, size)
	if err != nil {
		return nil, err
	}
	return s.page(resp, opts)
}

// DefaultList returns the size most popular companies at or above employeeLow
func (s *CompanySearchService) DefaultList(ctx context.Context, employeeLow int64, size int, opts SearchOptions) ([]entities.CompanyResult, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.DefaultListRequest(employeeLow), 0, size)
	if err != nil {
		return nil, err
	}
	page, err := s.page(resp, opts)
	if err != nil {
		return nil, err
	}
	return page.Companies, nil
}

// CompanyIDByName returns the id of the non-subsidiary company whose
// linkedin name contains name, or nil when there is none
func (s *CompanySearchService) CompanyIDByName(ctx context.Context, name string) (*int64, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.CompanyIDByNameRequest(name), 0, 1)
	if err != nil {
		return nil, err
	}
	if resp.Total == 0 || len(resp.Hits) == 0 {
		return nil, nil
	}

	var doc struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Hits[0].Source, &doc); err != nil {
		return nil, apperrors.NewInternalError("invalid company document", err)
	}
	return &doc.ID, nil
}

// IndustryAutocomplete returns the distinct industries starting with prefix
// in alphabetical order, at most limit of them when limit is positive
func (s *CompanySearchService) IndustryAutocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.IndustryAutocompleteRequest(prefix), 0, 0)
	if err != nil {
		return nil, err
	}
	industries := industryKeys(resp, 0)
	if limit > 0 && len(industries) > limit {
		industries = industries[:limit]
	}
	return industries, nil
}

// DefaultIndustries returns, alphabetically, the industries held by more
// than defaultIndustryMinCompanies companies with a linkedin profile
func (s *CompanySearchService) DefaultIndustries(ctx context.Context) ([]string, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.DefaultIndustriesRequest(), 0, 0)
	if err != nil {
		return nil, err
	}
	return industryKeys(resp, defaultIndustryMinCompanies), nil
}

// Watchlist returns the watchlist card fields of up to size companies
func (s *CompanySearchService) Watchlist(ctx context.Context, ids []int64, size int) ([]json.RawMessage, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.WatchlistRequest(ids), 0, size)
	if err != nil {
		return nil, err
	}
	return sources(resp), nil
}

// CompanySource returns the given source fields of one company
func (s *CompanySearchService) CompanySource(ctx context.Context, companyID int64, fields []string) (json.RawMessage, error) {
	resp, err := s.executor.Page(ctx, s.index, s.builder.SourceRequest(companyID, fields), 0, 1)
	if err != nil {
		return nil, err
	}
	if len(resp.Hits) == 0 {
		return nil, apperrors.NewNotFoundError("company " + strconv.FormatInt(companyID, 10) + " not found")
	}
	return resp.Hits[0].Source, nil
}

func (s *CompanySearchService) searchRequest(ctx context.Context, criteria entities.SearchCriteria, opts SearchOptions) (dsl.SearchRequest, error) {
	n, err := s.normalizer.Normalize(ctx, criteria)
	if err != nil {
		return dsl.SearchRequest{}, err
	}
	return s.builder.SearchRequest(n, s.now(), opts.SelectFields), nil
}

func (s *CompanySearchService) page(resp *repositories.SearchResponse, opts SearchOptions) (*entities.CompanyPage, error) {
	companies, err := s.assembler.AssembleCompanies(resp.Hits, opts.UserID, opts.IsCurrent, s.now())
	if err != nil {
		return nil, err
	}
	return &entities.CompanyPage{
		TotalResults: resp.Total,
		Companies:    companies,
		ScrollID:     string(resp.Cursor),
	}, nil
}

// industryKeys returns the sorted non-blank industry buckets counting more
// than minCount companies
func industryKeys(resp *repositories.SearchResponse, minCount int64) []string {
	buckets := resp.Aggregations[appservices.IndustryAggregation]
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		if b.DocCount > minCount && strings.TrimSpace(b.Key) != "" {
			keys = append(keys, b.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func sources(resp *repositories.SearchResponse) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		out = append(out, hit.Source)
	}
	return out
}
