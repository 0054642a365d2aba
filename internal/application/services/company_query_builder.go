package services

import (
	"slices"
	"strconv"
	"time"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
)

// CompanySelectFields are the source fields returned by company searches.
// watchlisted_users and the contacts_count_* triplet are internal and get
// folded into derived fields by the result assembler.
var CompanySelectFields = []string{
	"id", "name", "homepage_url", "linkedin_url", "industry", "revenue", "logo_url", "location_area", "employee_range",
	"watchlisted_users", "contacts_count_", "contacts_count_true", "contacts_count_false", "linkedin_name",
	"city_name", "state_name", "country_name", "employees_linkedin", "employee_low", "li_updated_at", "date_founded",
	"ticker", "revenue_high", "revenue_low", "annual_cost_of_revenue", "annual_net_income", "annual_operating_income",
	"annual_gross_profit", "fiscal_year", "phone", "street_address", "sic_codes", "sic_explanations", "company_location",
	"description", "es_web_traffic_data", "es_seo_keywords", "es_web_technographics", "zip_code",
}

// companyInternalFields are always fetched alongside caller-selected fields
var companyInternalFields = []string{
	"watchlisted_users", "contacts_count_", "contacts_count_true", "contacts_count_false", "li_updated_at",
}

// WatchlistSelectFields are the fields shown on watchlist pages
var WatchlistSelectFields = []string{
	"id", "name", "homepage_url", "linkedin_url", "employee_low", "employees_linkedin", "industry", "date_founded",
	"revenue", "li_updated_at", "linkedin_name", "logo_url", "location_area", "employee_range", "city_name",
	"state_name", "country_name",
}

// Company index field names
const (
	fieldTechnologiesID = "technologies.id"
	fieldCategoriesID   = "categories.id"
	fieldRankingsID     = "rankings.id"
	fieldCompanyType    = "company_type_normalized"
	fieldStatus         = "status"
	fieldIndustry       = "industry"
	fieldZipCode        = "zip_code"
	fieldSubsidiary     = "subsidiary"
	fieldPopularity     = "popularity"
	fieldEmployeeLow    = "employee_low"
	fieldIndustryRaw    = "industry.keyword"
)

// IndustryAggregation names the distinct-industry terms aggregation
const IndustryAggregation = "distinct_industries"

const maxIndustryBuckets = 10000

// CompanyQueryBuilder turns normalized criteria into company index queries
type CompanyQueryBuilder struct{}

// NewCompanyQueryBuilder creates a new company query builder
func NewCompanyQueryBuilder() *CompanyQueryBuilder {
	return &CompanyQueryBuilder{}
}

// Build composes the search query. Exact facets go to must, ranges and the
// category relevance group to filter, exclusions to must_not and location
// groups to should with minimum_should_match 1. Days-ago thresholds resolve
// against now.
func (b *CompanyQueryBuilder) Build(n *NormalizedCriteria, now time.Time) *dsl.Bool {
	q := &dsl.Bool{
		Must:    b.termsClauses(n),
		Filter:  b.filterClauses(n, now),
		MustNot: b.mustNotClauses(n),
	}

	if len(n.Locations) > 0 {
		q.Should = b.locationClauses(n)
		q.MinimumShouldMatch = dsl.Int(1)
	}
	return q
}

// MatchQuery restricts the search query to a single company, for checking
// whether a company satisfies saved criteria
func (b *CompanyQueryBuilder) MatchQuery(n *NormalizedCriteria, companyID int64, now time.Time) *dsl.Bool {
	q := b.Build(n, now)
	q.Filter = append(q.Filter, dsl.Term{Field: "id", Value: companyID})
	return q
}

// SearchRequest wraps the search query with the default sort. An empty
// selectFields returns CompanySelectFields.
func (b *CompanyQueryBuilder) SearchRequest(n *NormalizedCriteria, now time.Time, selectFields []string) dsl.SearchRequest {
	return dsl.SearchRequest{
		Source: sourceFields(selectFields),
		Sort: []dsl.SortField{
			popularitySort(),
			{Field: "id", Order: dsl.Asc},
		},
		Query: b.Build(n, now),
	}
}

// AutocompleteRequest matches company names by phrase prefix, skipping
// subsidiaries and companies without popularity
func (b *CompanyQueryBuilder) AutocompleteRequest(prefix string, employeeLow *int64) dsl.SearchRequest {
	filter := []dsl.Query{dsl.Range{Field: fieldPopularity, GT: 0}}
	if employeeLow != nil {
		filter = append(filter, dsl.Range{Field: fieldEmployeeLow, GTE: *employeeLow})
	}

	return dsl.SearchRequest{
		Source: CompanySelectFields,
		Sort:   []dsl.SortField{{Field: "name.keyword", Order: dsl.Asc}},
		Query: &dsl.Bool{
			Must:    []dsl.Query{dsl.MatchPhrasePrefix{Field: "name", Query: prefix}},
			Filter:  filter,
			MustNot: []dsl.Query{excludeSubsidiaries()},
		},
	}
}

// DefaultListRequest lists the most popular non-subsidiary companies at or
// above employeeLow
func (b *CompanyQueryBuilder) DefaultListRequest(employeeLow int64) dsl.SearchRequest {
	return dsl.SearchRequest{
		Source: CompanySelectFields,
		Sort:   []dsl.SortField{popularitySort()},
		Query: &dsl.Bool{
			Must:    []dsl.Query{dsl.Range{Field: fieldEmployeeLow, GTE: employeeLow}},
			MustNot: []dsl.Query{excludeSubsidiaries()},
		},
	}
}

// CompanyIDByNameRequest finds the lowest-id non-subsidiary company whose
// linkedin name contains every word of name
func (b *CompanyQueryBuilder) CompanyIDByNameRequest(name string) dsl.SearchRequest {
	notSubsidiary := &dsl.Bool{Should: []dsl.Query{
		dsl.Term{Field: fieldSubsidiary, Value: false},
		&dsl.Bool{MustNot: []dsl.Query{dsl.Exists{Field: fieldSubsidiary}}},
	}}

	return dsl.SearchRequest{
		Source: []string{"id"},
		Sort:   []dsl.SortField{{Field: "id", Order: dsl.Asc}},
		Size:   dsl.Int(1),
		Query: &dsl.Bool{Must: []dsl.Query{
			notSubsidiary,
			dsl.QueryString{
				DefaultField:      "linkedin_name",
				Query:             name,
				DefaultOperator:   "and",
				SplitOnWhitespace: dsl.BoolPtr(false),
			},
		}},
	}
}

// IndustryAutocompleteRequest buckets the industries of companies whose
// industry starts with prefix
func (b *CompanyQueryBuilder) IndustryAutocompleteRequest(prefix string) dsl.SearchRequest {
	return dsl.SearchRequest{
		Query: dsl.MatchPhrasePrefix{Field: fieldIndustry, Query: prefix},
		Aggs:  []dsl.TermsAggregation{industryAggregation()},
	}
}

// DefaultIndustriesRequest buckets the industries of companies that have
// both a linkedin url and an industry
func (b *CompanyQueryBuilder) DefaultIndustriesRequest() dsl.SearchRequest {
	return dsl.SearchRequest{
		Query: &dsl.Bool{Must: []dsl.Query{
			dsl.Exists{Field: "linkedin_url"},
			dsl.Exists{Field: fieldIndustry},
		}},
		Aggs: []dsl.TermsAggregation{industryAggregation()},
	}
}

// WatchlistRequest fetches watchlist card fields for ids
func (b *CompanyQueryBuilder) WatchlistRequest(ids []int64) dsl.SearchRequest {
	return dsl.SearchRequest{
		Source: WatchlistSelectFields,
		Query:  dsl.Terms{Field: "id", Values: int64Values(ids)},
	}
}

// SourceRequest fetches the given fields of one company
func (b *CompanyQueryBuilder) SourceRequest(companyID int64, fields []string) dsl.SearchRequest {
	return dsl.SearchRequest{
		Source: fields,
		Query:  dsl.Term{Field: "id", Value: companyID},
	}
}

func (b *CompanyQueryBuilder) termsClauses(n *NormalizedCriteria) []dsl.Query {
	var must []dsl.Query
	addIDs := func(field string, set *IDSet) {
		if set != nil {
			must = append(must, dsl.Terms{Field: field, Values: int64Values(set.IDs)})
		}
	}
	addStrings := func(field string, values []string) {
		if values != nil {
			must = append(must, dsl.Terms{Field: field, Values: stringValues(values)})
		}
	}

	addIDs(fieldTechnologiesID, n.Technologies)
	addIDs(fieldRankingsID, n.Rankings)
	addStrings(fieldCompanyType, n.CompanyTypes)
	addStrings(fieldStatus, n.Status)
	addStrings(fieldIndustry, n.Industries)
	addStrings(fieldZipCode, n.ZipCodes)

	if n.IDs != nil {
		ids := make([]string, len(n.IDs))
		for i, id := range n.IDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		must = append(must, dsl.IDs{Values: ids})
	}
	return must
}

func (b *CompanyQueryBuilder) filterClauses(n *NormalizedCriteria, now time.Time) []dsl.Query {
	var filter []dsl.Query

	if n.LastUpdated != nil {
		filter = append(filter, dsl.Range{Field: "updated_at", GTE: formatTime(*n.LastUpdated)})
	}
	filter = appendRange(filter, n.CustomEmployeeRange, "employees_linkedin", "employees_linkedin")
	filter = appendRange(filter, n.Employee, fieldEmployeeLow, "employee_high")
	filter = appendRange(filter, n.Revenue, "revenue_low", "revenue_high")

	if n.VerifiedAt != nil {
		if at, ok := n.VerifiedAt.Resolve(now); ok {
			filter = append(filter, dsl.Range{Field: "li_updated_at", GTE: formatTime(at)})
		}
	}

	if group := b.categoryGroup(n); group != nil {
		filter = append(filter, &dsl.Bool{Filter: []dsl.Query{group}})
	}

	if n.Subsidiary != nil {
		filter = append(filter, dsl.Term{Field: fieldSubsidiary, Value: *n.Subsidiary})
	}
	return filter
}

// categoryGroup matches category ids or, for named categories, the name in
// the company name or description
func (b *CompanyQueryBuilder) categoryGroup(n *NormalizedCriteria) *dsl.Bool {
	if n.Categories == nil {
		return nil
	}
	should := []dsl.Query{dsl.Terms{Field: fieldCategoriesID, Values: int64Values(n.Categories.IDs)}}
	for _, name := range n.CategoryNames {
		should = append(should,
			dsl.Match{Field: "name", Query: name, Operator: "and"},
			dsl.Match{Field: "description", Query: name, Operator: "and"},
		)
	}
	return &dsl.Bool{Should: should, MinimumShouldMatch: dsl.Int(1)}
}

func (b *CompanyQueryBuilder) mustNotClauses(n *NormalizedCriteria) []dsl.Query {
	var mustNot []dsl.Query
	if n.IndustryExclusions != nil {
		mustNot = append(mustNot, dsl.Terms{Field: fieldIndustryRaw, Values: stringValues(n.IndustryExclusions)})
	}
	if n.CategoryExclusions != nil {
		mustNot = append(mustNot, dsl.Terms{Field: fieldCategoriesID, Values: int64Values(n.CategoryExclusions.IDs)})
	}
	if n.ExcludeSubsidiaries {
		mustNot = append(mustNot, excludeSubsidiaries())
	}
	return mustNot
}

func (b *CompanyQueryBuilder) locationClauses(n *NormalizedCriteria) []dsl.Query {
	should := make([]dsl.Query, 0, len(n.Locations))
	for _, loc := range n.Locations {
		var must []dsl.Query
		if loc.CityID != nil {
			must = append(must, dsl.Term{Field: "city_id", Value: *loc.CityID})
		}
		if loc.StateID != nil {
			must = append(must, dsl.Term{Field: "state_id", Value: *loc.StateID})
		}
		if loc.CountryID != nil {
			must = append(must, dsl.Term{Field: "country_id", Value: *loc.CountryID})
		}
		should = append(should, &dsl.Bool{Must: must})
	}
	return should
}

func appendRange(filter []dsl.Query, r *entities.Range, lowField, highField string) []dsl.Query {
	if r == nil {
		return filter
	}
	if r.Low != nil {
		filter = append(filter, dsl.Range{Field: lowField, GTE: *r.Low})
	}
	if r.High != nil {
		filter = append(filter, dsl.Range{Field: highField, LTE: *r.High})
	}
	return filter
}

func industryAggregation() dsl.TermsAggregation {
	return dsl.TermsAggregation{Name: IndustryAggregation, Field: fieldIndustryRaw, Size: maxIndustryBuckets}
}

func excludeSubsidiaries() dsl.Query {
	return dsl.Match{Field: fieldSubsidiary, Query: true}
}

func popularitySort() dsl.SortField {
	return dsl.SortField{Field: fieldPopularity, Order: dsl.Asc, UnmappedType: "long", Missing: dsl.MissingLast}
}

func sourceFields(selectFields []string) []string {
	if len(selectFields) == 0 {
		return CompanySelectFields
	}
	fields := append([]string(nil), selectFields...)
	for _, f := range companyInternalFields {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func int64Values(ids []int64) []any {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return values
}

func stringValues(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
