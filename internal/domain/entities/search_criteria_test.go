package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCriteria_UnmarshalJSON_SavedShape(t *testing.T) {
	payload := `{
		"technologies": ["Salesforce", 12],
		"categories": ["SaaS"],
		"rankings": {"ids": [3]},
		"company_types": ["Private"],
		"industries": ["Software"],
		"zip_code": ["94107"],
		"last_updated": "2024-01-02",
		"custom_employee_range": {"low": 10},
		"employee": {"low": "51", "high": 200},
		"verified_at": 30,
		"locations": [{"city_id": 1, "country_id": 2}, {}],
		"industry_exclusions": ["Retail"],
		"category_exclusions": ["Gambling"],
		"subsidiary": false,
		"ids": [5, "6"],
		"unknown_key": {"ignored": true}
	}`

	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.Equal(t, FacetValues{IDs: []int64{12}, Names: []string{"Salesforce"}, Supplied: true}, c.Technologies)
	assert.Equal(t, []string{"SaaS"}, c.Categories.Names)
	assert.Equal(t, []int64{3}, c.Rankings.IDs)
	assert.Equal(t, []string{"Private"}, c.CompanyTypes)
	assert.Equal(t, []string{"94107"}, c.ZipCodes)
	require.NotNil(t, c.LastUpdated)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *c.LastUpdated)
	require.NotNil(t, c.CustomEmployeeRange)
	assert.Equal(t, int64(10), *c.CustomEmployeeRange.Low)
	assert.Nil(t, c.CustomEmployeeRange.High)
	assert.Equal(t, int64(51), *c.Employee.Low)
	assert.Equal(t, int64(200), *c.Employee.High)
	require.NotNil(t, c.VerifiedAt)
	assert.Equal(t, 30, *c.VerifiedAt.DaysAgo)
	require.Len(t, c.Locations, 1)
	assert.Nil(t, c.Locations[0].StateID)
	require.NotNil(t, c.Subsidiary)
	assert.False(t, *c.Subsidiary)
	assert.Equal(t, []int64{5, 6}, c.IDs)
}

func TestSearchCriteria_UnmarshalJSON_Permissive(t *testing.T) {
	payload := `{"industries": {"bad": 1}, "employee": "lots", "verified_at": "not a date", "subsidiary": null}`

	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.Nil(t, c.Industries)
	assert.Nil(t, c.Employee)
	assert.Nil(t, c.VerifiedAt)
	assert.Nil(t, c.Subsidiary)
	assert.True(t, c.SubsidiarySpecified)
}

func TestSearchCriteria_RoundTrip(t *testing.T) {
	days := 7
	sub := true
	in := SearchCriteria{
		Categories:          FacetValues{IDs: []int64{1}, Names: []string{"fintech"}, Supplied: true},
		VerifiedAt:          &VerifiedAt{DaysAgo: &days},
		Subsidiary:          &sub,
		SubsidiarySpecified: true,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out SearchCriteria
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestSearchCriteria_UnmarshalJSON_EmptyListsArePresent(t *testing.T) {
	payload := `{"technologies": [], "categories": {"ids": []}, "industries": [], "category_exclusions": [], "ids": []}`

	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.True(t, c.Technologies.Present())
	assert.True(t, c.Categories.Present())
	assert.False(t, c.Rankings.Present())
	assert.NotNil(t, c.Industries)
	assert.Empty(t, c.Industries)
	assert.NotNil(t, c.CategoryExclusions)
	assert.NotNil(t, c.IDs)
	assert.Nil(t, c.Status)
	assert.False(t, c.SubsidiarySpecified)
}

func TestSearchCriteria_UnmarshalJSON_EmptyFacetObjectIsAbsent(t *testing.T) {
	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(`{"technologies": {}}`), &c))

	assert.False(t, c.Technologies.Present())
}

func TestVerifiedAt_Resolve(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	days := 30

	at, ok := VerifiedAt{DaysAgo: &days}.Resolve(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), at)

	_, ok = VerifiedAt{}.Resolve(now)
	assert.False(t, ok)
}

func TestSearchCriteria_UnmarshalJSON_NullListsArePresent(t *testing.T) {
	payload := `{"technologies": null, "industries": null, "status": null, "industry_exclusions": null, "ids": null}`

	var c SearchCriteria
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.True(t, c.Technologies.Present())
	assert.False(t, c.Categories.Present())
	assert.NotNil(t, c.Industries)
	assert.Empty(t, c.Industries)
	assert.NotNil(t, c.Status)
	assert.NotNil(t, c.IndustryExclusions)
	assert.NotNil(t, c.IDs)
	assert.Nil(t, c.ZipCodes)
}
