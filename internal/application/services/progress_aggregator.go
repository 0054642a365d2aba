package services

import (
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// ProgressGroup is one named step of a refresh as shown to clients, made of
// the requested attributes that contribute to it
type ProgressGroup struct {
	Name       string
	Attributes []string
}

// CompanyProgressSchema is the ordered progress layout of company refreshes
var CompanyProgressSchema = []ProgressGroup{
	{Name: "company_profile", Attributes: []string{"linkedin_data", "firmographics", "financials"}},
	{Name: "web_presence", Attributes: []string{"web_traffic", "seo_keywords", "web_technographics"}},
	{Name: "contacts", Attributes: []string{"employees", "contact_emails"}},
}

// ContactProgressSchema is the ordered progress layout of contact refreshes
var ContactProgressSchema = []ProgressGroup{
	{Name: "profile", Attributes: []string{"linkedin_data", "positions"}},
	{Name: "email", Attributes: []string{"email", "personal_email"}},
	{Name: "phone", Attributes: []string{"direct_phone", "mobile_number"}},
}

// ProgressSchemaFor returns the default schema of kind
func ProgressSchemaFor(kind entities.EntityKind) []ProgressGroup {
	if kind == entities.EntityKindContact {
		return ContactProgressSchema
	}
	return CompanyProgressSchema
}

// StatusForAttribute returns the effective status of one requested attribute.
// Attributes the process never requested are not_required. A not_started
// attribute of a request flagged as bad data is reported as wrong.
func StatusForAttribute(process *entities.RefreshProcess, name string) entities.ProgressStatus {
	attr, ok := process.Attribute(name)
	if !ok {
		return entities.ProgressNotRequired
	}
	if process.BadData && attr.Status == entities.ProgressNotStarted {
		return entities.ProgressWrong
	}
	return attr.Status
}

// ReduceStatuses folds statuses into one. The first matching rule wins:
// all not_required, all completed, completed mixed with pending work
// (in_progress), any completed, any in_progress, otherwise not_started.
// An empty input is not_required.
func ReduceStatuses(statuses []entities.ProgressStatus) entities.ProgressStatus {
	counts := make(map[entities.ProgressStatus]int, 5)
	for _, s := range statuses {
		counts[s]++
	}
	total := len(statuses)

	switch {
	case counts[entities.ProgressNotRequired] == total:
		return entities.ProgressNotRequired
	case counts[entities.ProgressCompleted] == total:
		return entities.ProgressCompleted
	case counts[entities.ProgressCompleted] > 0:
		if counts[entities.ProgressInProgress] > 0 || counts[entities.ProgressNotStarted] > 0 {
			return entities.ProgressInProgress
		}
		return entities.ProgressCompleted
	case counts[entities.ProgressInProgress] > 0:
		return entities.ProgressInProgress
	default:
		return entities.ProgressNotStarted
	}
}

// ProgressAggregator reduces a running refresh process to per-group and
// overall progress
type ProgressAggregator struct{}

// NewProgressAggregator creates a new progress aggregator
func NewProgressAggregator() *ProgressAggregator {
	return &ProgressAggregator{}
}

// Aggregate applies ReduceStatuses within every group of schema and then
// across the group results. A nil process yields nil.
func (a *ProgressAggregator) Aggregate(process *entities.RefreshProcess, schema []ProgressGroup) *entities.RunningProcessData {
	if process == nil {
		return nil
	}

	groups := make([]entities.GroupStatus, 0, len(schema))
	overall := make([]entities.ProgressStatus, 0, len(schema))
	for _, group := range schema {
		statuses := make([]entities.ProgressStatus, 0, len(group.Attributes))
		for _, name := range group.Attributes {
			statuses = append(statuses, StatusForAttribute(process, name))
		}
		status := ReduceStatuses(statuses)
		groups = append(groups, entities.GroupStatus{Name: group.Name, Status: status})
		overall = append(overall, status)
	}

	return &entities.RunningProcessData{
		ProgressStatuses: groups,
		Status:           ReduceStatuses(overall),
		StartedTime:      process.CreatedAt,
	}
}
