package services

import (
	"context"
	"strconv"
	"time"

	appservices "github.com/zatekoja/crmdataplatform/internal/application/services"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// ContactSearchService fetches contacts from the contact index
type ContactSearchService struct {
	executor  *SearchExecutor
	assembler *appservices.ResultAssembler
	index     string
	now       func() time.Time
}

// NewContactSearchService creates a new contact search service over index
func NewContactSearchService(executor *SearchExecutor, index string) *ContactSearchService {
	return &ContactSearchService{
		executor:  executor,
		assembler: appservices.NewResultAssembler(),
		index:     index,
		now:       time.Now,
	}
}

// ByIDs fetches contacts by id in batches, annotated for userID
func (s *ContactSearchService) ByIDs(ctx context.Context, ids []int64, userID int64) (*entities.ContactPage, error) {
	docIDs := make([]string, len(ids))
	for i, id := range ids {
		docIDs[i] = strconv.FormatInt(id, 10)
	}
	resp, err := s.executor.ByIDs(ctx, s.index, docIDs, nil)
	if err != nil {
		return nil, err
	}

	contacts, err := s.assembler.AssembleContacts(resp.Hits, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &entities.ContactPage{TotalResults: resp.Total, Contacts: contacts}, nil
}
