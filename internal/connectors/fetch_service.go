package connectors

import (
	"repricer/internal/storage"
)

type FetchService struct {
	source Source
	store  *DocumentStore
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawDir string, source Source) *FetchService {
	return &FetchService{
		source: source,
		store:  NewDocumentStore(db, rawDir),
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	docs, err := s.source.Fetch(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, doc := range docs {
		if _, err := s.store.Store(doc); err != nil {
			return FetchResult{}, err
		}
		stored++
	}

	return FetchResult{Fetched: len(docs), Stored: stored}, nil
}
