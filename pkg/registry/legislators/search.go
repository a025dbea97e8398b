package legislators

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/registry"
)

const (
	sourceName = "Legislators Repo"
	sourceURL  = "https://github.com/unitedstates/congress-legislators"

	cacheTTL        = 15 * time.Minute
	defaultPageSize = 20
)

// LegislatorView is a legislator shaped for operator review.
type LegislatorView struct {
	BioguideID    string `json:"bioguideId"`
	Name          string `json:"name"`
	State         string `json:"state,omitempty"`
	Party         string `json:"party,omitempty"`
	Chamber       string `json:"chamber,omitempty"`
	CurrentMember bool   `json:"currentMember"`
	Birthday      string `json:"birthday,omitempty"`
	Gender        string `json:"gender,omitempty"`
}

// SearchResult is one legislator annotated with its local duplicate status.
type SearchResult struct {
	Legislator LegislatorView               `json:"legislator"`
	Source     string                       `json:"source"`
	SourceURL  string                       `json:"sourceUrl"`
	Duplicate  registry.DuplicateAnnotation `json:"duplicate"`
}

// SearchResponse is a page of annotated results.
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Cached   bool           `json:"cached"`
}

// SearchFilters narrows a legislator search. All filtering is local since the
// dataset is fetched whole.
type SearchFilters struct {
	Name       string
	BioguideID string
	State      string
}

// SearchService searches the legislators dataset with a short-lived in-memory
// cache so repeated operator searches don't refetch the YAML files.
type SearchService interface {
	Search(ctx context.Context, filters SearchFilters, page, pageSize int) (*SearchResponse, error)
	// GetByBioguideID returns one legislator, nil when absent.
	GetByBioguideID(ctx context.Context, bioguideID string) (*Legislator, error)
}

type searchService struct {
	client  *Client
	checker *registry.DuplicateChecker
	logger  *zap.Logger

	mu        sync.Mutex
	cached    []Legislator
	fetchedAt time.Time
}

// NewSearchService creates a new SearchService.
func NewSearchService(client *Client, checker *registry.DuplicateChecker, logger *zap.Logger) SearchService {
	return &searchService{
		client:  client,
		checker: checker,
		logger:  logger.Named("legislators-search"),
	}
}

var _ SearchService = (*searchService)(nil)

func (s *searchService) Search(ctx context.Context, filters SearchFilters, page, pageSize int) (*SearchResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	all, fromCache, err := s.dataset(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*Legislator, 0)
	for i := range all {
		if matchesFilters(&all[i], filters) {
			filtered = append(filtered, &all[i])
		}
	}
	total := len(filtered)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	results := make([]SearchResult, 0, end-start)
	for _, record := range filtered[start:end] {
		annotation, err := s.checker.Check(ctx, record.BioguideID(), "")
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			Legislator: legislatorView(record),
			Source:     sourceName,
			SourceURL:  sourceURL,
			Duplicate:  annotation,
		})
	}

	return &SearchResponse{
		Results:  results,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Cached:   fromCache,
	}, nil
}

func (s *searchService) GetByBioguideID(ctx context.Context, bioguideID string) (*Legislator, error) {
	all, _, err := s.dataset(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].BioguideID() == bioguideID {
			return &all[i], nil
		}
	}
	return nil, nil
}

// dataset returns the merged current+historical records, refetching when the
// cache has expired. Current records win on bioguide-id collisions.
func (s *searchService) dataset(ctx context.Context) ([]Legislator, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cached) > 0 && time.Since(s.fetchedAt) < cacheTTL {
		return s.cached, true, nil
	}

	s.logger.Info("Legislators cache empty or expired, fetching dataset")

	current, err := s.client.FetchCurrent(ctx)
	if err != nil {
		return nil, false, err
	}
	historical, err := s.client.FetchHistorical(ctx)
	if err != nil {
		return nil, false, err
	}

	merged := make([]Legislator, 0, len(current)+len(historical))
	index := make(map[string]int)
	for _, batch := range [][]Legislator{historical, current} {
		for _, record := range batch {
			id := record.BioguideID()
			if id == "" {
				continue
			}
			if pos, ok := index[id]; ok {
				merged[pos] = record
				continue
			}
			index[id] = len(merged)
			merged = append(merged, record)
		}
	}

	s.cached = merged
	s.fetchedAt = time.Now()
	s.logger.Info("Cached legislators dataset",
		zap.Int("total", len(merged)),
		zap.Int("current", len(current)),
		zap.Int("historical", len(historical)))
	return s.cached, false, nil
}

func matchesFilters(record *Legislator, f SearchFilters) bool {
	if f.BioguideID != "" && !strings.EqualFold(record.BioguideID(), f.BioguideID) {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(record.FullName()), strings.ToLower(f.Name)) {
		return false
	}
	if f.State != "" {
		term := record.MostRecentTerm()
		if term == nil || !strings.EqualFold(term.State, f.State) {
			return false
		}
	}
	return true
}

func legislatorView(record *Legislator) LegislatorView {
	view := LegislatorView{
		BioguideID: record.BioguideID(),
		Name:       record.FullName(),
		Birthday:   record.Bio.Birthday,
		Gender:     record.Bio.Gender,
	}
	if term := record.MostRecentTerm(); term != nil {
		view.State = term.State
		view.Party = term.Party
		view.Chamber = term.Chamber()
		if end, err := time.Parse("2006-01-02", term.End); err == nil {
			view.CurrentMember = end.After(time.Now())
		}
	}
	return view
}
