package congress

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/registry"
)

const (
	sourceName      = "Congress.gov"
	memberURLPrefix = "https://www.congress.gov/member/"
	defaultPageSize = 20
)

// SearchFilters narrows a member search. The upstream API has limited
// filtering, so name, state, party, and chamber are applied locally after
// the fetch.
type SearchFilters struct {
	Name    string
	State   string
	Party   string
	Chamber string
}

// MemberView is a member shaped for operator review.
type MemberView struct {
	BioguideID    string `json:"bioguideId"`
	Name          string `json:"name"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	State         string `json:"state"`
	Party         string `json:"party"`
	Chamber       string `json:"chamber"`
	District      string `json:"district,omitempty"`
	CurrentMember bool   `json:"currentMember"`
	ImageURL      string `json:"imageUrl,omitempty"`
	URL           string `json:"url,omitempty"`
}

// SearchResult is one member annotated with its local duplicate status.
type SearchResult struct {
	Member    MemberView                   `json:"member"`
	Source    string                       `json:"source"`
	SourceURL string                       `json:"sourceUrl,omitempty"`
	Duplicate registry.DuplicateAnnotation `json:"duplicate"`
}

// SearchResponse is a page of annotated results.
type SearchResponse struct {
	Results            []SearchResult `json:"results"`
	Total              int            `json:"total"`
	Page               int            `json:"page"`
	PageSize           int            `json:"pageSize"`
	RateLimitRemaining int64          `json:"rateLimitRemaining"`
}

// SearchService searches Congress.gov members and annotates each result with
// its local duplicate status before an operator decides to import.
type SearchService interface {
	// SearchMembers fetches one page of current members and filters locally.
	SearchMembers(ctx context.Context, filters SearchFilters, page, pageSize int) (*SearchResponse, error)
	// GetMemberByBioguideID fetches one member's detail record, nil if absent.
	GetMemberByBioguideID(ctx context.Context, bioguideID string) (*MemberView, error)
}

type searchService struct {
	client  *Client
	checker *registry.DuplicateChecker
	logger  *zap.Logger
}

// NewSearchService creates a new SearchService.
func NewSearchService(client *Client, checker *registry.DuplicateChecker, logger *zap.Logger) SearchService {
	return &searchService{
		client:  client,
		checker: checker,
		logger:  logger.Named("congress-search"),
	}
}

var _ SearchService = (*searchService)(nil)

func (s *searchService) SearchMembers(ctx context.Context, filters SearchFilters, page, pageSize int) (*SearchResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	offset := (page - 1) * pageSize

	memberPage, err := s.client.FetchMembers(ctx, pageSize, offset, true)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(memberPage.Members))
	for i := range memberPage.Members {
		view := memberView(&memberPage.Members[i])
		if !matchesFilters(view, filters) {
			continue
		}

		annotation, err := s.checker.Check(ctx, view.BioguideID, "")
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			Member:    view,
			Source:    sourceName,
			SourceURL: memberSourceURL(view.BioguideID, view.Name),
			Duplicate: annotation,
		})
	}

	total := memberPage.Pagination.Count
	if total == 0 {
		total = len(results)
	}
	return &SearchResponse{
		Results:            results,
		Total:              total,
		Page:               page,
		PageSize:           pageSize,
		RateLimitRemaining: s.client.RateLimitRemaining(),
	}, nil
}

func (s *searchService) GetMemberByBioguideID(ctx context.Context, bioguideID string) (*MemberView, error) {
	member, err := s.client.FetchMemberByBioguideID(ctx, bioguideID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, nil
	}
	view := memberView(member)
	return &view, nil
}

func memberView(m *Member) MemberView {
	first, last := splitName(m.Name)
	current := true
	if m.CurrentMember != nil {
		current = *m.CurrentMember
	}
	return MemberView{
		BioguideID:    m.BioguideID,
		Name:          m.Name,
		FirstName:     first,
		LastName:      last,
		State:         m.State,
		Party:         partyAbbrev(m.PartyName),
		Chamber:       memberChamber(m),
		District:      m.District.String(),
		CurrentMember: current,
		ImageURL:      m.Depiction.ImageURL,
		URL:           m.URL,
	}
}

// splitName handles both "Last, First" and "First Last" forms.
func splitName(name string) (first, last string) {
	if name == "" {
		return "", ""
	}
	if comma := strings.Index(name, ","); comma >= 0 {
		return strings.TrimSpace(name[comma+1:]), strings.TrimSpace(name[:comma])
	}
	if space := strings.Index(name, " "); space >= 0 {
		return strings.TrimSpace(name[:space]), strings.TrimSpace(name[space+1:])
	}
	return name, ""
}

// memberChamber derives the chamber from the most recent term, falling back
// to nothing when no terms are present.
func memberChamber(m *Member) string {
	if len(m.Terms.Items) > 0 {
		last := m.Terms.Items[len(m.Terms.Items)-1]
		chamber := strings.ToLower(last.Chamber)
		switch {
		case strings.Contains(chamber, "senate"):
			return "senate"
		case strings.Contains(chamber, "house"):
			return "house"
		}
	}
	return ""
}

// partyAbbrev maps a full party name to its one-letter abbreviation,
// passing unknown parties through unchanged.
func partyAbbrev(partyName string) string {
	switch strings.ToLower(partyName) {
	case "democratic", "democrat":
		return "D"
	case "republican":
		return "R"
	case "independent":
		return "I"
	case "libertarian":
		return "L"
	default:
		return partyName
	}
}

func matchesFilters(view MemberView, f SearchFilters) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(view.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.State != "" && !strings.EqualFold(view.State, f.State) {
		return false
	}
	if f.Party != "" && !strings.EqualFold(view.Party, f.Party) {
		return false
	}
	if f.Chamber != "" && !strings.EqualFold(view.Chamber, f.Chamber) {
		return false
	}
	return true
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func memberSourceURL(bioguideID, name string) string {
	if bioguideID == "" {
		return ""
	}
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return memberURLPrefix + strings.Trim(slug, "-") + "/" + bioguideID
}
