// Package congress provides the Congress.gov API client and member search
// with local duplicate annotation.
package congress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civicgraph/civic-engine/pkg/config"
	"github.com/civicgraph/civic-engine/pkg/logging"
	"github.com/civicgraph/civic-engine/pkg/retry"
)

// maxPageLimit is the largest page size Congress.gov accepts.
const maxPageLimit = 250

// Member is one member record from the Congress.gov API. The list and detail
// endpoints use the same shape with different fields populated.
type Member struct {
	BioguideID    string      `json:"bioguideId"`
	Name          string      `json:"name"`
	State         string      `json:"state"`
	PartyName     string      `json:"partyName"`
	District      json.Number `json:"district"`
	CurrentMember *bool       `json:"currentMember"`
	URL           string      `json:"url"`
	Depiction     struct {
		ImageURL string `json:"imageUrl"`
	} `json:"depiction"`
	Terms memberTerms `json:"terms"`
}

// memberTerms tolerates both shapes the API returns: the list endpoint wraps
// terms in an "item" array, the detail endpoint returns a bare array.
type memberTerms struct {
	Items []MemberTerm
}

// MemberTerm is one service term of a member.
type MemberTerm struct {
	Chamber   string `json:"chamber"`
	StartYear int    `json:"startYear"`
	EndYear   int    `json:"endYear"`
}

func (t *memberTerms) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Item []MemberTerm `json:"item"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Item != nil {
		t.Items = wrapped.Item
		return nil
	}
	return json.Unmarshal(data, &t.Items)
}

// MemberPage is one page of the member list with pagination totals.
type MemberPage struct {
	Members    []Member `json:"members"`
	Pagination struct {
		Count int `json:"count"`
	} `json:"pagination"`
}

// Client talks to the Congress.gov API. Outbound calls are throttled to stay
// inside the documented hourly quota and retried with backoff on transient
// failures. Safe for concurrent use.
type Client struct {
	cfg        config.CongressConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   *retry.Config
	logger     *zap.Logger

	requestCount atomic.Int64
}

// NewClient creates a new Congress.gov API client.
func NewClient(cfg config.CongressConfig, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg:   retry.HTTPConfig(),
		logger:     logger.Named("congress-client"),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// RequestCount returns the number of API requests issued so far, for
// rate-limit accounting against the hourly quota.
func (c *Client) RequestCount() int64 {
	return c.requestCount.Load()
}

// RateLimitRemaining estimates how many requests remain in the hourly quota.
func (c *Client) RateLimitRemaining() int64 {
	remaining := int64(c.cfg.HourlyLimit) - c.requestCount.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FetchMembers fetches one page of members.
func (c *Client) FetchMembers(ctx context.Context, limit, offset int, currentOnly bool) (*MemberPage, error) {
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("currentMember", strconv.FormatBool(currentOnly))

	var page MemberPage
	if err := c.getJSON(ctx, "/member", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchMemberByBioguideID fetches the detail record for one member.
// Returns nil without error when the member does not exist.
func (c *Client) FetchMemberByBioguideID(ctx context.Context, bioguideID string) (*Member, error) {
	var resp struct {
		Member *Member `json:"member"`
	}
	err := c.getJSON(ctx, "/member/"+url.PathEscape(bioguideID), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Member, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.cfg.APIKey)
	reqURL := c.cfg.BaseURL + path + "?" + q.Encode()

	body, err := retry.DoWithResultIfRetryable(ctx, c.retryCfg, func() ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return fmt.Errorf("congress.gov request %s failed: %w", logging.SanitizeURL(reqURL), err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode congress.gov response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.requestCount.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// IsRetryable marks 5xx and 429 responses as transient.
func (e *statusError) IsRetryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}
