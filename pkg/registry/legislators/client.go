// Package legislators fetches and searches the unitedstates/congress-legislators
// YAML dataset.
package legislators

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/civicgraph/civic-engine/pkg/config"
	"github.com/civicgraph/civic-engine/pkg/retry"
)

const (
	currentFile    = "legislators-current.yaml"
	historicalFile = "legislators-historical.yaml"
)

// Legislator is one record from the dataset.
type Legislator struct {
	ID    IDBlock   `yaml:"id"`
	Name  NameBlock `yaml:"name"`
	Bio   BioBlock  `yaml:"bio"`
	Terms []Term    `yaml:"terms"`
}

// BioguideID returns the natural key, empty when the record lacks one.
func (l *Legislator) BioguideID() string {
	return l.ID.Bioguide
}

// FullName prefers the official full name, falling back to first/last.
func (l *Legislator) FullName() string {
	if l.Name.OfficialFull != "" {
		return l.Name.OfficialFull
	}
	name := l.Name.First
	if l.Name.Middle != "" {
		name += " " + l.Name.Middle
	}
	if l.Name.Last != "" {
		name += " " + l.Name.Last
	}
	return name
}

// MostRecentTerm returns the last term, nil when there are none.
// Terms in the dataset are ordered chronologically.
func (l *Legislator) MostRecentTerm() *Term {
	if len(l.Terms) == 0 {
		return nil
	}
	return &l.Terms[len(l.Terms)-1]
}

// IDBlock carries the cross-registry identifiers.
type IDBlock struct {
	Bioguide    string `yaml:"bioguide"`
	Govtrack    int    `yaml:"govtrack"`
	Opensecrets string `yaml:"opensecrets"`
	Votesmart   int    `yaml:"votesmart"`
	Wikipedia   string `yaml:"wikipedia"`
}

// NameBlock carries the name parts.
type NameBlock struct {
	First        string `yaml:"first"`
	Middle       string `yaml:"middle"`
	Last         string `yaml:"last"`
	Suffix       string `yaml:"suffix"`
	Nickname     string `yaml:"nickname"`
	OfficialFull string `yaml:"official_full"`
}

// BioBlock carries biographical fields.
type BioBlock struct {
	Birthday string `yaml:"birthday"`
	Gender   string `yaml:"gender"`
}

// Term is one service term. Type is "rep" or "sen".
type Term struct {
	Type     string `yaml:"type"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	State    string `yaml:"state"`
	District int    `yaml:"district"`
	Party    string `yaml:"party"`
	URL      string `yaml:"url"`
}

// Chamber maps the term type to a chamber name.
func (t *Term) Chamber() string {
	switch t.Type {
	case "sen":
		return "senate"
	case "rep":
		return "house"
	default:
		return t.Type
	}
}

// Client fetches the dataset YAML files over HTTP.
type Client struct {
	cfg        config.LegislatorsConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewClient creates a new dataset client.
func NewClient(cfg config.LegislatorsConfig, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg:   retry.HTTPConfig(),
		logger:     logger.Named("legislators-client"),
	}
}

// FetchCurrent fetches and parses the current legislators file.
func (c *Client) FetchCurrent(ctx context.Context) ([]Legislator, error) {
	return c.fetchFile(ctx, currentFile)
}

// FetchHistorical fetches and parses the historical legislators file.
func (c *Client) FetchHistorical(ctx context.Context) ([]Legislator, error) {
	return c.fetchFile(ctx, historicalFile)
}

func (c *Client) fetchFile(ctx context.Context, name string) ([]Legislator, error) {
	reqURL := c.cfg.BaseURL + "/" + name
	c.logger.Info("Fetching legislators file", zap.String("file", name))

	body, err := retry.DoWithResultIfRetryable(ctx, c.retryCfg, func() ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}

	var records []Legislator
	if err := yaml.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	c.logger.Info("Parsed legislators file", zap.String("file", name), zap.Int("records", len(records)))
	return records, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
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
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
