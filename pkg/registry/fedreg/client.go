// Package fedreg provides the Federal Register API client and single-document
// import with the force-overwrite safety rule.
package fedreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civicgraph/civic-engine/pkg/config"
	"github.com/civicgraph/civic-engine/pkg/retry"
)

// Document is one Federal Register document as returned by the API.
type Document struct {
	DocumentNumber  string   `json:"document_number"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract"`
	Type            string   `json:"type"`
	PublicationDate string   `json:"publication_date"`
	EffectiveOn     string   `json:"effective_on"`
	HTMLURL         string   `json:"html_url"`
	PDFURL          string   `json:"pdf_url"`
	Agencies        []Agency `json:"agencies"`
}

// Agency is an agency reference attached to a document.
type Agency struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Client talks to the Federal Register API. The API needs no key but calls
// are still throttled and retried like the other registry clients.
type Client struct {
	cfg        config.FederalRegisterConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewClient creates a new Federal Register API client.
func NewClient(cfg config.FederalRegisterConfig, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg:   retry.HTTPConfig(),
		logger:     logger.Named("fedreg-client"),
	}
}

// FetchDocument fetches a single document by its document number.
// Returns nil without error when the document does not exist upstream.
func (c *Client) FetchDocument(ctx context.Context, documentNumber string) (*Document, error) {
	reqURL := c.cfg.BaseURL + "/documents/" + url.PathEscape(documentNumber) + ".json"

	var doc Document
	if err := c.getJSON(ctx, reqURL, &doc); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// FetchAgencies fetches the full agency list.
func (c *Client) FetchAgencies(ctx context.Context) ([]Agency, error) {
	var agencies []Agency
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/agencies", &agencies); err != nil {
		return nil, err
	}
	return agencies, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	body, err := retry.DoWithResultIfRetryable(ctx, c.retryCfg, func() ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return fmt.Errorf("federal register request failed: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode federal register response: %w", err)
	}
	return nil
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
