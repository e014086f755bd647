package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.PageSource = (*Client)(nil)

// Default configuration values.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultSpaceLimit        = 10
	MaxSpaceLimit            = 100
)

// Config holds configuration for the Confluence client.
type Config struct {
	// BaseURL is the instance root, e.g. https://wiki.example.com
	// (required).
	BaseURL string

	// Token is the personal access token sent as a bearer header
	// (required).
	Token string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles API calls (default: 5).
	RequestsPerSecond float64
}

// Client fetches pages from a Confluence instance.
type Client struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a Confluence page source.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: confluence base URL is required", domain.ErrInvalidInput)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: confluence API token is required", domain.ErrInvalidInput)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	// oauth2's transport injects the bearer header on every request.
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := oauth2.NewClient(context.Background(), source)
	client.Timeout = cfg.Timeout

	return &Client{
		client:  client,
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// pageResponse is the REST content representation with the expansions we
// request.
type pageResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		When time.Time `json:"when"`
	} `json:"version"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

type contentListResponse struct {
	Results []pageResponse `json:"results"`
}

// GetPage fetches a single page with its body, version and space expanded.
func (c *Client) GetPage(ctx context.Context, pageID string) (*domain.Document, error) {
	endpoint := fmt.Sprintf("%s/rest/api/content/%s?expand=body.storage,version,space", c.baseURL, url.PathEscape(pageID))

	var page pageResponse
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	doc := c.toDocument(page)
	return &doc, nil
}

// ListSpacePages fetches up to limit pages from a space, bodies included.
func (c *Client) ListSpacePages(ctx context.Context, spaceKey string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = DefaultSpaceLimit
	}
	if limit > MaxSpaceLimit {
		limit = MaxSpaceLimit
	}

	params := url.Values{}
	params.Set("spaceKey", spaceKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("expand", "body.storage,version,space")
	endpoint := fmt.Sprintf("%s/rest/api/content?%s", c.baseURL, params.Encode())

	var list contentListResponse
	if err := c.getJSON(ctx, endpoint, &list); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, len(list.Results))
	for i, page := range list.Results {
		docs[i] = c.toDocument(page)
	}
	return docs, nil
}

// Ping performs a minimal content listing to validate connectivity and
// credentials.
func (c *Client) Ping(ctx context.Context) error {
	var list contentListResponse
	return c.getJSON(ctx, c.baseURL+"/rest/api/content?limit=1", &list)
}

// Close releases resources. The HTTP client holds none worth closing.
func (c *Client) Close() error {
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError classifies an HTTP failure into the domain error taxonomy.
func statusError(status int, body string) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: confluence returned 404", domain.ErrNotFound)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: confluence returned 429", domain.ErrRateLimited)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("confluence rejected credentials (status %d)", status)
	case status >= 500:
		return fmt.Errorf("%w: confluence returned %d", domain.ErrSourceUnavailable, status)
	default:
		return fmt.Errorf("confluence error (status %d): %s", status, body)
	}
}

func (c *Client) toDocument(page pageResponse) domain.Document {
	return domain.Document{
		ID:           page.ID,
		Title:        page.Title,
		URL:          c.baseURL + page.Links.WebUI,
		Text:         ExtractText(page.Body.Storage.Value),
		LastModified: page.Version.When,
		SpaceKey:     page.Space.Key,
	}
}
