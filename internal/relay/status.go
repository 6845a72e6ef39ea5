package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/meshgate-core/internal/apperr"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
)

const (
	pathsListEndpoint = "/v3/paths/list"

	// itemsPerPage is the page size requested from the relay.
	itemsPerPage = 100

	// maxPages stops a misbehaving relay from paging forever.
	maxPages = 50

	maxResponseSize = 10 << 20 // 10 MB

	defaultStatusTimeout = 5 * time.Second
)

// ErrUpstreamUnavailable is returned when the relay status endpoint cannot
// be reached, answers with a non-2xx status, or returns a body that cannot
// be decoded.
var ErrUpstreamUnavailable = apperr.E(apperr.KindUpstreamUnavailable, "relay: status endpoint unavailable")

// PathSource describes what feeds a path.
type PathSource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Path is one entry of the relay's path list.
type Path struct {
	Name          string      `json:"name"`
	Ready         bool        `json:"ready"`
	ReadyTime     *time.Time  `json:"readyTime"`
	Source        *PathSource `json:"source"`
	SourceType    string      `json:"sourceType"`
	BytesReceived uint64      `json:"bytesReceived"`
	Readers       []any       `json:"readers"`
}

// pathList is one page of GET /v3/paths/list.
type pathList struct {
	PageCount int    `json:"pageCount"`
	ItemCount int    `json:"itemCount"`
	Items     []Path `json:"items"`
}

// StatusClient reads live path state from the relay's control API.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type StatusClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStatusClient creates a client for the relay at cfg.APIURL. Every call
// is bounded by cfg.StatusTimeout.
func NewStatusClient(cfg config.RelayConfig) *StatusClient {
	timeout := time.Duration(cfg.StatusTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultStatusTimeout
	}
	return &StatusClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListPaths returns every path the relay knows about, following pagination.
// Any failure yields ErrUpstreamUnavailable and no partial result.
func (c *StatusClient) ListPaths(ctx context.Context) ([]Path, error) {
	var paths []Path
	for page := 0; page < maxPages; page++ {
		list, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
		paths = append(paths, list.Items...)
		if page+1 >= list.PageCount {
			break
		}
	}
	if paths == nil {
		paths = []Path{}
	}
	return paths, nil
}

// HealthCheck verifies the relay control API answers.
func (c *StatusClient) HealthCheck(ctx context.Context) error {
	if _, err := c.fetchPage(ctx, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return nil
}

func (c *StatusClient) fetchPage(ctx context.Context, page int) (*pathList, error) {
	params := url.Values{}
	params.Set("itemsPerPage", strconv.Itoa(itemsPerPage))
	params.Set("page", strconv.Itoa(page))
	endpoint := c.baseURL + pathsListEndpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("relay responded with HTTP %d", resp.StatusCode)
	}

	var list pathList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding path list: %w", err)
	}
	return &list, nil
}
