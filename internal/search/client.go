// Package search drives the Google Custom Search image API: one paginated
// query capability, `Search(subject, start) -> (items, next start)`.
package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sorenlabs/archtagger/internal/config"
	"github.com/sorenlabs/archtagger/pkg/pipeline/core"
	"github.com/sorenlabs/archtagger/pkg/pipeline/retry"
)

const defaultBaseURL = "https://customsearch.googleapis.com/customsearch/v1"

// PageSize is the API's maximum (and our fixed) number of items per page.
const PageSize = 10

// Item is one image search result. Ephemeral: it exists only to drive a
// download attempt.
type Item struct {
	URL    string
	Width  int
	Height int
}

type Options struct {
	// BaseURL overrides the API endpoint. Useful for tests.
	BaseURL string

	// OrTerms biases results toward these comma-separated keywords.
	OrTerms string

	Timeout time.Duration
	Retry   retry.Options

	// CacheTTL enables the process-scoped response cache when positive.
	// Re-running a partially fetched session then replays search pages
	// without spending API quota.
	CacheTTL time.Duration
}

type Client struct {
	http    *resty.Client
	creds   config.SearchCredentials
	orTerms string
	retry   retry.Options
	cache   *responseCache
}

func NewClient(creds config.SearchCredentials, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	orTerms := opts.OrTerms
	if orTerms == "" {
		orTerms = "building,interior"
	}

	var cache *responseCache
	if opts.CacheTTL > 0 {
		cache = newResponseCache(opts.CacheTTL)
	}

	return &Client{
		http:    resty.New().SetBaseURL(base).SetTimeout(timeout),
		creds:   creds,
		orTerms: orTerms,
		retry:   opts.Retry,
		cache:   cache,
	}
}

type searchResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Image struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"image"`
	} `json:"items"`
	Queries struct {
		NextPage []struct {
			StartIndex int `json:"startIndex"`
		} `json:"nextPage"`
	} `json:"queries"`
}

// Search issues one paginated image query for a subject. nextStart is 0 when
// the response advertises no further page. Errors are returned only after the
// retry policy is exhausted; callers treat them as "stop this subject".
func (c *Client) Search(ctx context.Context, subject string, start int) (items []Item, nextStart int, err error) {
	key := cacheKey(subject, start)
	if c.cache != nil {
		if cached, ok := c.cache.get(key); ok {
			log.Debug().Str("subject", subject).Int("start", start).Msg("search page served from cache")
			return extract(cached)
		}
	}

	body, err := retry.Do(ctx, func(reqCtx context.Context) (*searchResponse, error) {
		return c.searchPage(reqCtx, subject, start)
	}, c.retry)
	if err != nil {
		return nil, 0, err
	}

	if c.cache != nil {
		c.cache.put(key, body)
	}
	return extract(body)
}

func (c *Client) searchPage(ctx context.Context, subject string, start int) (*searchResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":        c.creds.APIKey,
			"cx":         c.creds.EngineID,
			"searchType": "image",
			"q":          subject,
			"exactTerms": subject,
			"orTerms":    c.orTerms,
			"fileType":   "jpg",
			"imgSize":    "xxlarge",
			"imgType":    "photo",
			"rights":     "cc_publicdomain,cc_attribute,cc_sharealike",
			"safe":       "active",
			"num":        strconv.Itoa(PageSize),
			"start":      strconv.Itoa(start),
		}).
		SetResult(&searchResponse{}).
		Get("")
	if err != nil {
		// Transport-level failures (DNS, resets, timeouts) are worth replaying.
		return nil, &core.TransientError{Err: err}
	}

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	body, ok := resp.Result().(*searchResponse)
	if !ok || body == nil {
		return nil, fmt.Errorf("search: unexpected response shape")
	}
	return body, nil
}

// classifyStatus maps HTTP status codes onto the retry taxonomy: 429 carries
// the advertised reset delay, 4xx is permanent, 5xx is transient.
func classifyStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 429:
		return &core.RateLimitError{
			RetryAfter: resetDelay(resp.Header().Get("X-RateLimit-Reset")),
			Err:        fmt.Errorf("search: HTTP %d", code),
		}
	case code >= 500:
		return &core.TransientError{Err: fmt.Errorf("search: HTTP %d", code)}
	default:
		// 400 and friends cannot succeed on replay.
		return fmt.Errorf("search: HTTP %d", code)
	}
}

// resetDelay parses the X-RateLimit-Reset header (seconds), padding by one
// second to land past the window. Zero means "use the default".
func resetDelay(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs+1) * time.Second
}

func extract(body *searchResponse) ([]Item, int, error) {
	items := make([]Item, 0, len(body.Items))
	for _, it := range body.Items {
		if it.Link == "" {
			continue
		}
		items = append(items, Item{URL: it.Link, Width: it.Image.Width, Height: it.Image.Height})
	}
	next := 0
	if len(body.Queries.NextPage) > 0 {
		next = body.Queries.NextPage[0].StartIndex
	}
	return items, next, nil
}

func cacheKey(subject string, start int) string {
	return subject + "\x00" + strconv.Itoa(start)
}
