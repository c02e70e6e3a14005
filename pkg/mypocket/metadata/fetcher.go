// Package metadata fetches a page's title, description and preview image so
// saved links can be enriched. Fetch never fails; callers get the URL as
// title when anything goes wrong.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	// UserAgent identifies the fetcher to remote sites
	UserAgent = "Mozilla/5.0 (compatible; MyPocketBot/1.0)"

	maxBodySize     = 1 << 20
	maxRedirects    = 5
	defaultTimeout  = 2 * time.Second
	defaultCacheTTL = time.Hour
)

var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrInvalidScheme = errors.New("invalid protocol")
	ErrLocalhost     = errors.New("localhost not allowed")
	ErrIPAddress     = errors.New("IP addresses not allowed")
)

// PageMetadata is what a page says about itself
type PageMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Options tunes the fetcher
type Options struct {
	Timeout  time.Duration
	Rate     float64 // requests per second across all users
	Burst    int
	CacheTTL time.Duration
}

// Fetcher retrieves page metadata over HTTP
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	cache    Cache
	cacheTTL time.Duration
	timeout  time.Duration
	logger   *logging.Logger
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithTransport replaces the HTTP transport, keeping the redirect checks
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = rt
	}
}

// NewFetcher creates a fetcher. A nil cache disables caching.
func NewFetcher(cache Cache, logger *logging.Logger, opts Options, options ...Option) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}

	f := &Fetcher{
		client: &http.Client{
			CheckRedirect: checkRedirect,
		},
		limiter:  rate.NewLimiter(limit, opts.Burst),
		cache:    cache,
		cacheTTL: opts.CacheTTL,
		timeout:  opts.Timeout,
		logger:   logger,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// ValidateURL accepts absolute http(s) URLs whose host is a name other than
// localhost.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, ErrInvalidURL
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidScheme
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasPrefix(host, "localhost.") {
		return nil, ErrLocalhost
	}
	if net.ParseIP(host) != nil {
		return nil, ErrIPAddress
	}

	return u, nil
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("too many redirects")
	}
	_, err := ValidateURL(req.URL.String())
	return err
}

// Fallback is returned when a page cannot be fetched
func Fallback(rawURL string) PageMetadata {
	return PageMetadata{Title: rawURL}
}

// Fetch returns the page's metadata, or Fallback(rawURL) on any failure
// including running out of the fetcher's timeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) PageMetadata {
	// The budget covers the cache round trips too
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if f.cache != nil {
		cached, err := f.cache.Get(ctx, rawURL)
		if err != nil {
			f.logger.Debug(ctx, "metadata cache read failed", "error", err)
		} else if cached != nil {
			return *cached
		}
	}

	meta, err := f.fetch(ctx, rawURL)
	if err != nil {
		f.logger.Debug(ctx, "metadata fetch failed", "error", err)
		return Fallback(rawURL)
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, rawURL, meta, f.cacheTTL); err != nil {
			f.logger.Debug(ctx, "metadata cache write failed", "error", err)
		}
	}
	return meta
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (PageMetadata, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return PageMetadata{}, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return PageMetadata{}, fmt.Errorf("rate limited: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PageMetadata{}, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return PageMetadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PageMetadata{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return PageMetadata{}, err
	}

	meta, err := Parse(body)
	if err != nil {
		return PageMetadata{}, err
	}
	if meta.Title == "" {
		meta.Title = rawURL
	}
	return meta, nil
}

// Parse extracts metadata from an HTML document. The title is empty when the
// page has none.
func Parse(r io.Reader) (PageMetadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return PageMetadata{}, err
	}

	var (
		title                      string
		description, ogDescription string
		ogImage, twitterImage      string
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				property := strings.ToLower(attr(n, "property"))
				content := strings.TrimSpace(attr(n, "content"))
				switch {
				case name == "description" && description == "":
					description = content
				case property == "og:description" && ogDescription == "":
					ogDescription = content
				case property == "og:image" && ogImage == "":
					ogImage = content
				case name == "twitter:image" && twitterImage == "":
					twitterImage = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	meta := PageMetadata{Title: title, Description: description, Image: ogImage}
	if meta.Description == "" {
		meta.Description = ogDescription
	}
	if meta.Image == "" {
		meta.Image = twitterImage
	}
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
