// Package transport is the HTTP side of the tree-inventory client: it fetches
// plot documents, user edit pages and photo bytes from the inventory server.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/models"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultImageTTL = 10 * time.Minute
	maxBodyBytes    = 20 << 20
)

// StatusError is returned for any non-200 response.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: %s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Client talks to one inventory server.
type Client struct {
	base      *url.URL
	client    *http.Client
	images    *cache.Cache
	userAgent string
	token     string

	mu     sync.RWMutex
	geoRev string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithImageTTL sets how long fetched images stay cached.
func WithImageTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.images = cache.New(d, 2*d)
		}
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithGeoRevID seeds the current instance geo-revision.
func WithGeoRevID(id string) Option {
	return func(c *Client) { c.geoRev = id }
}

// NewClient returns a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport: base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:      base,
		client:    &http.Client{Timeout: defaultTimeout},
		images:    cache.New(defaultImageTTL, 2*defaultImageTTL),
		userAgent: "arbor",
	}
	c.client.Transport = c
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RoundTrip decorates outgoing requests with client headers.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// GeoRevID returns the geo-revision of the current instance.
func (c *Client) GeoRevID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.geoRev
}

// SetGeoRevID records the geo-revision of the current instance.
func (c *Client) SetGeoRevID(id string) {
	c.mu.Lock()
	c.geoRev = id
	c.mu.Unlock()
}

// resolve turns a server-relative path or an absolute URL into a full URL.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("transport: parse %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return c.base.ResolveReference(&url.URL{Path: strings.TrimLeft(u.Path, "/"), RawQuery: u.RawQuery}).String(), nil
}

func (c *Client) get(ctx context.Context, ref string) ([]byte, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, URL: target, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", target, err)
	}
	return body, nil
}

// FetchJSON retrieves a JSON object document.
func (c *Client) FetchJSON(ctx context.Context, path string) (document.Object, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	obj, err := document.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("transport: decode %s: %w", path, err)
	}
	return obj, nil
}

// FetchImage retrieves image bytes. Responses are cached by URL.
func (c *Client) FetchImage(ctx context.Context, ref string) ([]byte, error) {
	key, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	if x, found := c.images.Get(key); found {
		return x.([]byte), nil
	}
	body, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.images.Set(key, body, cache.DefaultExpiration)
	return body, nil
}

// FetchUserEdits retrieves one page of the user's recent edits.
func (c *Client) FetchUserEdits(ctx context.Context, user *models.User, offset, limit int) ([]*models.EditEntry, error) {
	id, err := user.ID()
	if err != nil {
		return nil, fmt.Errorf("transport: user edits: %w", err)
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(limit))
	path := "user/" + strconv.Itoa(id) + "/edits?" + q.Encode()

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	items, err := document.ParseArray(body)
	if err != nil {
		return nil, fmt.Errorf("transport: decode user edits: %w", err)
	}
	entries, err := models.ParseEditEntries(items)
	if err != nil {
		return nil, fmt.Errorf("transport: decode user edits: %w", err)
	}
	return entries, nil
}

// FetchPlot retrieves a plot by id. The returned view falls back to this
// client's geo-revision when the payload carries none.
func (c *Client) FetchPlot(ctx context.Context, id int) (*models.Plot, error) {
	obj, err := c.FetchJSON(ctx, "plots/"+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	return models.WrapPlot(obj).WithGeoRevSource(c), nil
}

// FetchInstance retrieves the instance description and records its
// geo-revision.
func (c *Client) FetchInstance(ctx context.Context) (document.Object, error) {
	obj, err := c.FetchJSON(ctx, "instance")
	if err != nil {
		return nil, err
	}
	if rev, err := document.Get[string](obj, models.KeyGeoRevHash); err == nil {
		c.SetGeoRevID(rev)
	}
	return obj, nil
}
