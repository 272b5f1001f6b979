package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

const defaultBaseURL = "https://ipapi.co"

var (
	// ErrReservedIP is returned for loopback, private, and other
	// non-routable addresses that no public resolver can place.
	ErrReservedIP = errors.New("reserved ip address")
	// ErrLookupFailed wraps transport and decode failures.
	ErrLookupFailed = errors.New("geolocation lookup failed")
)

// Result is one resolved lookup.
type Result struct {
	IP       string
	City     string
	Region   string
	Country  string
	Location string
}

// Client queries an ipapi.co style JSON endpoint. The zero value is not
// usable; construct with [NewClient].
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient builds a [Client] with a bounded default timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ipapiResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// Lookup resolves an IP to a coarse "City, Region, Country" string.
// Reserved addresses are rejected locally without a network call.
func (c *Client) Lookup(ctx context.Context, ip string) (Result, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if isReserved(addr) {
		return Result{}, ErrReservedIP
	}

	url := c.baseURL + "/" + addr.String() + "/json/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if body.Error {
		return Result{}, fmt.Errorf("%w: %s", ErrLookupFailed, body.Reason)
	}

	return Result{
		IP:       addr.String(),
		City:     body.City,
		Region:   body.Region,
		Country:  body.CountryName,
		Location: joinLocation(body.City, body.Region, body.CountryName),
	}, nil
}

func joinLocation(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

func isReserved(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified()
}
