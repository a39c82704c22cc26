// Package npi provides a client for the CMS NPI Registry lookup API.
package npi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the public NPI Registry API endpoint.
const DefaultBaseURL = "https://npiregistry.cms.hhs.gov/api/"

// APIVersion is the registry API version requested.
const APIVersion = "2.1"

// Client looks up providers by NPI number.
type Client interface {
	Lookup(ctx context.Context, number string) (*Response, error)
}

// Response is the decoded lookup response. Only the fields the validator
// reads are decoded; each result's raw JSON is kept alongside.
type Response struct {
	ResultCount int      `json:"result_count"`
	Results     []Result `json:"results"`
}

// Result is one registry entry.
type Result struct {
	Number     int64           `json:"number"`
	Basic      Basic           `json:"basic"`
	Taxonomies []Taxonomy      `json:"taxonomies"`
	Raw        json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a result and retains its raw bytes.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Result(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Basic holds the individual's name and enumeration status.
type Basic struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Credential  string `json:"credential"`
	Status      string `json:"status"`
	LastUpdated string `json:"last_updated"`
}

// Taxonomy is one classification entry.
type Taxonomy struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
	License string `json:"license"`
	State   string `json:"state"`
}

// PrimaryTaxonomy returns the entry flagged primary, if any.
func (r Result) PrimaryTaxonomy() (Taxonomy, bool) {
	for _, t := range r.Taxonomies {
		if t.Primary {
			return t, true
		}
	}
	return Taxonomy{}, false
}

// FullName joins the registry first and last names.
func (b Basic) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("npi: status %d", e.StatusCode)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a registry client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup queries the registry for a single NPI number. Transport failures
// are returned wrapped; non-2xx responses return *StatusError.
func (c *httpClient) Lookup(ctx context.Context, number string) (*Response, error) {
	q := url.Values{}
	q.Set("version", APIVersion)
	q.Set("number", number)

	endpoint := c.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "npi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "npi: lookup")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "npi: decode response")
	}
	return &out, nil
}
