package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roadfeat/internal/resilience"
)

const (
	nominatimSearchURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent   = "roadfeat/1.0"
)

// nominatimPlace is one element of a Nominatim search response.
type nominatimPlace struct {
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"` // south, north, west, east
}

// Option configures a Nominatim resolver.
type Option func(*Nominatim)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *Nominatim) { n.httpClient = hc }
}

// WithBaseURL points the resolver at another Nominatim instance.
func WithBaseURL(u string) Option {
	return func(n *Nominatim) {
		if u != "" {
			n.searchURL = strings.TrimRight(u, "/") + "/search"
		}
	}
}

// WithUserAgent sets the User-Agent header Nominatim requires.
func WithUserAgent(ua string) Option {
	return func(n *Nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithCountry appends ", <country>" to every query.
func WithCountry(country string) Option {
	return func(n *Nominatim) { n.country = strings.TrimSpace(country) }
}

// WithRateLimit sets requests per second. Nominatim policy allows one.
func WithRateLimit(rps float64) Option {
	return func(n *Nominatim) {
		if rps > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry sets the retry policy.
func WithRetry(p resilience.Policy) Option {
	return func(n *Nominatim) { n.retry = p }
}

// Nominatim resolves places with the OpenStreetMap Nominatim search API.
type Nominatim struct {
	httpClient *http.Client
	searchURL  string
	userAgent  string
	country    string
	limiter    *rate.Limiter
	retry      resilience.Policy
}

// NewNominatim creates a Nominatim resolver with the given options.
func NewNominatim(opts ...Option) *Nominatim {
	n := &Nominatim{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		searchURL:  nominatimSearchURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(1, 1),
		retry:      resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.retry.OnRetry == nil {
		n.retry.OnRetry = resilience.RetryLogger("nominatim", "search")
	}
	return n
}

// Resolve implements Resolver.
func (n *Nominatim) Resolve(ctx context.Context, query string) (*BBox, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if n.country != "" {
		q += ", " + n.country
	}

	box, err := resilience.DoVal(ctx, n.retry, func(ctx context.Context) (*BBox, error) {
		return n.search(ctx, q)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: resolve %q", query)
	}
	if box == nil {
		zap.L().Debug("geocode: no match", zap.String("query", q))
	}
	return box, nil
}

func (n *Nominatim) search(ctx context.Context, q string) (*BBox, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {q},
		"format": {"json"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, resilience.Permanent(eris.Wrap(err, "geocode: nominatim build request"))
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{Service: "nominatim", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}
	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, resilience.Permanent(eris.Wrap(err, "geocode: nominatim parse response"))
	}
	if len(places) == 0 || len(places[0].BoundingBox) == 0 {
		return nil, nil
	}
	box, err := parseBoundingBox(places[0].BoundingBox)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return box, nil
}

// parseBoundingBox converts Nominatim's [south, north, west, east] strings.
func parseBoundingBox(raw []string) (*BBox, error) {
	if len(raw) != 4 {
		return nil, eris.Errorf("geocode: boundingbox has %d values, want 4", len(raw))
	}
	var v [4]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: boundingbox value %q", s)
		}
		v[i] = f
	}
	box := &BBox{West: v[2], South: v[0], East: v[3], North: v[1]}
	if !box.Valid() {
		return nil, eris.Errorf("geocode: degenerate boundingbox %s", box)
	}
	return box, nil
}
