package geocode

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/roadfeat/internal/resilience"
)

// testOptions disables pacing and shortens retries.
func testOptions(hc *http.Client) []Option {
	return []Option{
		WithHTTPClient(hc),
		WithRetry(resilience.Policy{Attempts: 3, Pause: time.Millisecond}),
		func(n *Nominatim) { n.limiter = rate.NewLimiter(rate.Inf, 1) },
	}
}

// newRewriteClient sends every request whose URL starts with prefix to the
// test server instead.
func newRewriteClient(serverURL, prefix string) *http.Client {
	return &http.Client{Transport: &rewriteTransport{server: serverURL, prefix: prefix}}
}

type rewriteTransport struct {
	server string
	prefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	orig := req.URL.String()
	if !strings.HasPrefix(orig, t.prefix) {
		return http.DefaultTransport.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.server + orig[len(t.prefix):])
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = parsed
	out.Host = parsed.Host
	return http.DefaultTransport.RoundTrip(out)
}
