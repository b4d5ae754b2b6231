package source

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roadfeat/internal/resilience"
	"github.com/sells-group/roadfeat/internal/road"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// DefaultOverpassURL is the public Overpass interpreter.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// OverpassOptions configures the Overpass source.
type OverpassOptions struct {
	Endpoint string
	Timeout  time.Duration
	// QueryTimeout is the server-side [timeout:N] in seconds. Default 25.
	QueryTimeout int
	RateLimit    rate.Limit
	Retry        resilience.Policy
	HTTPClient   *http.Client
}

// Overpass queries OpenStreetMap ways through the Overpass API.
type Overpass struct {
	client  *overpass.Client
	opts    OverpassOptions
	limiter *rate.Limiter
}

// NewOverpass creates an Overpass source.
func NewOverpass(opts OverpassOptions) *Overpass {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultOverpassURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 25
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 1
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("overpass", "query")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	client := overpass.NewWithSettings(opts.Endpoint, 1, hc)
	return &Overpass{
		client:  &client,
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, 1),
	}
}

// highwayQuery selects every highway way in box with its member nodes.
func highwayQuery(box geocode.BBox, timeout int) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  way["highway"](%f,%f,%f,%f);
);
out body;
>;
out skel qt;`, timeout, box.South, box.West, box.North, box.East)
}

// Segments implements Source.
func (o *Overpass) Segments(ctx context.Context, city string, box geocode.BBox) ([]road.Segment, error) {
	if !box.Valid() {
		return nil, eris.Errorf("overpass: invalid bbox %s for %s", box, city)
	}
	q := highwayQuery(box, o.opts.QueryTimeout)

	res, err := resilience.DoVal(ctx, o.opts.Retry, func(ctx context.Context) (overpass.Result, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return overpass.Result{}, eris.Wrap(err, "overpass: rate limiter wait")
		}
		return o.query(ctx, q)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "overpass: query %s", city)
	}

	segs := waysToSegments(city, res)
	zap.L().Info("overpass: segments fetched",
		zap.String("city", city),
		zap.Int("ways", len(res.Ways)),
		zap.Int("segments", len(segs)),
	)
	return segs, nil
}

// query runs the blocking client call and gives up when ctx ends.
func (o *Overpass) query(ctx context.Context, q string) (overpass.Result, error) {
	type reply struct {
		res overpass.Result
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := o.client.Query(q)
		ch <- reply{res: res, err: err}
	}()
	select {
	case <-ctx.Done():
		return overpass.Result{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return overpass.Result{}, eris.Wrap(r.err, "overpass: request")
		}
		return r.res, nil
	}
}

// waysToSegments converts accepted ways in id order. Nodes the server did not
// return carry no position and are skipped.
func waysToSegments(city string, res overpass.Result) []road.Segment {
	ids := make([]int64, 0, len(res.Ways))
	for id := range res.Ways {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	segs := make([]road.Segment, 0, len(ids))
	for _, id := range ids {
		way := res.Ways[id]
		if way == nil {
			continue
		}
		coords := make([]geom.Coord, 0, len(way.Nodes))
		for _, n := range way.Nodes {
			if n == nil || (n.Lat == 0 && n.Lon == 0) {
				continue
			}
			coords = append(coords, geom.Coord{n.Lon, n.Lat})
		}
		if seg, ok := road.FromTags(city, id, way.Tags, coords); ok {
			segs = append(segs, seg)
		}
	}
	return segs
}
