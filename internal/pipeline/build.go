package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/roadfeat/internal/config"
	"github.com/sells-group/roadfeat/internal/resilience"
	"github.com/sells-group/roadfeat/internal/source"
	"github.com/sells-group/roadfeat/internal/store"
	"github.com/sells-group/roadfeat/pkg/geocode"
)

// NewResolver builds the Nominatim resolver, cached through st unless st is
// nil or Nop.
func NewResolver(cfg *config.Config, st store.Store) geocode.Resolver {
	nom := geocode.NewNominatim(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithCountry(cfg.Geocode.Country),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithRetry(resilience.Policy{
			Attempts: cfg.Geocode.Attempts,
			Pause:    millis(cfg.Geocode.PauseMs),
		}),
	)
	if _, nop := st.(store.Nop); nop || st == nil {
		return nom
	}
	return &geocode.Cached{
		Resolver: nom,
		Cache:    st,
		TTL:      time.Duration(cfg.Geocode.CacheTTLHours) * time.Hour,
	}
}

// NewSource returns the road source by name: overpass or shapefile.
func NewSource(cfg *config.Config, name, shapefile string) (source.Source, error) {
	switch name {
	case "", "overpass":
		return source.NewOverpass(source.OverpassOptions{
			Endpoint:     cfg.Overpass.Endpoint,
			Timeout:      seconds(cfg.Overpass.TimeoutSecs),
			QueryTimeout: cfg.Overpass.QueryTimeout,
			RateLimit:    limit(cfg.Overpass.RateLimit),
			Retry: resilience.Policy{
				Attempts: cfg.Overpass.Attempts,
				Pause:    millis(cfg.Overpass.PauseMs),
			},
		}), nil
	case "shapefile":
		if shapefile == "" {
			return nil, eris.New("pipeline: shapefile source needs a path")
		}
		return &source.Shapefile{Path: shapefile}, nil
	default:
		return nil, eris.Errorf("pipeline: unknown source %q", name)
	}
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func seconds(s int) time.Duration { return time.Duration(s) * time.Second }

func limit(rps float64) rate.Limit { return rate.Limit(rps) }
