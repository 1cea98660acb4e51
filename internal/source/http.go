package source

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flood-cli/internal/fetcher"
	"github.com/sells-group/flood-cli/internal/model"
	"github.com/sells-group/flood-cli/internal/raster"
	"github.com/sells-group/flood-cli/internal/resilience"
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Retry      resilience.Policy
	Breaker    resilience.BreakerConfig
}

// HTTPSource queries a remote batch backend with POST {base}/query. Requests
// are paced, retried on transient failures, and guarded by one circuit
// breaker per sensor.
type HTTPSource struct {
	base     string
	client   *http.Client
	limiter  *fetcher.AdaptiveLimiter
	retry    resilience.Policy
	breakers *resilience.Breakers
}

// NewHTTPSource creates an HTTPSource.
func NewHTTPSource(opts HTTPOptions) (*HTTPSource, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("source: http base url is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetries("observations", "query")
	}
	return &HTTPSource{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  fetcher.NewAdaptiveLimiter(opts.RatePerSec, opts.Burst),
		retry:    opts.Retry,
		breakers: resilience.NewBreakers(opts.Breaker),
	}, nil
}

type wireGrid struct {
	OriginX  float64 `json:"origin_x"`
	OriginY  float64 `json:"origin_y"`
	CellSize float64 `json:"cell_size"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	SRID     int     `json:"srid,omitempty"`
}

type queryRequest struct {
	Region wireGrid  `json:"region"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Sensor string    `json:"sensor,omitempty"`
	Bands  []string  `json:"bands,omitempty"`
}

// wireObservation carries row-major cell values; null marks no data.
type wireObservation struct {
	ID     string                `json:"id"`
	Sensor string                `json:"sensor"`
	Time   time.Time             `json:"time"`
	Bands  map[string][]*float64 `json:"bands"`
}

// Query implements Source.
func (s *HTTPSource) Query(ctx context.Context, region raster.Grid, window model.Window, filter Filter) ([]Observation, error) {
	body, err := json.Marshal(queryRequest{
		Region: wireGrid{region.OriginX, region.OriginY, region.CellSize, region.Width, region.Height, region.SRID},
		Start:  window.Start.UTC(),
		End:    window.End.UTC(),
		Sensor: filter.Sensor,
		Bands:  filter.Bands,
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: marshal query")
	}

	breaker := s.breakers.Get(filter.Sensor)
	obs, err := resilience.RetryVal(ctx, s.retry, func(ctx context.Context) ([]Observation, error) {
		return resilience.Call(ctx, breaker, func(ctx context.Context) ([]Observation, error) {
			return s.post(ctx, body, region)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: query %s [%s, %s)", filter.Sensor,
			window.Start.Format(time.DateOnly), window.End.Format(time.DateOnly))
	}

	out := obs[:0]
	for _, o := range obs {
		if filter.Matches(o) && window.Contains(o.Time) {
			out = append(out, o)
		}
	}
	sortObservations(out)
	zap.L().Debug("source: http query", zap.String("sensor", filter.Sensor), zap.Int("observations", len(out)))
	return out, nil
}

func (s *HTTPSource) post(ctx context.Context, body []byte, region raster.Grid) ([]Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "source: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := fetcher.Do(ctx, s.client, s.limiter, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var out []Observation
	err = fetcher.DecodeJSONArray(ctx, resp.Body, func(w wireObservation) error {
		o, err := w.toObservation(region)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: decode observations")
	}
	return out, nil
}

func (w wireObservation) toObservation(region raster.Grid) (Observation, error) {
	o := Observation{ID: w.ID, Sensor: w.Sensor, Time: w.Time.UTC(), Bands: make(map[string]raster.Field, len(w.Bands))}
	for band, vals := range w.Bands {
		if len(vals) != region.Len() {
			return Observation{}, eris.Errorf("source: observation %s band %s has %d cells, region has %d",
				w.ID, band, len(vals), region.Len())
		}
		f := raster.NewField(region)
		for i, v := range vals {
			if v != nil {
				f.Set(i, *v)
			}
		}
		o.Bands[band] = f
	}
	return o, nil
}
