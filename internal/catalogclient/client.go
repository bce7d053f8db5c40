// Package catalogclient loads the metric and threshold catalogs from a
// remote SDQA service over HTTP.
package catalogclient

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/domain"
)

// ErrNotFound is returned when upstream does not serve a catalog endpoint.
var ErrNotFound = errors.New("catalogclient: not found")

// HTTPClient implements catalog.Loader over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  logrus.FieldLogger
}

var _ catalog.Loader = (*HTTPClient)(nil)

// NewHTTPClient constructs a new HTTP-backed catalog loader.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger logrus.FieldLogger) (*HTTPClient, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog url")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, domain.InvalidArgument("catalog url %q needs a scheme and host", baseURL)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// LoadCatalog fetches metrics and thresholds and indexes them.
func (c *HTTPClient) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	metrics, err := c.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	thresholds, err := c.Thresholds(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(metrics, thresholds), nil
}

// Metrics fetches the metric catalog.
func (c *HTTPClient) Metrics(ctx context.Context) ([]domain.Metric, error) {
	var payload listPayload[metricPayload]
	if err := c.get(ctx, "/catalog/metrics", &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Metric, 0, len(payload.Items))
	for _, item := range payload.Items {
		m, err := item.toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "metric %d", item.ID)
		}
		out = append(out, m)
	}
	return out, nil
}

// Thresholds fetches the threshold catalog.
func (c *HTTPClient) Thresholds(ctx context.Context) ([]domain.Threshold, error) {
	var payload listPayload[thresholdPayload]
	if err := c.get(ctx, "/catalog/thresholds", &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Threshold, 0, len(payload.Items))
	for _, item := range payload.Items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, into any) error {
	endpoint := *c.baseURL
	endpoint.Path += path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %s", path)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return errors.Wrapf(err, "decode %s", path)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("catalogclient: unexpected status")
		return errors.Errorf("catalogclient: upstream returned %d for %s", resp.StatusCode, path)
	}
}

type listPayload[T any] struct {
	Items []T `json:"items"`
}

type metricPayload struct {
	ID            int32  `json:"id"`
	Name          string `json:"name"`
	PhysicalUnits string `json:"physicalUnits"`
	DataType      string `json:"dataType"`
	Definition    string `json:"definition"`
}

func (p metricPayload) toDomain() (domain.Metric, error) {
	dataType, err := domain.ParseDataType(p.DataType)
	if err != nil {
		return domain.Metric{}, err
	}
	return domain.NewMetric(p.ID, p.Name, p.PhysicalUnits, dataType, p.Definition)
}

// Missing bounds decode as open (NaN).
type thresholdPayload struct {
	ID          int32      `json:"id"`
	MetricID    int32      `json:"metricId"`
	Upper       *float64   `json:"upper"`
	Lower       *float64   `json:"lower"`
	CreatedDate *time.Time `json:"createdDate"`
}

func (p thresholdPayload) toDomain() domain.Threshold {
	th := domain.Threshold{
		ID:       p.ID,
		MetricID: p.MetricID,
		Upper:    boundOrNaN(p.Upper),
		Lower:    boundOrNaN(p.Lower),
	}
	if p.CreatedDate != nil {
		th.CreatedDate = p.CreatedDate.UTC()
	}
	return th
}

func boundOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
