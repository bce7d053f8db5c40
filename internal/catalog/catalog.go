// Package catalog resolves metric names and ids against the metric and
// threshold catalogs.
package catalog

import (
	"context"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

// Loader produces a catalog snapshot. The formatter calls it once per batch.
type Loader interface {
	LoadCatalog(ctx context.Context) (*Catalog, error)
}

// Catalog is an immutable snapshot of the two lookup tables.
type Catalog struct {
	metricIDs    map[string]int32
	metricNames  map[int32]string
	thresholdIDs map[int32]int32
	thresholds   map[int32]domain.Threshold
}

// New indexes metrics by name and thresholds by metric id. When several
// thresholds exist for one metric the one created last wins.
func New(metrics []domain.Metric, thresholds []domain.Threshold) *Catalog {
	c := &Catalog{
		metricIDs:    make(map[string]int32, len(metrics)),
		metricNames:  make(map[int32]string, len(metrics)),
		thresholdIDs: make(map[int32]int32, len(thresholds)),
		thresholds:   make(map[int32]domain.Threshold, len(thresholds)),
	}
	for _, m := range metrics {
		c.metricIDs[m.Name] = m.ID
		c.metricNames[m.ID] = m.Name
	}
	for _, th := range thresholds {
		if prev, ok := c.thresholds[th.MetricID]; ok && prev.CreatedDate.After(th.CreatedDate) {
			continue
		}
		c.thresholdIDs[th.MetricID] = th.ID
		c.thresholds[th.MetricID] = th
	}
	return c
}

// MetricID looks up a metric id by name.
func (c *Catalog) MetricID(name string) (int32, error) {
	id, ok := c.metricIDs[name]
	if !ok {
		return 0, domain.Runtime("unknown metric name %q", name)
	}
	return id, nil
}

// ThresholdID looks up the threshold id attached to a metric id.
func (c *Catalog) ThresholdID(metricID int32) (int32, error) {
	id, ok := c.thresholdIDs[metricID]
	if !ok {
		return 0, domain.Runtime("unknown metric id %d", metricID)
	}
	return id, nil
}

// MetricName is the reverse of MetricID.
func (c *Catalog) MetricName(metricID int32) (string, bool) {
	name, ok := c.metricNames[metricID]
	return name, ok
}

// Threshold returns the bounds attached to a metric id.
func (c *Catalog) Threshold(metricID int32) (domain.Threshold, bool) {
	th, ok := c.thresholds[metricID]
	return th, ok
}

// Len returns the number of metrics in the snapshot.
func (c *Catalog) Len() int { return len(c.metricIDs) }

// Static serves a fixed snapshot.
type Static struct {
	Catalog *Catalog
}

// LoadCatalog implements Loader.
func (s Static) LoadCatalog(context.Context) (*Catalog, error) {
	if s.Catalog == nil {
		return nil, domain.Runtime("static catalog is empty")
	}
	return s.Catalog, nil
}
