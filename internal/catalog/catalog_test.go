package catalog

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

func testCatalog() *Catalog {
	metrics := []domain.Metric{
		{ID: 1, Name: "gMean", DataType: domain.DataTypeFloat},
		{ID: 2, Name: "nDeadPix", DataType: domain.DataTypeInt},
		{ID: 3, Name: "orphan", DataType: domain.DataTypeFloat},
	}
	older := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.AddDate(1, 0, 0)
	thresholds := []domain.Threshold{
		{ID: 10, MetricID: 1, Upper: 100, Lower: 0, CreatedDate: newer},
		{ID: 11, MetricID: 1, Upper: 50, Lower: 0, CreatedDate: older},
		{ID: 20, MetricID: 2, Upper: 10, Lower: math.NaN(), CreatedDate: older},
	}
	return New(metrics, thresholds)
}

func TestCatalogLookups(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, 3, c.Len())

	id, err := c.MetricID("gMean")
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	th, err := c.ThresholdID(id)
	require.NoError(t, err)
	assert.Equal(t, int32(10), th, "newest threshold wins")

	name, ok := c.MetricName(2)
	assert.True(t, ok)
	assert.Equal(t, "nDeadPix", name)

	bounds, ok := c.Threshold(2)
	require.True(t, ok)
	assert.True(t, bounds.Within(-5))
}

func TestCatalogMisses(t *testing.T) {
	c := testCatalog()

	_, err := c.MetricID("missing")
	assert.True(t, domain.IsRuntime(err))
	assert.Contains(t, err.Error(), "unknown metric name")

	_, err = c.ThresholdID(3)
	assert.True(t, domain.IsRuntime(err))
	assert.Contains(t, err.Error(), "unknown metric id")

	_, ok := c.MetricName(99)
	assert.False(t, ok)
}

func TestStaticLoader(t *testing.T) {
	c := testCatalog()
	got, err := Static{Catalog: c}.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = Static{}.LoadCatalog(context.Background())
	assert.True(t, domain.IsRuntime(err))
}
