package repository

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/domain"
)

// CatalogRepository reads and maintains the metric, threshold and image
// status catalogs.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// LoadCatalog snapshots metrics and thresholds for one batch.
func (r *CatalogRepository) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	metrics, err := r.ListMetrics(ctx)
	if err != nil {
		return nil, err
	}
	thresholds, err := r.ListThresholds(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(metrics, thresholds), nil
}

// ListMetrics returns every metric ordered by id.
func (r *CatalogRepository) ListMetrics(ctx context.Context) ([]domain.Metric, error) {
	const query = `
        SELECT sdqa_metricId, metricName, physicalUnits, dataType, definition
        FROM sdqa_Metric
        ORDER BY sdqa_metricId
    `
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list metrics")
	}
	defer rows.Close()

	var out []domain.Metric
	for rows.Next() {
		var id int32
		var name, units, dt, definition string
		if err := rows.Scan(&id, &name, &units, &dt, &definition); err != nil {
			return nil, errors.Wrap(err, "scan metric")
		}
		dataType, err := domain.ParseDataType(dt)
		if err != nil {
			return nil, domain.Runtime("metric %d: %v", id, err)
		}
		m, err := domain.NewMetric(id, name, units, dataType, definition)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMetricByName looks up one metric.
func (r *CatalogRepository) GetMetricByName(ctx context.Context, name string) (domain.Metric, error) {
	const query = `
        SELECT sdqa_metricId, metricName, physicalUnits, dataType, definition
        FROM sdqa_Metric
        WHERE metricName = $1
    `
	var (
		m  domain.Metric
		dt string
	)
	err := r.pool.QueryRow(ctx, query, name).Scan(&m.ID, &m.Name, &m.PhysicalUnits, &dt, &m.Definition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Metric{}, errors.Wrapf(ErrNotFound, "metric %q", name)
		}
		return domain.Metric{}, errors.Wrapf(err, "get metric %q", name)
	}
	if m.DataType, err = domain.ParseDataType(dt); err != nil {
		return domain.Metric{}, domain.Runtime("metric %q: %v", name, err)
	}
	return m, nil
}

// ListThresholds returns every threshold ordered by id. NULL bounds come
// back as NaN.
func (r *CatalogRepository) ListThresholds(ctx context.Context) ([]domain.Threshold, error) {
	const query = `
        SELECT sdqa_thresholdId, sdqa_metricId, upperThreshold, lowerThreshold, createdDate
        FROM sdqa_Threshold
        ORDER BY sdqa_thresholdId
    `
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list thresholds")
	}
	defer rows.Close()

	var out []domain.Threshold
	for rows.Next() {
		var (
			th           domain.Threshold
			upper, lower *float64
		)
		if err := rows.Scan(&th.ID, &th.MetricID, &upper, &lower, &th.CreatedDate); err != nil {
			return nil, errors.Wrap(err, "scan threshold")
		}
		th.Upper = derefOrNaN(upper)
		th.Lower = derefOrNaN(lower)
		th.CreatedDate = th.CreatedDate.UTC()
		out = append(out, th)
	}
	return out, rows.Err()
}

// ListImageStatuses returns every image status ordered by id.
func (r *CatalogRepository) ListImageStatuses(ctx context.Context) ([]domain.ImageStatus, error) {
	const query = `
        SELECT sdqa_imageStatusId, statusName, definition
        FROM sdqa_ImageStatus
        ORDER BY sdqa_imageStatusId
    `
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list image statuses")
	}
	defer rows.Close()

	var out []domain.ImageStatus
	for rows.Next() {
		var st domain.ImageStatus
		if err := rows.Scan(&st.ID, &st.Name, &st.Definition); err != nil {
			return nil, errors.Wrap(err, "scan image status")
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// PutMetric inserts or replaces a metric.
func (r *CatalogRepository) PutMetric(ctx context.Context, m domain.Metric) error {
	const query = `
        INSERT INTO sdqa_Metric (sdqa_metricId, metricName, physicalUnits, dataType, definition)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (sdqa_metricId)
        DO UPDATE SET metricName = EXCLUDED.metricName,
                      physicalUnits = EXCLUDED.physicalUnits,
                      dataType = EXCLUDED.dataType,
                      definition = EXCLUDED.definition
    `
	if _, err := r.pool.Exec(ctx, query, m.ID, m.Name, m.PhysicalUnits, m.DataType.String(), m.Definition); err != nil {
		return errors.Wrapf(err, "put metric %d", m.ID)
	}
	return nil
}

// PutThreshold inserts or replaces a threshold. NaN bounds are stored as
// NULL; a zero CreatedDate means now.
func (r *CatalogRepository) PutThreshold(ctx context.Context, th domain.Threshold) error {
	const query = `
        INSERT INTO sdqa_Threshold (sdqa_thresholdId, sdqa_metricId, upperThreshold, lowerThreshold, createdDate)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (sdqa_thresholdId)
        DO UPDATE SET sdqa_metricId = EXCLUDED.sdqa_metricId,
                      upperThreshold = EXCLUDED.upperThreshold,
                      lowerThreshold = EXCLUDED.lowerThreshold,
                      createdDate = EXCLUDED.createdDate
    `
	created := th.CreatedDate
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if _, err := r.pool.Exec(ctx, query, th.ID, th.MetricID, nanToNil(th.Upper), nanToNil(th.Lower), created); err != nil {
		return errors.Wrapf(err, "put threshold %d", th.ID)
	}
	return nil
}

// PutImageStatus inserts or replaces an image status.
func (r *CatalogRepository) PutImageStatus(ctx context.Context, st domain.ImageStatus) error {
	const query = `
        INSERT INTO sdqa_ImageStatus (sdqa_imageStatusId, statusName, definition)
        VALUES ($1,$2,$3)
        ON CONFLICT (sdqa_imageStatusId)
        DO UPDATE SET statusName = EXCLUDED.statusName, definition = EXCLUDED.definition
    `
	if _, err := r.pool.Exec(ctx, query, st.ID, st.Name, st.Definition); err != nil {
		return errors.Wrapf(err, "put image status %d", st.ID)
	}
	return nil
}

func derefOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func nanToNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
