// Package sqlstore keeps ratings and the metric catalogs in any
// database/sql database: SQLite, MySQL or Postgres through pgx's stdlib
// driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/domain"
	"github.com/Clark-Hu/sdqa/internal/formatter"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

// Store implements formatter.RelationalStore on a *sqlx.DB.
type Store struct {
	db     *sqlx.DB
	driver Driver
	logger logrus.FieldLogger
}

var _ formatter.RelationalStore = (*Store)(nil)

// Open connects, pings and, for SQLite and MySQL, creates missing tables.
func Open(ctx context.Context, driver Driver, dsn string, logger logrus.FieldLogger) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:sdqa.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverMySQL:
		drvName = "mysql"
	case DriverPostgres:
		drvName = "pgx"
	default:
		return nil, domain.InvalidArgument("unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, domain.InvalidArgument("dsn is required for driver %q", driver)
	}

	db, err := sqlx.Open(drvName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if driver == DriverSQLite {
		// One writer at a time; concurrent connections only add lock contention.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	s := New(db, driver, logger)
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.WithField("driver", driver).Info("sqlstore: database connection established")
	return s, nil
}

// New wraps an existing connection without touching the schema.
func New(db *sqlx.DB, driver Driver, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{db: db, driver: driver, logger: logger}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var stmts []string
	switch s.driver {
	case DriverSQLite:
		stmts = []string{schemaSQLite}
	case DriverMySQL:
		stmts = schemaMySQL
	default:
		return nil
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}

type ratingRow struct {
	MetricID    int32   `db:"metric_id"`
	ThresholdID int32   `db:"threshold_id"`
	ParentID    int64   `db:"parent_id"`
	Value       float64 `db:"metric_value"`
	Err         float64 `db:"metric_err"`
}

// InsertRatings implements formatter.RelationalStore.
func (s *Store) InsertRatings(ctx context.Context, route formatter.Route, rows []formatter.Row) (err error) {
	if err := route.Validate(); err != nil {
		return err
	}
	query := s.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (sdqa_metricId, sdqa_thresholdId, %s, metricValue, metricErr) VALUES (?, ?, ?, ?, ?)`,
		route.Table, route.ParentColumn))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err = stmt.ExecContext(ctx, row.MetricID, row.ThresholdID, row.ParentID, row.Value, row.Err); err != nil {
			return errors.Wrapf(err, "insert rating %d", i)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// SelectRatings implements formatter.RelationalStore.
func (s *Store) SelectRatings(ctx context.Context, route formatter.Route, parentID int64) ([]formatter.Row, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	query := s.db.Rebind(fmt.Sprintf(`
        SELECT sdqa_metricId AS metric_id,
               sdqa_thresholdId AS threshold_id,
               %[2]s AS parent_id,
               metricValue AS metric_value,
               metricErr AS metric_err
        FROM %[1]s
        WHERE %[2]s = ?
        ORDER BY sdqa_ratingId`, route.Table, route.ParentColumn))

	var found []ratingRow
	if err := s.db.SelectContext(ctx, &found, query, parentID); err != nil {
		return nil, err
	}
	out := make([]formatter.Row, len(found))
	for i, r := range found {
		out[i] = formatter.Row(r)
	}
	return out, nil
}

// CountRatings reports how many ratings parentID owns in route's table.
func (s *Store) CountRatings(ctx context.Context, route formatter.Route, parentID int64) (int64, error) {
	if err := route.Validate(); err != nil {
		return 0, err
	}
	query := s.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, route.Table, route.ParentColumn))
	var n int64
	if err := s.db.GetContext(ctx, &n, query, parentID); err != nil {
		return 0, errors.Wrap(err, "count ratings")
	}
	return n, nil
}

// LoadCatalog implements catalog.Loader with one query per table.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	metrics, err := s.ListMetrics(ctx)
	if err != nil {
		return nil, err
	}
	thresholds, err := s.ListThresholds(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(metrics, thresholds), nil
}

type metricRow struct {
	ID            int32  `db:"metric_id"`
	Name          string `db:"metric_name"`
	PhysicalUnits string `db:"physical_units"`
	DataType      string `db:"data_type"`
	Definition    string `db:"definition"`
}

// ListMetrics returns the metric catalog ordered by id.
func (s *Store) ListMetrics(ctx context.Context) ([]domain.Metric, error) {
	const query = `
        SELECT sdqa_metricId AS metric_id,
               metricName AS metric_name,
               physicalUnits AS physical_units,
               dataType AS data_type,
               definition
        FROM sdqa_Metric
        ORDER BY sdqa_metricId`
	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "list metrics")
	}
	out := make([]domain.Metric, 0, len(rows))
	for _, r := range rows {
		dt, err := domain.ParseDataType(r.DataType)
		if err != nil {
			return nil, domain.Runtime("metric %d: %v", r.ID, err)
		}
		m, err := domain.NewMetric(r.ID, r.Name, r.PhysicalUnits, dt, r.Definition)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetMetricByName looks up one catalog metric. A miss wraps
// domain.ErrNotFound.
func (s *Store) GetMetricByName(ctx context.Context, name string) (domain.Metric, error) {
	query := s.db.Rebind(`
        SELECT sdqa_metricId AS metric_id,
               metricName AS metric_name,
               physicalUnits AS physical_units,
               dataType AS data_type,
               definition
        FROM sdqa_Metric
        WHERE metricName = ?`)
	var r metricRow
	if err := s.db.GetContext(ctx, &r, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Metric{}, errors.Wrapf(domain.ErrNotFound, "metric %q", name)
		}
		return domain.Metric{}, errors.Wrapf(err, "get metric %q", name)
	}
	dt, err := domain.ParseDataType(r.DataType)
	if err != nil {
		return domain.Metric{}, domain.Runtime("metric %q: %v", name, err)
	}
	return domain.NewMetric(r.ID, r.Name, r.PhysicalUnits, dt, r.Definition)
}

type thresholdRow struct {
	ID          int32           `db:"threshold_id"`
	MetricID    int32           `db:"metric_id"`
	Upper       sql.NullFloat64 `db:"upper_threshold"`
	Lower       sql.NullFloat64 `db:"lower_threshold"`
	CreatedDate time.Time       `db:"created_date"`
}

// ListThresholds returns the threshold catalog ordered by id. NULL bounds
// come back as NaN.
func (s *Store) ListThresholds(ctx context.Context) ([]domain.Threshold, error) {
	const query = `
        SELECT sdqa_thresholdId AS threshold_id,
               sdqa_metricId AS metric_id,
               upperThreshold AS upper_threshold,
               lowerThreshold AS lower_threshold,
               createdDate AS created_date
        FROM sdqa_Threshold
        ORDER BY sdqa_thresholdId`
	var rows []thresholdRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "list thresholds")
	}
	out := make([]domain.Threshold, len(rows))
	for i, r := range rows {
		out[i] = domain.Threshold{
			ID:          r.ID,
			MetricID:    r.MetricID,
			Upper:       nullToNaN(r.Upper),
			Lower:       nullToNaN(r.Lower),
			CreatedDate: r.CreatedDate.UTC(),
		}
	}
	return out, nil
}

type imageStatusRow struct {
	ID         int32  `db:"image_status_id"`
	Name       string `db:"status_name"`
	Definition string `db:"definition"`
}

// ListImageStatuses returns the image status catalog ordered by id.
func (s *Store) ListImageStatuses(ctx context.Context) ([]domain.ImageStatus, error) {
	const query = `
        SELECT sdqa_imageStatusId AS image_status_id,
               statusName AS status_name,
               definition
        FROM sdqa_ImageStatus
        ORDER BY sdqa_imageStatusId`
	var rows []imageStatusRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "list image statuses")
	}
	out := make([]domain.ImageStatus, len(rows))
	for i, r := range rows {
		out[i] = domain.ImageStatus(r)
	}
	return out, nil
}

// PutMetric inserts or replaces a metric.
func (s *Store) PutMetric(ctx context.Context, m domain.Metric) error {
	query := s.upsert("sdqa_Metric", "sdqa_metricId",
		[]string{"sdqa_metricId", "metricName", "physicalUnits", "dataType", "definition"})
	_, err := s.db.ExecContext(ctx, query, m.ID, m.Name, m.PhysicalUnits, m.DataType.String(), m.Definition)
	return errors.Wrapf(err, "put metric %d", m.ID)
}

// PutThreshold inserts or replaces a threshold. NaN bounds are stored as NULL.
func (s *Store) PutThreshold(ctx context.Context, th domain.Threshold) error {
	query := s.upsert("sdqa_Threshold", "sdqa_thresholdId",
		[]string{"sdqa_thresholdId", "sdqa_metricId", "upperThreshold", "lowerThreshold", "createdDate"})
	created := th.CreatedDate
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, th.ID, th.MetricID, nanToNull(th.Upper), nanToNull(th.Lower), created.UTC())
	return errors.Wrapf(err, "put threshold %d", th.ID)
}

// PutImageStatus inserts or replaces an image status.
func (s *Store) PutImageStatus(ctx context.Context, st domain.ImageStatus) error {
	query := s.upsert("sdqa_ImageStatus", "sdqa_imageStatusId",
		[]string{"sdqa_imageStatusId", "statusName", "definition"})
	_, err := s.db.ExecContext(ctx, query, st.ID, st.Name, st.Definition)
	return errors.Wrapf(err, "put image status %d", st.ID)
}

func (s *Store) upsert(table, key string, columns []string) string {
	marks := ""
	updates := ""
	for i, c := range columns {
		if i > 0 {
			marks += ", "
		}
		marks += "?"
		if c == key {
			continue
		}
		if updates != "" {
			updates += ", "
		}
		if s.driver == DriverMySQL {
			updates += fmt.Sprintf("%s = VALUES(%s)", c, c)
		} else {
			updates += fmt.Sprintf("%s = EXCLUDED.%s", c, c)
		}
	}
	cols := ""
	for i, c := range columns {
		if i > 0 {
			cols += ", "
		}
		cols += c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ", table, cols, marks)
	if s.driver == DriverMySQL {
		query += "ON DUPLICATE KEY UPDATE " + updates
	} else {
		query += fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", key, updates)
	}
	return s.db.Rebind(query)
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nanToNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
