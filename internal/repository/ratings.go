package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/Clark-Hu/sdqa/internal/formatter"
)

// RatingsRepository stores rating rows in the per-scope rating tables.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// Insert writes all rows in one transaction using a single batch round trip.
// Either every row lands or none does.
func (r *RatingsRepository) Insert(ctx context.Context, route formatter.Route, rows []formatter.Row) error {
	if err := route.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (sdqa_metricId, sdqa_thresholdId, %s, metricValue, metricErr)
        VALUES ($1,$2,$3,$4,$5)
    `, route.Table, route.ParentColumn)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, row.MetricID, row.ThresholdID, row.ParentID, row.Value, row.Err)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return errors.Wrapf(err, "insert rating %d", i)
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "close batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// ListByParent returns the rows owned by parentID in insertion order.
func (r *RatingsRepository) ListByParent(ctx context.Context, route formatter.Route, parentID int64) ([]formatter.Row, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT sdqa_metricId, sdqa_thresholdId, %[2]s, metricValue, metricErr
        FROM %[1]s
        WHERE %[2]s = $1
        ORDER BY sdqa_ratingId
    `, route.Table, route.ParentColumn)

	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "list ratings")
	}
	defer rows.Close()

	var out []formatter.Row
	for rows.Next() {
		var row formatter.Row
		if err := rows.Scan(&row.MetricID, &row.ThresholdID, &row.ParentID, &row.Value, &row.Err); err != nil {
			return nil, errors.Wrap(err, "scan rating")
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate ratings")
	}
	return out, nil
}

// CountByParent reports how many ratings parentID owns.
func (r *RatingsRepository) CountByParent(ctx context.Context, route formatter.Route, parentID int64) (int64, error) {
	if err := route.Validate(); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*)::int8 FROM %s WHERE %s = $1`, route.Table, route.ParentColumn)
	var n int64
	if err := r.pool.QueryRow(ctx, query, parentID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count ratings")
	}
	return n, nil
}

