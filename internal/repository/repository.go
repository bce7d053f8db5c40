package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/domain"
	"github.com/Clark-Hu/sdqa/internal/formatter"
	"github.com/Clark-Hu/sdqa/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = domain.ErrNotFound

// Repository aggregates the Postgres repositories. It satisfies
// formatter.RelationalStore so it can back a formatter.DBStorage directly.
type Repository struct {
	Ratings *RatingsRepository
	Catalog *CatalogRepository
}

var _ formatter.RelationalStore = (*Repository)(nil)

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Ratings: &RatingsRepository{pool: pool},
		Catalog: &CatalogRepository{pool: pool},
	}
}

// LoadCatalog implements catalog.Loader.
func (r *Repository) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	return r.Catalog.LoadCatalog(ctx)
}

// InsertRatings implements formatter.RelationalStore.
func (r *Repository) InsertRatings(ctx context.Context, route formatter.Route, rows []formatter.Row) error {
	return r.Ratings.Insert(ctx, route, rows)
}

// SelectRatings implements formatter.RelationalStore.
func (r *Repository) SelectRatings(ctx context.Context, route formatter.Route, parentID int64) ([]formatter.Row, error) {
	return r.Ratings.ListByParent(ctx, route, parentID)
}

// CountRatings reports how many ratings parentID owns in route's table.
func (r *Repository) CountRatings(ctx context.Context, route formatter.Route, parentID int64) (int64, error) {
	return r.Ratings.CountByParent(ctx, route, parentID)
}

// GetMetricByName looks up one catalog metric.
func (r *Repository) GetMetricByName(ctx context.Context, name string) (domain.Metric, error) {
	return r.Catalog.GetMetricByName(ctx, name)
}

// ListMetrics returns the metric catalog.
func (r *Repository) ListMetrics(ctx context.Context) ([]domain.Metric, error) {
	return r.Catalog.ListMetrics(ctx)
}

// ListThresholds returns the threshold catalog.
func (r *Repository) ListThresholds(ctx context.Context) ([]domain.Threshold, error) {
	return r.Catalog.ListThresholds(ctx)
}

// ListImageStatuses returns the image status catalog.
func (r *Repository) ListImageStatuses(ctx context.Context) ([]domain.ImageStatus, error) {
	return r.Catalog.ListImageStatuses(ctx)
}
