// Package formatter persists rating collections to relational databases,
// tab-delimited bulk-load files and binary archives, and reads them back.
package formatter

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/domain"
)

// MaxBatchSize is the largest number of ratings one write accepts. The
// per-batch sequence counter is 16 bits wide and starts at one.
const MaxBatchSize = 65534

// Recorder receives per-call measurements.
type Recorder interface {
	ObserveWrite(scope string, kind StorageKind, ratings int, elapsed time.Duration)
	ObserveRead(scope string, kind StorageKind, ratings int)
	WriteFailed(kind StorageKind, reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWrite(string, StorageKind, int, time.Duration) {}
func (nopRecorder) ObserveRead(string, StorageKind, int)                 {}
func (nopRecorder) WriteFailed(StorageKind, string)                      {}

// Formatter translates PersistableRatings to and from a Storage.
type Formatter struct {
	catalog  catalog.Loader
	logger   logrus.FieldLogger
	recorder Recorder
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithCatalog sets the catalog source used for every storage kind. Without
// it, DBStorage loads the catalog from its own store and TSVStorage writes
// fail.
func WithCatalog(l catalog.Loader) Option {
	return func(f *Formatter) { f.catalog = l }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Formatter) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(f *Formatter) {
		if r != nil {
			f.recorder = r
		}
	}
}

// New builds a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		logger:   logrus.StandardLogger(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Write persists p. All ratings are routed on the scope of the first one.
// Catalog ids and the parent id are written into the ratings in place, and
// stay there even when the write fails afterwards.
func (f *Formatter) Write(ctx context.Context, p *domain.PersistableRatings, st Storage, props Properties) (err error) {
	if p.Len() == 0 {
		return domain.InvalidArgument("no ratings provided")
	}
	if st == nil {
		return domain.InvalidArgument("no storage provided")
	}

	start := time.Now()
	kind := st.Kind()
	defer func() {
		if err != nil {
			f.recorder.WriteFailed(kind, failureReason(err))
		}
	}()

	ratings := p.Ratings()
	for i, r := range ratings {
		if r == nil {
			return domain.InvalidArgument("rating %d is nil", i)
		}
	}
	route, err := RouteFor(ratings[0].Scope())
	if err != nil {
		return err
	}
	f.warnMixedScopes(ratings, route)
	parentID, err := props.Int64(route.ContextKey)
	if err != nil {
		return err
	}
	log := f.logger.WithFields(logrus.Fields{
		"scope":   route.Scope.String(),
		"storage": string(kind),
		"parent":  parentID,
		"count":   len(ratings),
	})

	switch s := st.(type) {
	case *DBStorage:
		if s == nil || s.Store == nil {
			return domain.InvalidArgument("no relational store provided")
		}
		cat, err := f.loadCatalog(ctx, s.Store)
		if err != nil {
			return err
		}
		rows, err := enrich(ratings, parentID, cat)
		if err != nil {
			return err
		}
		if err := s.Store.InsertRatings(ctx, route, rows); err != nil {
			return errors.Wrapf(err, "insert into %s", route.Table)
		}
	case *TSVStorage:
		if s == nil || s.W == nil {
			return domain.InvalidArgument("no tsv writer provided")
		}
		cat, err := f.loadCatalog(ctx, nil)
		if err != nil {
			return err
		}
		rows, err := enrich(ratings, parentID, cat)
		if err != nil {
			return err
		}
		if err := writeTSV(s.W, rows); err != nil {
			return err
		}
	case *ArchiveStorage:
		if s == nil || s.W == nil {
			return domain.InvalidArgument("no archive writer provided")
		}
		if _, err := enrich(ratings, parentID, nil); err != nil {
			return err
		}
		if err := writeArchive(s.W, ratings); err != nil {
			return err
		}
	default:
		return domain.InvalidArgument("storage type %q is not supported", kind)
	}

	elapsed := time.Since(start)
	f.recorder.ObserveWrite(route.Scope.String(), kind, len(ratings), elapsed)
	log.WithField("elapsed", elapsed).Debug("formatter: ratings written")
	return nil
}

// Read loads the ratings of the scope named by the sdqaRatingScope property.
// Relational and delimited sources also need the routed parent id property.
func (f *Formatter) Read(ctx context.Context, st Storage, props Properties) (*domain.PersistableRatings, error) {
	if st == nil {
		return nil, domain.InvalidArgument("no storage provided")
	}
	scopeName, err := props.String(KeyScope)
	if err != nil {
		return nil, err
	}
	scope, err := domain.ParseScope(scopeName)
	if err != nil {
		return nil, err
	}
	route, err := RouteFor(scope)
	if err != nil {
		return nil, err
	}

	var ratings domain.RatingSet
	switch s := st.(type) {
	case *DBStorage:
		if s == nil || s.Store == nil {
			return nil, domain.InvalidArgument("no relational store provided")
		}
		parentID, err := props.Int64(route.ContextKey)
		if err != nil {
			return nil, err
		}
		cat, err := f.loadCatalog(ctx, s.Store)
		if err != nil {
			return nil, err
		}
		rows, err := s.Store.SelectRatings(ctx, route, parentID)
		if err != nil {
			return nil, errors.Wrapf(err, "select from %s", route.Table)
		}
		if ratings, err = f.fromRows(rows, scope, cat); err != nil {
			return nil, err
		}
	case *TSVStorage:
		if s == nil || s.R == nil {
			return nil, domain.InvalidArgument("no tsv reader provided")
		}
		parentID, err := props.Int64(route.ContextKey)
		if err != nil {
			return nil, err
		}
		var cat *catalog.Catalog
		if f.catalog != nil {
			if cat, err = f.loadCatalog(ctx, nil); err != nil {
				return nil, err
			}
		}
		all, err := readTSV(s.R)
		if err != nil {
			return nil, err
		}
		rows := all[:0]
		for _, row := range all {
			if row.ParentID == parentID {
				rows = append(rows, row)
			}
		}
		if ratings, err = f.fromRows(rows, scope, cat); err != nil {
			return nil, err
		}
	case *ArchiveStorage:
		if s == nil || s.R == nil {
			return nil, domain.InvalidArgument("no archive reader provided")
		}
		if ratings, err = fromArchive(s.R, scope, props); err != nil {
			return nil, err
		}
	default:
		return nil, domain.InvalidArgument("storage type %q is not supported", st.Kind())
	}

	f.recorder.ObserveRead(scope.String(), st.Kind(), len(ratings))
	return domain.NewPersistableRatings(ratings), nil
}

// Update is not supported for ratings.
func (f *Formatter) Update(context.Context, *domain.PersistableRatings, Storage, Properties) error {
	return domain.Runtime("updates not supported")
}

func (f *Formatter) loadCatalog(ctx context.Context, fallback catalog.Loader) (*catalog.Catalog, error) {
	loader := f.catalog
	if loader == nil {
		loader = fallback
	}
	if loader == nil {
		return nil, domain.Runtime("no catalog available for this storage")
	}
	cat, err := loader.LoadCatalog(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	return cat, nil
}

// enrich resolves catalog ids (when cat is non-nil), stamps the parent id
// and enforces the batch size.
func enrich(ratings domain.RatingSet, parentID int64, cat *catalog.Catalog) ([]Row, error) {
	rows := make([]Row, 0, len(ratings))
	var seq uint16 = 1
	for _, r := range ratings {
		if cat != nil {
			metricID, err := cat.MetricID(r.Name())
			if err != nil {
				return nil, err
			}
			thresholdID, err := cat.ThresholdID(metricID)
			if err != nil {
				return nil, err
			}
			r.SetForeignKeys(metricID, thresholdID)
		}
		if err := r.SetParentID(parentID); err != nil {
			return nil, err
		}
		seq++
		if seq == 0 {
			return nil, domain.Runtime("too many ratings: a batch holds at most %d", MaxBatchSize)
		}
		rows = append(rows, Row{
			MetricID:    r.MetricID(),
			ThresholdID: r.ThresholdID(),
			ParentID:    r.ParentID(),
			Value:       r.Value(),
			Err:         r.Err(),
		})
	}
	return rows, nil
}

func (f *Formatter) fromRows(rows []Row, scope domain.RatingScope, cat *catalog.Catalog) (domain.RatingSet, error) {
	out := make(domain.RatingSet, 0, len(rows))
	for _, row := range rows {
		var name string
		if cat != nil {
			n, ok := cat.MetricName(row.MetricID)
			if !ok {
				f.logger.WithField("metricId", row.MetricID).Warn("formatter: no metric name for stored rating")
			}
			name = n
		}
		r, err := domain.NewRating(name, row.Value, row.Err, scope)
		if err != nil {
			return nil, err
		}
		if err := r.SetParentID(row.ParentID); err != nil {
			return nil, domain.Runtime("stored rating has parent id %d", row.ParentID)
		}
		r.SetForeignKeys(row.MetricID, row.ThresholdID)
		out = append(out, r)
	}
	return out, nil
}

func fromArchive(r io.Reader, scope domain.RatingScope, props Properties) (domain.RatingSet, error) {
	records, err := readArchive(r)
	if err != nil {
		return nil, err
	}
	names, err := props.Strings(KeyMetricNames)
	if err != nil {
		return nil, err
	}
	if names != nil && len(names) != len(records) {
		return nil, domain.InvalidArgument("%d metric names for %d archived ratings", len(names), len(records))
	}

	out := make(domain.RatingSet, 0, len(records))
	for i, rec := range records {
		var name string
		if names != nil {
			name = names[i]
		}
		rating, err := domain.NewRating(name, rec.Value, rec.Err, scope)
		if err != nil {
			return nil, err
		}
		if err := rating.SetParentID(rec.ParentID); err != nil {
			return nil, domain.Runtime("archived rating %d has parent id %d", i, rec.ParentID)
		}
		out = append(out, rating)
	}
	return out, nil
}

func (f *Formatter) warnMixedScopes(ratings domain.RatingSet, route Route) {
	for _, r := range ratings[1:] {
		if r.Scope() != route.Scope {
			f.logger.WithFields(logrus.Fields{
				"routed": route.Scope.String(),
				"found":  r.Scope().String(),
			}).Warn("formatter: batch mixes rating scopes, routing on the first")
			return
		}
	}
}

func failureReason(err error) string {
	switch {
	case domain.IsInvalidArgument(err):
		return "invalid_argument"
	case domain.IsRuntime(err):
		return "runtime"
	default:
		return "store"
	}
}
