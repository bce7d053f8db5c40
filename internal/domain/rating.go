package domain

import "math"

// equalityTolerance bounds the absolute difference between two float
// fields that still compare equal.
const equalityTolerance = 1.0e-15

// Rating is one scored measurement of a named metric.
//
// The caller supplies name, value, error and scope. The parent id and the
// two catalog foreign keys are filled in by the formatter while writing.
type Rating struct {
	metricName  string
	metricValue float64
	metricErr   float64
	scope       RatingScope
	parentDbID  int64
	metricID    int32
	thresholdID int32
}

// NewRating builds a rating, failing when scope is not persistable.
func NewRating(name string, value, err float64, scope RatingScope) (*Rating, error) {
	r := &Rating{}
	if e := r.Set(name, value, err, scope); e != nil {
		return nil, e
	}
	return r, nil
}

// MustRating is NewRating for literals known to be valid.
func MustRating(name string, value, err float64, scope RatingScope) *Rating {
	r, e := NewRating(name, value, err, scope)
	if e != nil {
		panic(e)
	}
	return r
}

// Set assigns the four caller-owned fields. Nothing is modified when the
// scope is invalid.
func (r *Rating) Set(name string, value, err float64, scope RatingScope) error {
	if !scope.Valid() {
		return InvalidArgument("rating scope has invalid value %d", int(scope))
	}
	r.metricName = name
	r.metricValue = value
	r.metricErr = err
	r.scope = scope
	return nil
}

// SetParentID records the owning image, exposure or footprint.
func (r *Rating) SetParentID(id int64) error {
	if id < 1 {
		return InvalidArgument("parent db id must be > 0, got %d", id)
	}
	r.parentDbID = id
	return nil
}

// SetForeignKeys stores the catalog ids resolved by the formatter.
func (r *Rating) SetForeignKeys(metricID, thresholdID int32) {
	r.metricID = metricID
	r.thresholdID = thresholdID
}

// SetName replaces the metric name, used when restoring rows whose
// projection only carries the metric id.
func (r *Rating) SetName(name string) {
	r.metricName = name
}

func (r *Rating) Name() string { return r.metricName }
func (r *Rating) Value() float64 { return r.metricValue }
func (r *Rating) Err() float64 { return r.metricErr }
func (r *Rating) Scope() RatingScope { return r.scope }
func (r *Rating) ParentID() int64 { return r.parentDbID }
func (r *Rating) MetricID() int32 { return r.metricID }
func (r *Rating) ThresholdID() int32 { return r.thresholdID }

// Clone returns an independent copy.
func (r *Rating) Clone() *Rating {
	c := *r
	return &c
}

// Equal compares name, value, error, scope and parent id. Value and error
// match within 1e-15. Catalog ids do not take part.
func (r *Rating) Equal(other *Rating) bool {
	if r == nil || other == nil {
		return r == other
	}
	switch {
	case r.metricName != other.metricName:
		return false
	case math.Abs(r.metricValue-other.metricValue) > equalityTolerance:
		return false
	case math.Abs(r.metricErr-other.metricErr) > equalityTolerance:
		return false
	case r.scope != other.scope:
		return false
	case r.parentDbID != other.parentDbID:
		return false
	}
	return true
}

// RatingSet is an ordered sequence of ratings. Order is significant and
// duplicates are allowed.
type RatingSet []*Rating

// Equal reports element-wise equality in index order.
func (s RatingSet) Equal(other RatingSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Clone deep-copies every rating.
func (s RatingSet) Clone() RatingSet {
	if s == nil {
		return nil
	}
	out := make(RatingSet, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}

// PersistableRatings is the unit the formatter reads and writes. Every
// rating in one instance is expected to share scope and parent.
type PersistableRatings struct {
	ratings RatingSet
}

// NewPersistableRatings wraps ratings without copying them.
func NewPersistableRatings(ratings RatingSet) *PersistableRatings {
	return &PersistableRatings{ratings: ratings}
}

func (p *PersistableRatings) Ratings() RatingSet { return p.ratings }
func (p *PersistableRatings) SetRatings(ratings RatingSet) { p.ratings = ratings }

// Len returns the number of ratings; a nil receiver has none.
func (p *PersistableRatings) Len() int {
	if p == nil {
		return 0
	}
	return len(p.ratings)
}

// EqualSet compares against a raw collection, order significant.
func (p *PersistableRatings) EqualSet(other RatingSet) bool {
	return p.ratings.Equal(other)
}

// Equal compares two wrappers by their collections.
func (p *PersistableRatings) Equal(other *PersistableRatings) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ratings.Equal(other.ratings)
}
