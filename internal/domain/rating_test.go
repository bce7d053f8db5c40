package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingSetRoundTrip(t *testing.T) {
	for _, scope := range Scopes() {
		t.Run(scope.String(), func(t *testing.T) {
			var r Rating
			require.NoError(t, r.Set("gMean", 12.5, 0.25, scope))
			assert.Equal(t, "gMean", r.Name())
			assert.Equal(t, 12.5, r.Value())
			assert.Equal(t, 0.25, r.Err())
			assert.Equal(t, scope, r.Scope())
		})
	}
}

func TestRatingSetInvalidScopeKeepsState(t *testing.T) {
	r := MustRating("gMedian", 1.5, 0.1, ScopeCCD)

	err := r.Set("other", 9, 9, ScopeInvalid)
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))

	err = r.Set("other", 9, 9, RatingScope(42))
	assert.True(t, IsInvalidArgument(err))

	assert.Equal(t, "gMedian", r.Name())
	assert.Equal(t, 1.5, r.Value())
	assert.Equal(t, 0.1, r.Err())
	assert.Equal(t, ScopeCCD, r.Scope())
}

func TestZeroRatingIsInvalidScope(t *testing.T) {
	var r Rating
	assert.Equal(t, ScopeInvalid, r.Scope())
	assert.False(t, r.Scope().Valid())

	_, err := NewRating("x", 0, 0, ScopeInvalid)
	assert.True(t, IsInvalidArgument(err))
}

func TestRatingSetParentID(t *testing.T) {
	r := MustRating("nDeadPix", 3, 0, ScopeAmp)
	for _, id := range []int64{0, -1, -9223372036854775808} {
		err := r.SetParentID(id)
		assert.Truef(t, IsInvalidArgument(err), "id %d", id)
		assert.Zero(t, r.ParentID())
	}
	for _, id := range []int64{1, 42, 9223372036854775807} {
		require.NoError(t, r.SetParentID(id))
		assert.Equal(t, id, r.ParentID())
	}
}

func TestRatingEquality(t *testing.T) {
	a := MustRating("gMean", 3.7, 0.2, ScopeAmp)
	b := MustRating("gMean", 3.7, 0.2, ScopeAmp)
	c := MustRating("gMean", 3.7, 0.2, ScopeAmp)

	assert.True(t, a.Equal(a), "reflexive")
	assert.True(t, a.Equal(b) && b.Equal(a), "symmetric")
	assert.True(t, a.Equal(b) && b.Equal(c) && a.Equal(c), "transitive")

	b.SetForeignKeys(7, 9)
	assert.True(t, a.Equal(b), "catalog ids are ignored")

	tests := []struct {
		name  string
		other *Rating
		want  bool
	}{
		{"error within tolerance", MustRating("gMean", 3.7, 0.2+1e-16, ScopeAmp), true},
		{"value within tolerance", MustRating("gMean", 3.7+4e-16, 0.2, ScopeAmp), true},
		{"error beyond tolerance", MustRating("gMean", 3.7, 0.2+1e-12, ScopeAmp), false},
		{"value beyond tolerance", MustRating("gMean", 3.7001, 0.2, ScopeAmp), false},
		{"different name", MustRating("gMode", 3.7, 0.2, ScopeAmp), false},
		{"different scope", MustRating("gMean", 3.7, 0.2, ScopeFootprint), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Equal(tt.other))
		})
	}

	d := a.Clone()
	require.NoError(t, d.SetParentID(5))
	assert.False(t, a.Equal(d), "parent id takes part")
	assert.Zero(t, a.ParentID(), "clone is independent")
}

func TestPersistableRatingsEquality(t *testing.T) {
	r0 := MustRating("cMedian1", 1, 0.1, ScopeCCD)
	r1 := MustRating("cMedian2", 2, 0.2, ScopeCCD)
	r2 := MustRating("cMedian3", 3, 0.3, ScopeCCD)

	p := NewPersistableRatings(RatingSet{r0, r1, r2})
	assert.Equal(t, 3, p.Len())
	assert.True(t, p.EqualSet(RatingSet{r0.Clone(), r1.Clone(), r2.Clone()}))
	assert.False(t, p.EqualSet(RatingSet{r1, r0, r2}), "order matters")
	assert.False(t, p.EqualSet(RatingSet{r0, r1}))

	q := NewPersistableRatings(RatingSet{r0, r1, r2}.Clone())
	assert.True(t, p.Equal(q))
	q.SetRatings(RatingSet{r2, r1, r0})
	assert.False(t, p.Equal(q))

	var nilP *PersistableRatings
	assert.Zero(t, nilP.Len())
	assert.False(t, p.Equal(nil))
}

func TestParseScope(t *testing.T) {
	for _, scope := range Scopes() {
		got, err := ParseScope(scope.String())
		require.NoError(t, err)
		assert.Equal(t, scope, got)
	}
	got, err := ParseScope(" footprint ")
	require.NoError(t, err)
	assert.Equal(t, ScopeFootprint, got)

	_, err = ParseScope("INVALID")
	assert.True(t, IsInvalidArgument(err))
	_, err = ParseScope("")
	assert.True(t, IsInvalidArgument(err))
}
