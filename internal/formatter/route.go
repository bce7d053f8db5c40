package formatter

import "github.com/Clark-Hu/sdqa/internal/domain"

// Destination tables, one per image level. Footprint ratings share the
// amplifier table.
const (
	TableAmpExposure = "sdqa_Rating_ForScienceAmpExposure"
	TableCCDExposure = "sdqa_Rating_ForScienceCCDExposure"
	TableFPAExposure = "sdqa_Rating_ForScienceFPAExposure"
)

// Route is where ratings of one scope live and which context property
// supplies their parent id.
type Route struct {
	Scope        domain.RatingScope
	Table        string
	ParentColumn string
	ContextKey   string
}

var routes = map[domain.RatingScope]Route{
	domain.ScopeAmp: {
		Scope: domain.ScopeAmp, Table: TableAmpExposure,
		ParentColumn: "ampExposureId", ContextKey: KeyAmpExposureID,
	},
	domain.ScopeCCD: {
		Scope: domain.ScopeCCD, Table: TableCCDExposure,
		ParentColumn: "ccdExposureId", ContextKey: KeyCCDExposureID,
	},
	domain.ScopeFPA: {
		Scope: domain.ScopeFPA, Table: TableFPAExposure,
		ParentColumn: "exposureId", ContextKey: KeyExposureID,
	},
	domain.ScopeFootprint: {
		Scope: domain.ScopeFootprint, Table: TableAmpExposure,
		ParentColumn: "ampExposureId", ContextKey: KeyAmpExposureID,
	},
}

// RouteFor returns the routing entry for a persistable scope.
func RouteFor(scope domain.RatingScope) (Route, error) {
	r, ok := routes[scope]
	if !ok {
		return Route{}, domain.InvalidArgument("no destination for rating scope %s", scope)
	}
	return r, nil
}

// Validate refuses table or column names outside the routing table, since
// stores splice both into SQL text.
func (r Route) Validate() error {
	want, err := RouteFor(r.Scope)
	if err != nil {
		return err
	}
	if want != r {
		return domain.InvalidArgument("unknown rating route %s/%s", r.Table, r.ParentColumn)
	}
	return nil
}

// Row is the persisted shape of one rating, in insertion column order.
type Row struct {
	MetricID    int32
	ThresholdID int32
	ParentID    int64
	Value       float64
	Err         float64
}
