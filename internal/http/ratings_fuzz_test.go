package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

func FuzzBuildRatings(f *testing.F) {
	seeds := []string{
		`{"ratings":[{"metricName":"nBadPix","metricValue":1,"metricErr":0.5}]}`,
		`{"ratings":[{"metricName":" ","metricValue":1}]}`,
		`{"ratings":[{"metricName":"x"}]}`,
		`{"ratings":[]}`,
		``,
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		var req ratingsRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return
		}
		set, err := buildRatings(req, domain.ScopeCCD)
		if err != nil {
			return
		}
		if len(set) != len(req.Ratings) {
			t.Fatalf("built %d ratings from %d inputs", len(set), len(req.Ratings))
		}
		for _, r := range set {
			if r.Name() == "" || r.Scope() != domain.ScopeCCD {
				t.Fatalf("accepted rating %+v", r)
			}
		}
	})
}

func FuzzDecodeTarget(f *testing.F) {
	f.Add("AMP", "42")
	f.Add("footprint", "1")
	f.Add("SKY", "0")
	f.Add("ccd", "9223372036854775808")

	f.Fuzz(func(t *testing.T, scope, parent string) {
		req := attachParams(httptest.NewRequest(http.MethodGet, "/", nil), scope, parent)
		target, err := decodeTarget(req)
		if err != nil {
			return
		}
		if target.parentID < 1 || !target.scope.Valid() {
			t.Fatalf("accepted target %+v", target)
		}
		if _, err := target.props().Int64(target.route.ContextKey); err != nil {
			t.Fatalf("props of accepted target: %v", err)
		}
	})
}
