package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/Clark-Hu/sdqa/internal/formatter"
)

func TestManagerRecordsFormatterEvents(t *testing.T) {
	Convey("Given a metrics manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithRegistry(registry), WithNamespace("test"), WithHistogramBuckets([]float64{0.1, 1}))

		Convey("When a batch write is observed", func() {
			m.ObserveWrite("CCD", formatter.KindDB, 12, 30*time.Millisecond)
			m.ObserveWrite("CCD", formatter.KindDB, 3, 10*time.Millisecond)

			Convey("Then the written counter sums the ratings", func() {
				So(testutil.ToFloat64(m.ratingsWritten.WithLabelValues("CCD", "db")), ShouldEqual, 15.0)
				So(testutil.CollectAndCount(m.writeDuration), ShouldEqual, 1)
			})
		})

		Convey("When reads and failures are observed", func() {
			m.ObserveRead("AMP", formatter.KindArchive, 4)
			m.WriteFailed(formatter.KindTSV, "runtime")
			m.WriteFailed(formatter.KindTSV, "runtime")

			Convey("Then they are counted by label", func() {
				So(testutil.ToFloat64(m.ratingsRead.WithLabelValues("AMP", "archive")), ShouldEqual, 4.0)
				So(testutil.ToFloat64(m.writeFailures.WithLabelValues("tsv", "runtime")), ShouldEqual, 2.0)
			})
		})

		Convey("When an HTTP request is observed", func() {
			m.ObserveHTTP("/ratings/{scope}/{parentId}", http.MethodPost, http.StatusCreated, time.Millisecond)

			Convey("Then the handler exposes it", func() {
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				So(body, ShouldContainSubstring, `test_http_requests_total{method="POST",route="/ratings/{scope}/{parentId}",status_code="201"} 1`)
				So(strings.Contains(body, "go_goroutines"), ShouldBeTrue)
			})
		})
	})
}

func TestManagerRegistryDefaults(t *testing.T) {
	Convey("Given a manager without options", t, func() {
		m := NewManager()

		Convey("Then it owns a private registry", func() {
			So(m.Registry(), ShouldNotBeNil)
		})

		Convey("Then a second manager does not collide", func() {
			So(func() { NewManager() }, ShouldNotPanic)
		})
	})
}

func TestRegisterPoolToleratesNilStats(t *testing.T) {
	Convey("Given pool gauges whose source is not ready", t, func() {
		m := NewManager()
		m.RegisterPool(func() *pgxpool.Stat { return nil })

		Convey("Then gathering reports zeros", func() {
			families, err := m.Registry().Gather()
			So(err, ShouldBeNil)
			var found bool
			for _, f := range families {
				if f.GetName() == "sdqa_db_pool_max_conns" {
					found = true
					So(f.GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 0.0)
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}
