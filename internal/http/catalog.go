package httpserver

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/sdqa/internal/domain"
)

type metricResponse struct {
	ID            int32  `json:"id"`
	Name          string `json:"name"`
	PhysicalUnits string `json:"physicalUnits"`
	DataType      string `json:"dataType"`
	Definition    string `json:"definition"`
}

// Open bounds are omitted; JSON has no NaN.
type thresholdResponse struct {
	ID          int32     `json:"id"`
	MetricID    int32     `json:"metricId"`
	Upper       *float64  `json:"upper,omitempty"`
	Lower       *float64  `json:"lower,omitempty"`
	CreatedDate time.Time `json:"createdDate"`
}

type imageStatusResponse struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.backend.ListMetrics(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("http: list metrics failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list metrics")
		return
	}
	items := make([]metricResponse, 0, len(metrics))
	for _, m := range metrics {
		items = append(items, toMetricResponse(m))
	}
	s.respondJSON(w, http.StatusOK, listResponse[metricResponse]{Items: items})
}

func (s *Server) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "metric name is required")
		return
	}
	m, err := s.backend.GetMetricByName(r.Context(), name)
	if err != nil {
		if domain.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Metric not found")
			return
		}
		s.respondDomainError(w, err, "Failed to fetch metric")
		return
	}
	s.respondJSON(w, http.StatusOK, toMetricResponse(m))
}

func (s *Server) handleListThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := s.backend.ListThresholds(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("http: list thresholds failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list thresholds")
		return
	}
	items := make([]thresholdResponse, 0, len(thresholds))
	for _, th := range thresholds {
		items = append(items, toThresholdResponse(th))
	}
	s.respondJSON(w, http.StatusOK, listResponse[thresholdResponse]{Items: items})
}

func (s *Server) handleListImageStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.backend.ListImageStatuses(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("http: list image statuses failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list image statuses")
		return
	}
	items := make([]imageStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		items = append(items, imageStatusResponse(st))
	}
	s.respondJSON(w, http.StatusOK, listResponse[imageStatusResponse]{Items: items})
}

func toMetricResponse(m domain.Metric) metricResponse {
	return metricResponse{
		ID:            m.ID,
		Name:          m.Name,
		PhysicalUnits: m.PhysicalUnits,
		DataType:      m.DataType.String(),
		Definition:    m.Definition,
	}
}

func toThresholdResponse(th domain.Threshold) thresholdResponse {
	return thresholdResponse{
		ID:          th.ID,
		MetricID:    th.MetricID,
		Upper:       boundPtr(th.Upper),
		Lower:       boundPtr(th.Lower),
		CreatedDate: th.CreatedDate,
	}
}

func boundPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
