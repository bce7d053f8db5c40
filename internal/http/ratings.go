package httpserver

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Clark-Hu/sdqa/internal/catalog"
	"github.com/Clark-Hu/sdqa/internal/domain"
	"github.com/Clark-Hu/sdqa/internal/formatter"
)

type ratingInput struct {
	MetricName  string   `json:"metricName"`
	MetricValue *float64 `json:"metricValue"`
	MetricErr   float64  `json:"metricErr"`
}

type ratingsRequest struct {
	Ratings []ratingInput `json:"ratings"`
}

type ratingResponse struct {
	MetricName      string  `json:"metricName"`
	MetricID        int32   `json:"metricId"`
	ThresholdID     int32   `json:"thresholdId"`
	MetricValue     float64 `json:"metricValue"`
	MetricErr       float64 `json:"metricErr"`
	WithinThreshold *bool   `json:"withinThreshold,omitempty"`
}

type ratingsResponse struct {
	Scope    string           `json:"scope"`
	ParentID int64            `json:"parentId"`
	Count    int              `json:"count"`
	Ratings  []ratingResponse `json:"ratings"`
}

type ratingTarget struct {
	scope    domain.RatingScope
	route    formatter.Route
	parentID int64
}

func (t ratingTarget) props() formatter.Properties {
	return formatter.Properties{
		formatter.KeyScope: t.scope.String(),
		t.route.ContextKey: t.parentID,
	}
}

func (s *Server) handleSubmitRatings(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	target, err := decodeTarget(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req ratingsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	set, err := buildRatings(req, target.scope)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	p := domain.NewPersistableRatings(set)
	if err := s.formatter.Write(r.Context(), p, formatter.NewDBStorage(s.backend), target.props()); err != nil {
		s.respondDomainError(w, err, "Failed to store ratings")
		return
	}

	s.respondJSON(w, http.StatusCreated, s.toRatingsResponse(target, set, nil))
}

func (s *Server) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	target, err := decodeTarget(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	p, err := s.formatter.Read(r.Context(), formatter.NewDBStorage(s.backend), target.props())
	if err != nil {
		s.respondDomainError(w, err, "Failed to fetch ratings")
		return
	}

	var cat *catalog.Catalog
	if s.catalog != nil {
		if cat, err = s.catalog.LoadCatalog(r.Context()); err != nil {
			s.logger.WithError(err).Warn("http: catalog unavailable, omitting threshold checks")
			cat = nil
		}
	}
	s.respondJSON(w, http.StatusOK, s.toRatingsResponse(target, p.Ratings(), cat))
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	target, err := decodeTarget(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	p, err := s.formatter.Read(r.Context(), formatter.NewDBStorage(s.backend), target.props())
	if err != nil {
		s.respondDomainError(w, err, "Failed to fetch ratings")
		return
	}
	if p.Len() == 0 {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}

	var buf bytes.Buffer
	if err := s.encoder.Write(r.Context(), p, &formatter.ArchiveStorage{W: &buf}, target.props()); err != nil {
		s.respondDomainError(w, err, "Failed to encode archive")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type countResponse struct {
	Scope    string `json:"scope"`
	ParentID int64  `json:"parentId"`
	Count    int64  `json:"count"`
}

func (s *Server) handleCountRatings(w http.ResponseWriter, r *http.Request) {
	target, err := decodeTarget(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	n, err := s.backend.CountRatings(r.Context(), target.route, target.parentID)
	if err != nil {
		s.respondDomainError(w, err, "Failed to count ratings")
		return
	}
	s.respondJSON(w, http.StatusOK, countResponse{
		Scope:    target.scope.String(),
		ParentID: target.parentID,
		Count:    n,
	})
}

func decodeTarget(r *http.Request) (ratingTarget, error) {
	scope, err := domain.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		return ratingTarget{}, err
	}
	route, err := formatter.RouteFor(scope)
	if err != nil {
		return ratingTarget{}, err
	}
	parentID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "parentId")), 10, 64)
	if err != nil || parentID < 1 {
		return ratingTarget{}, errInvalidParent
	}
	return ratingTarget{scope: scope, route: route, parentID: parentID}, nil
}

func buildRatings(req ratingsRequest, scope domain.RatingScope) (domain.RatingSet, error) {
	if len(req.Ratings) == 0 {
		return nil, errNoRatings
	}
	if len(req.Ratings) > formatter.MaxBatchSize {
		return nil, errTooManyRatings
	}
	set := make(domain.RatingSet, 0, len(req.Ratings))
	for i, in := range req.Ratings {
		name := strings.TrimSpace(in.MetricName)
		if name == "" {
			return nil, fieldError(i, "metricName is required")
		}
		if in.MetricValue == nil {
			return nil, fieldError(i, "metricValue is required")
		}
		rating, err := domain.NewRating(name, *in.MetricValue, in.MetricErr, scope)
		if err != nil {
			return nil, err
		}
		set = append(set, rating)
	}
	return set, nil
}

func (s *Server) toRatingsResponse(target ratingTarget, set domain.RatingSet, cat *catalog.Catalog) ratingsResponse {
	items := make([]ratingResponse, 0, len(set))
	for _, r := range set {
		item := ratingResponse{
			MetricName:  r.Name(),
			MetricID:    r.MetricID(),
			ThresholdID: r.ThresholdID(),
			MetricValue: r.Value(),
			MetricErr:   r.Err(),
		}
		if cat != nil {
			if th, ok := cat.Threshold(r.MetricID()); ok {
				within := th.Within(r.Value())
				item.WithinThreshold = &within
			}
		}
		items = append(items, item)
	}
	return ratingsResponse{
		Scope:    target.scope.String(),
		ParentID: target.parentID,
		Count:    len(items),
		Ratings:  items,
	}
}

// respondDomainError maps the formatter's error kinds onto status codes.
func (s *Server) respondDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case domain.IsInvalidArgument(err):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case domain.IsRuntime(err):
		s.respondError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE", err.Error())
	default:
		s.logger.WithFields(logrus.Fields{"error": err}).Error("http: rating persistence failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}
