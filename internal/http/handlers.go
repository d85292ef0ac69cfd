package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

const analysisDateLayout = "2006-01-02"

// reportPointDTO is the wire shape of one report point.
type reportPointDTO struct {
	PeriodStart  string           `json:"period_start"`
	Key          core.GroupKey    `json:"key"`
	Name         string           `json:"name"`
	CategoryName string           `json:"category_name,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	ParentKey    *core.GroupKey   `json:"parent_key,omitempty"`
	Previous     *decimal.Decimal `json:"previous_amount,omitempty"`
	YearAgo      *decimal.Decimal `json:"year_ago_amount,omitempty"`
}

type reportResponse struct {
	Points []reportPointDTO `json:"points"`
}

func toReportResponse(points []core.ReportPoint) reportResponse {
	out := make([]reportPointDTO, len(points))
	for i, p := range points {
		out[i] = reportPointDTO{
			PeriodStart:  p.PeriodStart.Format(analysisDateLayout),
			Key:          p.Key,
			Name:         p.Name,
			CategoryName: p.CategoryName,
			Amount:       p.Amount,
			ParentKey:    p.ParentKey,
			Previous:     p.Previous,
			YearAgo:      p.YearAgo,
		}
	}
	return reportResponse{Points: out}
}

// handleReport serves GET /api/report. Responses are cached per owner and
// query string until the next rebuild purges the cache.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Encode sorts parameters, so reordered query strings share one slot.
	cacheKey := r.URL.Query().Encode()
	if points, ok := s.reportCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toReportResponse(points))
		return
	}

	points, err := s.reports.Report(r.Context(), q)
	if err != nil {
		slog.ErrorContext(r.Context(), "Report query failed", "error", err, "owner_id", q.OwnerID)
		writeError(w, http.StatusInternalServerError, "report query failed")
		return
	}

	s.reportCache.Set(cacheKey, points)
	writeJSON(w, http.StatusOK, toReportResponse(points))
}

func parseReportQuery(r *http.Request) (core.ReportQuery, error) {
	var q core.ReportQuery

	ownerID, ok := queryInt64(r, "owner")
	if !ok {
		return q, errBadParam("owner")
	}
	q.OwnerID = ownerID

	for _, raw := range queryList(r, "kinds") {
		kind, err := core.ParseKind(raw)
		if err != nil {
			return q, err
		}
		q.Kinds = append(q.Kinds, kind)
	}

	if raw := r.URL.Query().Get("interval"); raw != "" {
		interval, err := core.ParseInterval(raw)
		if err != nil {
			return q, err
		}
		q.Interval = interval
	}
	if raw := r.URL.Query().Get("date_kind"); raw != "" {
		dk := core.DateKind(raw)
		if !dk.Valid() {
			return q, errBadParam("date_kind")
		}
		q.DateKind = dk
	}

	q.IncludeCategories = queryBool(r, "categories")
	q.ComparePrevious = queryBool(r, "compare_previous")
	q.CompareYearAgo = queryBool(r, "compare_year_ago")
	q.Take = queryInt(r, "take", 0)

	if raw := r.URL.Query().Get("analysis_date"); raw != "" {
		d, err := time.ParseInLocation(analysisDateLayout, raw, time.UTC)
		if err != nil {
			return q, errBadParam("analysis_date")
		}
		q.AnalysisDate = d
	}

	entityIDs, err := queryIDList(r, "entity_ids")
	if err != nil {
		return q, errBadParam("entity_ids")
	}
	categoryIDs, err := queryIDList(r, "category_ids")
	if err != nil {
		return q, errBadParam("category_ids")
	}
	if len(entityIDs) > 0 || len(categoryIDs) > 0 {
		// The allow-lists apply to every requested kind.
		kinds := q.Kinds
		if len(kinds) == 0 {
			kinds = core.AllKinds()
		}
		q.Filter.ByKind = make(map[core.Kind]core.KindFilter, len(kinds))
		for _, kind := range kinds {
			q.Filter.ByKind[kind] = core.KindFilter{EntityIDs: entityIDs, CategoryIDs: categoryIDs}
		}
	}

	for _, raw := range queryList(r, "sub_types") {
		q.Filter.SubTypes = append(q.Filter.SubTypes, core.SecuritySubType(raw))
	}
	q.Filter.IncludeDividendRelated = queryBool(r, "dividend_related")

	return q, nil
}

type seriesResponse struct {
	Points []seriesPointDTO `json:"points"`
}

type seriesPointDTO struct {
	PeriodStart string          `json:"period_start"`
	Amount      decimal.Decimal `json:"amount"`
}

func toSeriesResponse(points []core.SeriesPoint) seriesResponse {
	out := make([]seriesPointDTO, len(points))
	for i, p := range points {
		out[i] = seriesPointDTO{
			PeriodStart: p.PeriodStart.Format(analysisDateLayout),
			Amount:      p.Amount,
		}
	}
	return seriesResponse{Points: out}
}

func parseSeriesQuery(r *http.Request, needEntity bool) (core.SeriesQuery, error) {
	var q core.SeriesQuery

	ownerID, ok := queryInt64(r, "owner")
	if !ok {
		return q, errBadParam("owner")
	}
	q.OwnerID = ownerID

	kind, err := core.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		return q, err
	}
	q.Kind = kind

	if needEntity {
		entityID, ok := queryInt64(r, "entity_id")
		if !ok {
			return q, errBadParam("entity_id")
		}
		q.EntityID = entityID
	}

	if raw := r.URL.Query().Get("period"); raw != "" {
		period, err := core.ParsePeriod(raw)
		if err != nil {
			return q, err
		}
		q.Period = period
	}
	if raw := r.URL.Query().Get("date_kind"); raw != "" {
		dk := core.DateKind(raw)
		if !dk.Valid() {
			return q, errBadParam("date_kind")
		}
		q.DateKind = dk
	}

	q.Take = queryInt(r, "take", 0)
	q.MaxYearsBack = queryInt(r, "max_years_back", 0)
	return q, nil
}

// handleEntitySeries serves GET /api/series for one entity.
func (s *Server) handleEntitySeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q, err := parseSeriesQuery(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.reports.EntitySeries(r.Context(), q)
	if err != nil {
		slog.ErrorContext(r.Context(), "Entity series query failed", "error", err, "owner_id", q.OwnerID, "entity_id", q.EntityID)
		writeError(w, http.StatusInternalServerError, "series query failed")
		return
	}
	// nil without error means the entity is not in the owner's directory
	if points == nil {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}

	writeJSON(w, http.StatusOK, toSeriesResponse(points))
}

// handleKindSeries serves GET /api/series/total across all owned entities of
// a kind.
func (s *Server) handleKindSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q, err := parseSeriesQuery(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.reports.KindSeries(r.Context(), q)
	if err != nil {
		slog.ErrorContext(r.Context(), "Kind series query failed", "error", err, "owner_id", q.OwnerID, "kind", q.Kind)
		writeError(w, http.StatusInternalServerError, "series query failed")
		return
	}

	writeJSON(w, http.StatusOK, toSeriesResponse(points))
}

type rebuildRequest struct {
	OwnerID int64  `json:"owner_id"`
	Reason  string `json:"reason"`
}

// handleRebuild serves POST /api/rebuild: dispatches a rebuild and purges
// the report cache so stale responses never outlive new aggregates.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID <= 0 {
		writeError(w, http.StatusBadRequest, "owner_id must be positive")
		return
	}

	if err := s.dispatcher.DispatchRebuild(r.Context(), req.OwnerID, req.Reason); err != nil {
		slog.ErrorContext(r.Context(), "Rebuild dispatch failed", "error", err, "owner_id", req.OwnerID)
		writeError(w, http.StatusInternalServerError, "rebuild dispatch failed")
		return
	}

	s.reportCache.Purge()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"owner_id": req.OwnerID,
	})
}

type paramError string

func (e paramError) Error() string { return "invalid or missing parameter: " + string(e) }

func errBadParam(name string) error { return paramError(name) }
