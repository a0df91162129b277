package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alkorolyov/dcmon/internal/auth"
	"github.com/alkorolyov/dcmon/internal/query"
	"github.com/alkorolyov/dcmon/pkg/labels"
)

// parseLabelFilter decodes the `labels` query parameter: a JSON array of
// label-set objects, OR'd together per spec §4.4's filter semantics. An
// absent or empty parameter matches every series.
func parseLabelFilter(r *http.Request) (labels.Filter, error) {
	raw := r.URL.Query().Get("labels")
	if raw == "" {
		return nil, nil
	}
	var sets []labels.Set
	if err := json.Unmarshal([]byte(raw), &sets); err != nil {
		return nil, err
	}
	filter := make(labels.Filter, len(sets))
	for i, s := range sets {
		filter[i] = s
	}
	return filter, nil
}

func queryInt64(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// timeWindow resolves the [start, end] range a timeseries/rate query
// covers: either an explicit since_timestamp/until_timestamp pair, or a
// trailing window of `seconds` ending now.
func timeWindow(r *http.Request) (start, end int64) {
	now := time.Now().Unix()
	end = queryInt64(r, "until_timestamp", now)
	seconds := queryInt64(r, "seconds", 3600)
	start = queryInt64(r, "since_timestamp", end-seconds)
	return start, end
}

func (s *Server) handleSeriesCatalog(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may browse the series catalog")
		return
	}

	agentID := r.URL.Query().Get("agent_id")
	metricName := r.URL.Query().Get("metric_name")

	if metricName == "" {
		names, err := s.cfg.Series.ListMetricNames(r.Context(), agentID)
		if err != nil {
			RespondAPIError(w, s.cfg.Logger, err)
			return
		}
		Respond(w, http.StatusOK, map[string]any{"metric_names": names})
		return
	}

	matches, err := s.cfg.Series.Find(r.Context(), agentID, metricName, nil)
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}
	out := make([]map[string]any, len(matches))
	for i, sr := range matches {
		out[i] = map[string]any{
			"series_id":   sr.SeriesID,
			"agent_id":    sr.AgentID,
			"metric_name": sr.MetricName,
			"labels":      labels.Decanonicalize(sr.LabelsCanonical),
			"value_kind":  sr.ValueKind,
		}
	}
	Respond(w, http.StatusOK, map[string]any{"series": out})
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may run timeseries queries")
		return
	}

	metricName := chi.URLParam(r, "metric_name")
	filter, err := parseLabelFilter(r)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "labels must be a JSON array of objects")
		return
	}
	start, end := timeWindow(r)

	var agentIDs []string
	if r.URL.Query().Get("active_only") == "true" {
		agentIDs, err = s.activeAgentIDs(r)
		if err != nil {
			RespondAPIError(w, s.cfg.Logger, err)
			return
		}
	}

	result, err := s.cfg.Query.Timeseries(r.Context(), query.TimeseriesSpec{
		MetricName:  metricName,
		Start:       start,
		End:         end,
		AgentIDs:    agentIDs,
		LabelFilter: filter,
		Aggregation: query.Aggregation(r.URL.Query().Get("aggregation")),
	})
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, result)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may run rate queries")
		return
	}

	metricName := chi.URLParam(r, "metric_name")
	filter, err := parseLabelFilter(r)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "labels must be a JSON array of objects")
		return
	}
	start, end := timeWindow(r)
	windowSec := queryInt64(r, "rate_window", 60)

	var agentIDs []string
	if r.URL.Query().Get("active_only") == "true" {
		agentIDs, err = s.activeAgentIDs(r)
		if err != nil {
			RespondAPIError(w, s.cfg.Logger, err)
			return
		}
	}

	result, err := s.cfg.Query.Rate(r.Context(), query.RateSpec{
		MetricName:  metricName,
		Start:       start,
		End:         end,
		AgentIDs:    agentIDs,
		LabelFilter: filter,
		WindowSec:   windowSec,
		Aggregation: query.Aggregation(r.URL.Query().Get("aggregation")),
	})
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, result)
}

// handleFraction runs a numerator/denominator latest-value composite,
// per spec §4.4.4 and SPEC_FULL.md's binding of it to a concrete endpoint.
func (s *Server) handleFraction(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || !identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "only admins may run fraction queries")
		return
	}

	q := r.URL.Query()
	agentID := q.Get("agent_id")
	numFilter, err := parseLabelFilter(r)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "bad_request", "labels must be a JSON array of objects")
		return
	}
	multiplier := 1.0
	if raw := q.Get("multiplier"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			multiplier = v
		}
	}

	value, ok2, err := s.cfg.Query.Fraction(r.Context(), query.FractionSpec{
		AgentID: agentID,
		Numerator: query.LatestValueSpec{
			MetricName:  q.Get("numerator"),
			LabelFilter: numFilter,
			Aggregation: query.Aggregation(q.Get("aggregation")),
		},
		Denominator: query.LatestValueSpec{
			MetricName:  q.Get("denominator"),
			Aggregation: query.Aggregation(q.Get("aggregation")),
		},
		Multiplier: multiplier,
	})
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}
	if !ok2 {
		Respond(w, http.StatusOK, map[string]any{"value": nil})
		return
	}
	Respond(w, http.StatusOK, map[string]any{"value": value})
}

// activeAgentIDs restricts a query to online/stale agents, per the
// active_only query parameter.
func (s *Server) activeAgentIDs(r *http.Request) ([]string, error) {
	summaries, err := s.cfg.Agents.List(r.Context(), time.Now(), s.cfg.ClientStaleAfter)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, a := range summaries {
		if a.Health != "offline" {
			ids = append(ids, a.AgentID)
		}
	}
	return ids, nil
}
