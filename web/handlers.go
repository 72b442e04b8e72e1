package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/usageledger/domain/pricing"
	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/pkg/jsonapi"
)

const dateLayout = "2006-01-02"

// authMiddleware resolves the API key and stores the credential in the
// request context. Every rejection collapses into the same generic 401
// so the response never reveals whether a key exists, is malformed, or
// was revoked. Key store failures answer 503 instead.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractAPIKey(r)
		if rawKey == "" {
			jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
			return
		}

		result, err := h.keys.Authenticate(r.Context(), rawKey)
		if err != nil {
			// A store failure is not a rejection: the caller may retry.
			h.logger.Error().Err(err).Msg("authentication lookup failed")
			jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable(""))
			return
		}
		if !result.Valid {
			h.logger.Debug().Str("reason", result.Reason).Msg("authentication failed")
			jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
			return
		}

		next.ServeHTTP(w, r.WithContext(withCredential(r.Context(), result.Key)))
	})
}

// extractAPIKey pulls the raw key from the Authorization or X-API-Key
// header.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return r.Header.Get("X-API-Key")
}

// usageRequest is the ingestion payload.
type usageRequest struct {
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	InputTokens  int64             `json:"input_tokens"`
	OutputTokens int64             `json:"output_tokens"`
	LatencyMs    int64             `json:"latency_ms"`
	Endpoint     string            `json:"endpoint"`
	Environment  string            `json:"environment"`
	UserID       string            `json:"user_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	AIAssisted   bool              `json:"ai_assisted,omitempty"`
}

// RecordUsage prices one reported call and appends it to the ledger.
// The call is first admitted against the project's quota pools; a denial
// leaves the ledger untouched.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(r.Context())
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
		return
	}

	var req usageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("invalid JSON body"))
		return
	}

	decision, err := h.limiter.CheckAndAdmit(r.Context(), cred.ProjectID, req.AIAssisted)
	if err != nil {
		h.logger.Error().Err(err).Msg("quota check failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("quota check failed"))
		return
	}
	if !decision.Allowed {
		// Deliberately generic: no pool, no limit, no reset time.
		jsonapi.WriteError(w, jsonapi.ErrQuotaExceeded(decision.Reason))
		return
	}

	event, err := h.ingest.Ingest(r.Context(), cred.ProjectID, usage.Params{
		Provider:     req.Provider,
		Model:        req.Model,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		LatencyMs:    req.LatencyMs,
		Endpoint:     req.Endpoint,
		Environment:  usage.Environment(req.Environment),
		UserID:       req.UserID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	jsonapi.WriteCreated(w, eventResource(event), "")
}

// writeIngestError maps ingestion failures onto HTTP statuses: unknown
// models are 422 with the supported list, caller mistakes are 400,
// everything else is a 500.
func (h *Handler) writeIngestError(w http.ResponseWriter, err error) {
	var unknownErr *pricing.UnknownModelError
	if errors.As(err, &unknownErr) {
		jsonapi.WriteError(w, jsonapi.ErrUnknownModel(unknownErr.Error()))
		return
	}

	switch {
	case errors.Is(err, usage.ErrNegativeTokens),
		errors.Is(err, usage.ErrNegativeLatency),
		errors.Is(err, usage.ErrMissingProvider),
		errors.Is(err, usage.ErrMissingModel),
		errors.Is(err, usage.ErrMissingEndpoint),
		errors.Is(err, usage.ErrInvalidEnvironment):
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
	default:
		h.logger.Error().Err(err).Msg("ingest failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("failed to record usage"))
	}
}

func eventResource(e usage.Event) jsonapi.Resource {
	b := jsonapi.NewResource("usage-event", e.ID).
		Attr("project_id", e.ProjectID).
		Attr("timestamp", e.Timestamp.Format(time.RFC3339)).
		Attr("provider", e.Provider).
		Attr("model", e.Model).
		Attr("input_tokens", e.InputTokens).
		Attr("output_tokens", e.OutputTokens).
		Attr("total_tokens", e.TotalTokens).
		Attr("cost_usd", e.CostUSD.String()).
		Attr("latency_ms", e.LatencyMs).
		Attr("endpoint", e.Endpoint).
		Attr("environment", string(e.Environment))
	if e.UserID != "" {
		b.Attr("user_id", e.UserID)
	}
	if len(e.Metadata) > 0 {
		b.Attr("metadata", e.Metadata)
	}
	return b.Build()
}

// ListEvents returns the authenticated project's recent events, newest
// first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(r.Context())
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
		return
	}

	from, to, err := h.timeRange(r, 30)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
		return
	}

	end := to.Add(24 * time.Hour)
	page, perPage := jsonapi.ParsePaginationParams(r.URL.Query(), 50)

	total, err := h.events.CountByProject(r.Context(), cred.ProjectID, from, end)
	if err != nil {
		h.logger.Error().Err(err).Msg("count events failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("failed to list events"))
		return
	}

	pagination := jsonapi.NewPagination(total, page, perPage, r.URL.Path)
	events, err := h.events.ListByProject(r.Context(), cred.ProjectID, from, end,
		pagination.Limit(), pagination.Offset())
	if err != nil {
		h.logger.Error().Err(err).Msg("list events failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("failed to list events"))
		return
	}

	resources := make([]jsonapi.Resource, 0, len(events))
	for _, e := range events {
		resources = append(resources, eventResource(e))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, pagination)
}

// DailyCost returns the project's per-day cost rollups.
func (h *Handler) DailyCost(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(r.Context())
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
		return
	}

	from, to, err := h.timeRange(r, 30)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
		return
	}

	rows, err := h.analytics.DailyCosts(r.Context(), cred.ProjectID, from, to)
	if err != nil {
		h.logger.Error().Err(err).Msg("daily cost query failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("failed to query rollups"))
		return
	}

	resources := make([]jsonapi.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, jsonapi.NewResource("daily-cost",
			row.Date.Format(dateLayout)+":"+string(row.Environment)).
			Attr("date", row.Date.Format(dateLayout)).
			Attr("environment", string(row.Environment)).
			Attr("total_cost_usd", row.TotalCostUSD.String()).
			Attr("total_tokens", row.TotalTokens).
			Attr("request_count", row.RequestCount).
			Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

// CostByModel returns the project's per-model cost rollups.
func (h *Handler) CostByModel(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(r.Context())
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
		return
	}

	from, to, err := h.timeRange(r, 30)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
		return
	}

	rows, err := h.analytics.ModelCosts(r.Context(), cred.ProjectID, from, to)
	if err != nil {
		h.logger.Error().Err(err).Msg("model cost query failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("failed to query rollups"))
		return
	}

	resources := make([]jsonapi.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, jsonapi.NewResource("model-cost",
			row.Date.Format(dateLayout)+":"+row.Model+":"+string(row.Environment)).
			Attr("date", row.Date.Format(dateLayout)).
			Attr("model", row.Model).
			Attr("environment", string(row.Environment)).
			Attr("total_cost_usd", row.TotalCostUSD.String()).
			Attr("total_tokens", row.TotalTokens).
			Attr("request_count", row.RequestCount).
			Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

// CostByEndpoint returns the project's per-endpoint cost rollups.
func (h *Handler) CostByEndpoint(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialFrom(r.Context())
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized(""))
		return
	}

	from, to, err := h.timeRange(r, 30)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
		return
	}

	rows, err := h.analytics.EndpointCosts(r.Context(), cred.ProjectID, from, to)
	if err != nil {
		h.logger.Error().Err(err).Msg("endpoint cost query failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("failed to query rollups"))
		return
	}

	resources := make([]jsonapi.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, jsonapi.NewResource("endpoint-cost",
			row.Date.Format(dateLayout)+":"+row.Endpoint+":"+string(row.Environment)).
			Attr("date", row.Date.Format(dateLayout)).
			Attr("endpoint", row.Endpoint).
			Attr("environment", string(row.Environment)).
			Attr("total_cost_usd", row.TotalCostUSD.String()).
			Attr("request_count", row.RequestCount).
			Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

// TriggerRollup recomputes the rollups for one UTC date.
func (h *Handler) TriggerRollup(w http.ResponseWriter, r *http.Request) {
	date, err := time.ParseInLocation(dateLayout, chi.URLParam(r, "date"), time.UTC)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("date must be YYYY-MM-DD"))
		return
	}

	result, err := h.aggregator.Recompute(r.Context(), date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date.Format(dateLayout)).Msg("rollup failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("rollup failed"))
		return
	}

	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"date":          result.Date.Format(dateLayout),
		"events":        result.Events,
		"daily_rows":    result.Daily,
		"model_rows":    result.Model,
		"endpoint_rows": result.Endpoint,
	})
}

// timeRange parses from/to query parameters as UTC dates, defaulting to
// the trailing defaultDays window ending today.
func (h *Handler) timeRange(r *http.Request, defaultDays int) (time.Time, time.Time, error) {
	now := h.clock.Now().UTC()
	from := usage.DateOf(now).AddDate(0, 0, -defaultDays)
	to := usage.DateOf(now)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		to = t
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not precede from")
	}
	return from, to, nil
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionInfo reports the service name and build version.
func (h *Handler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "usageledger",
		"version": Version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
