package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/zitrono/totalis-supabase-sub000/internal/middleware"
	"github.com/zitrono/totalis-supabase-sub000/internal/services"
)

type Router struct {
	store     Store
	engine    *services.CheckInEngine
	recs      *services.RecommendationService
	analytics *services.AnalyticsService
}

// NewRouter wires the check-in engine and its collaborators over the given
// store. Templates configure the question generator; nil selects the
// built-in defaults.
func NewRouter(store Store, templates []services.QuestionTemplate) *Router {
	gen := services.NewTemplateGenerator(templates)
	adapter := newCheckinStoreAdapter(store)
	return &Router{
		store:     store,
		engine:    services.NewCheckInEngine(adapter, gen, services.NewHeuristicScorer(), services.NewTieredFactory()),
		recs:      services.NewRecommendationService(newRecommendationStoreAdapter(store)),
		analytics: services.NewAnalyticsService(newAnalyticsStoreAdapter(store)),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/checkins", rt.handleCheckIns)
	mux.HandleFunc("/api/checkins/", rt.handleCheckInScoped)
	mux.HandleFunc("/api/categories", rt.handleCategories)
	mux.HandleFunc("/api/recommendations", rt.handleRecommendations)
	mux.HandleFunc("/api/recommendations/", rt.handleRecommendationScoped)
	mux.HandleFunc("/api/analytics/summary", rt.handleAnalyticsSummary)
	mux.HandleFunc("/api/export", rt.handleExport)
	mux.HandleFunc("/api/seed", rt.handleSeed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps each service error kind to one stable status.
// Unexpected failures become an opaque 500; internals never reach the client.
func writeServiceError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusInternalServerError
		switch se.Code {
		case services.ErrorInvalid, services.ErrorIncompleteAnswers, services.ErrorUnknownQuestion:
			status = http.StatusBadRequest
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict, services.ErrorInvalidState:
			status = http.StatusConflict
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorForbidden:
			status = http.StatusForbidden
		case services.ErrorBadGateway:
			status = http.StatusBadGateway
		case services.ErrorTimeout:
			status = http.StatusGatewayTimeout
		case services.ErrorTooManyRequests:
			status = http.StatusTooManyRequests
		}
		body := map[string]any{"error": se.Message, "code": se.Code}
		if len(se.Missing) > 0 {
			body["missing"] = se.Missing
		}
		writeJSON(w, status, body)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{"error": "storage timeout", "code": services.ErrorTimeout})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return "", false
	}
	return uid, true
}

// POST /api/checkins {category_id?} | GET /api/checkins
func (rt *Router) handleCheckIns(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req struct {
			CategoryID string `json:"category_id"`
		}
		if r.Body != nil {
			// empty body means a general check-in
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		res, err := rt.engine.Start(uid, req.CategoryID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"checkin":  convertServiceCheckIn(res.CheckIn),
			"question": convertServiceQuestion(res.Question),
			"resumed":  res.Resumed,
		})
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"checkins": rt.store.ListCheckInsByUser(uid)})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/checkins/{id}
// POST /api/checkins/{id}/answers {question_id, value, explanation?, version}
// POST /api/checkins/{id}/complete {}
// POST /api/checkins/{id}/abort {}
func (rt *Router) handleCheckInScoped(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/checkins/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		c, err := rt.engine.Get(uid, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"checkin": convertServiceCheckIn(c)})
		return
	}
	if len(parts) != 2 || r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "answers":
		var req struct {
			QuestionID  string              `json:"question_id"`
			Value       services.StringList `json:"value"`
			Explanation string              `json:"explanation"`
			Version     int64               `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		res, err := rt.engine.Answer(uid, id, services.AnswerRequest{
			QuestionID:  req.QuestionID,
			Value:       req.Value,
			Explanation: req.Explanation,
			Version:     req.Version,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"checkin":       convertServiceCheckIn(res.CheckIn),
			"next_question": convertServiceQuestion(res.NextQuestion),
			"done":          res.Done,
		})
	case "complete":
		res, err := rt.engine.Complete(uid, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		recs := make([]*Recommendation, 0, len(res.Recommendations))
		for _, rec := range res.Recommendations {
			recs = append(recs, convertServiceRecommendation(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"checkin":         convertServiceCheckIn(res.CheckIn),
			"recommendations": recs,
		})
	case "abort":
		if err := rt.engine.Abort(uid, id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.NotFound(w, r)
	}
}

// GET /api/categories?lang=xx
func (rt *Router) handleCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	type outCategory struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	cats := rt.store.ListCategories()
	out := make([]outCategory, 0, len(cats))
	for _, c := range cats {
		name := c.NameI18n[locale]
		if name == "" {
			name = c.NameI18n["en"]
		}
		desc := c.DescriptionI18n[locale]
		if desc == "" {
			desc = c.DescriptionI18n["en"]
		}
		out = append(out, outCategory{ID: c.ID, Name: name, Description: desc})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// GET /api/recommendations?include_dismissed=1
func (rt *Router) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	includeDismissed := r.URL.Query().Get("include_dismissed") == "1"
	recs, err := rt.recs.ListForUser(uid, includeDismissed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]*Recommendation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, convertServiceRecommendation(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": out})
}

// POST /api/recommendations/{id}/viewed | /api/recommendations/{id}/dismissed
func (rt *Router) handleRecommendationScoped(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/recommendations/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	var err error
	switch parts[1] {
	case "viewed":
		err = rt.recs.MarkViewed(uid, parts[0])
	case "dismissed":
		err = rt.recs.MarkDismissed(uid, parts[0])
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /api/analytics/summary
func (rt *Router) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	sum, err := rt.analytics.Summary(uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/export?format=long|wide
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "long"
	}
	checkins := make([]*services.CheckIn, 0)
	for _, c := range rt.store.ListCheckInsByUser(uid) {
		checkins = append(checkins, convertAPICheckIn(c))
	}
	var (
		b   []byte
		err error
	)
	switch format {
	case "long":
		b, err = services.ExportLongCSV(services.LongRowsFromCheckIns(checkins))
	case "wide":
		b, err = services.ExportWideCSV(services.WideInputsFromCheckIns(checkins))
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+format+".csv")
	_, _ = w.Write(b)
}

// POST /api/seed: create sample categories for local development
func (rt *Router) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cats := []*Category{
		{ID: "stress", Order: 1, NameI18n: map[string]string{"en": "Stress Management", "es": "Manejo del estrés"}},
		{ID: "sleep", Order: 2, NameI18n: map[string]string{"en": "Sleep", "es": "Sueño"}},
		{ID: "energy", Order: 3, NameI18n: map[string]string{"en": "Energy", "es": "Energía"}},
	}
	for _, c := range cats {
		rt.store.AddCategory(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "categories": cats})
}
